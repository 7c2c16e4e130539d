//go:build tools

// Package tools pins the dev tools run through `go run` (tygo, air, hivemind).
package tools

import (
	_ "github.com/DarthSim/hivemind"
	_ "github.com/air-verse/air"
	_ "github.com/gzuidhof/tygo"
)

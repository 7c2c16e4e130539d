package testgen

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// Image returns a small solid-colour image encoded as "png" or "jpeg".
func Image(t *testing.T, format string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 48))
	fill := color.RGBA{R: 120, G: 60, B: 30, A: 255}
	for y := 0; y < 48; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

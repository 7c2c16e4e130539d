package books

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/errcodes"
)

const maxCoverSize = 10 << 20

var allowedCoverTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// coverStore keeps uploaded cover images on disk, named after the book id.
type coverStore struct {
	dir string
}

func newCoverStore(cacheDir string) *coverStore {
	return &coverStore{dir: filepath.Join(cacheDir, "covers")}
}

func (s *coverStore) path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// save sniffs the image type from its content, not the client's
// Content-Type, and writes it as <bookID><ext>.
func (s *coverStore) save(bookID int, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxCoverSize+1))
	if err != nil {
		return "", errors.WithStack(err)
	}
	if len(data) > maxCoverSize {
		return "", errcodes.ValidationError("Cover images must be 10MB or smaller.")
	}

	mtype := mimetype.Detect(data)
	if !allowedCoverTypes[mtype.String()] {
		return "", errcodes.ValidationError("Cover must be a JPEG, PNG, or WebP image.")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.WithStack(err)
	}

	filename := fmt.Sprintf("%d%s", bookID, mtype.Extension())
	tmp, err := os.CreateTemp(s.dir, filename+".*.tmp")
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.WithStack(err)
	}
	if err := os.Rename(tmp.Name(), s.path(filename)); err != nil {
		return "", errors.WithStack(err)
	}

	return filename, nil
}

func (s *coverStore) remove(filename string) error {
	err := os.Remove(s.path(filename))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

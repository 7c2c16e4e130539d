package csvio

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shishobooks/shelf/pkg/errcodes"
)

// maxUploadSize caps a single CSV upload.
const maxUploadSize = 50 << 20

// fileStore keeps uploaded imports and finished exports under the cache dir
// until a job has used them.
type fileStore struct {
	importDir string
	exportDir string
}

func newFileStore(cacheDir string) *fileStore {
	return &fileStore{
		importDir: filepath.Join(cacheDir, "imports"),
		exportDir: filepath.Join(cacheDir, "exports"),
	}
}

// saveImport copies r to a uniquely named file and returns its path.
func (fs *fileStore) saveImport(entity string, r io.Reader) (string, error) {
	if err := os.MkdirAll(fs.importDir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.WithStack(err)
	}
	path := filepath.Join(fs.importDir, entity+"-"+id.String()+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	n, err := io.Copy(f, io.LimitReader(r, maxUploadSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", errors.WithStack(err)
	}
	if n > maxUploadSize {
		_ = os.Remove(path)
		return "", errcodes.ValidationError("The uploaded file is larger than 50MB.")
	}
	return path, nil
}

// ExportPath is where the export job with the given id writes its file.
func ExportPath(cacheDir string, jobID int, entity string) string {
	return filepath.Join(newFileStore(cacheDir).exportDir, entity+"-"+strconv.Itoa(jobID)+".csv")
}

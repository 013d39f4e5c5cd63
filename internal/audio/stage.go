package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempFilePrefix starts the name of every staged upload
const TempFilePrefix = "temp_audio_file"

// StagedFile is an upload written to a temporary file on disk
type StagedFile struct {
	Path string
	Size int64
}

// CleanupError reports a staged file that could not be removed
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to remove staged file %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// Stage writes the upload to a new file in dir named
// temp_audio_file-<uuid><ext>. The caller owns the file and must Remove it.
func Stage(dir string, upload Upload) (*StagedFile, error) {
	name := fmt.Sprintf("%s-%s%s", TempFilePrefix, uuid.NewString(), upload.Ext())
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	n, writeErr := f.Write(upload.Data)
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	return &StagedFile{Path: path, Size: int64(n)}, nil
}

// Remove deletes the staged file. Removing an already missing file is not an error.
func (s *StagedFile) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &CleanupError{Path: s.Path, Err: err}
	}
	return nil
}

// WithStagedFile stages the upload, calls fn with the staged path and removes
// the file on every exit path, including a panic in fn. A removal failure is
// joined to the error returned by fn.
func WithStagedFile(dir string, upload Upload, fn func(path string) error) (err error) {
	staged, err := Stage(dir, upload)
	if err != nil {
		return err
	}

	defer func() {
		if rmErr := staged.Remove(); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}()

	return fn(staged.Path)
}

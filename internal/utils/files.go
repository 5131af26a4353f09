package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/hearthgate/hearthgate/internal/log"
)

// CloseOrWarn closes the given closer and logs a warning on failure.
func CloseOrWarn(file io.Closer) {
	if err := file.Close(); err != nil {
		log.Warnf("Failed to close file: %v", err)
	}
}

// WriteFileAtomic writes data to path atomically using a temp file and rename.
// This ensures readers never observe a partially-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, ".tmp-"+filepath.Base(path))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath) // clean up on error

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

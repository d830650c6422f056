package spriter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the filesystem as seen by the batch.
type FS interface {
	// Exists reports whether path names existing regular file.
	Exists(path string) (bool, error)
	// Write stores data at path creating missing directories.
	Write(path string, data []byte) error
}

// OSFS is FS backed by local filesystem.
type OSFS struct{}

func (OSFS) Exists(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

func (OSFS) Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

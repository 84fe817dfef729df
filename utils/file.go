package utils

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(path string) {
	utils.UncheckedErrorFunc(func() error {
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	})
}

// WriteFileAtomic writes data next to path and renames it into place so readers
// never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating directory %q", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		utils.UncheckedError(tmp.Close())
		RemoveFileNoError(tmpName)
		return errors.Wrapf(err, "writing %q", tmpName)
	}
	if err := tmp.Close(); err != nil {
		RemoveFileNoError(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		RemoveFileNoError(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		RemoveFileNoError(tmpName)
		return errors.Wrapf(err, "renaming into %q", path)
	}
	return nil
}

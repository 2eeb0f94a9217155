package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ModuleRoot returns the directory holding this module's go.mod.
func ModuleRoot() (string, error) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("module root: no caller information")
	}
	for dir := filepath.Dir(self); ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("module root: no go.mod above %s", filepath.Dir(self))
		}
		dir = parent
	}
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// WriteFile writes data to path, creating missing parent directories.
func WriteFile(path string, data []byte) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrComponentEmpty         = errors.New("path component cannot be empty")
	ErrComponentPathTraversal = errors.New("path component contains separator, dot segment or null byte")
)

// ValidateComponent checks that s can be used as a single file name
// inside a directory we control.
func ValidateComponent(s string) error {
	if s == "" {
		return ErrComponentEmpty
	}
	if s == "." || s == ".." || strings.ContainsAny(s, "/\\\x00") {
		return ErrComponentPathTraversal
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsExecutable returns true if path is a regular file with an execute bit.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

// CheckWritableDir verifies dir exists and a file can be created in it.
func CheckWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	f, err := os.CreateTemp(dir, ".url2pdf-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

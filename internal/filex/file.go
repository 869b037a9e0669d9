// Package filex contains filesystem helpers shared by the blob store and the
// journalist tool.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates dir (and parents) if needed and returns its absolute
// path. Relative paths are resolved against the working directory.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// CreateUnique creates a new file in dir named like UniqueName would pick,
// using O_EXCL so concurrent writers never share a name. The caller closes
// the returned file.
func CreateUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; ; n++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
}

// UniqueName returns name if it is free in dir, otherwise the first of
// name_1, name_2, ... that is. The counter goes before the extension.
func UniqueName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 1; ; n++ {
		_, err := os.Stat(filepath.Join(dir, candidate))
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
}

// SafeBase strips any directory components from an untrusted file name.
// An empty or dot-only result becomes "file".
func SafeBase(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "file"
	}
	return base
}

// RemoveDirs deletes every dir, ignoring ones that do not exist, and returns
// the paths that were actually removed.
func RemoveDirs(dirs ...string) ([]string, error) {
	var removed []string
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if _, err := os.Stat(d); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(d); err != nil {
			return removed, fmt.Errorf("remove %s: %w", d, err)
		}
		removed = append(removed, d)
	}
	return removed, nil
}

package pack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveRoot returns the absolute cleaned form of root and checks that it is
// a directory.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("invalid source directory: %w", err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("invalid source directory: %s is not a directory", abs)
	}
	return abs, nil
}

// EntryName returns the archive entry name of path under root: the root
// prefix and exactly one separator are removed and separators become '/'.
func EntryName(root, path string) string {
	n := len(root)
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		n++
	}
	if n > len(path) {
		return ""
	}
	return filepath.ToSlash(path[n:])
}

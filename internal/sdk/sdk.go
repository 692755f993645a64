// Package sdk locates command-line tools inside an Android SDK install.
package sdk

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// FindTool searches root recursively for an executable named name, the way
// SDK installs scatter build tools across versioned directories. The first
// match wins.
func FindTool(root, name string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("ANDROID_HOME is not set; cannot locate %s", name)
	}

	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s for %s: %w", root, name, err)
	}
	if found == "" {
		return "", fmt.Errorf("%s not found under %s", name, root)
	}
	return found, nil
}

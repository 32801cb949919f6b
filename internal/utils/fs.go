package utils

import (
	"errors"
	"fmt"
	"os"
)

// Exists reports whether path is present on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates dir and its parents, succeeding if it already exists.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// RemoveTree deletes dir recursively. A missing dir is not an error.
func RemoveTree(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	Log("Removed tree: %s", dir)
	return nil
}

// RenameTree moves from to to. It refuses to overwrite an existing target.
func RenameTree(from, to string) error {
	if from == to {
		return nil
	}
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("rename %s: target %s already exists", from, to)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}
	Log("Renamed tree: %s -> %s", from, to)
	return nil
}

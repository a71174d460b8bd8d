// Package storage implements the storage collaborator spec.md §6 names:
// it persists a generated project's archive under
// {root}/{user_id}/{project_id}/… No object-storage SDK appears anywhere
// in the example corpus, so this is a plain filesystem store — the
// concrete collaborator spec.md describes as out of scope for the
// pipeline itself.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem is the pkg/pipeline Storage collaborator, writing every
// artifact under Root/{user_id}/{project_id}/.
type Filesystem struct {
	Root string
}

func NewFilesystem(root string) *Filesystem {
	return &Filesystem{Root: root}
}

// Save copies srcPath into the user/project's directory and returns its
// path relative to Root.
func (f *Filesystem) Save(ctx context.Context, userID, projectID, srcPath string) (string, error) {
	relDir := filepath.Join(userID, projectID)
	destDir := filepath.Join(f.Root, relDir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create storage directory: %w", err)
	}

	destName := filepath.Base(srcPath)
	destPath := filepath.Join(destDir, destName)
	if err := copyFile(srcPath, destPath); err != nil {
		return "", fmt.Errorf("save archive: %w", err)
	}

	return filepath.Join(relDir, destName), nil
}

// Get returns the absolute path to the stored archive for (userID,
// projectID), if one exists.
func (f *Filesystem) Get(ctx context.Context, userID, projectID string) (string, bool, error) {
	dir := filepath.Join(f.Root, userID, projectID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read storage directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".zip") {
			return filepath.Join(dir, entry.Name()), true, nil
		}
	}
	return "", false, nil
}

// Delete removes everything stored for (userID, projectID).
func (f *Filesystem) Delete(ctx context.Context, userID, projectID string) error {
	return os.RemoveAll(filepath.Join(f.Root, userID, projectID))
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = io.Copy(dest, src)
	return err
}

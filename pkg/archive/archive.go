// Package archive implements the archive-assembly collaborator spec.md
// §6 names: it packs a rendered file map into a standard ZIP rooted at a
// directory named after the project, ready for the sandbox deployer to
// extract.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Assembler writes archives under ScratchRoot, UUID-suffixed so
// concurrent repair-loop attempts for the same project never collide.
type Assembler struct {
	ScratchRoot string
}

func NewAssembler(scratchRoot string) *Assembler {
	return &Assembler{ScratchRoot: scratchRoot}
}

// Assemble writes a ZIP containing every entry in files under
// projectName/, plus an empty placeholder under projectName/alembic/ so
// the rendered project always has a migrations directory to grow into.
func (a *Assembler) Assemble(ctx context.Context, projectName string, files map[string]string) (string, error) {
	if err := os.MkdirAll(a.ScratchRoot, 0o755); err != nil {
		return "", fmt.Errorf("create archive scratch root: %w", err)
	}

	archivePath := filepath.Join(a.ScratchRoot, fmt.Sprintf("%s-%s.zip", projectName, uuid.NewString()))
	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writeEntry(zw, path.Join(projectName, name), files[name]); err != nil {
			return "", err
		}
	}
	if err := writeEntry(zw, path.Join(projectName, "alembic", ".gitkeep"), ""); err != nil {
		return "", err
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return archivePath, nil
}

func writeEntry(zw *zip.Writer, entryPath, content string) error {
	w, err := zw.Create(entryPath)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", entryPath, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		return fmt.Errorf("write archive entry %s: %w", entryPath, err)
	}
	return nil
}

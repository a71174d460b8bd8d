package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempArchive(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFilesystem_SaveThenGet_RoundTrips(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	src := writeTempArchive(t, "zip-bytes")

	relPath, err := fs.Save(context.Background(), "user-1", "project-1", src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("user-1", "project-1", "project.zip"), relPath)

	gotPath, found, err := fs.Get(context.Background(), "user-1", "project-1")
	require.NoError(t, err)
	require.True(t, found)

	content, err := os.ReadFile(gotPath)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(content))
}

func TestFilesystem_Get_NotFoundWhenNeverSaved(t *testing.T) {
	fs := NewFilesystem(t.TempDir())

	_, found, err := fs.Get(context.Background(), "nobody", "nothing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFilesystem_Delete_RemovesProjectDirectory(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	src := writeTempArchive(t, "zip-bytes")

	_, err := fs.Save(context.Background(), "user-1", "project-1", src)
	require.NoError(t, err)

	require.NoError(t, fs.Delete(context.Background(), "user-1", "project-1"))

	_, found, err := fs.Get(context.Background(), "user-1", "project-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFilesystem_Save_IsolatesDifferentProjectsUnderSameUser(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	srcA := writeTempArchive(t, "a")
	srcB := writeTempArchive(t, "b")

	_, err := fs.Save(context.Background(), "user-1", "project-a", srcA)
	require.NoError(t, err)
	_, err = fs.Save(context.Background(), "user-1", "project-b", srcB)
	require.NoError(t, err)

	pathA, foundA, err := fs.Get(context.Background(), "user-1", "project-a")
	require.NoError(t, err)
	require.True(t, foundA)
	contentA, err := os.ReadFile(pathA)
	require.NoError(t, err)
	assert.Equal(t, "a", string(contentA))
}

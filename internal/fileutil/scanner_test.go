package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plan.yaml":            "a",
		"notes.md":             "b",
		"segments/seg0.YAML":   "c",
		"segments/deep/k.yaml": "d",
		".git/config":          "e",
		"cache/blob.yaml":      "f",
	})

	tests := []struct {
		name string
		opts ScanOptions
		want []string
	}{
		{
			name: "top level only",
			opts: ScanOptions{},
			want: []string{"notes.md", "plan.yaml"},
		},
		{
			name: "recursive skips hidden dirs",
			opts: ScanOptions{Recursive: true},
			want: []string{
				filepath.Join("cache", "blob.yaml"),
				"notes.md",
				"plan.yaml",
				filepath.Join("segments", "deep", "k.yaml"),
				filepath.Join("segments", "seg0.YAML"),
			},
		},
		{
			name: "extension filter is case insensitive",
			opts: ScanOptions{Recursive: true, Extensions: []string{"yaml"}, ExcludeDirs: []string{"cache"}},
			want: []string{
				"plan.yaml",
				filepath.Join("segments", "deep", "k.yaml"),
				filepath.Join("segments", "seg0.YAML"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ScanDirectory(root, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Files)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestScanDirectory_Errors(t *testing.T) {
	_, err := ScanDirectory(filepath.Join(t.TempDir(), "missing"), ScanOptions{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = ScanDirectory(file, ScanOptions{})
	assert.Error(t, err)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out", "plan")
	writeTree(t, src, map[string]string{
		"traj.yaml":        "segments: []",
		"meta/info.txt":    "rounded",
		".hidden/skip.txt": "x",
	})

	copied, err := CopyTree(src, dst, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("meta", "info.txt"), "traj.yaml"}, copied)

	data, err := os.ReadFile(filepath.Join(dst, "meta", "info.txt"))
	require.NoError(t, err)
	assert.Equal(t, "rounded", string(data))
	assert.NoFileExists(t, filepath.Join(dst, ".hidden", "skip.txt"))
}

func TestCopyTreeVerbatim(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "plan")
	writeTree(t, src, map[string]string{
		"trajectory/traj_rounded.yaml": "name: traj_rounded",
		".hidden/notes.txt":            "x",
		".plan-meta":                   "seed: 7",
	})
	require.NoError(t, os.Symlink(filepath.Join("trajectory", "traj_rounded.yaml"), filepath.Join(src, "latest.yaml")))

	copied, err := CopyTree(src, dst, ScanOptions{IncludeHidden: true, IncludeSymlinks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(".hidden", "notes.txt"),
		".plan-meta",
		"latest.yaml",
		filepath.Join("trajectory", "traj_rounded.yaml"),
	}, copied)

	assert.FileExists(t, filepath.Join(dst, ".hidden", "notes.txt"))
	assert.FileExists(t, filepath.Join(dst, ".plan-meta"))

	target, err := os.Readlink(filepath.Join(dst, "latest.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("trajectory", "traj_rounded.yaml"), target)
	data, err := os.ReadFile(filepath.Join(dst, "latest.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "name: traj_rounded", string(data))
}

func TestCopyFilePreservesMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh"), 0755))

	dst := filepath.Join(dir, "nested", "run.sh")
	require.NoError(t, CopyFile(src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

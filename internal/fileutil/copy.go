package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst, creating dst's parent directories. The file
// mode of src is preserved.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyTree copies every file ScanDirectory finds under src into dst,
// preserving the relative layout. Symbolic links found with
// opts.IncludeSymlinks are recreated, not followed. It returns the relative
// paths copied.
func CopyTree(src, dst string, opts ScanOptions) ([]string, error) {
	opts.Recursive = true
	result, err := ScanDirectory(src, opts)
	if err != nil {
		return nil, err
	}

	var errs []error
	copied := make([]string, 0, len(result.Files))
	for _, rel := range result.Files {
		if err := copyEntry(filepath.Join(src, rel), filepath.Join(dst, rel)); err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", rel, err))
			continue
		}
		copied = append(copied, rel)
	}
	errs = append(errs, result.Errors...)
	return copied, errors.Join(errs...)
}

// copyEntry copies a regular file or recreates a symbolic link.
func copyEntry(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return CopyFile(src, dst)
	}

	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, dst)
}

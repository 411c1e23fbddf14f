package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Extensions limits results to these extensions (e.g. ".yaml"); empty means all
	Extensions []string
	// Recursive enables descending into subdirectories
	Recursive bool
	// ExcludeDirs are directory names never descended into
	ExcludeDirs []string
	// IncludeHidden descends into directories whose name starts with "."
	IncludeHidden bool
	// IncludeSymlinks reports symbolic links as files instead of skipping them
	IncludeSymlinks bool
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Root is the scanned directory
	Root string
	// Files are the matched files relative to Root, sorted
	Files []string
	// Errors are non-fatal errors hit while walking
	Errors []error
}

// ScanDirectory scans dir for files matching opts. Directories whose name
// starts with "." are skipped unless opts.IncludeHidden is set. Symbolic
// links are never followed.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	extMap := make(map[string]bool)
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}
	excludeMap := make(map[string]bool)
	for _, name := range opts.ExcludeDirs {
		excludeMap[name] = true
	}

	result := &ScanResult{Root: dir}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if !opts.Recursive || excludeMap[d.Name()] || (!opts.IncludeHidden && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		isLink := d.Type()&os.ModeSymlink != 0
		if !d.Type().IsRegular() && !(isLink && opts.IncludeSymlinks) {
			return nil
		}

		if len(extMap) > 0 && !extMap[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}
		result.Files = append(result.Files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)
	return result, nil
}

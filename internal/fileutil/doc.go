// Package fileutil lists and copies directory trees.
//
// ScanDirectory walks a directory and returns the matching files relative to
// it, sorted, skipping hidden directories. CopyTree builds on it to mirror a
// plan folder into a run directory.
package fileutil

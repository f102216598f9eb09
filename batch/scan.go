// Package batch drives directory-level processing: scanning for candidate
// photos, scheduling them onto the worker pool, writing outputs with
// collision-safe names, and summarising the run.
package batch

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// candidateExtensions are the filename extensions considered photo input.
// Matching is case-insensitive; actual format dispatch still happens by
// content sniffing, so a mislabeled file is reported as unsupported rather
// than silently skipped.
var candidateExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
	".heif": true,
}

// IsCandidate reports whether the filename looks like a photo input.
func IsCandidate(name string) bool {
	return candidateExtensions[strings.ToLower(filepath.Ext(name))]
}

// Scan walks root recursively and returns candidate photo paths in sorted
// order. The exclude directory (typically the output directory, which may
// live inside root) and hidden directories are not descended into.
func Scan(root, exclude string) ([]string, error) {
	var paths []string
	absExclude, _ := filepath.Abs(exclude)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); exclude != "" && abs == absExclude {
				return filepath.SkipDir
			}
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsCandidate(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

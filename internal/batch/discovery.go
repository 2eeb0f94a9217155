package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// fileFilter selects files by base-name glob. Exclude patterns win over
// include patterns; an empty include list accepts everything not excluded.
type fileFilter struct {
	include []string
	exclude []string
}

func (f fileFilter) accepts(path string) bool {
	base := filepath.Base(path)
	if globAny(f.exclude, base) {
		return false
	}
	return len(f.include) == 0 || globAny(f.include, base)
}

func globAny(patterns []string, name string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		ok, _ := filepath.Match(p, name)
		return ok
	})
}

// shouldIncludeFile reports whether path passes the include and exclude
// patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	return fileFilter{include: includePatterns, exclude: excludePatterns}.accepts(path)
}

// discoverMatchFiles expands args into correspondence files. Directory
// contents come back in lexical order; explicit file arguments keep their
// position. Empty include patterns select DefaultIncludePatterns.
func discoverMatchFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	if len(includePatterns) == 0 {
		includePatterns = DefaultIncludePatterns
	}
	filter := fileFilter{include: includePatterns, exclude: excludePatterns}

	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if filter.accepts(arg) {
				out = append(out, arg)
			}
			continue
		}
		found, err := scanDirectory(arg, recursive, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// scanDirectory collects the accepted files under dir, descending into
// subdirectories only when recursive is set.
func scanDirectory(dir string, recursive bool, filter fileFilter) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != dir && !recursive:
			return filepath.SkipDir
		case !d.IsDir() && filter.accepts(path):
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	slices.Sort(found)
	return found, nil
}

// Package glob expands and matches the doublestar source and watch patterns of a
// category against a source root.
package glob

import (
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// File is one file matched by a pattern.
type File struct {
	// Rel is the slash path relative to the source root.
	Rel string
	// Path is relative to the static base of the pattern that matched it,
	// which is also the path the file keeps below the output directory.
	Path string
}

// Base returns the static directory prefix of a pattern ("" for the root).
func Base(pattern string) string {
	base, _ := doublestar.SplitPattern(pattern)
	if base == "." {
		return ""
	}
	return base
}

// Expand returns every regular file under root matched by patterns, sorted by Rel.
// A file matched by several patterns is reported once, for the first one.
func Expand(root string, patterns []string) ([]File, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []File
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "expand pattern").
				WithContext("pattern", pattern).
				Build()
		}
		base := Base(pattern)
		for _, rel := range matches {
			if seen[rel] || Ignored(rel) {
				continue
			}
			seen[rel] = true
			files = append(files, File{Rel: rel, Path: relTo(base, rel)})
		}
	}
	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Rel, b.Rel) })
	return files, nil
}

// MatchAny reports whether the root-relative slash path rel matches any pattern.
func MatchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Dirs returns every existing directory a watcher must subscribe to so that it sees
// changes to files matched by patterns: the static bases and everything below them
// when a pattern can descend.
func Dirs(root string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, pattern := range patterns {
		base, rest := doublestar.SplitPattern(pattern)
		if _, err := fs.Stat(os.DirFS(root), base); err != nil {
			continue
		}
		if !strings.Contains(rest, "/") && !strings.Contains(rest, "**") {
			add(base)
			continue
		}
		err := fs.WalkDir(os.DirFS(root), base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if p != base && Ignored(p) {
					return fs.SkipDir
				}
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "walk watch directory").
				WithContext("path", base).
				Build()
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}

// Ignored reports editor temporaries and hidden files: any path element starting
// with "." or "#", or a name ending in "~", ".swp", ".swx" or ".tmp".
func Ignored(rel string) bool {
	for _, elem := range strings.Split(rel, "/") {
		if elem == "." || elem == "" {
			continue
		}
		if strings.HasPrefix(elem, ".") || strings.HasPrefix(elem, "#") {
			return true
		}
	}
	name := path.Base(rel)
	return strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".swx") ||
		strings.HasSuffix(name, ".tmp")
}

func relTo(base, rel string) string {
	if base == "" {
		return rel
	}
	return strings.TrimPrefix(rel, base+"/")
}

package config

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Category identifies one asset category. The set is fixed.
type Category string

const (
	CategoryMarkup  Category = "markup"
	CategoryStyles  Category = "styles"
	CategoryScripts Category = "scripts"
	CategoryImages  Category = "images"
	CategoryIcons   Category = "icons"
	CategoryFonts   Category = "fonts"
)

// Categories returns every category in a stable order.
func Categories() []Category {
	return []Category{CategoryMarkup, CategoryStyles, CategoryScripts, CategoryImages, CategoryIcons, CategoryFonts}
}

// CategoryPaths is the on-disk contract of one category.
//
// Source and Watch patterns are doublestar globs relative to the source root.
// Output is a slash path relative to the build root. File pins the category to a
// single output file inside Output (the icon sprite). Exclude lists output-relative
// paths the category must never write because another category owns them.
type CategoryPaths struct {
	Source  []string `yaml:"source"`
	Watch   []string `yaml:"watch"`
	Output  string   `yaml:"output"`
	File    string   `yaml:"file,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// PathConfig maps every category to its patterns and output directory.
type PathConfig struct {
	SourceRoot string                     `yaml:"source_root"`
	BuildRoot  string                     `yaml:"build_root"`
	Categories map[Category]CategoryPaths `yaml:"categories"`
}

// Resolved is a category's paths joined against the configured roots.
type Resolved struct {
	Category Category
	// SourceRoot is the absolute-or-relative source root all patterns are relative to.
	SourceRoot string
	Source     []string
	Watch      []string
	// OutputDir is the category output directory on disk.
	OutputDir string
	// Output is OutputDir as a slash path relative to the build root, "" for the root.
	Output  string
	File    string
	Exclude []string
}

// DefaultPaths returns the ./src -> ./build layout.
func DefaultPaths() PathConfig {
	return PathConfig{
		SourceRoot: "./src",
		BuildRoot:  "./build",
		Categories: map[Category]CategoryPaths{
			CategoryMarkup: {
				Source: []string{"*.html"},
				Watch:  []string{"**/*.html"},
				Output: "",
			},
			CategoryStyles: {
				Source: []string{"scss/style.scss"},
				Watch:  []string{"scss/**/*.scss"},
				Output: "css",
			},
			CategoryScripts: {
				Source: []string{"js/scripts.js"},
				Watch:  []string{"js/**/*.js"},
				Output: "js",
			},
			CategoryImages: {
				Source:  []string{"img/**/*.{png,jpg,jpeg,ico,svg,webp}"},
				Watch:   []string{"img/**/*.{png,jpg,jpeg,ico,svg,webp}"},
				Output:  "img",
				Exclude: []string{"sprite.svg"},
			},
			CategoryIcons: {
				Source: []string{"img/svg/*.svg"},
				Watch:  []string{"img/svg/*.svg"},
				Output: "img",
				File:   "sprite.svg",
			},
			CategoryFonts: {
				Source: []string{"fonts/*"},
				Watch:  []string{"fonts/*"},
				Output: "fonts",
			},
		},
	}
}

// Resolve returns the paths of one category.
func (p PathConfig) Resolve(c Category) (Resolved, error) {
	cp, ok := p.Categories[c]
	if !ok {
		return Resolved{}, ferrors.ConfigError("unknown asset category").
			WithContext("category", string(c)).
			Build()
	}
	if len(cp.Source) == 0 {
		return Resolved{}, ferrors.ConfigError("category has no source pattern").
			WithContext("category", string(c)).
			Build()
	}
	for _, pattern := range append(slices.Clone(cp.Source), cp.Watch...) {
		if !doublestar.ValidatePattern(pattern) || path.IsAbs(pattern) {
			return Resolved{}, ferrors.ConfigError("malformed pattern").
				WithContext("category", string(c)).
				WithContext("pattern", pattern).
				Build()
		}
	}
	out, err := cleanOutput(cp.Output)
	if err != nil {
		return Resolved{}, ferrors.ConfigError("output directory escapes build root").
			WithContext("category", string(c)).
			WithContext("output", cp.Output).
			Build()
	}
	watch := cp.Watch
	if len(watch) == 0 {
		watch = cp.Source
	}
	return Resolved{
		Category:   c,
		SourceRoot: p.SourceRoot,
		Source:     slices.Clone(cp.Source),
		Watch:      slices.Clone(watch),
		OutputDir:  filepath.Join(p.BuildRoot, filepath.FromSlash(out)),
		Output:     out,
		File:       cp.File,
		Exclude:    slices.Clone(cp.Exclude),
	}, nil
}

// WithRoots returns a copy pointing at different roots. Category patterns are untouched.
func (p PathConfig) WithRoots(sourceRoot, buildRoot string) PathConfig {
	cp := PathConfig{SourceRoot: p.SourceRoot, BuildRoot: p.BuildRoot, Categories: make(map[Category]CategoryPaths, len(p.Categories))}
	for k, v := range p.Categories {
		cp.Categories[k] = v
	}
	if sourceRoot != "" {
		cp.SourceRoot = sourceRoot
	}
	if buildRoot != "" {
		cp.BuildRoot = buildRoot
	}
	return cp
}

// Validate checks every category resolves and that no two categories can write the same output path.
func (p PathConfig) Validate() error {
	if strings.TrimSpace(p.SourceRoot) == "" || strings.TrimSpace(p.BuildRoot) == "" {
		return ferrors.ConfigError("source_root and build_root are required").Build()
	}
	for _, c := range Categories() {
		if _, err := p.Resolve(c); err != nil {
			return err
		}
	}
	cats := Categories()
	for i, a := range cats {
		for _, b := range cats[i+1:] {
			if p.scope(a).overlaps(p.scope(b)) {
				return ferrors.ConfigError("category outputs overlap").
					WithContext("category", string(a)).
					WithContext("other", string(b)).
					Build()
			}
		}
	}
	return nil
}

// Recursive reports whether a category can write below the top level of its output dir.
func (p PathConfig) Recursive(c Category) bool {
	for _, pattern := range p.Categories[c].Source {
		_, rest := doublestar.SplitPattern(pattern)
		if strings.Contains(rest, "/") || strings.Contains(rest, "**") {
			return true
		}
	}
	return false
}

// outputScope is the set of build-root-relative paths a category can claim.
type outputScope struct {
	dir       string
	recursive bool
	file      string
	exclude   []string
}

func (p PathConfig) scope(c Category) outputScope {
	cp := p.Categories[c]
	dir, _ := cleanOutput(cp.Output)
	return outputScope{dir: dir, recursive: p.Recursive(c), file: cp.File, exclude: cp.Exclude}
}

func (s outputScope) overlaps(o outputScope) bool {
	switch {
	case s.file != "" && o.file != "":
		return path.Join(s.dir, s.file) == path.Join(o.dir, o.file)
	case s.file != "":
		return o.claims(path.Join(s.dir, s.file))
	case o.file != "":
		return s.claims(path.Join(o.dir, o.file))
	}
	if s.dir == o.dir {
		return true
	}
	if isWithin(o.dir, s.dir) {
		return s.recursive
	}
	if isWithin(s.dir, o.dir) {
		return o.recursive
	}
	return false
}

// claims reports whether a directory scope may write p.
func (s outputScope) claims(p string) bool {
	if !isWithin(p, s.dir) {
		return false
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(p, s.dir), "/")
	if slices.Contains(s.exclude, rel) {
		return false
	}
	return s.recursive || !strings.Contains(rel, "/")
}

// isWithin reports whether p lies strictly below dir. The build root is "".
func isWithin(p, dir string) bool {
	if dir == "" {
		return p != ""
	}
	return strings.HasPrefix(p, dir+"/")
}

func cleanOutput(out string) (string, error) {
	out = strings.Trim(filepath.ToSlash(out), "/")
	if out == "" || out == "." {
		return "", nil
	}
	cleaned := path.Clean(out)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ferrors.ConfigError("output escapes build root").Build()
	}
	return cleaned, nil
}

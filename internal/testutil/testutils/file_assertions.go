package helpers

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// FileAssertions provides utilities for asserting build output in tests.
type FileAssertions struct {
	t       *testing.T
	baseDir string
}

// NewFileAssertions creates a new file assertions helper rooted at baseDir.
func NewFileAssertions(t *testing.T, baseDir string) *FileAssertions {
	return &FileAssertions{
		t:       t,
		baseDir: baseDir,
	}
}

// AssertFileExists validates that a file exists.
func (fa *FileAssertions) AssertFileExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, filepath.FromSlash(relativePath))
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		fa.t.Errorf("Expected file to exist: %s", fullPath)
	}
	return fa
}

// AssertFileMissing validates that a path does not exist.
func (fa *FileAssertions) AssertFileMissing(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, filepath.FromSlash(relativePath))
	if _, err := os.Stat(fullPath); err == nil {
		fa.t.Errorf("Expected %s not to exist", fullPath)
	}
	return fa
}

// AssertFileContains validates that a file contains expected content.
func (fa *FileAssertions) AssertFileContains(relativePath, expectedContent string) *FileAssertions {
	fa.t.Helper()
	content, ok := fa.read(relativePath)
	if !ok {
		return fa
	}
	if !strings.Contains(content, expectedContent) {
		fa.t.Errorf("Expected file %s to contain %q\nActual content:\n%s",
			relativePath, expectedContent, content)
	}
	return fa
}

// AssertFileNotContains validates that a file does not contain content.
func (fa *FileAssertions) AssertFileNotContains(relativePath, content string) *FileAssertions {
	fa.t.Helper()
	actual, ok := fa.read(relativePath)
	if !ok {
		return fa
	}
	if strings.Contains(actual, content) {
		fa.t.Errorf("Expected file %s not to contain %q", relativePath, content)
	}
	return fa
}

// AssertNotLarger validates that the minified sibling is no larger than the full file.
func (fa *FileAssertions) AssertNotLarger(minPath, fullPath string) *FileAssertions {
	fa.t.Helper()
	minified, ok := fa.read(minPath)
	if !ok {
		return fa
	}
	full, ok := fa.read(fullPath)
	if !ok {
		return fa
	}
	if len(minified) > len(full) {
		fa.t.Errorf("Expected %s (%d bytes) not to be larger than %s (%d bytes)",
			minPath, len(minified), fullPath, len(full))
	}
	return fa
}

// AssertTree validates that the base directory holds exactly the expected files.
// Paths are slash separated and relative to the base directory.
func (fa *FileAssertions) AssertTree(expected ...string) *FileAssertions {
	fa.t.Helper()
	actual := Tree(fa.t, fa.baseDir)
	want := slices.Clone(expected)
	slices.Sort(want)
	if !slices.Equal(want, actual) {
		fa.t.Errorf("Unexpected files under %s\nwant: %v\n got: %v", fa.baseDir, want, actual)
	}
	return fa
}

func (fa *FileAssertions) read(relativePath string) (string, bool) {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, filepath.FromSlash(relativePath))

	// #nosec G304 - test helper, paths are controlled by test code
	content, err := os.ReadFile(fullPath)
	if err != nil {
		fa.t.Errorf("Failed to read file %s: %v", fullPath, err)
		return "", false
	}
	return string(content), true
}

// Tree lists every regular file under root as sorted slash paths. A missing root
// yields an empty list.
func Tree(t *testing.T, root string) []string {
	t.Helper()
	files := []string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk %s: %v", root, err)
	}
	slices.Sort(files)
	return files
}

// WriteTree creates files below root from a slash-path to contents map.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
	}
}

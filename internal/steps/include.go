package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/markdown"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// IncludeOptions configures directive expansion.
type IncludeOptions struct {
	Prefix   string
	MaxDepth int
	// Root is the source root. Include targets are looked up relative to the
	// including file, then Root, then each of SearchPaths below Root.
	Root        string
	SearchPaths []string
}

// Include expands include directives:
//
//	@@include('partial.html')
//	@@include('card.html', {"title": "Hello"})
//	@@include_once('analytics.html')
//	@@include(markdown('intro.md'))
//	@@webRoot
//
// Context keys replace @@key inside the included file and everything it includes.
func Include(opts IncludeOptions) pipeline.Step {
	if opts.Prefix == "" {
		opts.Prefix = "@@"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 16
	}
	return pipeline.PerFile("include", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		e := &expander{
			opts:    opts,
			once:    make(map[string]bool),
			webRoot: webRoot(a.Path),
		}
		file, err := filepath.Abs(a.Source)
		if err != nil {
			return nil, err
		}
		out, err := e.expand(a.Contents, file, nil, nil)
		if err != nil {
			return nil, err
		}
		a.Contents = out
		return nil, nil
	})
}

type expander struct {
	opts    IncludeOptions
	once    map[string]bool
	webRoot string
}

type directive struct {
	once     bool
	markdown bool
	target   string
	context  string
	end      int
}

func (e *expander) expand(content []byte, file string, stack []string, vars map[string]any) ([]byte, error) {
	prefix := []byte(e.opts.Prefix)
	var out bytes.Buffer
	for {
		i := bytes.Index(content, prefix)
		if i < 0 {
			out.Write(content)
			return out.Bytes(), nil
		}
		out.Write(content[:i])
		rest := content[i+len(prefix):]
		name := identifier(rest)

		switch {
		case name == "include" || name == "include_once":
			d, err := parseDirective(rest[len(name):])
			if err != nil {
				return nil, includeError(err.Error(), file)
			}
			d.once = name == "include_once"
			body, err := e.include(d, file, stack, vars)
			if err != nil {
				return nil, err
			}
			out.Write(body)
			content = rest[len(name)+d.end:]
		case name == "webRoot":
			out.WriteString(e.webRoot)
			content = rest[len(name):]
		case name != "":
			if v, ok := lookup(vars, name); ok {
				out.WriteString(v)
			} else {
				out.Write(prefix)
				out.WriteString(name)
			}
			content = rest[len(name):]
		default:
			out.Write(prefix)
			content = rest
		}
	}
}

func (e *expander) include(d directive, file string, stack []string, vars map[string]any) ([]byte, error) {
	target, err := e.resolve(d.target, file)
	if err != nil {
		return nil, err
	}
	if slices.Contains(stack, target) || target == file {
		chain := append(append(slices.Clone(stack), file), target)
		return nil, ferrors.ProcessingError("include cycle").
			WithContext("file", file).
			WithContext("chain", strings.Join(chain, " -> ")).
			Build()
	}
	if len(stack) >= e.opts.MaxDepth {
		return nil, ferrors.ProcessingError("include depth exceeded").
			WithContext("file", target).
			WithContext("max_depth", e.opts.MaxDepth).
			Build()
	}
	if d.once && e.once[target] {
		return nil, nil
	}
	e.once[target] = true

	data, err := pipeline.ReadText(target)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryProcessing, "read include").
			WithContext("file", target).
			Build()
	}
	if d.markdown {
		return markdown.Render(data)
	}

	scope := vars
	if d.context != "" {
		var local map[string]any
		if err := yaml.Unmarshal([]byte(d.context), &local); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryProcessing, "parse include context").
				WithContext("file", file).
				WithContext("target", d.target).
				Build()
		}
		scope = make(map[string]any, len(vars)+len(local))
		for k, v := range vars {
			scope[k] = v
		}
		for k, v := range local {
			scope[k] = v
		}
	}
	return e.expand(data, target, append(slices.Clip(stack), file), scope)
}

func (e *expander) resolve(target, file string) (string, error) {
	rel := filepath.FromSlash(target)
	candidates := []string{filepath.Join(filepath.Dir(file), rel)}
	if e.opts.Root != "" {
		candidates = append(candidates, filepath.Join(e.opts.Root, rel))
		for _, sp := range e.opts.SearchPaths {
			candidates = append(candidates, filepath.Join(e.opts.Root, filepath.FromSlash(sp), rel))
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			if abs, err := filepath.Abs(c); err == nil {
				return abs, nil
			}
			return c, nil
		}
	}
	return "", ferrors.ProcessingError("include not found").
		WithContext("file", file).
		WithContext("target", target).
		Build()
}

// parseDirective reads `('target'[, {context}])` or `(markdown('target'))` from s.
// end is the offset just past the closing parenthesis.
func parseDirective(s []byte) (directive, error) {
	var d directive
	i := skipSpace(s, 0)
	if i >= len(s) || s[i] != '(' {
		return d, fmt.Errorf("malformed include directive: expected '('")
	}
	i = skipSpace(s, i+1)

	if j := skipSpace(s, i+len("markdown")); bytes.HasPrefix(s[i:], []byte("markdown")) && j < len(s) && s[j] == '(' {
		target, next, err := quoted(s, skipSpace(s, j+1))
		if err != nil {
			return d, err
		}
		next = skipSpace(s, next)
		if next >= len(s) || s[next] != ')' {
			return d, fmt.Errorf("malformed include directive: unterminated markdown(")
		}
		d.markdown = true
		d.target = target
		i = next + 1
	} else {
		target, next, err := quoted(s, i)
		if err != nil {
			return d, err
		}
		d.target = target
		i = skipSpace(s, next)
		if i < len(s) && s[i] == ',' {
			start := skipSpace(s, i+1)
			end, err := objectEnd(s, start)
			if err != nil {
				return d, err
			}
			d.context = string(s[start:end])
			i = end
		}
	}

	i = skipSpace(s, i)
	if i >= len(s) || s[i] != ')' {
		return d, fmt.Errorf("malformed include directive: expected ')'")
	}
	d.end = i + 1
	if d.target == "" {
		return d, fmt.Errorf("malformed include directive: empty target")
	}
	return d, nil
}

func quoted(s []byte, i int) (string, int, error) {
	if i >= len(s) || (s[i] != '\'' && s[i] != '"') {
		return "", i, fmt.Errorf("malformed include directive: expected quoted path")
	}
	q := s[i]
	end := bytes.IndexByte(s[i+1:], q)
	if end < 0 {
		return "", i, fmt.Errorf("malformed include directive: unterminated string")
	}
	return string(s[i+1 : i+1+end]), i + end + 2, nil
}

// objectEnd returns the offset just past the `{...}` object starting at i.
func objectEnd(s []byte, i int) (int, error) {
	if i >= len(s) || s[i] != '{' {
		return i, fmt.Errorf("malformed include directive: expected context object")
	}
	depth := 0
	var quote byte
	for j := i; j < len(s); j++ {
		c := s[j]
		switch {
		case quote != 0:
			if c == '\\' {
				j++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return j + 1, nil
			}
		}
	}
	return i, fmt.Errorf("malformed include directive: unterminated context object")
}

func skipSpace(s []byte, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func identifier(s []byte) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c == '.' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	// A trailing dot ends a sentence, not a key path.
	return strings.TrimRight(string(s[:i]), ".")
}

// lookup resolves a dotted key path in vars.
func lookup(vars map[string]any, key string) (string, bool) {
	if vars == nil {
		return "", false
	}
	var cur any = vars
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[part]; !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case string:
		return v, true
	case nil:
		return "", true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// webRoot is the relative path from a page to the output root.
func webRoot(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "" {
		return "."
	}
	return strings.TrimSuffix(strings.Repeat("../", strings.Count(dir, "/")+1), "/")
}

func includeError(msg, file string) error {
	return ferrors.ProcessingError(msg).WithContext("file", file).Build()
}

package steps

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// SassCompiler compiles one stylesheet to expanded CSS.
type SassCompiler interface {
	Name() string
	Compile(ctx context.Context, source []byte, filename string) ([]byte, error)
	Close() error
}

// DartSass talks to a `sass --embedded` process through godartsass. The process is
// started on first use and shared by every compile until Close.
type DartSass struct {
	binary       string
	includePaths []string

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

func NewDartSass(binary string, includePaths []string) *DartSass {
	return &DartSass{binary: binary, includePaths: includePaths}
}

func (d *DartSass) Name() string { return "dart-sass" }

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler != nil {
		return d.transpiler, nil
	}
	t, err := godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: d.binary})
	if err != nil {
		return nil, fmt.Errorf("start dart sass: %w", err)
	}
	d.transpiler = t
	return t, nil
}

func (d *DartSass) Compile(_ context.Context, source []byte, filename string) ([]byte, error) {
	t, err := d.start()
	if err != nil {
		return nil, err
	}
	syntax := godartsass.SourceSyntaxSCSS
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".sass":
		syntax = godartsass.SourceSyntaxSASS
	case ".css":
		syntax = godartsass.SourceSyntaxCSS
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		abs = filename
	}
	res, err := t.Execute(godartsass.Args{
		Source:       string(source),
		URL:          (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		OutputStyle:  godartsass.OutputStyleExpanded,
		SourceSyntax: syntax,
		IncludePaths: append([]string{filepath.Dir(abs)}, d.includePaths...),
	})
	if err != nil {
		return nil, err
	}
	return []byte(res.CSS), nil
}

func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	return err
}

// PlainCSS passes sources through unchanged. It serves projects whose stylesheets
// are plain CSS and hosts without a Dart Sass binary.
type PlainCSS struct {
	// Missing names the Dart Sass binary that was looked for and not found. It is
	// empty when plain CSS was configured explicitly.
	Missing string
}

func (PlainCSS) Name() string { return "css" }
func (PlainCSS) Close() error { return nil }

func (PlainCSS) Compile(_ context.Context, source []byte, _ string) ([]byte, error) {
	return source, nil
}

// NewSassCompiler picks the backend for mode "auto", "dart-sass" or "css". Auto uses
// Dart Sass when binary is on PATH.
func NewSassCompiler(mode, binary string, includePaths []string) (SassCompiler, error) {
	switch mode {
	case "dart-sass":
		return NewDartSass(binary, includePaths), nil
	case "css":
		return PlainCSS{}, nil
	case "", "auto":
		if resolved, err := exec.LookPath(binary); err == nil {
			return NewDartSass(resolved, includePaths), nil
		}
		slog.Warn("Dart Sass not found on PATH, stylesheets are passed through as CSS", slog.String("binary", binary))
		return PlainCSS{Missing: binary}, nil
	default:
		return nil, fmt.Errorf("unknown styles compiler %q", mode)
	}
}

// Sass compiles .scss/.sass assets to .css. Partials (leading underscore) are
// consumed by imports and never emitted. In build mode a .scss/.sass source fails
// when the compiler fell back to plain CSS because Dart Sass is missing.
func Sass(c SassCompiler, mode pipeline.Mode) pipeline.Step {
	missing := ""
	if p, ok := c.(PlainCSS); ok && mode == pipeline.ModeBuild {
		missing = p.Missing
	}
	return pipeline.StepFunc("sass", func(ctx context.Context, assets []*pipeline.Asset) ([]*pipeline.Asset, error) {
		kept := assets[:0:0]
		for _, a := range assets {
			if strings.HasPrefix(path.Base(a.Path), "_") {
				continue
			}
			kept = append(kept, a)
		}
		return pipeline.PerFile("sass", func(ctx context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
			ext := a.Ext()
			if ext != ".scss" && ext != ".sass" && ext != ".css" {
				return nil, nil
			}
			if missing != "" && ext != ".css" {
				return nil, fmt.Errorf("cannot compile %s: Dart Sass binary %q not found on PATH", path.Base(a.Path), missing)
			}
			out, err := c.Compile(ctx, a.Contents, a.Source)
			if err != nil {
				return nil, err
			}
			a.Contents = out
			a.Path = strings.TrimSuffix(a.Path, path.Ext(a.Path)) + ".css"
			return nil, nil
		}).Apply(ctx, kept)
	})
}

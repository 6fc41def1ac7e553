package transforms

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/glob"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/steps"
)

// Factory builds pipeline.Transforms for a configuration.
type Factory struct {
	cfg      *config.Config
	observer pipeline.Observer
	sass     steps.SassCompiler
	engines  []api.Engine
	minifyJS pipeline.Step
	webp     *steps.WebPVariants
	ledger   *pipeline.OutputLedger
}

// New prepares the shared step state. The Sass compiler is started lazily on first
// use; Close stops it.
func New(cfg *config.Config, observer pipeline.Observer) (*Factory, error) {
	if observer == nil {
		observer = pipeline.NoopObserver{}
	}
	engines, err := steps.Engines(cfg.Styles.Browsers, cfg.Styles.LastVersions)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid styles.browsers").Build()
	}
	minifyJS, err := steps.MinifyJS(cfg.Scripts.Target)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid scripts.target").
			WithContext("target", cfg.Scripts.Target).
			Build()
	}
	includePaths := make([]string, 0, len(cfg.Styles.IncludePaths))
	for _, p := range cfg.Styles.IncludePaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(cfg.Paths.SourceRoot, filepath.FromSlash(p))
		}
		includePaths = append(includePaths, p)
	}
	sass, err := steps.NewSassCompiler(cfg.Styles.Compiler, cfg.Styles.SassBinary, includePaths)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid styles.compiler").Build()
	}
	f := &Factory{
		cfg:      cfg,
		observer: observer,
		sass:     sass,
		engines:  engines,
		minifyJS: minifyJS,
		ledger:   pipeline.NewOutputLedger(),
	}
	f.webp = steps.NewWebPVariants(cfg.Images.WebPQuality, f.locateImage)
	return f, nil
}

// Close releases the Sass compiler.
func (f *Factory) Close() error {
	return f.sass.Close()
}

// Name is the transform name of a category in a mode, e.g. "styles-build".
func Name(c config.Category, mode pipeline.Mode) string {
	return fmt.Sprintf("%s-%s", c, mode)
}

// Policy is the error policy of a mode: dev notifies and continues, build fails fast
// unless keepGoing is set.
func Policy(mode pipeline.Mode, keepGoing bool) pipeline.ErrorPolicy {
	if mode == pipeline.ModeBuild && !keepGoing {
		return pipeline.PolicyFail
	}
	return pipeline.PolicyNotify
}

// Transform returns the descriptor of category c in mode.
func (f *Factory) Transform(c config.Category, mode pipeline.Mode) (*pipeline.Transform, error) {
	if mode != pipeline.ModeDev && mode != pipeline.ModeBuild {
		return nil, ferrors.ConfigError("unknown mode").WithContext("mode", string(mode)).Build()
	}
	paths, err := f.cfg.Paths.Resolve(c)
	if err != nil {
		return nil, err
	}
	t := &pipeline.Transform{
		Name:      Name(c, mode),
		Category:  c,
		Mode:      mode,
		Paths:     paths,
		BuildRoot: f.cfg.Paths.BuildRoot,
		Policy:    Policy(mode, f.cfg.Build.KeepGoing),
		Observer:  f.observer,
		Ledger:    f.ledger,
	}
	build := mode == pipeline.ModeBuild
	webp := build && !f.cfg.Images.SkipWebP

	switch c {
	case config.CategoryMarkup:
		t.Text = true
		t.Chain = []pipeline.Step{f.include()}
		if build {
			t.Chain = append(t.Chain, steps.HTMLMin())
		}
		if webp {
			t.Chain = append(t.Chain, steps.WebPHTML(f.webp, paths.Output))
		}
	case config.CategoryStyles:
		t.Text = true
		t.EmitsMinified = true
		t.Chain = []pipeline.Step{steps.Sass(f.sass, mode)}
		if webp {
			t.Chain = append(t.Chain, steps.WebPCSS(f.webp, paths.Output))
		}
		t.Chain = append(t.Chain,
			steps.GroupMedia(),
			steps.Autoprefix(f.engines),
			pipeline.Emit(),
			steps.MinifyCSS(f.engines),
			steps.RenameMin(),
		)
	case config.CategoryScripts:
		t.Text = true
		t.EmitsMinified = true
		t.Chain = []pipeline.Step{
			f.include(),
			pipeline.Emit(),
			f.minifyJS,
			steps.RenameMin(),
		}
	case config.CategoryImages:
		if webp {
			t.Chain = append(t.Chain, steps.WebP(f.webp))
		}
		if build {
			t.Chain = append(t.Chain, steps.Optimize(f.cfg.Images.OptimizationLevel))
		}
	case config.CategoryIcons:
		t.Text = true
		name := paths.File
		if name == "" {
			name = "sprite.svg"
		}
		t.Chain = []pipeline.Step{steps.Sprite(name)}
	case config.CategoryFonts:
	default:
		return nil, ferrors.ConfigError("unknown asset category").WithContext("category", string(c)).Build()
	}
	return t, nil
}

// Run builds and runs the transform of category c in mode.
func (f *Factory) Run(ctx context.Context, c config.Category, mode pipeline.Mode) error {
	t, err := f.Transform(c, mode)
	if err != nil {
		return err
	}
	return t.Run(ctx)
}

func (f *Factory) include() pipeline.Step {
	return steps.Include(steps.IncludeOptions{
		Prefix:      f.cfg.Include.Prefix,
		MaxDepth:    f.cfg.Include.MaxDepth,
		Root:        f.cfg.Paths.SourceRoot,
		SearchPaths: f.cfg.Include.SearchPaths,
	})
}

// locateImage maps a build-root-relative path below the images output to the source
// file the images transform builds it from.
func (f *Factory) locateImage(rel string) (string, bool) {
	paths, err := f.cfg.Paths.Resolve(config.CategoryImages)
	if err != nil {
		return "", false
	}
	rest := rel
	if paths.Output != "" {
		var ok bool
		if rest, ok = strings.CutPrefix(rel, paths.Output+"/"); !ok {
			return "", false
		}
	}
	for _, pattern := range paths.Source {
		src := path.Join(glob.Base(pattern), rest)
		if glob.Ignored(src) || !glob.MatchAny([]string{pattern}, src) {
			continue
		}
		abs := filepath.Join(paths.SourceRoot, filepath.FromSlash(src))
		if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
			return abs, true
		}
	}
	return "", false
}

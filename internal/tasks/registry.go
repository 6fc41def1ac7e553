package tasks

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/observability"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Task names exposed on the command line.
const (
	NameClean      = "clean"
	NameHTML       = "html"
	NameHTMLBuild  = "htmlBuild"
	NameStyles     = "styles"
	NameJS         = "js"
	NameImg        = "img"
	NameImgBuild   = "imgBuild"
	NameSvgSprites = "svgSprites"
	NameFonts      = "fonts"
	NameBuild      = "build"
	NameDev        = "dev"
	NameWatch      = "watch"
)

// Runner runs the transform of a category in a mode. *transforms.Factory implements it.
type Runner interface {
	Run(ctx context.Context, c config.Category, mode pipeline.Mode) error
}

// Observer is told about every top-level task run.
type Observer interface {
	TaskStarted(ctx context.Context, task string)
	TaskFinished(ctx context.Context, task string, err error, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) TaskStarted(context.Context, string)                        {}
func (noopObserver) TaskFinished(context.Context, string, error, time.Duration) {}

// Registry maps task names to tasks.
type Registry struct {
	runner    Runner
	buildRoot string
	observer  Observer
	tasks     map[string]Task
}

// NewRegistry registers the built-in tasks. styles runs in stylesMode. build runs
// every category in build mode and promotes its outputs only when all succeeded.
func NewRegistry(runner Runner, buildRoot string, stylesMode pipeline.Mode, observer Observer) *Registry {
	if observer == nil {
		observer = noopObserver{}
	}
	if stylesMode == "" {
		stylesMode = pipeline.ModeDev
	}
	r := &Registry{runner: runner, buildRoot: buildRoot, observer: observer, tasks: make(map[string]Task)}

	clean := Func(func(ctx context.Context) error { return pipeline.Clean(ctx, r.buildRoot) })
	html := r.Transform(config.CategoryMarkup, pipeline.ModeDev)
	htmlBuild := r.Transform(config.CategoryMarkup, pipeline.ModeBuild)
	js := r.Transform(config.CategoryScripts, pipeline.ModeDev)
	img := r.Transform(config.CategoryImages, pipeline.ModeDev)
	imgBuild := r.Transform(config.CategoryImages, pipeline.ModeBuild)
	sprites := r.Transform(config.CategoryIcons, pipeline.ModeDev)
	fonts := r.Transform(config.CategoryFonts, pipeline.ModeDev)

	r.Register(NameClean, clean)
	r.Register(NameHTML, html)
	r.Register(NameHTMLBuild, htmlBuild)
	r.Register(NameStyles, r.Transform(config.CategoryStyles, stylesMode))
	r.Register(NameJS, js)
	r.Register(NameImg, img)
	r.Register(NameImgBuild, imgBuild)
	r.Register(NameSvgSprites, sprites)
	r.Register(NameFonts, fonts)
	r.Register(NameBuild, Sequential(clean, Staged(r.buildRoot, Parallel(
		htmlBuild,
		r.Transform(config.CategoryScripts, pipeline.ModeBuild),
		r.Transform(config.CategoryStyles, pipeline.ModeBuild),
		imgBuild,
		r.Transform(config.CategoryIcons, pipeline.ModeBuild),
		r.Transform(config.CategoryFonts, pipeline.ModeBuild),
	))))
	r.Register(NameDev, Sequential(clean, Parallel(
		html,
		js,
		r.Transform(config.CategoryStyles, pipeline.ModeDev),
		img,
		sprites,
		fonts,
	)))
	return r
}

// Transform returns a task running one category transform.
func (r *Registry) Transform(c config.Category, mode pipeline.Mode) Task {
	return Func(func(ctx context.Context) error { return r.runner.Run(ctx, c, mode) })
}

// DevTask is the dev-mode task of a category; the watcher re-runs it on change.
func DevTask(c config.Category) string {
	switch c {
	case config.CategoryMarkup:
		return NameHTML
	case config.CategoryStyles:
		return NameStyles
	case config.CategoryScripts:
		return NameJS
	case config.CategoryImages:
		return NameImg
	case config.CategoryIcons:
		return NameSvgSprites
	case config.CategoryFonts:
		return NameFonts
	default:
		return string(c)
	}
}

// Register adds or replaces a named task.
func (r *Registry) Register(name string, t Task) {
	r.tasks[name] = t
}

// Lookup returns the task registered under name.
func (r *Registry) Lookup(name string) (Task, error) {
	t, ok := r.tasks[name]
	if !ok {
		return nil, ferrors.ConfigError("unknown task").
			WithContext("task", name).
			WithContext("available", r.Names()).
			Build()
	}
	return t, nil
}

// Names lists the registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run runs the named task under a fresh build ID.
func (r *Registry) Run(ctx context.Context, name string) error {
	t, err := r.Lookup(name)
	if err != nil {
		return err
	}
	return r.RunTask(ctx, name, t)
}

// RunTask runs t as a top-level task: it gets a new build ID in ctx and its start
// and outcome are reported to the observer.
func (r *Registry) RunTask(ctx context.Context, name string, t Task) error {
	ctx = observability.WithBuildID(ctx, uuid.NewString())
	ctx = observability.WithTask(ctx, name)

	start := time.Now()
	r.observer.TaskStarted(ctx, name)
	observability.InfoContext(ctx, "Task started")

	err := t.Run(ctx)
	d := time.Since(start)
	r.observer.TaskFinished(ctx, name, err, d)
	if err != nil {
		observability.ErrorContext(ctx, "Task failed", logfields.Duration(d), logfields.Error(err))
		return err
	}
	observability.InfoContext(ctx, "Task finished", logfields.Duration(d))
	return nil
}

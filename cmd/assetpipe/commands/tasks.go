package commands

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/tasks"
)

// TaskCmd runs the registry task named like the selected command.
type TaskCmd struct{}

func (c *TaskCmd) Run(kctx *kong.Context, g *Global, root *CLI) error {
	return runTask(g, root, kctx.Selected().Name, pipeline.ModeDev, nil)
}

// StylesCmd runs the styles transform in the requested mode.
type StylesCmd struct {
	Mode string `help:"Transform mode (dev|build)" enum:"dev,build" default:"dev"`
}

func (c *StylesCmd) Run(g *Global, root *CLI) error {
	mode := pipeline.Mode(c.Mode)
	if mode != pipeline.ModeDev && mode != pipeline.ModeBuild {
		return ferrors.ValidationError("unknown mode").WithContext("mode", c.Mode).Build()
	}
	return runTask(g, root, tasks.NameStyles, mode, nil)
}

// BuildCmd runs the production build.
type BuildCmd struct {
	KeepGoing bool `name:"keep-going" help:"Report per-file errors and keep building instead of failing fast"`
}

func (c *BuildCmd) Run(g *Global, root *CLI) error {
	return runTask(g, root, tasks.NameBuild, pipeline.ModeBuild, func(cfg *config.Config) {
		cfg.Build.KeepGoing = cfg.Build.KeepGoing || c.KeepGoing
	})
}

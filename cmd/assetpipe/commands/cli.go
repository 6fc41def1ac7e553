// Package commands implements the assetpipe command line.
package commands

import (
	"context"
	"io"
	"os"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// Global carries process state shared by all commands.
type Global struct {
	// Ctx is canceled on SIGINT/SIGTERM.
	Ctx context.Context
	Out io.Writer
}

func (g *Global) context() context.Context {
	if g == nil || g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI is the root command. Task commands carry the task names of the registry.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"assetpipe.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`
	Src     string `help:"Override paths.source_root" type:"path"`
	Out     string `help:"Override paths.build_root" type:"path"`
	Port    int    `help:"Override server.port"`

	Watch      WatchCmd   `cmd:"" default:"1" help:"Run dev, then watch sources and serve the build with live reload (default)"`
	Dev        TaskCmd    `cmd:"" help:"Clean, then run every transform in dev mode"`
	Build      BuildCmd   `cmd:"" help:"Clean, then run every transform in build mode"`
	Clean      TaskCmd    `cmd:"" help:"Remove the build root"`
	HTML       TaskCmd    `cmd:"" name:"html" help:"Expand includes in markup"`
	HTMLBuild  TaskCmd    `cmd:"" name:"htmlBuild" help:"Expand includes, minify markup and prefer WebP images"`
	Styles     StylesCmd  `cmd:"" help:"Compile, prefix and minify styles"`
	JS         TaskCmd    `cmd:"" name:"js" help:"Expand includes and minify scripts"`
	Img        TaskCmd    `cmd:"" help:"Copy images"`
	ImgBuild   TaskCmd    `cmd:"" name:"imgBuild" help:"Convert images to WebP and optimize them"`
	SvgSprites TaskCmd    `cmd:"" name:"svgSprites" help:"Combine SVG icons into a sprite"`
	Fonts      TaskCmd    `cmd:"" help:"Copy fonts"`
	Init       InitCmd    `cmd:"" help:"Write a default configuration file"`
	History    HistoryCmd `cmd:"" help:"Show recent task runs"`
	Version    VersionCmd `cmd:"" help:"Show version information"`
}

// AfterApply installs a logger before any command runs; loadConfig refines it.
func (c *CLI) AfterApply() error {
	setupLogging(os.Stderr, config.LogLevelInfo, config.LogFormatAuto, c.Verbose)
	return nil
}

// loadConfig reads the configuration and applies the global flag overrides. The
// default file is optional; an explicitly named one must exist.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config, c.Config != config.DefaultFile)
	if err != nil {
		return nil, err
	}
	if c.Src != "" || c.Out != "" {
		cfg.Paths = cfg.Paths.WithRoots(c.Src, c.Out)
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	setupLogging(os.Stderr, cfg.Logging.Level, cfg.Logging.Format, c.Verbose)
	return cfg, nil
}

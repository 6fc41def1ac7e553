package steps

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// Engines turns newest-major-per-family into the oldest version esbuild has to
// support so that the last `last` majors of every family are covered.
func Engines(browsers map[string]int, last int) ([]api.Engine, error) {
	if last < 1 {
		last = 1
	}
	names := make([]string, 0, len(browsers))
	for name := range browsers {
		names = append(names, name)
	}
	slices.Sort(names)

	engines := make([]api.Engine, 0, len(names))
	for _, name := range names {
		engine, ok := engineNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown browser family %q", name)
		}
		oldest := max(browsers[name]-(last-1), 1)
		engines = append(engines, api.Engine{Name: engine, Version: strconv.Itoa(oldest)})
	}
	return engines, nil
}

// Autoprefix adds the vendor prefixes the target engines still need. Output stays
// unminified.
func Autoprefix(engines []api.Engine) pipeline.Step {
	return pipeline.PerFile("autoprefix", func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		if a.Ext() != ".css" {
			return nil, nil
		}
		res := api.Transform(string(a.Contents), api.TransformOptions{
			Loader:     api.LoaderCSS,
			Engines:    engines,
			Sourcefile: a.Path,
		})
		if err := esbuildError(res.Errors); err != nil {
			return nil, err
		}
		a.Contents = res.Code
		return nil, nil
	})
}

// MinifyCSS minifies stylesheets. The result never grows the file.
func MinifyCSS(engines []api.Engine) pipeline.Step {
	return minifyStep("minify-css", ".css", api.TransformOptions{
		Loader:            api.LoaderCSS,
		Engines:           engines,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
	})
}

// MinifyJS minifies scripts for target (es2015 ... es2022, esnext).
func MinifyJS(target string) (pipeline.Step, error) {
	t, err := jsTarget(target)
	if err != nil {
		return nil, err
	}
	return minifyStep("minify-js", ".js", api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            t,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		LegalComments:     api.LegalCommentsEndOfFile,
	}), nil
}

func minifyStep(name, ext string, opts api.TransformOptions) pipeline.Step {
	return pipeline.PerFile(name, func(_ context.Context, a *pipeline.Asset) ([]*pipeline.Asset, error) {
		if a.Ext() != ext {
			return nil, nil
		}
		o := opts
		o.Sourcefile = a.Path
		res := api.Transform(string(a.Contents), o)
		if err := esbuildError(res.Errors); err != nil {
			return nil, err
		}
		if len(res.Code) < len(a.Contents) {
			a.Contents = res.Code
		}
		return nil, nil
	})
}

var jsTargets = map[string]api.Target{
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

func jsTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ES2017, nil
	}
	t, ok := jsTargets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown script target %q", name)
	}
	return t, nil
}

func esbuildError(msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	m := msgs[0]
	if m.Location != nil {
		return fmt.Errorf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
	}
	return fmt.Errorf("%s", m.Text)
}

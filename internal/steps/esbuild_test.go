package steps

import (
	"context"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

func TestEngines(t *testing.T) {
	engines, err := Engines(map[string]int{"safari": 17, "chrome": 120, "ios": 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []api.Engine{
		{Name: api.EngineChrome, Version: "119"},
		{Name: api.EngineIOS, Version: "1"},
		{Name: api.EngineSafari, Version: "16"},
	}, engines)

	_, err = Engines(map[string]int{"netscape": 4}, 2)
	assert.Error(t, err)
}

func TestAutoprefix(t *testing.T) {
	engines, err := Engines(map[string]int{"safari": 14}, 1)
	require.NoError(t, err)

	out := apply(t, Autoprefix(engines), asset("css/style.css", ".card {\n  user-select: none;\n}\n"))
	got := string(out[0].Contents)
	assert.Contains(t, got, "-webkit-user-select: none;")
	assert.Contains(t, got, "\n  user-select: none;")
}

func TestMinifyCSS(t *testing.T) {
	src := ".card {\n  color: #ff0000;\n  margin: 0px 0px 0px 0px;\n}\n"
	out := apply(t, MinifyCSS(nil), asset("css/style.min.css", src), asset("css/notes.txt", src))
	assert.Less(t, len(out[0].Contents), len(src))
	assert.NotContains(t, string(out[0].Contents), "\n  ")
	assert.Equal(t, src, string(out[1].Contents))
}

func TestMinifyJS(t *testing.T) {
	step, err := MinifyJS("es2017")
	require.NoError(t, err)

	src := "/*! MIT licensed */\nfunction add(first, second) {\n  return first + second;\n}\nconsole.log(add(1, 2));\n"
	out := apply(t, step, asset("js/app.js", src))
	got := string(out[0].Contents)
	assert.Less(t, len(got), len(src))
	assert.Contains(t, got, "console.log")
	assert.Contains(t, got, "/*! MIT licensed */")
}

func TestMinifyJS_NeverGrows(t *testing.T) {
	step, err := MinifyJS("")
	require.NoError(t, err)

	out := apply(t, step, asset("js/tiny.js", "a"))
	assert.Equal(t, "a", string(out[0].Contents))
}

func TestMinifyJS_SyntaxError(t *testing.T) {
	step, err := MinifyJS("esnext")
	require.NoError(t, err)

	out, err := step.Apply(context.Background(), []*pipeline.Asset{
		asset("js/bad.js", "function ("),
		asset("js/good.js", "var answer = 42;\n"),
	})
	require.Error(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "js/good.js", out[0].Path)

	var fails pipeline.Failures
	require.ErrorAs(t, err, &fails)
	require.Len(t, fails, 1)
	stage, _ := fails[0].Context().GetString("stage")
	file, _ := fails[0].Context().GetString("file")
	assert.Equal(t, "minify-js", stage)
	assert.Equal(t, "js/bad.js", file)
}

func TestMinifyJS_UnknownTarget(t *testing.T) {
	_, err := MinifyJS("es3")
	assert.Error(t, err)
}

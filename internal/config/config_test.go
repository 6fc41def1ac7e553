package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func TestLoad_MissingOptionalFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, "./src", cfg.Paths.SourceRoot)
	assert.Equal(t, "./build", cfg.Paths.BuildRoot)
	assert.Equal(t, "@@", cfg.Include.Prefix)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Styles.LastVersions)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.QuietWindow)
	assert.Len(t, cfg.Paths.Categories, len(Categories()))
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_OverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("ASSETPIPE_TEST_OUT", "dist")
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")
	raw := `paths:
  source_root: ./assets
  build_root: ./${ASSETPIPE_TEST_OUT}
  categories:
    fonts:
      source: ["type/*.woff2"]
      output: type
server:
  port: 8080
watch:
  quiet_window: 50ms
images:
  optimization_level: 5
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "./dist", cfg.Paths.BuildRoot)
	assert.Equal(t, "type", cfg.Paths.Categories[CategoryFonts].Output)
	assert.Equal(t, "css", cfg.Paths.Categories[CategoryStyles].Output, "omitted categories keep defaults")
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.QuietWindow)
	assert.Equal(t, 5, cfg.Images.OptimizationLevel)
	assert.Equal(t, 80, cfg.Images.WebPQuality)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [unterminated"), 0o644))

	_, err := Load(path, true)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_RejectsOverlappingOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")
	raw := `paths:
  categories:
    scripts:
      source: ["js/scripts.js"]
      output: css
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Load(path, true)
	require.Error(t, err)
}

func TestLoad_EnvLogOverrides(t *testing.T) {
	t.Setenv("ASSETPIPE_LOG_LEVEL", "DEBUG")
	t.Setenv("ASSETPIPE_LOG_FORMAT", "json")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestValidate_Compiler(t *testing.T) {
	cfg := Default()
	cfg.Styles.Compiler = "less"
	require.Error(t, Validate(cfg))
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"optimization disabled", func(c *Config) { c.Images.OptimizationLevel = -1 }, true},
		{"optimization too high", func(c *Config) { c.Images.OptimizationLevel = 8 }, false},
		{"webp quality too high", func(c *Config) { c.Images.WebPQuality = 101 }, false},
		{"webp quality negative", func(c *Config) { c.Images.WebPQuality = -5 }, false},
		{"exponential backoff", func(c *Config) { c.Notify.NATS.Retry.Backoff = "exponential" }, true},
		{"unknown backoff", func(c *Config) { c.Notify.NATS.Retry.Backoff = "random" }, false},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestInit_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, Default().Paths, cfg.Paths)

	err = Init(path, false)
	require.Error(t, err, "existing file must not be overwritten without force")
	require.NoError(t, Init(path, true))
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("warning"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	assert.Equal(t, LogFormatAuto, NormalizeLogFormat(""))
}

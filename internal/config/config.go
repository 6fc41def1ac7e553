package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when --config is not given.
const DefaultFile = "assetpipe.yaml"

// Config is the full assetpipe configuration.
type Config struct {
	Paths   PathConfig    `yaml:"paths"`
	Include IncludeConfig `yaml:"include"`
	Styles  StylesConfig  `yaml:"styles"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Images  ImagesConfig  `yaml:"images"`
	Build   BuildConfig   `yaml:"build"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
	Notify  NotifyConfig  `yaml:"notify"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// IncludeConfig configures textual include expansion for markup and scripts.
type IncludeConfig struct {
	Prefix   string `yaml:"prefix"`
	MaxDepth int    `yaml:"max_depth"`
	// SearchPaths are source-root-relative directories tried after the including
	// file's own directory and the source root.
	SearchPaths []string `yaml:"search_paths"`
}

// StylesConfig configures the styles chain.
type StylesConfig struct {
	// Compiler selects the Sass backend: auto, dart-sass or css.
	Compiler     string   `yaml:"compiler"`
	SassBinary   string   `yaml:"sass_binary"`
	IncludePaths []string `yaml:"include_paths"`
	// LastVersions is the number of major versions per browser family to prefix for.
	LastVersions int `yaml:"last_versions"`
	// Browsers holds the newest major version per browser family.
	Browsers map[string]int `yaml:"browsers"`
}

// ScriptsConfig configures the scripts chain.
type ScriptsConfig struct {
	Target string `yaml:"target"`
}

// ImagesConfig configures build-mode image processing.
type ImagesConfig struct {
	// OptimizationLevel 1-7 selects how hard PNGs are recompressed; 0 means the
	// default of 3 and a negative value disables optimization.
	OptimizationLevel int  `yaml:"optimization_level"`
	SkipWebP          bool `yaml:"skip_webp"`
	// WebPQuality is the lossy quality (1-100) of .webp variants of JPEG sources.
	// PNG variants are lossless.
	WebPQuality int `yaml:"webp_quality"`
}

// BuildConfig configures task behavior.
type BuildConfig struct {
	// KeepGoing switches build-mode transforms from fail-fast to notify-and-continue.
	KeepGoing bool `yaml:"keep_going"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	NoLiveReload bool   `yaml:"no_live_reload"`
}

// WatchConfig configures change coalescing.
type WatchConfig struct {
	QuietWindow time.Duration `yaml:"quiet_window"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// NotifyConfig configures notification sinks beyond the log.
type NotifyConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig enables publishing notifications to a NATS subject when URL is set.
type NATSConfig struct {
	URL     string      `yaml:"url"`
	Subject string      `yaml:"subject"`
	Retry   RetryConfig `yaml:"retry"`
}

// RetryConfig bounds publish retries. Zero values keep the defaults; a negative
// max_retries disables retrying.
type RetryConfig struct {
	Backoff    string        `yaml:"backoff"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	MaxRetries int           `yaml:"max_retries"`
}

// HistoryConfig configures the build history store.
type HistoryConfig struct {
	Disabled  bool          `yaml:"disabled"`
	StateDir  string        `yaml:"state_dir"`
	Retention time.Duration `yaml:"retention"`
}

// MetricsConfig exposes Prometheus metrics on the dev server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configPath. A missing file yields the defaults unless required is set.
// .env files are loaded first so ${VAR} references in the YAML can use them.
func Load(configPath string, required bool) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration").
			Fatal().
			WithContext("path", configPath).
			Build()
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse configuration").
				Fatal().
				WithContext("path", configPath).
				Build()
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes a default configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal default configuration").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write configuration").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return nil
}

package config

import (
	"strings"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

var (
	validCompilers = map[string]bool{"auto": true, "dart-sass": true, "css": true}
	validBackoffs  = map[string]bool{"": true, "fixed": true, "linear": true, "exponential": true}
)

// Validate checks the configuration before any I/O happens.
func Validate(cfg *Config) error {
	if err := cfg.Paths.Validate(); err != nil {
		return err
	}
	if !validCompilers[cfg.Styles.Compiler] {
		return ferrors.ConfigError("unknown styles compiler").
			WithContext("compiler", cfg.Styles.Compiler).
			Build()
	}
	if cfg.Images.OptimizationLevel > 7 {
		return ferrors.ConfigError("images.optimization_level must be at most 7").
			WithContext("value", cfg.Images.OptimizationLevel).
			Build()
	}
	if cfg.Images.WebPQuality < 1 || cfg.Images.WebPQuality > 100 {
		return ferrors.ConfigError("images.webp_quality must be between 1 and 100").
			WithContext("value", cfg.Images.WebPQuality).
			Build()
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return ferrors.ConfigError("server.port out of range").
			WithContext("value", cfg.Server.Port).
			Build()
	}
	if strings.TrimSpace(cfg.Include.Prefix) == "" {
		return ferrors.ConfigError("include.prefix cannot be blank").Build()
	}
	if !validBackoffs[cfg.Notify.NATS.Retry.Backoff] {
		return ferrors.ConfigError("notify.nats.retry.backoff must be fixed, linear or exponential").
			WithContext("value", cfg.Notify.NATS.Retry.Backoff).
			Build()
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return ferrors.ConfigError("metrics.path must start with /").
			WithContext("value", cfg.Metrics.Path).
			Build()
	}
	return nil
}

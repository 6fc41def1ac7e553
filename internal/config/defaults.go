package config

import "time"

// DefaultBrowsers is the newest major release per family used for vendor prefixing.
var DefaultBrowsers = map[string]int{
	"chrome":  131,
	"edge":    131,
	"firefox": 133,
	"safari":  18,
	"ios":     18,
	"opera":   115,
}

func applyDefaults(cfg *Config) {
	defaults := DefaultPaths()
	if cfg.Paths.SourceRoot == "" {
		cfg.Paths.SourceRoot = defaults.SourceRoot
	}
	if cfg.Paths.BuildRoot == "" {
		cfg.Paths.BuildRoot = defaults.BuildRoot
	}
	if cfg.Paths.Categories == nil {
		cfg.Paths.Categories = map[Category]CategoryPaths{}
	}
	// Categories omitted from the file keep their default layout.
	for c, cp := range defaults.Categories {
		if _, ok := cfg.Paths.Categories[c]; !ok {
			cfg.Paths.Categories[c] = cp
		}
	}

	if cfg.Include.Prefix == "" {
		cfg.Include.Prefix = "@@"
	}
	if cfg.Include.MaxDepth <= 0 {
		cfg.Include.MaxDepth = 16
	}
	if cfg.Include.SearchPaths == nil {
		cfg.Include.SearchPaths = []string{"partials"}
	}

	if cfg.Styles.Compiler == "" {
		cfg.Styles.Compiler = "auto"
	}
	if cfg.Styles.SassBinary == "" {
		cfg.Styles.SassBinary = "sass"
	}
	if cfg.Styles.LastVersions <= 0 {
		cfg.Styles.LastVersions = 5
	}
	if len(cfg.Styles.Browsers) == 0 {
		cfg.Styles.Browsers = make(map[string]int, len(DefaultBrowsers))
		for k, v := range DefaultBrowsers {
			cfg.Styles.Browsers[k] = v
		}
	}

	if cfg.Scripts.Target == "" {
		cfg.Scripts.Target = "es2017"
	}

	if cfg.Images.OptimizationLevel == 0 {
		cfg.Images.OptimizationLevel = 3
	}
	if cfg.Images.WebPQuality == 0 {
		cfg.Images.WebPQuality = 80
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}

	if cfg.Watch.QuietWindow <= 0 {
		cfg.Watch.QuietWindow = 300 * time.Millisecond
	}
	if cfg.Watch.MaxDelay <= 0 {
		cfg.Watch.MaxDelay = 2 * time.Second
	}

	if cfg.Notify.NATS.Subject == "" {
		cfg.Notify.NATS.Subject = "assetpipe.notifications"
	}

	if cfg.History.StateDir == "" {
		cfg.History.StateDir = ".assetpipe"
	}
	if cfg.History.Retention <= 0 {
		cfg.History.Retention = 30 * 24 * time.Hour
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}

package commands

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// setupLogging installs the default slog logger. Auto format writes text to a
// terminal and JSON otherwise.
func setupLogging(w io.Writer, level config.LogLevel, format config.LogFormat, verbose bool) {
	slog.SetDefault(newLogger(w, level, format, verbose, isTerminal(w)))
}

func newLogger(w io.Writer, level config.LogLevel, format config.LogFormat, verbose, tty bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if format == config.LogFormatJSON || (format == config.LogFormatAuto && !tty) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Package notify reports transform failures and completions to the developer.
//
// A Notifier fans a Notification out to every configured sink. Sinks are best
// effort: a failing sink is logged and never fails the build.
package notify

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one user-facing message.
type Notification struct {
	Title     string    `json:"title"`
	BuildID   string    `json:"build_id,omitempty"`
	Transform string    `json:"transform,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	File      string    `json:"file,omitempty"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Time      time.Time `json:"time"`
}

// Sink delivers notifications to one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Notifier delivers to every sink in order.
type Notifier struct {
	sinks []Sink
}

// New returns a Notifier with the given sinks. A nil Notifier drops everything.
func New(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Notify sends n to every sink. Sink errors are logged and swallowed.
func (n *Notifier) Notify(ctx context.Context, note Notification) {
	if n == nil {
		return
	}
	if note.Time.IsZero() {
		note.Time = time.Now()
	}
	if note.Severity == "" {
		note.Severity = SeverityInfo
	}
	for _, s := range n.sinks {
		if err := s.Send(ctx, note); err != nil {
			slog.Warn("Notification sink failed",
				slog.String("sink", s.Name()),
				logfields.Error(err))
		}
	}
}

// Close closes sinks that hold resources.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	for _, s := range n.sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// LogSink writes notifications to a slog logger.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Send(ctx context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	attrs := []slog.Attr{slog.String("title", n.Title)}
	if n.BuildID != "" {
		attrs = append(attrs, logfields.BuildID(n.BuildID))
	}
	if n.Transform != "" {
		attrs = append(attrs, logfields.Transform(n.Transform))
	}
	if n.Stage != "" {
		attrs = append(attrs, logfields.Stage(n.Stage))
	}
	if n.File != "" {
		attrs = append(attrs, logfields.File(n.File))
	}
	logger.LogAttrs(ctx, level, n.Message, attrs...)
	return nil
}

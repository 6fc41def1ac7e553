package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/events"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Root is the directory served, normally the build root.
	Root       string
	Host       string
	Port       int
	LiveReload bool
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
}

// Server serves the build root and the live reload endpoints.
type Server struct {
	opts    Options
	hub     *Hub
	handler http.Handler
}

// New builds the handler tree. hub may be nil when live reload is disabled.
func New(opts Options, hub *Hub) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if hub == nil {
		opts.LiveReload = false
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if opts.Metrics != nil {
		mux.Handle(opts.MetricsPath, opts.Metrics)
	}

	var files http.Handler = noCache(http.FileServer(http.Dir(opts.Root)))
	if opts.LiveReload {
		mux.Handle("/livereload", hub)
		mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write([]byte(clientScript))
		})
		files = injectScript(files)
	}
	mux.Handle("/", files)

	return &Server{opts: opts, hub: hub, handler: mux}
}

// NewFromConfig builds a Server for cfg's build root and server section.
func NewFromConfig(cfg *config.Config, hub *Hub, metrics http.Handler) *Server {
	opts := Options{
		Root:       cfg.Paths.BuildRoot,
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		LiveReload: !cfg.Server.NoLiveReload,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics
		opts.MetricsPath = cfg.Metrics.Path
	}
	return New(opts, hub)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Run listens on Addr and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.Addr())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "listen").
			WithContext("addr", s.Addr()).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// SSE connections are long-lived, so no read or write timeouts.
	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 300 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("Dev server listening", slog.String("url", fmt.Sprintf("http://%s/", ln.Addr())))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "serve").Build()
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Dev server shutdown", logfields.Error(err))
	}
	return nil
}

// Follower turns transform outcomes on the bus into live reload broadcasts. A
// completed styles transform re-fetches stylesheets; other categories reload the
// page. Completions that still had per-file failures leave the error overlay in place.
type Follower struct {
	hub         *Hub
	completed   <-chan events.TransformCompleted
	failed      <-chan events.TransformFailed
	unsubscribe func()
}

// NewFollower subscribes immediately, so no event published after it returns is missed.
func NewFollower(bus *events.Bus, hub *Hub) *Follower {
	completed, unsubCompleted := events.Subscribe[events.TransformCompleted](bus, 32)
	failed, unsubFailed := events.Subscribe[events.TransformFailed](bus, 32)
	unsubscribe := func() {
		unsubCompleted()
		unsubFailed()
	}
	return &Follower{hub: hub, completed: completed, failed: failed, unsubscribe: unsubscribe}
}

// Run broadcasts until ctx is canceled or the bus is closed.
func (f *Follower) Run(ctx context.Context) {
	defer f.unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-f.completed:
			if !ok {
				return
			}
			if msg, ok := completionMessage(evt); ok {
				f.hub.Broadcast(msg)
			}
		case evt, ok := <-f.failed:
			if !ok {
				return
			}
			f.hub.Broadcast(failureMessage(evt))
		}
	}
}

func completionMessage(evt events.TransformCompleted) (Message, bool) {
	if evt.Failures > 0 {
		return Message{}, false
	}
	kind := KindReload
	if evt.Category == string(config.CategoryStyles) {
		kind = KindCSS
	}
	return Message{Kind: kind, Transform: evt.Transform, Files: evt.Written}, true
}

func failureMessage(evt events.TransformFailed) Message {
	text := evt.Transform
	if evt.Stage != "" {
		text += " [" + evt.Stage + "]"
	}
	if evt.File != "" {
		text += " " + evt.File
	}
	text += ": " + evt.Message
	return Message{Kind: KindError, Transform: evt.Transform, Message: text}
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

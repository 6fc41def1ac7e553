package devserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/events"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	helpers "git.home.luguber.info/inful/assetpipe/internal/testutil/testutils"
)

func get(t *testing.T, url string) (int, http.Header, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, string(body)
}

func buildRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	helpers.WriteTree(t, root, map[string]string{
		"index.html":    "<html><body><p>home</p></body></html>",
		"about.html":    "<html><body><p>about</p></body></html>",
		"css/style.css": "body{color:red}",
	})
	return root
}

func TestServer_InjectsScriptIntoHTML(t *testing.T) {
	s := New(Options{Root: buildRoot(t), LiveReload: true}, NewHub(nil))
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	for _, p := range []string{"/", "/about.html"} {
		status, header, body := get(t, server.URL+p)
		assert.Equal(t, http.StatusOK, status, p)
		assert.Contains(t, body, `<script async src="/livereload.js"></script></body>`, p)
		assert.Equal(t, "no-store", header.Get("Cache-Control"), p)
	}

	_, _, css := get(t, server.URL+"/css/style.css")
	assert.Equal(t, "body{color:red}", css)

	status, header, script := get(t, server.URL+"/livereload.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, header.Get("Content-Type"), "javascript")
	assert.Contains(t, script, "new EventSource('/livereload')")

	status, _, _ = get(t, server.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_WithoutLiveReload(t *testing.T) {
	s := New(Options{Root: buildRoot(t)}, nil)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	_, _, body := get(t, server.URL+"/")
	assert.Equal(t, "<html><body><p>home</p></body></html>", body)

	status, _, _ := get(t, server.URL+"/livereload.js")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	metrics.NewPrometheusRecorder(reg).SetLiveReloadClients(3)

	cfg := config.Default()
	cfg.Paths.BuildRoot = buildRoot(t)
	cfg.Metrics.Enabled = true
	s := NewFromConfig(cfg, NewHub(nil), metrics.HTTPHandler(reg))
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	status, _, body := get(t, server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)

	status, _, body = get(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "assetpipe_livereload_clients 3")
	assert.Equal(t, "localhost:3000", s.Addr())
}

func TestServer_ServeStopsWithContext(t *testing.T) {
	s := New(Options{Root: buildRoot(t), LiveReload: true}, NewHub(nil))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestFollower_BroadcastsTransformOutcomes(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	hub, server := newHubServer(t, nil)

	follower := NewFollower(bus, hub)
	go follower.Run(t.Context())
	r := connect(t, server.URL, hub, 1)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.TransformCompleted{Transform: "styles-dev", Category: "styles", Written: []string{"css/style.css"}}))
	assert.JSONEq(t, `{"kind":"css","transform":"styles-dev","files":["css/style.css"]}`, nextData(t, r))

	require.NoError(t, bus.Publish(ctx, events.TransformFailed{Transform: "markup-dev", Stage: "include", File: "index.html", Message: "include cycle"}))
	assert.JSONEq(t, `{"kind":"error","transform":"markup-dev","message":"markup-dev [include] index.html: include cycle"}`, nextData(t, r))

	// A completion with failures keeps the overlay.
	require.NoError(t, bus.Publish(ctx, events.TransformCompleted{Transform: "markup-dev", Category: "markup", Failures: 1}))
	require.NoError(t, bus.Publish(ctx, events.TransformCompleted{Transform: "markup-dev", Category: "markup", Written: []string{"index.html"}}))
	assert.JSONEq(t, `{"kind":"reload","transform":"markup-dev","files":["index.html"]}`, nextData(t, r))
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		evt  events.TransformFailed
		want string
	}{
		{events.TransformFailed{Transform: "styles-build", Stage: "sass", File: "scss/style.scss", Message: "boom"}, "styles-build [sass] scss/style.scss: boom"},
		{events.TransformFailed{Transform: "images-build", Message: "output not writable", Fatal: true}, "images-build: output not writable"},
	}
	for _, tt := range tests {
		got := failureMessage(tt.evt)
		assert.Equal(t, KindError, got.Kind)
		assert.Equal(t, tt.want, got.Message)
	}
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/retry"
)

type recordingSink struct {
	got []Notification
	err error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, n Notification) error {
	s.got = append(s.got, n)
	return s.err
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return p.err
}

func TestNotifier_FansOutAndSwallowsErrors(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}
	n := New(failing, ok)

	n.Notify(context.Background(), Notification{Title: "styles-dev", Message: "undefined variable"})

	require.Len(t, failing.got, 1)
	require.Len(t, ok.got, 1)
	assert.Equal(t, SeverityInfo, ok.got[0].Severity)
	assert.False(t, ok.got[0].Time.IsZero())
}

func TestNotifier_Nil(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Notification{Message: "x"})
		n.Close()
	})
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	require.NoError(t, sink.Send(context.Background(), Notification{
		Title:     "markup-dev",
		Transform: "markup-dev",
		Stage:     "include",
		File:      "src/index.html",
		Message:   "include not found",
		Severity:  SeverityError,
	}))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "include not found", rec["msg"])
	assert.Equal(t, "include", rec["stage"])
	assert.Equal(t, "src/index.html", rec["file"])
}

func TestNATSSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewPublisherSink(pub, "assetpipe.notifications")

	require.NoError(t, sink.Send(context.Background(), Notification{Title: "js-dev", Message: "ok", Severity: SeverityInfo}))
	assert.Equal(t, "assetpipe.notifications", pub.subject)

	var n Notification
	require.NoError(t, json.Unmarshal(pub.data, &n))
	assert.Equal(t, "js-dev", n.Title)
	assert.Equal(t, SeverityInfo, n.Severity)

	pub.err = errors.New("nats: connection closed")
	assert.Error(t, sink.Send(context.Background(), n))
	assert.NotPanics(t, sink.Close)
}

type flakyPublisher struct {
	fails int
	calls int
}

func (p *flakyPublisher) Publish(string, []byte) error {
	p.calls++
	if p.calls <= p.fails {
		return errors.New("nats: connection closed")
	}
	return nil
}

func TestRetrying_RecoversTransientPublishFailure(t *testing.T) {
	pub := &flakyPublisher{fails: 2}
	sink := Retrying(NewPublisherSink(pub, "assetpipe.notifications"),
		retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 3))

	require.NoError(t, sink.Send(context.Background(), Notification{Message: "ok"}))
	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, "nats", sink.Name())
}

func TestRetrying_GivesUp(t *testing.T) {
	pub := &flakyPublisher{fails: 10}
	sink := Retrying(NewPublisherSink(pub, "s"), retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, -1))

	require.Error(t, sink.Send(context.Background(), Notification{Message: "x"}))
	assert.Equal(t, 1, pub.calls)
	assert.NotPanics(t, func() { New(sink).Close() })
}

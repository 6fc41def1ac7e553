package notify

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/retry"
)

type retryingSink struct {
	Sink
	policy retry.Policy
}

// Retrying wraps sink so failed sends are retried per policy before the error
// reaches the Notifier.
func Retrying(sink Sink, policy retry.Policy) Sink {
	return &retryingSink{Sink: sink, policy: policy}
}

func (s *retryingSink) Send(ctx context.Context, n Notification) error {
	return s.policy.Do(ctx, func(ctx context.Context) error {
		return s.Sink.Send(ctx, n)
	})
}

func (s *retryingSink) Close() {
	if c, ok := s.Sink.(interface{ Close() }); ok {
		c.Close()
	}
}

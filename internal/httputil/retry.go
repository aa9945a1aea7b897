// Package httputil provides HTTP helpers shared by the provider clients.
package httputil

import (
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/flux/pkg/logger"
)

// RetryBaseDelay is the backoff base used when a RetryTransport has none.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

// retryStatuses are the transient upstream failures worth another attempt
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusServiceUnavailable:  true,
}

// RetryTransport retries 429/500/503 responses with exponential backoff:
// BaseDelay, 2*BaseDelay, 4*BaseDelay... After MaxRetries the last
// response is returned so the caller can inspect it. Cancelling the
// request context during a backoff wait returns ctx.Err().
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	BaseDelay  time.Duration
}

// NewRetryTransport wraps base. maxRetries <= 0 returns base unchanged.
func NewRetryTransport(base http.RoundTripper, maxRetries int, baseDelay time.Duration) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if maxRetries <= 0 {
		return base
	}
	return &RetryTransport{Base: base, MaxRetries: maxRetries, BaseDelay: baseDelay}
}

func (t *RetryTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

// RoundTrip implements http.RoundTripper
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	delay := t.BaseDelay
	if delay <= 0 {
		delay = RetryBaseDelay
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(ctx)
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				attemptReq.Body = body
			}
		}

		resp, err := t.base().RoundTrip(attemptReq)
		if err != nil {
			return nil, err
		}
		if !retryStatuses[resp.StatusCode] || attempt >= t.MaxRetries {
			return resp, nil
		}
		// A body that cannot be replayed cannot be retried
		if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * delay
		logger.Debug("upstream returned retryable status",
			zap.String("host", req.URL.Host),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempt+1),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

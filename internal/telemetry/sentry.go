// Package telemetry wires Sentry error reporting and request tracing.
package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/young1lin/flux/internal/config"
	"github.com/young1lin/flux/pkg/logger"
)

const serviceName = "flux"

// Init initializes Sentry and returns a flush function for shutdown.
// An empty DSN disables Sentry and returns a no-op.
func Init(cfg config.SentryConfig, release string) func() {
	if cfg.DSN == "" {
		return func() {}
	}

	rate := cfg.TracesSampleRate
	if rate == 0 {
		rate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		ServerName:       serviceName,
		EnableTracing:    true,
		TracesSampleRate: rate,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if ctx.Span.Name == "GET /health" {
				return 0.0
			}
			return rate
		}),
	})
	if err != nil {
		logger.Warn("sentry init failed, continuing without it", zap.Error(err))
		return func() {}
	}

	logger.Info("sentry initialized",
		zap.String("environment", cfg.Environment),
		zap.Float64("sample_rate", rate),
	)
	return func() { sentry.Flush(5 * time.Second) }
}

// CaptureError reports err on the request hub when there is one
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

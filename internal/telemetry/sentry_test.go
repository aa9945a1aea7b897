package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/young1lin/flux/internal/config"
)

func TestInit_DisabledWithoutDSN(t *testing.T) {
	flush := Init(config.SentryConfig{}, "test")
	assert.NotNil(t, flush)
	assert.NotPanics(t, flush)
}

func TestCaptureError_WithoutClient(t *testing.T) {
	assert.NotPanics(t, func() {
		CaptureError(context.Background(), errors.New("boom"))
	})
}

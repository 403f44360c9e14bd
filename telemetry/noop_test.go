package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopImplementationsNeverPanic(t *testing.T) {
	logger := NewNoopLogger()
	metrics := NewNoopMetrics()
	tracer := NewNoopTracer()

	assert.NotPanics(t, func() {
		ctx := context.Background()
		logger.Debug(ctx, "debug")
		logger.Info(ctx, "info", "k", "v")
		logger.Warn(ctx, "warn")
		logger.Error(ctx, "error")

		metrics.IncCounter("c", 1, "tag", "v")
		metrics.RecordTimer("t", time.Second)
		metrics.RecordGauge("g", 1.0)

		_, span := tracer.Start(ctx, "op")
		span.AddEvent("evt")
		span.RecordError(errors.New("boom"))
		span.End()
	})
}

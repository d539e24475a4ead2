package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	Install(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })
	return recorder
}

func TestTraceExternalAPI_RecordsOutcome(t *testing.T) {
	recorder := installRecorder(t)

	err := TraceExternalAPI(context.Background(), "test", "osrm", "table", func(ctx context.Context) error {
		assert.NotEmpty(t, GetTraceID(ctx))
		return nil
	}, BatchIndexKey.Int(0), BatchSizeKey.Int(25))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = TraceExternalAPI(context.Background(), "test", "osrm", "table", func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "osrm.table", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestInitTracer_Disabled(t *testing.T) {
	tp, err := InitTracer(Config{Enabled: false}, zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, tp)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

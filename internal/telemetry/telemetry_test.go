package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitNone(t *testing.T) {
	for _, name := range []string{"", "none", " NONE "} {
		shutdown, err := Init(name, "test")
		require.NoError(t, err, "exporter %q", name)
		assert.NoError(t, shutdown(context.Background()))
	}
}

func TestInitUnknown(t *testing.T) {
	_, err := Init("jaeger", "test")
	assert.Error(t, err)
}

func TestInitStdout(t *testing.T) {
	shutdown, err := Init("stdout", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpanRecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "probe.check", attribute.String("probe", "cpu"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "probe.check", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("probe", "cpu"))
}

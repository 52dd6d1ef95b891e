package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type codeErr string

func (c codeErr) Error() string     { return string(c) }
func (c codeErr) ErrorCode() string { return string(c) }

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(ApplicationTransitions.WithLabelValues("approve", "forbidden"))
	RecordTransition("approve", fmt.Errorf("approve: %w", codeErr("FORBIDDEN")))
	RecordTransition("approve", nil)
	after := testutil.ToFloat64(ApplicationTransitions.WithLabelValues("approve", "forbidden"))
	assert.Equal(t, before+1, after)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "conflict", resultLabel(codeErr("CONFLICT")))
	assert.Equal(t, "error", resultLabel(errors.New("plain")))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "scholarhub-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	ctx, span := StartTransitionSpan(context.Background(), "approve", 7)
	assert.NotNil(t, ctx)
	span.SetTransition("trk-1", "pending/unpaid", "approved/unpaid")
	span.End(errors.New("boom"))
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "scholarhub-test", Enabled: true, Exporter: "carrier-pigeon"})
	assert.ErrorContains(t, err, "carrier-pigeon")
}

package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Journal persists run progress for later inspection. It is an audit trail
// only: nothing in it is consulted to decide what to apply.
type Journal interface {
	// StartRun records a new run.
	StartRun(ctx context.Context, run *Run) error

	// RecordItem records the outcome of one work item on one host.
	RecordItem(ctx context.Context, runID, host string, item *ItemResult) error

	// FinishRun records the final status of a run.
	FinishRun(ctx context.Context, run *Run) error
}

// Observer receives run measurements.
type Observer interface {
	// ObserveHost is called once per processed host.
	ObserveHost(host string, status HostStatus, duration time.Duration)

	// ObserveItem is called once per work item with a final status.
	ObserveItem(item *ItemResult)
}

// Tracer starts spans. Both otel's trace.Tracer and telemetry.Tracer satisfy it.
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// Package tracing provides purely additive OpenTelemetry instrumentation for
// the mesh: a session-scoped root span opened when an endpoint starts a
// Send, and one short-lived child span per drone hop that forwards a routed
// packet (fragment, ack, nack, or flood response) of that session. Nothing in the mesh reads these spans
// back; a nil or no-op TracerProvider (the default when no SDK is
// configured) makes every call here free.
//
// Grounded only in the teacher pack's go.mod presence of
// go.opentelemetry.io/otel/trace (no concrete usage site in any example
// repo) — written from the trace API's documented context-propagation
// idiom rather than copied from a reference.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dronemesh/overlay")

// sessions maps a session ID to the context carrying its root span, so a
// drone hop several goroutines away from the originating endpoint can
// parent its own span correctly without the wire packet format carrying a
// trace context of its own.
var sessions sync.Map // map[uint64]context.Context

// StartSession opens the root span for one endpoint Send call. The
// returned end function must be called when the send completes (all
// fragments acked, retries exhausted, or an error returned).
func StartSession(sessionID uint64) (end func()) {
	ctx, span := tracer.Start(context.Background(), "endpoint.send",
		trace.WithAttributes(attribute.Int64("session_id", int64(sessionID))))
	sessions.Store(sessionID, ctx)
	return func() {
		sessions.Delete(sessionID)
		span.End()
	}
}

// ForwardSpan starts a short-lived "drone.forward" span for one hop of
// sessionID, parented by that session's root span if one is known. The
// returned end function should be called as soon as the forward attempt
// (successful or not) completes.
func ForwardSpan(sessionID uint64, self, next uint8) (end func(err error)) {
	parent := context.Background()
	if v, ok := sessions.Load(sessionID); ok {
		parent = v.(context.Context)
	}
	_, span := tracer.Start(parent, "drone.forward",
		trace.WithAttributes(
			attribute.Int64("session_id", int64(sessionID)),
			attribute.Int64("self", int64(self)),
			attribute.Int64("next", int64(next)),
		))
	return func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

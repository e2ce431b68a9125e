// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Lifecycle metrics. status is the status the checkin was created
	// with: "PENDING" or "PAID" (payment bypass).
	IncCheckinCreated(status string)
	IncCheckinCancelled()

	// Reconciliation metrics. outcome is "success" or "failed" for
	// requests; "success", "failed" or "duplicate" for confirmations.
	IncPaymentRequested(outcome string)
	IncPaymentConfirmed(outcome string)
	ObserveGatewayDuration(op string, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncCheckinCreated is a no-op.
func (n *NoopRecorder) IncCheckinCreated(status string) {}

// IncCheckinCancelled is a no-op.
func (n *NoopRecorder) IncCheckinCancelled() {}

// IncPaymentRequested is a no-op.
func (n *NoopRecorder) IncPaymentRequested(outcome string) {}

// IncPaymentConfirmed is a no-op.
func (n *NoopRecorder) IncPaymentConfirmed(outcome string) {}

// ObserveGatewayDuration is a no-op.
func (n *NoopRecorder) ObserveGatewayDuration(op string, duration time.Duration) {}

package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	CheckinsCreated   map[string]uint64 `json:"checkins_created"`
	CheckinsCancelled uint64            `json:"checkins_cancelled"`
	PaymentsRequested map[string]uint64 `json:"payments_requested"`
	PaymentsConfirmed map[string]uint64 `json:"payments_confirmed"`
	GatewayCallCount  map[string]uint64 `json:"gateway_call_count"`
	GatewayTotalNanos map[string]int64  `json:"gateway_total_nanos"`
}

// InMemoryRecorder stores metrics in memory, for tests and the
// metrics snapshot endpoint.
type InMemoryRecorder struct {
	mu                sync.Mutex
	checkinsCreated   map[string]uint64
	checkinsCancelled uint64
	paymentsRequested map[string]uint64
	paymentsConfirmed map[string]uint64
	gatewayCallCount  map[string]uint64
	gatewayTotalNanos map[string]int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		checkinsCreated:   make(map[string]uint64),
		paymentsRequested: make(map[string]uint64),
		paymentsConfirmed: make(map[string]uint64),
		gatewayCallCount:  make(map[string]uint64),
		gatewayTotalNanos: make(map[string]int64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		CheckinsCreated:   copyCounters(m.checkinsCreated),
		CheckinsCancelled: m.checkinsCancelled,
		PaymentsRequested: copyCounters(m.paymentsRequested),
		PaymentsConfirmed: copyCounters(m.paymentsConfirmed),
		GatewayCallCount:  copyCounters(m.gatewayCallCount),
		GatewayTotalNanos: copyCounters(m.gatewayTotalNanos),
	}
}

// IncCheckinCreated counts a created checkin by its initial status.
func (m *InMemoryRecorder) IncCheckinCreated(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkinsCreated[status]++
}

// IncCheckinCancelled counts a cancellation.
func (m *InMemoryRecorder) IncCheckinCancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkinsCancelled++
}

// IncPaymentRequested counts a payment request by outcome.
func (m *InMemoryRecorder) IncPaymentRequested(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentsRequested[outcome]++
}

// IncPaymentConfirmed counts a payment confirmation by outcome.
func (m *InMemoryRecorder) IncPaymentConfirmed(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentsConfirmed[outcome]++
}

// ObserveGatewayDuration records the latency of a gateway call.
func (m *InMemoryRecorder) ObserveGatewayDuration(op string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gatewayCallCount[op]++
	m.gatewayTotalNanos[op] += duration.Nanoseconds()
}

func copyCounters[V uint64 | int64](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

package payment

import (
	"context"
	"fmt"
	"sync/atomic"
)

// InstantGateway is a synthetic gateway for the local deployment mode.
// Every request succeeds immediately and every confirmation is approved,
// so reservations complete without any external service.
type InstantGateway struct {
	seq atomic.Int64
}

// NewInstantGateway creates an InstantGateway.
func NewInstantGateway() *InstantGateway {
	return &InstantGateway{}
}

// Request fabricates a transaction id. The payment URL points straight at
// the confirm callback, so the local flow mirrors the real redirect shape.
func (g *InstantGateway) Request(_ context.Context, input RequestInput) (*RequestResult, error) {
	txID := fmt.Sprintf("local-%s-%d", input.CheckinID, g.seq.Add(1))
	return &RequestResult{
		TransactionID: txID,
		PaymentURL:    fmt.Sprintf("/api/v1/payments/confirm?transactionId=%s&orderId=%s", txID, input.CheckinID),
	}, nil
}

// Confirm always approves.
func (g *InstantGateway) Confirm(context.Context, string, int) error {
	return nil
}

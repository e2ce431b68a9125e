// Package service provides business logic for the application.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/gymkey/gymkey/internal/metrics"
	"github.com/gymkey/gymkey/internal/model"
	"github.com/gymkey/gymkey/internal/payment"
	"github.com/gymkey/gymkey/internal/pricing"
	"github.com/gymkey/gymkey/internal/repository"

	"github.com/oklog/ulid/v2"
)

// Service errors.
var (
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidFacilityType  = errors.New("invalid facility type")
	ErrInvalidReservation   = errors.New("invalid reservation window")
	ErrCheckinNotFound      = errors.New("checkin not found")
	ErrCancellationWindow   = errors.New("cancellation window expired")
	ErrAlreadyProcessed     = errors.New("checkin already processed")
	ErrPaymentRequestFailed = errors.New("payment request failed")
	ErrPaymentConfirmFailed = errors.New("payment confirmation failed")
)

// CancellationCutoff is how long before the reservation start a checkin
// stops being cancellable.
const CancellationCutoff = time.Hour

// CheckinStore is the durable store contract the lifecycle manager drives.
// Two implementations exist: the Postgres repository and the in-memory
// store used by the local deployment mode.
type CheckinStore interface {
	CreateCheckin(ctx context.Context, checkin *model.Checkin) error
	GetCheckinByID(ctx context.Context, id string) (*model.Checkin, error)
	GetCheckinForUser(ctx context.Context, id, userID string) (*model.Checkin, error)
	ListCheckinsForUser(ctx context.Context, userID string) ([]*model.Checkin, error)
	UpdateCheckinStatus(ctx context.Context, id string, expected, next model.CheckinStatus, update model.StatusUpdate) (*model.Checkin, error)
	SetPaymentReference(ctx context.Context, id, reference string) error
}

// CheckinService owns the reservation lifecycle: creation, the
// cancellation window, and payment reconciliation.
type CheckinService struct {
	store       CheckinStore
	gateway     payment.Gateway
	skipPayment bool
	loc         *time.Location
	metrics     metrics.Recorder
	logger      *slog.Logger

	// now is swapped out in tests to pin the clock.
	now func() time.Time
}

// NewCheckinService creates a CheckinService.
// A nil gateway forces payment bypass: reservations are marked paid at
// creation, matching the behaviour when gateway credentials are absent.
func NewCheckinService(store CheckinStore, gateway payment.Gateway, skipPayment bool, loc *time.Location, recorder metrics.Recorder, logger *slog.Logger) *CheckinService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &CheckinService{
		store:       store,
		gateway:     gateway,
		skipPayment: skipPayment || gateway == nil,
		loc:         loc,
		metrics:     recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateCheckinInput defines input for creating a checkin.
type CreateCheckinInput struct {
	UserID       string
	FacilityType model.FacilityType
	Date         time.Time
	StartTime    string
	Duration     int
}

// CreateCheckinOutput is the created checkin plus the payment redirect URL.
// PaymentURL is nil when payment was bypassed.
type CreateCheckinOutput struct {
	Checkin    *model.Checkin
	PaymentURL *string
}

// CreateCheckin prices and persists a new reservation.
//
// With payment bypassed the row is created PAID with a fresh PIN. Otherwise
// it is created PENDING and a signed payment request is sent; a gateway
// failure surfaces as ErrPaymentRequestFailed and leaves the row PENDING
// with no reference, never silently falling back to bypass.
func (s *CheckinService) CreateCheckin(ctx context.Context, input CreateCheckinInput) (*CreateCheckinOutput, error) {
	if input.UserID == "" || input.StartTime == "" || input.Date.IsZero() || input.Duration == 0 {
		return nil, ErrMissingFields
	}
	if !input.FacilityType.IsValid() {
		return nil, ErrInvalidFacilityType
	}

	quote, err := pricing.Calculate(input.FacilityType, input.Date, input.StartTime, input.Duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}

	now := s.now().UTC()
	checkin := &model.Checkin{
		ID:           ulid.Make().String(),
		UserID:       input.UserID,
		FacilityType: input.FacilityType,
		Date:         input.Date,
		StartTime:    input.StartTime,
		Duration:     input.Duration,
		TotalPrice:   quote.TotalPrice,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if s.skipPayment {
		pin, err := generatePinCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate access code: %w", err)
		}
		checkin.Status = model.StatusPaid
		checkin.PinCode = &pin
	}

	if err := s.store.CreateCheckin(ctx, checkin); err != nil {
		return nil, fmt.Errorf("failed to create checkin: %w", err)
	}
	s.metrics.IncCheckinCreated(string(checkin.Status))

	if s.skipPayment {
		s.logger.Info("checkin_created",
			"checkin_id", checkin.ID,
			"facility", checkin.FacilityType,
			"total_price", checkin.TotalPrice,
			"payment", "bypassed",
		)
		return &CreateCheckinOutput{Checkin: checkin}, nil
	}

	start := s.now()
	result, err := s.gateway.Request(ctx, payment.RequestInput{
		CheckinID:   checkin.ID,
		Amount:      checkin.TotalPrice,
		ProductName: productName(checkin.FacilityType, checkin.Duration),
	})
	s.metrics.ObserveGatewayDuration("request", s.now().Sub(start))
	if err != nil {
		// The checkin stays PENDING with no reference; the caller may retry.
		s.metrics.IncPaymentRequested("failed")
		s.logger.Error("payment_request_failed",
			"checkin_id", checkin.ID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrPaymentRequestFailed, err)
	}

	if err := s.store.SetPaymentReference(ctx, checkin.ID, result.TransactionID); err != nil {
		return nil, fmt.Errorf("failed to store payment reference: %w", err)
	}
	checkin.PaymentReference = &result.TransactionID
	s.metrics.IncPaymentRequested("success")

	s.logger.Info("checkin_created",
		"checkin_id", checkin.ID,
		"facility", checkin.FacilityType,
		"total_price", checkin.TotalPrice,
		"transaction_id", result.TransactionID,
	)

	url := result.PaymentURL
	return &CreateCheckinOutput{Checkin: checkin, PaymentURL: &url}, nil
}

// GetCheckin retrieves a checkin owned by the given user.
func (s *CheckinService) GetCheckin(ctx context.Context, id, userID string) (*model.Checkin, error) {
	checkin, err := s.store.GetCheckinForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckinNotFound) {
			return nil, ErrCheckinNotFound
		}
		return nil, err
	}
	return checkin, nil
}

// ListCheckins retrieves the user's checkins, most recent first.
func (s *CheckinService) ListCheckins(ctx context.Context, userID string) ([]*model.Checkin, error) {
	return s.store.ListCheckinsForUser(ctx, userID)
}

// CancelCheckin cancels a pending reservation.
//
// Cancellation is allowed only while the checkin is PENDING and more than
// one hour remains before the reservation start. A concurrent payment
// confirmation that already moved the row to PAID makes the cancel fail as
// ErrAlreadyProcessed; a paid booking is never cancelled by a stale request.
func (s *CheckinService) CancelCheckin(ctx context.Context, id, userID string) error {
	checkin, err := s.GetCheckin(ctx, id, userID)
	if err != nil {
		return err
	}

	if checkin.Status != model.StatusPending {
		return ErrAlreadyProcessed
	}

	startAt, err := checkin.StartAt(s.loc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}
	// More than a full hour must remain; the exact cutoff is too late.
	if !s.now().Before(startAt.Add(-CancellationCutoff)) {
		return ErrCancellationWindow
	}

	if _, err := s.store.UpdateCheckinStatus(ctx, id, model.StatusPending, model.StatusCancelled, model.StatusUpdate{}); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to cancel checkin: %w", err)
	}
	s.metrics.IncCheckinCancelled()

	s.logger.Info("checkin_cancelled", "checkin_id", id)
	return nil
}

// ConfirmResult is the outcome of a payment confirmation callback.
type ConfirmResult struct {
	Checkin *model.Checkin
	// AlreadyCompleted marks a duplicate or late callback: the stored
	// values were returned untouched and no code was issued.
	AlreadyCompleted bool
}

// ConfirmPayment processes the gateway's confirmation callback.
//
// The operation is idempotent on business state. Only the callback that
// observes PENDING confirms with the gateway and performs the conditional
// transition to PAID; any other caller, including the loser of a race
// between duplicate callbacks, gets the winner's result back unchanged.
func (s *CheckinService) ConfirmPayment(ctx context.Context, orderID, transactionID string) (*ConfirmResult, error) {
	checkin, err := s.store.GetCheckinByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckinNotFound) {
			return nil, ErrCheckinNotFound
		}
		return nil, err
	}

	if checkin.Status != model.StatusPending {
		s.metrics.IncPaymentConfirmed("duplicate")
		s.logger.Info("payment_confirm_duplicate",
			"checkin_id", checkin.ID,
			"status", checkin.Status,
		)
		return &ConfirmResult{Checkin: checkin, AlreadyCompleted: true}, nil
	}

	start := s.now()
	err = s.gateway.Confirm(ctx, transactionID, checkin.TotalPrice)
	s.metrics.ObserveGatewayDuration("confirm", s.now().Sub(start))
	if err != nil {
		// The checkin stays PENDING. No transition, no code.
		s.metrics.IncPaymentConfirmed("failed")
		s.logger.Error("payment_confirm_failed",
			"checkin_id", checkin.ID,
			"transaction_id", transactionID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrPaymentConfirmFailed, err)
	}

	pin, err := generatePinCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access code: %w", err)
	}

	updated, err := s.store.UpdateCheckinStatus(ctx, checkin.ID, model.StatusPending, model.StatusPaid, model.StatusUpdate{
		PinCode:          &pin,
		PaymentReference: &transactionID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// A concurrent callback won the transition. Its result is
			// authoritative; re-read and report completion.
			current, getErr := s.store.GetCheckinByID(ctx, checkin.ID)
			if getErr != nil {
				return nil, getErr
			}
			s.metrics.IncPaymentConfirmed("duplicate")
			return &ConfirmResult{Checkin: current, AlreadyCompleted: true}, nil
		}
		return nil, fmt.Errorf("failed to mark checkin paid: %w", err)
	}
	s.metrics.IncPaymentConfirmed("success")

	s.logger.Info("payment_confirmed",
		"checkin_id", updated.ID,
		"transaction_id", transactionID,
	)
	return &ConfirmResult{Checkin: updated}, nil
}

// generatePinCode draws a uniform 4-digit access code in [1000, 9999].
// The first digit is never zero, so the code survives any rendering that
// strips leading zeros.
func generatePinCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

// productName renders the line-item description sent to the gateway.
func productName(facility model.FacilityType, duration int) string {
	name := "Gymnasium"
	if facility == model.FacilityTraining {
		name = "Training gym"
	}
	return fmt.Sprintf("%s %dh session", name, duration)
}

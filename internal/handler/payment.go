package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gymkey/gymkey/internal/service"
)

// PaymentHandler processes the payment gateway's browser callbacks.
type PaymentHandler struct {
	svc     *service.CheckinService
	baseURL string
	logger  *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler. baseURL is where the
// user's browser is sent after the callback is reconciled.
func NewPaymentHandler(svc *service.CheckinService, baseURL string, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Confirm handles GET /api/v1/payments/confirm.
//
// The gateway redirects the paying user's browser here with transactionId
// and orderId query parameters. Duplicate callbacks land on the same
// completion page as the first one.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	transactionID := r.URL.Query().Get("transactionId")
	orderID := r.URL.Query().Get("orderId")
	if transactionID == "" || orderID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "transactionId and orderId are required")
		return
	}

	result, err := h.svc.ConfirmPayment(r.Context(), orderID, transactionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCheckinNotFound):
			writeError(w, http.StatusNotFound, "CHECKIN_NOT_FOUND", "Checkin not found")
		case errors.Is(err, service.ErrPaymentConfirmFailed):
			writeError(w, http.StatusBadGateway, "PAYMENT_CONFIRM_FAILED", "Payment could not be confirmed, please retry")
		default:
			h.logger.Error("payment confirm error", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	http.Redirect(w, r, h.baseURL+"/complete?checkinId="+result.Checkin.ID, http.StatusFound)
}

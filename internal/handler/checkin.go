package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gymkey/gymkey/internal/auth"
	"github.com/gymkey/gymkey/internal/handler/dto"
	"github.com/gymkey/gymkey/internal/model"
	"github.com/gymkey/gymkey/internal/service"
)

// CheckinHandler handles HTTP requests for checkin operations.
type CheckinHandler struct {
	svc    *service.CheckinService
	loc    *time.Location
	logger *slog.Logger
}

// NewCheckinHandler creates a new CheckinHandler. Request dates are parsed
// in loc, the same location the cancellation window is evaluated in.
func NewCheckinHandler(svc *service.CheckinService, loc *time.Location, logger *slog.Logger) *CheckinHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CheckinHandler{
		svc:    svc,
		loc:    loc,
		logger: logger,
	}
}

// Create handles POST /api/v1/checkins.
func (h *CheckinHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.CreateCheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.FacilityType == "" || req.Date == "" || req.StartTime == "" || req.Duration == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "facility_type, date, start_time and duration are required")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date must be an ISO calendar date")
		return
	}

	out, err := h.svc.CreateCheckin(r.Context(), service.CreateCheckinInput{
		UserID:       user.ID,
		FacilityType: model.FacilityType(req.FacilityType),
		Date:         date,
		StartTime:    req.StartTime,
		Duration:     req.Duration,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.CreateCheckinResponse{
		Checkin:    dto.ToCheckinResponse(out.Checkin),
		PaymentURL: out.PaymentURL,
	}
	writeJSON(w, http.StatusCreated, response)
}

// Get handles GET /api/v1/checkins/{id}.
func (h *CheckinHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Checkin ID is required")
		return
	}

	checkin, err := h.svc.GetCheckin(r.Context(), id, user.ID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCheckinResponse(checkin))
}

// List handles GET /api/v1/checkins.
func (h *CheckinHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	checkins, err := h.svc.ListCheckins(r.Context(), user.ID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCheckinListResponse(checkins))
}

// Cancel handles DELETE /api/v1/checkins/{id}.
func (h *CheckinHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Checkin ID is required")
		return
	}

	if err := h.svc.CancelCheckin(r.Context(), id, user.ID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("checkin_cancelled", "checkin_id", id, "user_id", user.ID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Cancelled successfully"})
}

// handleServiceError maps service errors to HTTP responses.
func (h *CheckinHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCheckinNotFound):
		writeError(w, http.StatusNotFound, "CHECKIN_NOT_FOUND", "Checkin not found")
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "Required fields are missing")
	case errors.Is(err, service.ErrInvalidFacilityType):
		writeError(w, http.StatusBadRequest, "INVALID_FACILITY_TYPE", "Facility type must be GYM or TRAINING")
	case errors.Is(err, service.ErrInvalidReservation):
		writeError(w, http.StatusBadRequest, "INVALID_RESERVATION", "Reservation window is invalid")
	case errors.Is(err, service.ErrCancellationWindow):
		writeError(w, http.StatusBadRequest, "CANCELLATION_WINDOW_EXPIRED", "Cancellation is only possible up to one hour before the start time")
	case errors.Is(err, service.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "ALREADY_PROCESSED", "Checkin was already processed")
	case errors.Is(err, service.ErrPaymentRequestFailed):
		writeError(w, http.StatusBadGateway, "PAYMENT_REQUEST_FAILED", "Payment gateway is unavailable, please retry")
	default:
		h.logger.Error("service error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

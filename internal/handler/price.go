package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gymkey/gymkey/internal/handler/dto"
	"github.com/gymkey/gymkey/internal/model"
	"github.com/gymkey/gymkey/internal/pricing"
)

// PriceHandler serves price previews. Unauthenticated: the booking UI
// quotes a price before the user signs in.
type PriceHandler struct{}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler() *PriceHandler {
	return &PriceHandler{}
}

// Calculate handles POST /api/v1/prices/calculate.
func (h *PriceHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req dto.PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.FacilityType == "" || req.Date == "" || req.StartTime == "" || req.Duration == 0 {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "facility_type, date, start_time and duration are required")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date must be an ISO calendar date")
		return
	}

	quote, err := pricing.Calculate(model.FacilityType(req.FacilityType), date, req.StartTime, req.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RESERVATION", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PriceResponse{
		TotalPrice: quote.TotalPrice,
		Breakdown:  quote.Breakdown,
	})
}

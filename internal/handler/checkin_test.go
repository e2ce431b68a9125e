package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gymkey/gymkey/internal/auth"
	"github.com/gymkey/gymkey/internal/handler/dto"
	"github.com/gymkey/gymkey/internal/memstore"
	"github.com/gymkey/gymkey/internal/model"
	"github.com/gymkey/gymkey/internal/service"
)

func newTestRouter(t *testing.T) (*chi.Mux, *service.CheckinService) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewCheckinService(memstore.New(), nil, true, time.UTC, nil, logger)

	checkinHandler := NewCheckinHandler(svc, time.UTC, logger)
	priceHandler := NewPriceHandler()
	userHandler := NewUserHandler()

	r := chi.NewRouter()
	r.Post("/api/v1/prices/calculate", priceHandler.Calculate)
	r.Get("/api/v1/users/me", userHandler.Me)
	r.Route("/api/v1/checkins", func(r chi.Router) {
		r.Post("/", checkinHandler.Create)
		r.Get("/", checkinHandler.List)
		r.Get("/{id}", checkinHandler.Get)
		r.Delete("/{id}", checkinHandler.Cancel)
	})
	return r, svc
}

// asUser injects an authenticated user the way the auth middleware does.
func asUser(req *http.Request, id string) *http.Request {
	user := &model.User{ID: id, ExternalID: "ext-" + id, DisplayName: "Tester"}
	return req.WithContext(auth.ContextWithUser(req.Context(), user))
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return envelope.Error.Code
}

const createBody = `{"facility_type": "GYM", "date": "2030-06-15", "start_time": "16:00", "duration": 2}`

func TestCheckinCreate(t *testing.T) {
	r, _ := newTestRouter(t)

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/checkins", strings.NewReader(createBody)), "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp dto.CreateCheckinResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// 2030-06-15 is a Saturday: 2750 per hour regardless of slot.
	if resp.Checkin.TotalPrice != 5500 {
		t.Errorf("total = %d, want 5500", resp.Checkin.TotalPrice)
	}
	if resp.Checkin.Status != "PAID" {
		t.Errorf("status = %s, want PAID with payment bypass", resp.Checkin.Status)
	}
	if resp.Checkin.EndTime != "18:00" {
		t.Errorf("end_time = %s", resp.Checkin.EndTime)
	}
	if resp.Checkin.PinCode == nil {
		t.Error("expected a pin code")
	}
	if resp.PaymentURL != nil {
		t.Error("expected null payment_url with bypass")
	}
}

func TestCheckinCreate_Validation(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{`, http.StatusBadRequest, "INVALID_JSON"},
		{"missing fields", `{"facility_type": "GYM"}`, http.StatusBadRequest, "MISSING_FIELDS"},
		{"bad date", `{"facility_type": "GYM", "date": "June 15", "start_time": "16:00", "duration": 2}`, http.StatusBadRequest, "INVALID_DATE"},
		{"unknown facility", `{"facility_type": "POOL", "date": "2030-06-15", "start_time": "16:00", "duration": 2}`, http.StatusBadRequest, "INVALID_FACILITY_TYPE"},
		{"outside hours", `{"facility_type": "GYM", "date": "2030-06-15", "start_time": "05:00", "duration": 2}`, http.StatusBadRequest, "INVALID_RESERVATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/checkins", strings.NewReader(tt.body)), "user-1")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if code := decodeError(t, rec.Body); code != tt.wantErr {
				t.Errorf("error code = %s, want %s", code, tt.wantErr)
			}
		})
	}
}

func TestCheckinCreate_Unauthenticated(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkins", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckinGet_OwnershipAndNotFound(t *testing.T) {
	r, svc := newTestRouter(t)

	out, err := svc.CreateCheckin(context.Background(), service.CreateCheckinInput{
		UserID:       "user-1",
		FacilityType: model.FacilityGym,
		Date:         time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC),
		StartTime:    "10:00",
		Duration:     1,
	})
	if err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/checkins/"+out.Checkin.ID, nil), "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner read status = %d", rec.Code)
	}

	// Another user sees 404, not 403: existence is not leaked.
	req = asUser(httptest.NewRequest(http.MethodGet, "/api/v1/checkins/"+out.Checkin.ID, nil), "user-2")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign read status = %d, want 404", rec.Code)
	}
	if code := decodeError(t, rec.Body); code != "CHECKIN_NOT_FOUND" {
		t.Errorf("error code = %s", code)
	}
}

func TestCheckinList(t *testing.T) {
	r, svc := newTestRouter(t)

	for i := 0; i < 2; i++ {
		_, err := svc.CreateCheckin(context.Background(), service.CreateCheckinInput{
			UserID:       "user-1",
			FacilityType: model.FacilityGym,
			Date:         time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC),
			StartTime:    "10:00",
			Duration:     1,
		})
		if err != nil {
			t.Fatalf("CreateCheckin: %v", err)
		}
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/checkins", nil), "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp dto.CheckinListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 checkins, got %d", len(resp.Data))
	}
}

func TestCheckinCancel_PaidConflicts(t *testing.T) {
	r, svc := newTestRouter(t)

	// Bypass mode creates the checkin already PAID, so cancellation is a
	// conflict rather than a window question.
	out, err := svc.CreateCheckin(context.Background(), service.CreateCheckinInput{
		UserID:       "user-1",
		FacilityType: model.FacilityGym,
		Date:         time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC),
		StartTime:    "10:00",
		Duration:     1,
	})
	if err != nil {
		t.Fatalf("CreateCheckin: %v", err)
	}

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/checkins/"+out.Checkin.ID, nil), "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := decodeError(t, rec.Body); code != "ALREADY_PROCESSED" {
		t.Errorf("error code = %s", code)
	}
}

func TestPriceCalculate(t *testing.T) {
	r, _ := newTestRouter(t)

	// Weekday crossing the 17:00 boundary: 2750 + 2200.
	body := `{"facility_type": "GYM", "date": "2030-06-11", "start_time": "16:00", "duration": 2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prices/calculate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp dto.PriceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalPrice != 4950 {
		t.Errorf("total = %d, want 4950", resp.TotalPrice)
	}
	if len(resp.Breakdown) != 2 {
		t.Fatalf("breakdown length = %d", len(resp.Breakdown))
	}
	if resp.Breakdown[0].Price != 2750 || resp.Breakdown[1].Price != 2200 {
		t.Errorf("breakdown = %+v", resp.Breakdown)
	}
}

func TestPriceCalculate_Invalid(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"facility_type": "GYM", "date": "2030-06-11", "start_time": "20:00", "duration": 3}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prices/calculate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUserMe(t *testing.T) {
	r, _ := newTestRouter(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp dto.UserResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "user-1" || resp.DisplayName != "Tester" {
		t.Errorf("unexpected profile: %+v", resp)
	}
}

// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/gymkey/gymkey/internal/model"
	"github.com/gymkey/gymkey/internal/pricing"
)

// CreateCheckinRequest represents the request body for creating a checkin.
type CreateCheckinRequest struct {
	FacilityType string `json:"facility_type"`
	Date         string `json:"date"`       // ISO calendar date, "2006-01-02"
	StartTime    string `json:"start_time"` // "HH:MM"
	Duration     int    `json:"duration"`   // hours
}

// CheckinResponse represents a checkin in API responses.
type CheckinResponse struct {
	ID               string    `json:"id"`
	FacilityType     string    `json:"facility_type"`
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	Duration         int       `json:"duration"`
	TotalPrice       int       `json:"total_price"`
	PinCode          *string   `json:"pin_code,omitempty"`
	PaymentReference *string   `json:"payment_reference,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateCheckinResponse pairs the created checkin with the payment
// redirect URL. PaymentURL is null when payment was bypassed.
type CreateCheckinResponse struct {
	Checkin    CheckinResponse `json:"checkin"`
	PaymentURL *string         `json:"payment_url"`
}

// CheckinListResponse wraps a user's checkins.
type CheckinListResponse struct {
	Data []CheckinResponse `json:"data"`
}

// PriceRequest represents the request body for a price preview.
// Fields are identical to CreateCheckinRequest's pricing fields.
type PriceRequest struct {
	FacilityType string `json:"facility_type"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	Duration     int    `json:"duration"`
}

// PriceResponse mirrors the pricing engine's quote.
type PriceResponse struct {
	TotalPrice int                 `json:"total_price"`
	Breakdown  []pricing.HourPrice `json:"breakdown"`
}

// UserResponse represents the authenticated user.
type UserResponse struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	PictureURL  *string `json:"picture_url,omitempty"`
}

// ToCheckinResponse converts a checkin model to its API shape.
func ToCheckinResponse(c *model.Checkin) CheckinResponse {
	return CheckinResponse{
		ID:               c.ID,
		FacilityType:     string(c.FacilityType),
		Date:             c.Date.Format("2006-01-02"),
		StartTime:        c.StartTime,
		EndTime:          c.EndTime(),
		Duration:         c.Duration,
		TotalPrice:       c.TotalPrice,
		PinCode:          c.PinCode,
		PaymentReference: c.PaymentReference,
		Status:           string(c.Status),
		CreatedAt:        c.CreatedAt,
	}
}

// ToCheckinListResponse converts a slice of checkins.
func ToCheckinListResponse(checkins []*model.Checkin) CheckinListResponse {
	out := CheckinListResponse{Data: make([]CheckinResponse, 0, len(checkins))}
	for _, c := range checkins {
		out.Data = append(out.Data, ToCheckinResponse(c))
	}
	return out
}

// ToUserResponse converts a user model to its API shape.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		PictureURL:  u.PictureURL,
	}
}

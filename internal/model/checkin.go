// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FacilityType identifies which facility a checkin reserves.
type FacilityType string

const (
	FacilityGym      FacilityType = "GYM"
	FacilityTraining FacilityType = "TRAINING"
)

// IsValid checks if the facility type is one of the known facilities.
func (f FacilityType) IsValid() bool {
	return f == FacilityGym || f == FacilityTraining
}

// CheckinStatus represents the lifecycle state of a checkin.
type CheckinStatus string

const (
	StatusPending   CheckinStatus = "PENDING"
	StatusPaid      CheckinStatus = "PAID"
	StatusUsed      CheckinStatus = "USED"
	StatusExpired   CheckinStatus = "EXPIRED"
	StatusCancelled CheckinStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave this status.
func (s CheckinStatus) IsTerminal() bool {
	switch s {
	case StatusUsed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IsValid checks if the status is a known lifecycle state.
func (s CheckinStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusUsed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s to next.
// PENDING may become PAID or CANCELLED; PAID may become USED or EXPIRED.
// Terminal states permit nothing.
func CanTransition(from, to CheckinStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusPaid || to == StatusCancelled
	case StatusPaid:
		return to == StatusUsed || to == StatusExpired
	}
	return false
}

// Checkin represents a single facility reservation.
type Checkin struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	FacilityType     FacilityType  `json:"facility_type"`
	Date             time.Time     `json:"date"`
	StartTime        string        `json:"start_time"` // "HH:MM", hour-aligned
	Duration         int           `json:"duration"`   // hours
	TotalPrice       int           `json:"total_price"`
	PinCode          *string       `json:"pin_code,omitempty"`
	PaymentReference *string       `json:"payment_reference,omitempty"`
	Status           CheckinStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// StartAt composes the reservation start instant from Date and StartTime
// in the given location. The cancellation window is evaluated against it.
func (c *Checkin) StartAt(loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseStartTime(c.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	// Date is a calendar day; converting it between locations would shift
	// the day for zones west of the one it was stored in. Take the
	// components as-is and rebuild the instant in loc.
	y, m, d := c.Date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc), nil
}

// EndTime returns the "HH:MM" end of the reserved window.
func (c *Checkin) EndTime() string {
	hour, _, err := ParseStartTime(c.StartTime)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%02d:00", hour+c.Duration)
}

// ParseStartTime parses an "HH:MM" time-of-day string.
func ParseStartTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid start time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid start time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid start time %q", s)
	}
	return hour, minute, nil
}

// StatusUpdate carries the optional fields written together with a
// status transition. Nil fields are left untouched.
type StatusUpdate struct {
	PinCode          *string
	PaymentReference *string
}

// Package pricing computes reservation prices.
// The engine is pure: no I/O, no clock, fully determined by its inputs.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/gymkey/gymkey/internal/model"
)

// Operating hours. Slots run hourly from open to close; the last
// reservable window must end at or before closing.
const (
	OpenHour  = 7
	CloseHour = 21
)

// DayType classifies a reservation date.
type DayType string

const (
	Weekday DayType = "WEEKDAY"
	Weekend DayType = "WEEKEND"
)

// TimeSlot classifies a reserved hour. The gym splits the day at 17:00;
// the training room charges one flat rate.
type TimeSlot string

const (
	Daytime TimeSlot = "DAYTIME"
	Evening TimeSlot = "EVENING"
	AllDay  TimeSlot = "ALLDAY"
)

// Hourly rates in currency minor units.
var priceTable = map[model.FacilityType]map[DayType]map[TimeSlot]int{
	model.FacilityGym: {
		Weekday: {Daytime: 2750, Evening: 2200},
		Weekend: {Daytime: 2750, Evening: 2750},
	},
	model.FacilityTraining: {
		Weekday: {AllDay: 2200},
		Weekend: {AllDay: 2200},
	},
}

// DurationOptions are the selectable reservation lengths in hours.
var DurationOptions = []int{1, 2, 3, 4}

// Validation errors.
var (
	ErrInvalidFacility  = errors.New("invalid facility type")
	ErrInvalidStartTime = errors.New("invalid start time")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrOutsideHours     = errors.New("reservation outside operating hours")
)

// HourPrice is one hour of a quote's breakdown.
type HourPrice struct {
	Hour  int `json:"hour"`
	Price int `json:"price"`
}

// Quote is the priced result for a reservation window.
type Quote struct {
	TotalPrice int         `json:"totalPrice"`
	Breakdown  []HourPrice `json:"breakdown"`
}

// DayTypeOf returns WEEKEND for Saturday and Sunday, WEEKDAY otherwise.
func DayTypeOf(date time.Time) DayType {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	}
	return Weekday
}

// SlotOf classifies an hour for gym pricing. 17:00 is the boundary:
// hour 16 is daytime, hour 17 is evening.
func SlotOf(hour int) TimeSlot {
	if hour < 17 {
		return Daytime
	}
	return Evening
}

// Calculate prices the window [start, start+duration) hour by hour.
// The breakdown is ordered chronologically and sums to TotalPrice.
func Calculate(facility model.FacilityType, date time.Time, startTime string, duration int) (*Quote, error) {
	if !facility.IsValid() {
		return nil, ErrInvalidFacility
	}
	if duration < DurationOptions[0] || duration > DurationOptions[len(DurationOptions)-1] {
		return nil, ErrInvalidDuration
	}

	startHour, _, err := model.ParseStartTime(startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStartTime, err)
	}
	if startHour < OpenHour || startHour+duration > CloseHour {
		return nil, ErrOutsideHours
	}

	dayType := DayTypeOf(date)

	quote := &Quote{Breakdown: make([]HourPrice, 0, duration)}
	for i := 0; i < duration; i++ {
		hour := startHour + i

		var price int
		if facility == model.FacilityTraining {
			price = priceTable[facility][dayType][AllDay]
		} else {
			price = priceTable[facility][dayType][SlotOf(hour)]
		}

		quote.Breakdown = append(quote.Breakdown, HourPrice{Hour: hour, Price: price})
		quote.TotalPrice += price
	}

	return quote, nil
}

// EndTime formats the end of a reservation window as "HH:MM".
func EndTime(startTime string, duration int) (string, error) {
	startHour, _, err := model.ParseStartTime(startTime)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidStartTime, err)
	}
	return fmt.Sprintf("%02d:00", startHour+duration), nil
}

// ValidDurations returns the subset of DurationOptions whose window still
// ends at or before closing for the given start time.
func ValidDurations(startTime string) []int {
	startHour, _, err := model.ParseStartTime(startTime)
	if err != nil {
		return nil
	}

	var out []int
	for _, d := range DurationOptions {
		if startHour+d <= CloseHour {
			out = append(out, d)
		}
	}
	return out
}

package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// TripKey identifies a single instance of a scheduled run: one route on one
// travel date at one departure time. It is never persisted as its own row; it
// is the composite partition key for seat occupancy.
type TripKey struct {
	RouteID       string `json:"route_id" db:"route_id"`
	TravelDate    string `json:"travel_date" db:"travel_date"`       // YYYY-MM-DD
	DepartureTime string `json:"departure_time" db:"departure_time"` // e.g. "7:00 AM"
}

var departureTimeRegex = regexp.MustCompile(`^(1[0-2]|[1-9]):[0-5][0-9] (AM|PM)$`)

// Validate checks that the trip key fields are well-formed
func (k TripKey) Validate() error {
	if k.RouteID == "" {
		return NewValidationError("route_id is required")
	}
	if _, err := time.Parse("2006-01-02", k.TravelDate); err != nil {
		return NewValidationError("travel_date must be in YYYY-MM-DD format")
	}
	if !departureTimeRegex.MatchString(k.DepartureTime) {
		return NewValidationError("departure_time must be in H:MM AM/PM format")
	}
	return nil
}

// String renders the trip key for logging
func (k TripKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.RouteID, k.TravelDate, k.DepartureTime)
}

// SeatStatus classifies a seat within a trip's seat map
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusSelected  SeatStatus = "selected"
	SeatStatusTaken     SeatStatus = "taken"
)

// SeatInfo is one entry of a classified seat map
type SeatInfo struct {
	Number int        `json:"number"`
	Status SeatStatus `json:"status"`
}

// BuildSeatMap classifies every seat in a fixed layout of totalSeats seats.
// The reserved set wins over the caller's selection: a seat that is both
// selected and reserved is reported as taken. This classification is advisory;
// only the allocator's insert result is authoritative.
func BuildSeatMap(totalSeats int, selected, reserved []int) ([]SeatInfo, error) {
	if totalSeats <= 0 {
		return nil, errors.New("seat layout must contain at least one seat")
	}

	selectedSet := make(map[int]bool, len(selected))
	for _, n := range selected {
		if n < 1 || n > totalSeats {
			return nil, NewValidationError("seat %d is outside the layout (1-%d)", n, totalSeats)
		}
		selectedSet[n] = true
	}

	reservedSet := make(map[int]bool, len(reserved))
	for _, n := range reserved {
		reservedSet[n] = true
	}

	seatMap := make([]SeatInfo, totalSeats)
	for i := 0; i < totalSeats; i++ {
		number := i + 1
		status := SeatStatusAvailable
		switch {
		case reservedSet[number]:
			status = SeatStatusTaken
		case selectedSet[number]:
			status = SeatStatusSelected
		}
		seatMap[i] = SeatInfo{Number: number, Status: status}
	}

	return seatMap, nil
}

// ValidateSeatSelection checks that a requested seat set is non-empty, within
// the layout, within the per-booking limit and free of duplicates
func ValidateSeatSelection(seats []int, totalSeats, maxPerBooking int) error {
	if len(seats) == 0 {
		return NewValidationError("at least one seat must be selected")
	}
	if len(seats) > maxPerBooking {
		return NewValidationError("at most %d seats can be booked at once", maxPerBooking)
	}

	seen := make(map[int]bool, len(seats))
	for _, n := range seats {
		if n < 1 || n > totalSeats {
			return NewValidationError("seat %d is outside the layout (1-%d)", n, totalSeats)
		}
		if seen[n] {
			return NewValidationError("seat %d is selected more than once", n)
		}
		seen[n] = true
	}

	return nil
}

// SeatReservation is the row asserting a seat number is held by a specific
// booking for a specific trip key. Rows are only inserted or deleted wholesale,
// never updated; the compound uniqueness constraint over (trip key, seat
// number) is the concurrency control for seat allocation.
type SeatReservation struct {
	ID            string    `json:"id" db:"id"`
	RouteID       string    `json:"route_id" db:"route_id"`
	TravelDate    string    `json:"travel_date" db:"travel_date"`
	DepartureTime string    `json:"departure_time" db:"departure_time"`
	SeatNumber    int       `json:"seat_number" db:"seat_number"`
	BookingID     string    `json:"booking_id" db:"booking_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Route represents a bookable route with its fixed fare
type Route struct {
	ID          string    `json:"id" db:"id"`
	Origin      string    `json:"origin" db:"origin"`
	Destination string    `json:"destination" db:"destination"`
	Fare        int64     `json:"fare" db:"fare"` // kobo
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

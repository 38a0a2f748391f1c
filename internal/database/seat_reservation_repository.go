package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/roadpass/booking-backend/internal/models"
)

// SeatReservationRepository is the seat inventory allocator. The compound
// uniqueness constraint UNIQUE (route_id, travel_date, departure_time,
// seat_number) on seat_reservations is the concurrency primitive: the insert
// itself is the lock. Rows are never updated in place, only inserted or
// deleted wholesale.
type SeatReservationRepository struct {
	db DB
}

// NewSeatReservationRepository creates a new SeatReservationRepository
func NewSeatReservationRepository(db DB) *SeatReservationRepository {
	return &SeatReservationRepository{db: db}
}

// Reserve inserts one reservation row per requested seat in a single batch
// statement. If any seat collides with an existing reservation for the same
// trip key, the whole statement fails and nothing is inserted; the returned
// *models.SeatConflictError names the seats that were already taken.
func (r *SeatReservationRepository) Reserve(key models.TripKey, bookingID string, seats []int) error {
	if len(seats) == 0 {
		return fmt.Errorf("no seats requested")
	}

	query := `
		INSERT INTO seat_reservations (
			id, route_id, travel_date, departure_time, seat_number, booking_id
		)
		SELECT gen_random_uuid(), $1, $2, $3, seat, $4
		FROM unnest($5::int[]) AS seat
	`

	_, err := r.db.Exec(query,
		key.RouteID, key.TravelDate, key.DepartureTime,
		bookingID, pq.Array(seats),
	)
	if err == nil {
		return nil
	}

	if !isUniqueViolation(err) {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}

	taken, lookupErr := r.takenSeats(key, seats)
	if lookupErr != nil || len(taken) == 0 {
		// Constraint told us there is a collision even if the follow-up
		// read could not name the seats
		taken = nil
	}

	return &models.SeatConflictError{Trip: key, TakenSeats: taken}
}

// Release deletes every reservation row held by a booking. Used only as a
// compensating action; a completed purchase's seats are never released.
func (r *SeatReservationRepository) Release(bookingID string) error {
	_, err := r.db.Exec(`DELETE FROM seat_reservations WHERE booking_id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to release seats for booking %s: %w", bookingID, err)
	}
	return nil
}

// ReservedSeats returns the seat numbers currently reserved for a trip key.
// Advisory only; the insert in Reserve is the authoritative check.
func (r *SeatReservationRepository) ReservedSeats(key models.TripKey) ([]int, error) {
	query := `
		SELECT seat_number
		FROM seat_reservations
		WHERE route_id = $1 AND travel_date = $2 AND departure_time = $3
		ORDER BY seat_number
	`

	rows, err := r.db.Query(query, key.RouteID, key.TravelDate, key.DepartureTime)
	if err != nil {
		return nil, fmt.Errorf("failed to load reserved seats: %w", err)
	}
	defer rows.Close()

	seats := []int{}
	for rows.Next() {
		var seat int
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}

	return seats, rows.Err()
}

// takenSeats narrows a conflict down to the requested seats that already
// belong to another booking
func (r *SeatReservationRepository) takenSeats(key models.TripKey, requested []int) ([]int, error) {
	query := `
		SELECT seat_number
		FROM seat_reservations
		WHERE route_id = $1 AND travel_date = $2 AND departure_time = $3
		  AND seat_number = ANY($4::int[])
		ORDER BY seat_number
	`

	rows, err := r.db.Query(query, key.RouteID, key.TravelDate, key.DepartureTime, pq.Array(requested))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taken := []int{}
	for rows.Next() {
		var seat int
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		taken = append(taken, seat)
	}

	return taken, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roadpass/booking-backend/internal/models"
)

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking
func (r *BookingRepository) Create(booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, reference, user_id, route_id, travel_date, departure_time,
			passenger_name, passenger_email, passenger_phone,
			next_of_kin_name, next_of_kin_phone,
			seat_count, amount, payment_status, payment_channel
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		RETURNING created_at, updated_at
	`

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}

	err := r.db.QueryRow(
		query,
		booking.ID, booking.Reference, booking.UserID,
		booking.RouteID, booking.TravelDate, booking.DepartureTime,
		booking.PassengerName, booking.PassengerEmail, booking.PassengerPhone,
		booking.NextOfKinName, booking.NextOfKinPhone,
		booking.SeatCount, booking.Amount, booking.PaymentStatus, booking.PaymentChannel,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	query := bookingSelectColumns + ` WHERE id = $1`
	return r.scanBooking(r.db.QueryRow(query, bookingID))
}

// GetByReference retrieves a booking by its server-generated reference
func (r *BookingRepository) GetByReference(reference string) (*models.Booking, error) {
	query := bookingSelectColumns + ` WHERE reference = $1`
	return r.scanBooking(r.db.QueryRow(query, reference))
}

// UpdateStatusByReference performs a single-row status transition keyed by
// booking reference. Re-applying the current status is a no-op in effect, so
// repeated verification calls are idempotent.
func (r *BookingRepository) UpdateStatusByReference(reference string, status models.PaymentStatus) error {
	query := `
		UPDATE bookings
		SET payment_status = $2, updated_at = NOW()
		WHERE reference = $1
	`

	result, err := r.db.Exec(query, reference, status)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrBookingNotFound
	}

	return nil
}

// Delete removes a booking row. Compensating action only: a booking is
// deleted solely when its purchase attempt failed before money moved.
func (r *BookingRepository) Delete(bookingID string) error {
	result, err := r.db.Exec(`DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrBookingNotFound
	}

	return nil
}

// MarkAbandonedBefore counts bookings stuck in pending since before cutoff as
// failed. Seats stay allocated; only the entitlement is withdrawn.
func (r *BookingRepository) MarkAbandonedBefore(cutoff time.Time) (int64, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed', updated_at = NOW()
		WHERE payment_status = 'pending' AND updated_at < $1
	`

	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark abandoned bookings: %w", err)
	}

	return result.RowsAffected()
}

const bookingSelectColumns = `
	SELECT id, reference, user_id, route_id, travel_date, departure_time,
		   passenger_name, passenger_email, passenger_phone,
		   next_of_kin_name, next_of_kin_phone,
		   seat_count, amount, payment_status, payment_channel,
		   created_at, updated_at
	FROM bookings`

// scanBooking scans a single booking row
func (r *BookingRepository) scanBooking(row scanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var userID sql.NullString

	err := row.Scan(
		&booking.ID, &booking.Reference, &userID,
		&booking.RouteID, &booking.TravelDate, &booking.DepartureTime,
		&booking.PassengerName, &booking.PassengerEmail, &booking.PassengerPhone,
		&booking.NextOfKinName, &booking.NextOfKinPhone,
		&booking.SeatCount, &booking.Amount, &booking.PaymentStatus, &booking.PaymentChannel,
		&booking.CreatedAt, &booking.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	if userID.Valid {
		booking.UserID = &userID.String
	}

	return booking, nil
}

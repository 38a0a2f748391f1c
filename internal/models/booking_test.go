package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentStatusReserved, PaymentStatusPending, true},
		{PaymentStatusReserved, PaymentStatusCompleted, true},
		{PaymentStatusReserved, PaymentStatusFailed, false},
		{PaymentStatusReserved, PaymentStatusRefunded, false},
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusReserved, false},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusCompleted, PaymentStatusRefunded, true},
		{PaymentStatusCompleted, PaymentStatusFailed, false},
		{PaymentStatusCompleted, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusCompleted, false},
		{PaymentStatusFailed, PaymentStatusRefunded, false},
		{PaymentStatusRefunded, PaymentStatusCompleted, false},
		{PaymentStatusRefunded, PaymentStatusRefunded, false},
	}

	for _, tc := range cases {
		got := tc.from.CanTransition(tc.to)
		assert.Equal(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestNewBookingReference(t *testing.T) {
	t.Run("Format", func(t *testing.T) {
		ref, err := NewBookingReference()
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(ref, ReferencePrefix))
		assert.Len(t, ref, len(ReferencePrefix)+10)
		assert.True(t, IsValidReference(ref), "generated reference %q should validate", ref)
	})

	t.Run("No Ambiguous Characters", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			ref, err := NewBookingReference()
			require.NoError(t, err)
			token := strings.TrimPrefix(ref, ReferencePrefix)
			assert.NotContains(t, token, "O")
			assert.NotContains(t, token, "I")
			assert.NotContains(t, token, "0")
			assert.NotContains(t, token, "1")
		}
	})

	t.Run("Uniqueness", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			ref, err := NewBookingReference()
			require.NoError(t, err)
			assert.False(t, seen[ref], "duplicate reference %q", ref)
			seen[ref] = true
		}
	})
}

func TestIsValidReference(t *testing.T) {
	valid := []string{"RPB-ABCDE23456", "RPB-ZZZZZZZZZZ", "RPB-A2B3C4D5E6"}
	for _, ref := range valid {
		assert.True(t, IsValidReference(ref), "%q should be valid", ref)
	}

	invalid := []string{
		"",
		"RPB-",
		"RPB-ABC",                      // too short
		"RPB-ABCDE234567",              // too long
		"rpb-ABCDE23456",               // lowercase prefix
		"RPB-abcde23456",               // lowercase token
		"XYZ-ABCDE23456",               // wrong prefix
		"RPB-ABCDE2345 ",               // trailing space
		"RPB-ABCDE23456; DROP TABLE b", // injection probe
	}
	for _, ref := range invalid {
		assert.False(t, IsValidReference(ref), "%q should be invalid", ref)
	}
}

func TestPurchaseRequestValidate(t *testing.T) {
	valid := func() *PurchaseRequest {
		return &PurchaseRequest{
			RouteID:        "route-1",
			TravelDate:     "2026-09-15",
			DepartureTime:  "7:00 AM",
			Seats:          []int{1, 2},
			Amount:         30000,
			PassengerName:  "Ada Obi",
			PassengerEmail: "ada@example.com",
			PassengerPhone: "08012345678",
			NextOfKinName:  "Ngozi Obi",
			NextOfKinPhone: "08087654321",
		}
	}

	t.Run("Valid Request", func(t *testing.T) {
		assert.NoError(t, valid().Validate(36, 6))
	})

	t.Run("Bad Email", func(t *testing.T) {
		req := valid()
		req.PassengerEmail = "not-an-email"
		assert.Error(t, req.Validate(36, 6))
	})

	t.Run("Zero Amount", func(t *testing.T) {
		req := valid()
		req.Amount = 0
		assert.Error(t, req.Validate(36, 6))
	})

	t.Run("Negative Amount", func(t *testing.T) {
		req := valid()
		req.Amount = -100
		assert.Error(t, req.Validate(36, 6))
	})

	t.Run("Blank Passenger Name", func(t *testing.T) {
		req := valid()
		req.PassengerName = "   "
		assert.Error(t, req.Validate(36, 6))
	})

	t.Run("Too Many Seats", func(t *testing.T) {
		req := valid()
		req.Seats = []int{1, 2, 3, 4, 5, 6, 7}
		assert.Error(t, req.Validate(36, 6))
	})

	t.Run("Bad Trip Key", func(t *testing.T) {
		req := valid()
		req.DepartureTime = "25:00"
		assert.Error(t, req.Validate(36, 6))
	})

	t.Run("Malformed Passenger Phone", func(t *testing.T) {
		req := valid()
		req.PassengerPhone = "not-a-phone!!"
		err := req.Validate(36, 6)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "passenger_phone")
	})

	t.Run("Malformed Next Of Kin Phone", func(t *testing.T) {
		req := valid()
		req.NextOfKinPhone = "???"
		err := req.Validate(36, 6)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "next_of_kin_phone")
	})

	t.Run("Wrong Phone Prefix", func(t *testing.T) {
		req := valid()
		req.PassengerPhone = "06012345678"
		assert.Error(t, req.Validate(36, 6))
	})

	t.Run("International Phone Form", func(t *testing.T) {
		req := valid()
		req.PassengerPhone = "+2348012345678"
		assert.NoError(t, req.Validate(36, 6))
	})
}

func TestBookingSummary(t *testing.T) {
	userID := "user-1"
	booking := &Booking{
		ID:             "booking-1",
		Reference:      "RPB-ABCDE23456",
		UserID:         &userID,
		RouteID:        "route-1",
		TravelDate:     "2026-09-15",
		DepartureTime:  "7:00 AM",
		PassengerName:  "Ada Obi",
		PassengerEmail: "ada@example.com",
		PassengerPhone: "08012345678",
		NextOfKinName:  "Ngozi Obi",
		NextOfKinPhone: "08087654321",
		SeatCount:      2,
		Amount:         30000,
		PaymentStatus:  PaymentStatusCompleted,
	}

	summary := booking.Summary()
	assert.Equal(t, "RPB-ABCDE23456", summary.Reference)
	assert.Equal(t, "Ada Obi", summary.PassengerName)
	assert.Equal(t, 2, summary.SeatCount)
	assert.Equal(t, int64(30000), summary.Amount)
	assert.Equal(t, PaymentStatusCompleted, summary.PaymentStatus)
}

func TestRefundRequestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		req := &RefundRequest{
			BookingID:      "booking-1",
			PassengerEmail: "ada@example.com",
			Amount:         15000,
			Reason:         "trip cancelled",
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("Non Positive Amount", func(t *testing.T) {
		req := &RefundRequest{BookingID: "booking-1", PassengerEmail: "ada@example.com", Amount: 0}
		assert.Error(t, req.Validate())
	})

	t.Run("Bad Email", func(t *testing.T) {
		req := &RefundRequest{BookingID: "booking-1", PassengerEmail: "nope", Amount: 100}
		assert.Error(t, req.Validate())
	})
}

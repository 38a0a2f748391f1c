package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/roadpass/booking-backend/internal/models"
	"github.com/roadpass/booking-backend/internal/services"
)

// respondError maps a settlement error onto an HTTP response. Conflict errors
// carry enough detail to retry meaningfully; everything else is a structured
// payload, never a raw internal error.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var seatConflict *models.SeatConflictError
	if errors.As(err, &seatConflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "seats_taken",
			"message":     "Some of the selected seats are no longer available",
			"code":        "SEATS_TAKEN",
			"taken_seats": seatConflict.TakenSeats,
		})
		return
	}

	var insufficientFunds *models.InsufficientFundsError
	if errors.As(err, &insufficientFunds) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "insufficient_funds",
			"message": "Wallet balance cannot cover this purchase",
			"code":    "INSUFFICIENT_FUNDS",
			"balance": insufficientFunds.Balance,
		})
		return
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": validationErr.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	var gatewayErr *models.GatewayError
	if errors.As(err, &gatewayErr) {
		logger.WithError(err).Error("Payment gateway call failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "gateway_unavailable",
			"message":   "Payment gateway could not be reached. Please try again.",
			"code":      "GATEWAY_UNAVAILABLE",
			"retryable": true,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrRouteNotFound),
		errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
			"code":    "NOT_FOUND",
		})
	case errors.Is(err, models.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_reference",
			"message": "Booking reference format is not recognized",
			"code":    "INVALID_REFERENCE",
		})
	case errors.Is(err, models.ErrAlreadyRefunded), errors.Is(err, models.ErrNotRefundable):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "not_refundable",
			"message": err.Error(),
			"code":    "NOT_REFUNDABLE",
		})
	case errors.Is(err, models.ErrEmailMismatch), errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You do not have permission to perform this action",
			"code":    "FORBIDDEN",
		})
	default:
		// Anything untyped is an internal failure; its text never reaches
		// the client
		logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong. Please try again.",
			"code":    "INTERNAL_ERROR",
		})
	}
}

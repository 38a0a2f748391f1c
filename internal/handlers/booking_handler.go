package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/roadpass/booking-backend/internal/models"
	"github.com/roadpass/booking-backend/internal/services"
)

// BookingHandler handles purchase initialization, verification and seat
// availability endpoints
type BookingHandler struct {
	settlementService *services.SettlementService
	logger            *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(settlementService *services.SettlementService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		settlementService: settlementService,
		logger:            logger,
	}
}

// InitializePurchase starts a card purchase
// @Summary Initialize a card purchase
// @Description Reserves the selected seats and returns the gateway payment URL
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.PurchaseRequest true "Purchase request"
// @Success 200 {object} models.InitializePurchaseResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 409 {object} map[string]interface{} "Seats already taken"
// @Failure 502 {object} map[string]interface{} "Gateway unreachable"
// @Router /bookings/initialize [post]
func (h *BookingHandler) InitializePurchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	response, err := h.settlementService.InitializePurchase(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// VerifyPurchase verifies a purchase against the gateway
// @Summary Verify a card purchase
// @Description Fetches the authoritative gateway status and returns the booking receipt
// @Tags Bookings
// @Produce json
// @Param reference path string true "Booking reference"
// @Success 200 {object} models.VerifyPurchaseResponse
// @Failure 400 {object} map[string]interface{} "Malformed reference"
// @Failure 404 {object} map[string]interface{} "Unknown reference"
// @Failure 502 {object} map[string]interface{} "Gateway unreachable, retry"
// @Router /bookings/verify/{reference} [get]
func (h *BookingHandler) VerifyPurchase(c *gin.Context) {
	reference := c.Param("reference")

	response, err := h.settlementService.VerifyPurchase(reference)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SeatAvailability returns the advisory seat map for a trip
// @Summary Seat availability for a trip
// @Description Classifies every seat of the trip as available or taken; advisory only
// @Tags Trips
// @Produce json
// @Param route_id query string true "Route ID"
// @Param date query string true "Travel date (YYYY-MM-DD)"
// @Param time query string true "Departure time (H:MM AM/PM)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Malformed trip key"
// @Router /trips/seats [get]
func (h *BookingHandler) SeatAvailability(c *gin.Context) {
	key := models.TripKey{
		RouteID:       c.Query("route_id"),
		TravelDate:    c.Query("date"),
		DepartureTime: c.Query("time"),
	}

	seatMap, err := h.settlementService.SeatAvailability(key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trip":  key,
		"seats": seatMap,
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/roadpass/booking-backend/internal/middleware"
	"github.com/roadpass/booking-backend/internal/models"
	"github.com/roadpass/booking-backend/internal/services"
)

// WalletHandler handles wallet-pay, wallet summary and refund endpoints
type WalletHandler struct {
	settlementService *services.SettlementService
	logger            *logrus.Logger
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(settlementService *services.SettlementService, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{
		settlementService: settlementService,
		logger:            logger,
	}
}

// WalletPay settles a purchase from the caller's wallet
// @Summary Pay for a booking from the wallet
// @Description Reserves seats and debits the wallet atomically
// @Tags Wallet
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.PurchaseRequest true "Purchase request"
// @Success 200 {object} models.WalletPayResponse
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 409 {object} map[string]interface{} "Seats taken or insufficient funds"
// @Router /wallet/pay [post]
func (h *WalletHandler) WalletPay(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	response, err := h.settlementService.WalletPay(userCtx.UserID.String(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// WalletSummary returns the caller's balance and recent ledger entries
// @Summary Wallet balance and history
// @Tags Wallet
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} models.WalletSummary
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Router /wallet [get]
func (h *WalletHandler) WalletSummary(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	summary, err := h.settlementService.WalletSummary(userCtx.UserID.String())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Refund credits a completed booking back to the passenger's wallet
// @Summary Refund a booking (admin)
// @Description Credits the refund amount to the passenger's wallet and marks the booking refunded
// @Tags Admin
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.RefundRequest true "Refund request"
// @Success 200 {object} models.RefundResponse
// @Failure 401 {object} map[string]interface{} "Unauthorized"
// @Failure 403 {object} map[string]interface{} "Missing admin role or email mismatch"
// @Failure 409 {object} map[string]interface{} "Booking not refundable"
// @Router /admin/refunds [post]
func (h *WalletHandler) Refund(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	caller := services.Caller{
		UserID: userCtx.UserID.String(),
		Roles:  userCtx.Roles,
	}

	response, err := h.settlementService.Refund(caller, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/roadpass/booking-backend/internal/config"
	"github.com/roadpass/booking-backend/internal/models"
)

// SeatStore allocates and releases seat inventory
type SeatStore interface {
	Reserve(key models.TripKey, bookingID string, seats []int) error
	Release(bookingID string) error
	ReservedSeats(key models.TripKey) ([]int, error)
}

// BookingStore owns booking rows and their status transitions
type BookingStore interface {
	Create(booking *models.Booking) error
	GetByID(bookingID string) (*models.Booking, error)
	GetByReference(reference string) (*models.Booking, error)
	UpdateStatusByReference(reference string, status models.PaymentStatus) error
	Delete(bookingID string) error
	MarkAbandonedBefore(cutoff time.Time) (int64, error)
}

// WalletStore owns wallet balances and the append-only transaction ledger
type WalletStore interface {
	GetByUser(userID string) (*models.Wallet, error)
	GetOrCreateByUser(userID string) (*models.Wallet, error)
	Debit(walletID string, amount int64) (int64, error)
	Credit(walletID string, amount int64) (int64, error)
	RecordTransaction(tx *models.WalletTransaction) error
	TransactionsByWallet(walletID string, limit int) ([]models.WalletTransaction, error)
	HasRefundForBooking(reference string) (bool, error)
}

// RouteStore resolves routes
type RouteStore interface {
	GetByID(routeID string) (*models.Route, error)
}

// UserStore resolves refund targets
type UserStore interface {
	GetByID(userID string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
}

// PaymentGateway is the card/bank gateway adapter contract
type PaymentGateway interface {
	InitializeTransaction(params *InitializeTransactionParams) (*InitializeTransactionResponse, error)
	VerifyTransaction(reference string) (*VerifyTransactionResponse, error)
}

// Caller is the freshly verified identity attached to a privileged request.
// Always passed explicitly; never read from ambient state.
type Caller struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the caller carries a role
func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ErrForbidden is returned when a privileged flow is invoked without the
// required role. Fails closed: no partial information leaves the core.
var ErrForbidden = errors.New("caller is not authorized for this operation")

// AdminRole is the role required for refunds
const AdminRole = "admin"

// SettlementService sequences the four settlement flows: card-pay initialize,
// card-pay verify, wallet-pay and refund. Every multi-step flow is a saga;
// each step either advances or triggers explicit compensation for the steps
// that already committed. The gateway is always the last external call in the
// happy path so that any earlier failure costs nothing but a rollback.
type SettlementService struct {
	seats    SeatStore
	bookings BookingStore
	wallets  WalletStore
	routes   RouteStore
	users    UserStore
	gateway  PaymentGateway
	fleet    config.FleetConfig
	logger   *logrus.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	seats SeatStore,
	bookings BookingStore,
	wallets WalletStore,
	routes RouteStore,
	users UserStore,
	gateway PaymentGateway,
	fleet config.FleetConfig,
	logger *logrus.Logger,
) *SettlementService {
	return &SettlementService{
		seats:    seats,
		bookings: bookings,
		wallets:  wallets,
		routes:   routes,
		users:    users,
		gateway:  gateway,
		fleet:    fleet,
		logger:   logger,
	}
}

// ============================================================================
// FLOW 1: CARD-PAY INITIALIZE
// ============================================================================

// InitializePurchase reserves seats, creates the booking and opens a gateway
// transaction. Seats are reserved before any money is at risk: a user can
// never be charged for a seat that someone else takes concurrently.
func (s *SettlementService) InitializePurchase(req *models.PurchaseRequest) (*models.InitializePurchaseResponse, error) {
	route, err := s.validatePurchase(req)
	if err != nil {
		return nil, err
	}

	reference, err := models.NewBookingReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	bookingID := uuid.New().String()

	// The insert is the lock: a conflict here means another booking already
	// holds at least one of the seats, and nothing has been persisted for us
	if err := s.seats.Reserve(req.TripKey(), bookingID, req.Seats); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:             bookingID,
		Reference:      reference,
		RouteID:        route.ID,
		TravelDate:     req.TravelDate,
		DepartureTime:  req.DepartureTime,
		PassengerName:  req.PassengerName,
		PassengerEmail: req.PassengerEmail,
		PassengerPhone: req.PassengerPhone,
		NextOfKinName:  req.NextOfKinName,
		NextOfKinPhone: req.NextOfKinPhone,
		SeatCount:      len(req.Seats),
		Amount:         req.Amount,
		PaymentStatus:  models.PaymentStatusReserved,
		PaymentChannel: models.PaymentChannelCard,
	}

	if err := s.bookings.Create(booking); err != nil {
		s.compensateSeats(bookingID, reference)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	initResp, err := s.gateway.InitializeTransaction(&InitializeTransactionParams{
		Reference: reference,
		Amount:    req.Amount,
		Email:     req.PassengerEmail,
		Name:      req.PassengerName,
	})
	if err != nil {
		// No money has moved; undo everything this attempt committed
		s.compensateBooking(booking)
		return nil, err
	}

	// Past this point money may be in flight; failures are absorbed by the
	// pending state and closed out by verification, never rolled back
	if err := s.bookings.UpdateStatusByReference(reference, models.PaymentStatusPending); err != nil {
		s.logger.WithError(err).WithField("reference", reference).
			Error("Failed to advance booking to pending after gateway initialize")
	}

	s.logger.WithFields(logrus.Fields{
		"reference": reference,
		"trip":      req.TripKey().String(),
		"seats":     req.Seats,
		"amount":    req.Amount,
	}).Info("Card purchase initialized")

	return &models.InitializePurchaseResponse{
		AuthorizationURL: initResp.AuthorizationURL,
		Reference:        reference,
	}, nil
}

// ============================================================================
// FLOW 2: CARD-PAY VERIFY
// ============================================================================

// VerifyPurchase asks the gateway for the authoritative transaction state and
// maps it onto the booking. Idempotent: re-applying an unchanged upstream
// status changes nothing and touches no seats.
func (s *SettlementService) VerifyPurchase(reference string) (*models.VerifyPurchaseResponse, error) {
	if !models.IsValidReference(reference) {
		return nil, models.ErrInvalidReference
	}

	booking, err := s.bookings.GetByReference(reference)
	if err != nil {
		return nil, err
	}

	verifyResp, err := s.gateway.VerifyTransaction(reference)
	if err != nil {
		// Indeterminate: the money's true state is still only known to the
		// processor. The booking keeps its current status.
		return nil, err
	}

	target := bookingStatusFor(verifyResp.Status)
	switch {
	case booking.PaymentStatus == target:
		// Unchanged upstream status, nothing to do
	case booking.PaymentStatus.CanTransition(target):
		if err := s.bookings.UpdateStatusByReference(reference, target); err != nil {
			return nil, err
		}
		booking.PaymentStatus = target
	default:
		s.logger.WithFields(logrus.Fields{
			"reference": reference,
			"current":   booking.PaymentStatus,
			"reported":  target,
		}).Warn("Ignoring gateway status that would be an illegal transition")
	}

	return &models.VerifyPurchaseResponse{
		Status:  booking.PaymentStatus,
		Booking: booking.Summary(),
	}, nil
}

// ============================================================================
// FLOW 3: WALLET-PAY
// ============================================================================

// WalletPay settles a purchase against the caller's pre-funded wallet. Seats
// are reserved before the balance is touched, for the same race-safety reason
// as the card flow; the conditional decrement is the authoritative funds
// check.
func (s *SettlementService) WalletPay(userID string, req *models.PurchaseRequest) (*models.WalletPayResponse, error) {
	route, err := s.validatePurchase(req)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetOrCreateByUser(userID)
	if err != nil {
		return nil, err
	}

	// Advisory read so an obviously underfunded attempt fails before any
	// seat is held; only the atomic decrement below is authoritative
	if wallet.Balance < req.Amount {
		return nil, &models.InsufficientFundsError{Balance: wallet.Balance, Amount: req.Amount}
	}

	reference, err := models.NewBookingReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	bookingID := uuid.New().String()

	if err := s.seats.Reserve(req.TripKey(), bookingID, req.Seats); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:             bookingID,
		Reference:      reference,
		UserID:         &userID,
		RouteID:        route.ID,
		TravelDate:     req.TravelDate,
		DepartureTime:  req.DepartureTime,
		PassengerName:  req.PassengerName,
		PassengerEmail: req.PassengerEmail,
		PassengerPhone: req.PassengerPhone,
		NextOfKinName:  req.NextOfKinName,
		NextOfKinPhone: req.NextOfKinPhone,
		SeatCount:      len(req.Seats),
		Amount:         req.Amount,
		PaymentStatus:  models.PaymentStatusCompleted,
		PaymentChannel: models.PaymentChannelWallet,
	}

	if err := s.bookings.Create(booking); err != nil {
		s.compensateSeats(bookingID, reference)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	newBalance, err := s.wallets.Debit(wallet.ID, req.Amount)
	if err != nil {
		// The wallet was never touched; undo the seats and the booking
		s.compensateBooking(booking)
		return nil, err
	}

	// The debit has committed; a missing audit row is logged and monitored,
	// never grounds to unwind the purchase
	debitAmount := -req.Amount
	if err := s.wallets.RecordTransaction(&models.WalletTransaction{
		WalletID:         wallet.ID,
		Amount:           debitAmount,
		Type:             models.TransactionTypeDebit,
		BookingReference: &reference,
	}); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reference": reference,
			"wallet_id": wallet.ID,
		}).Error("Failed to record wallet debit transaction")
	}

	s.logger.WithFields(logrus.Fields{
		"reference":   reference,
		"trip":        req.TripKey().String(),
		"seats":       req.Seats,
		"amount":      req.Amount,
		"new_balance": newBalance,
	}).Info("Wallet purchase completed")

	return &models.WalletPayResponse{
		Reference:  reference,
		NewBalance: newBalance,
	}, nil
}

// ============================================================================
// FLOW 4: REFUND (PRIVILEGED)
// ============================================================================

// Refund credits a completed booking's fare back to the passenger's wallet.
// The caller's identity is verified on every call; the booking's passenger
// email must match the request to block cross-account refunds. Seats are left
// untouched for the manifest.
func (s *SettlementService) Refund(caller Caller, req *models.RefundRequest) (*models.RefundResponse, error) {
	if !caller.HasRole(AdminRole) {
		return nil, ErrForbidden
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(req.BookingID)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(booking.PassengerEmail, req.PassengerEmail) {
		return nil, models.ErrEmailMismatch
	}

	switch booking.PaymentStatus {
	case models.PaymentStatusRefunded:
		return nil, models.ErrAlreadyRefunded
	case models.PaymentStatusCompleted:
		// refundable
	default:
		return nil, models.ErrNotRefundable
	}

	if req.Amount > booking.Amount {
		return nil, models.NewValidationError("refund amount %d exceeds booking amount %d", req.Amount, booking.Amount)
	}

	// Ledger backstop against a refund that credited but failed to advance
	// the booking status on a previous attempt
	alreadyRefunded, err := s.wallets.HasRefundForBooking(booking.Reference)
	if err != nil {
		return nil, err
	}
	if alreadyRefunded {
		return nil, models.ErrAlreadyRefunded
	}

	targetUserID, err := s.resolveRefundTarget(booking)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetOrCreateByUser(targetUserID)
	if err != nil {
		return nil, err
	}

	newBalance, err := s.wallets.Credit(wallet.ID, req.Amount)
	if err != nil {
		return nil, err
	}

	narration := req.Reason
	if narration == "" {
		narration = "booking refund"
	}
	if err := s.wallets.RecordTransaction(&models.WalletTransaction{
		WalletID:         wallet.ID,
		Amount:           req.Amount,
		Type:             models.TransactionTypeRefund,
		BookingReference: &booking.Reference,
		Narration:        &narration,
	}); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reference": booking.Reference,
			"wallet_id": wallet.ID,
		}).Error("Failed to record wallet refund transaction")
	}

	// The credit is irreversible; a failure here leaves the booking completed
	// and is surfaced through logs and the ledger backstop above
	if err := s.bookings.UpdateStatusByReference(booking.Reference, models.PaymentStatusRefunded); err != nil {
		s.logger.WithError(err).WithField("reference", booking.Reference).
			Error("Failed to mark booking refunded after wallet credit")
	}

	s.logger.WithFields(logrus.Fields{
		"reference":   booking.Reference,
		"admin_id":    caller.UserID,
		"amount":      req.Amount,
		"new_balance": newBalance,
	}).Info("Booking refunded to wallet")

	return &models.RefundResponse{
		BookingReference: booking.Reference,
		NewWalletBalance: newBalance,
	}, nil
}

// ============================================================================
// READS
// ============================================================================

// SeatAvailability returns the classified seat map for a trip. Advisory: the
// allocator's insert result is the only authoritative answer.
func (s *SettlementService) SeatAvailability(key models.TripKey) ([]models.SeatInfo, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	reserved, err := s.seats.ReservedSeats(key)
	if err != nil {
		return nil, err
	}

	return models.BuildSeatMap(s.fleet.TotalSeats(), nil, reserved)
}

// WalletSummary returns the owner-facing balance and recent ledger entries.
// A user with no wallet yet simply has a zero balance; reads never create.
func (s *SettlementService) WalletSummary(userID string) (*models.WalletSummary, error) {
	wallet, err := s.wallets.GetByUser(userID)
	if errors.Is(err, models.ErrWalletNotFound) {
		return &models.WalletSummary{Balance: 0, Transactions: []models.WalletTransaction{}}, nil
	}
	if err != nil {
		return nil, err
	}

	transactions, err := s.wallets.TransactionsByWallet(wallet.ID, 20)
	if err != nil {
		return nil, err
	}

	return &models.WalletSummary{
		Balance:      wallet.Balance,
		Transactions: transactions,
	}, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// validatePurchase applies the schema checks and resolves the route. Nothing
// is persisted before this returns.
func (s *SettlementService) validatePurchase(req *models.PurchaseRequest) (*models.Route, error) {
	if err := req.Validate(s.fleet.TotalSeats(), s.fleet.MaxSeatsPerBooking); err != nil {
		return nil, err
	}

	route, err := s.routes.GetByID(req.RouteID)
	if err != nil {
		return nil, err
	}
	if !route.Active {
		return nil, models.ErrRouteNotFound
	}

	expected := route.Fare * int64(len(req.Seats))
	if req.Amount != expected {
		return nil, models.NewValidationError("amount %d does not match route fare for %d seat(s): expected %d",
			req.Amount, len(req.Seats), expected)
	}

	return route, nil
}

// resolveRefundTarget finds the wallet owner for a refund. Wallet-paid
// bookings carry their user; card bookings are matched by passenger email,
// because a wallet credit can reference a purchase that never touched the
// wallet path.
func (s *SettlementService) resolveRefundTarget(booking *models.Booking) (string, error) {
	if booking.UserID != nil && *booking.UserID != "" {
		// Confirm the account still exists before GetOrCreateByUser can mint
		// a wallet for a stale user id
		user, err := s.users.GetByID(*booking.UserID)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	}

	user, err := s.users.GetByEmail(booking.PassengerEmail)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// compensateSeats releases a booking's seats after a later step failed.
// Best-effort: a failure to compensate is logged and never masks the error
// that triggered it.
func (s *SettlementService) compensateSeats(bookingID, reference string) {
	if err := s.seats.Release(bookingID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": bookingID,
			"reference":  reference,
		}).Error("Failed to release seats during rollback")
	}
}

// compensateBooking undoes a purchase attempt that failed before money moved:
// seats released, booking row deleted
func (s *SettlementService) compensateBooking(booking *models.Booking) {
	s.compensateSeats(booking.ID, booking.Reference)
	if err := s.bookings.Delete(booking.ID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"reference":  booking.Reference,
		}).Error("Failed to delete booking during rollback")
	}
}

// bookingStatusFor maps a gateway-reported status onto the booking state
// machine
func bookingStatusFor(status GatewayStatus) models.PaymentStatus {
	switch status {
	case GatewayStatusSuccess:
		return models.PaymentStatusCompleted
	case GatewayStatusFailed:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}

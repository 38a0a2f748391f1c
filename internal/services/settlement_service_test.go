package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadpass/booking-backend/internal/config"
	"github.com/roadpass/booking-backend/internal/models"
)

// ============================================================================
// IN-MEMORY FAKES
// ============================================================================

type fakeSeatStore struct {
	held       map[string][]int // trip key string -> reserved seat numbers
	byBooking  map[string][]int
	reserveErr error
	released   []string
}

func newFakeSeatStore() *fakeSeatStore {
	return &fakeSeatStore{
		held:      make(map[string][]int),
		byBooking: make(map[string][]int),
	}
}

func (f *fakeSeatStore) Reserve(key models.TripKey, bookingID string, seats []int) error {
	if f.reserveErr != nil {
		return f.reserveErr
	}

	taken := []int{}
	for _, requested := range seats {
		for _, existing := range f.held[key.String()] {
			if requested == existing {
				taken = append(taken, requested)
			}
		}
	}
	if len(taken) > 0 {
		return &models.SeatConflictError{Trip: key, TakenSeats: taken}
	}

	f.held[key.String()] = append(f.held[key.String()], seats...)
	f.byBooking[bookingID] = append([]int{}, seats...)
	return nil
}

func (f *fakeSeatStore) Release(bookingID string) error {
	seats := f.byBooking[bookingID]
	delete(f.byBooking, bookingID)
	f.released = append(f.released, bookingID)

	for trip, held := range f.held {
		kept := []int{}
		for _, seat := range held {
			releasing := false
			for _, s := range seats {
				if s == seat {
					releasing = true
				}
			}
			if !releasing {
				kept = append(kept, seat)
			}
		}
		f.held[trip] = kept
	}
	return nil
}

func (f *fakeSeatStore) ReservedSeats(key models.TripKey) ([]int, error) {
	return f.held[key.String()], nil
}

type fakeBookingStore struct {
	byID      map[string]*models.Booking
	createErr error
	updateErr error
	deleted   []string
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{byID: make(map[string]*models.Booking)}
}

func (f *fakeBookingStore) Create(booking *models.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *booking
	f.byID[booking.ID] = &copied
	return nil
}

func (f *fakeBookingStore) GetByID(bookingID string) (*models.Booking, error) {
	booking, ok := f.byID[bookingID]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	copied := *booking
	return &copied, nil
}

func (f *fakeBookingStore) GetByReference(reference string) (*models.Booking, error) {
	for _, booking := range f.byID {
		if booking.Reference == reference {
			copied := *booking
			return &copied, nil
		}
	}
	return nil, models.ErrBookingNotFound
}

func (f *fakeBookingStore) UpdateStatusByReference(reference string, status models.PaymentStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, booking := range f.byID {
		if booking.Reference == reference {
			booking.PaymentStatus = status
			return nil
		}
	}
	return models.ErrBookingNotFound
}

func (f *fakeBookingStore) Delete(bookingID string) error {
	if _, ok := f.byID[bookingID]; !ok {
		return models.ErrBookingNotFound
	}
	delete(f.byID, bookingID)
	f.deleted = append(f.deleted, bookingID)
	return nil
}

func (f *fakeBookingStore) MarkAbandonedBefore(cutoff time.Time) (int64, error) {
	var marked int64
	for _, booking := range f.byID {
		if booking.PaymentStatus == models.PaymentStatusPending && booking.UpdatedAt.Before(cutoff) {
			booking.PaymentStatus = models.PaymentStatusFailed
			marked++
		}
	}
	return marked, nil
}

type fakeWalletStore struct {
	wallets      map[string]*models.Wallet // user id -> wallet
	transactions []models.WalletTransaction
	debitErr     error
	nextWalletID int
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: make(map[string]*models.Wallet)}
}

func (f *fakeWalletStore) fund(userID string, balance int64) *models.Wallet {
	f.nextWalletID++
	wallet := &models.Wallet{
		ID:      fmt.Sprintf("wallet-%d", f.nextWalletID),
		UserID:  userID,
		Balance: balance,
	}
	f.wallets[userID] = wallet
	return wallet
}

func (f *fakeWalletStore) byWalletID(walletID string) *models.Wallet {
	for _, wallet := range f.wallets {
		if wallet.ID == walletID {
			return wallet
		}
	}
	return nil
}

func (f *fakeWalletStore) GetByUser(userID string) (*models.Wallet, error) {
	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, models.ErrWalletNotFound
	}
	return wallet, nil
}

func (f *fakeWalletStore) GetOrCreateByUser(userID string) (*models.Wallet, error) {
	if wallet, ok := f.wallets[userID]; ok {
		return wallet, nil
	}
	return f.fund(userID, 0), nil
}

func (f *fakeWalletStore) Debit(walletID string, amount int64) (int64, error) {
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	wallet := f.byWalletID(walletID)
	if wallet == nil {
		return 0, models.ErrWalletNotFound
	}
	if wallet.Balance < amount {
		return 0, &models.InsufficientFundsError{Balance: wallet.Balance, Amount: amount}
	}
	wallet.Balance -= amount
	return wallet.Balance, nil
}

func (f *fakeWalletStore) Credit(walletID string, amount int64) (int64, error) {
	wallet := f.byWalletID(walletID)
	if wallet == nil {
		return 0, models.ErrWalletNotFound
	}
	wallet.Balance += amount
	return wallet.Balance, nil
}

func (f *fakeWalletStore) RecordTransaction(tx *models.WalletTransaction) error {
	f.transactions = append(f.transactions, *tx)
	return nil
}

func (f *fakeWalletStore) TransactionsByWallet(walletID string, limit int) ([]models.WalletTransaction, error) {
	result := []models.WalletTransaction{}
	for _, tx := range f.transactions {
		if tx.WalletID == walletID && len(result) < limit {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (f *fakeWalletStore) HasRefundForBooking(reference string) (bool, error) {
	for _, tx := range f.transactions {
		if tx.Type == models.TransactionTypeRefund && tx.BookingReference != nil && *tx.BookingReference == reference {
			return true, nil
		}
	}
	return false, nil
}

type fakeRouteStore struct {
	routes map[string]*models.Route
}

func (f *fakeRouteStore) GetByID(routeID string) (*models.Route, error) {
	route, ok := f.routes[routeID]
	if !ok {
		return nil, models.ErrRouteNotFound
	}
	return route, nil
}

type fakeUserStore struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func (f *fakeUserStore) add(user *models.User) {
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user
}

func (f *fakeUserStore) GetByID(userID string) (*models.User, error) {
	user, ok := f.byID[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetByEmail(email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

type fakeGateway struct {
	initResp   *InitializeTransactionResponse
	initErr    error
	initCalls  int
	verifyResp *VerifyTransactionResponse
	verifyErr  error
}

func (f *fakeGateway) InitializeTransaction(params *InitializeTransactionParams) (*InitializeTransactionResponse, error) {
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	if f.initResp != nil {
		return f.initResp, nil
	}
	return &InitializeTransactionResponse{
		AuthorizationURL: "https://checkout.paystack.com/test",
		AccessCode:       "test",
		Reference:        params.Reference,
	}, nil
}

func (f *fakeGateway) VerifyTransaction(reference string) (*VerifyTransactionResponse, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyResp != nil {
		return f.verifyResp, nil
	}
	return &VerifyTransactionResponse{Status: GatewayStatusPending}, nil
}

// ============================================================================
// HARNESS
// ============================================================================

type settlementFixture struct {
	service  *SettlementService
	seats    *fakeSeatStore
	bookings *fakeBookingStore
	wallets  *fakeWalletStore
	routes   *fakeRouteStore
	users    *fakeUserStore
	gateway  *fakeGateway
}

const testRouteID = "route-lagos-abuja"

func newSettlementFixture() *settlementFixture {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	seats := newFakeSeatStore()
	bookings := newFakeBookingStore()
	wallets := newFakeWalletStore()
	routes := &fakeRouteStore{routes: map[string]*models.Route{
		testRouteID: {ID: testRouteID, Origin: "Lagos", Destination: "Abuja", Fare: 15000, Active: true},
	}}
	users := &fakeUserStore{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]*models.User),
	}
	gateway := &fakeGateway{}

	fleet := config.FleetConfig{Vehicles: 1, SeatsPerVehicle: 36, MaxSeatsPerBooking: 6}

	return &settlementFixture{
		service:  NewSettlementService(seats, bookings, wallets, routes, users, gateway, fleet, logger),
		seats:    seats,
		bookings: bookings,
		wallets:  wallets,
		routes:   routes,
		users:    users,
		gateway:  gateway,
	}
}

func testPurchaseRequest(seats []int) *models.PurchaseRequest {
	return &models.PurchaseRequest{
		RouteID:        testRouteID,
		TravelDate:     "2026-09-15",
		DepartureTime:  "7:00 AM",
		Seats:          seats,
		Amount:         15000 * int64(len(seats)),
		PassengerName:  "Ada Obi",
		PassengerEmail: "ada@example.com",
		PassengerPhone: "08012345678",
		NextOfKinName:  "Ngozi Obi",
		NextOfKinPhone: "08087654321",
	}
}

// ============================================================================
// CARD-PAY INITIALIZE
// ============================================================================

func TestInitializePurchase(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		fx := newSettlementFixture()

		resp, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4, 5}))
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AuthorizationURL)
		assert.True(t, models.IsValidReference(resp.Reference))

		booking, err := fx.bookings.GetByReference(resp.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
		assert.Equal(t, models.PaymentChannelCard, booking.PaymentChannel)
		assert.Equal(t, 2, booking.SeatCount)
		assert.Nil(t, booking.UserID, "card checkout needs no account")

		reserved, _ := fx.seats.ReservedSeats(testPurchaseRequest(nil).TripKey())
		assert.ElementsMatch(t, []int{4, 5}, reserved)
	})

	t.Run("Seat Conflict Leaves Nothing Behind", func(t *testing.T) {
		fx := newSettlementFixture()

		_, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4, 5}))
		require.NoError(t, err)

		_, err = fx.service.InitializePurchase(testPurchaseRequest([]int{5, 6}))
		var conflict *models.SeatConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []int{5}, conflict.TakenSeats)

		assert.Len(t, fx.bookings.byID, 1, "losing attempt must not persist a booking")
		assert.Equal(t, 1, fx.gateway.initCalls, "losing attempt must not reach the gateway")
	})

	t.Run("Gateway Failure Rolls Back Seats And Booking", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.gateway.initErr = &models.GatewayError{Op: "initialize", Err: errors.New("connection refused")}

		_, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4, 5}))
		var gatewayErr *models.GatewayError
		require.ErrorAs(t, err, &gatewayErr)

		assert.Empty(t, fx.bookings.byID, "booking must be deleted on rollback")
		reserved, _ := fx.seats.ReservedSeats(testPurchaseRequest(nil).TripKey())
		assert.Empty(t, reserved, "seats must be released on rollback")

		// The failed attempt left nothing behind, so a retry succeeds
		fx.gateway.initErr = nil
		resp, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4, 5}))
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Reference)
	})

	t.Run("Booking Create Failure Releases Seats", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.bookings.createErr = errors.New("database error")

		_, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4}))
		require.Error(t, err)

		reserved, _ := fx.seats.ReservedSeats(testPurchaseRequest(nil).TripKey())
		assert.Empty(t, reserved)
		assert.Zero(t, fx.gateway.initCalls)
	})

	t.Run("Amount Must Match Route Fare", func(t *testing.T) {
		fx := newSettlementFixture()

		req := testPurchaseRequest([]int{4, 5})
		req.Amount = 15000 // two seats cost 30000

		_, err := fx.service.InitializePurchase(req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match route fare")
		assert.Empty(t, fx.bookings.byID)
	})

	t.Run("Inactive Route Rejected", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.routes.routes[testRouteID].Active = false

		_, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4}))
		assert.ErrorIs(t, err, models.ErrRouteNotFound)
	})

	t.Run("Unknown Route Rejected", func(t *testing.T) {
		fx := newSettlementFixture()

		req := testPurchaseRequest([]int{4})
		req.RouteID = "route-nowhere"

		_, err := fx.service.InitializePurchase(req)
		assert.ErrorIs(t, err, models.ErrRouteNotFound)
	})
}

// ============================================================================
// CARD-PAY VERIFY
// ============================================================================

func TestVerifyPurchase(t *testing.T) {
	initialize := func(t *testing.T, fx *settlementFixture) string {
		t.Helper()
		resp, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4, 5}))
		require.NoError(t, err)
		return resp.Reference
	}

	t.Run("Success Completes Booking", func(t *testing.T) {
		fx := newSettlementFixture()
		reference := initialize(t, fx)
		fx.gateway.verifyResp = &VerifyTransactionResponse{Status: GatewayStatusSuccess, Amount: 30000}

		resp, err := fx.service.VerifyPurchase(reference)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, resp.Status)
		assert.Equal(t, "Ada Obi", resp.Booking.PassengerName)
	})

	t.Run("Repeated Verification Is Idempotent", func(t *testing.T) {
		fx := newSettlementFixture()
		reference := initialize(t, fx)
		fx.gateway.verifyResp = &VerifyTransactionResponse{Status: GatewayStatusSuccess}

		first, err := fx.service.VerifyPurchase(reference)
		require.NoError(t, err)

		second, err := fx.service.VerifyPurchase(reference)
		require.NoError(t, err)
		assert.Equal(t, first.Status, second.Status)
	})

	t.Run("Failure Marks Failed But Keeps Seats", func(t *testing.T) {
		fx := newSettlementFixture()
		reference := initialize(t, fx)
		fx.gateway.verifyResp = &VerifyTransactionResponse{Status: GatewayStatusFailed}

		resp, err := fx.service.VerifyPurchase(reference)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusFailed, resp.Status)

		reserved, _ := fx.seats.ReservedSeats(testPurchaseRequest(nil).TripKey())
		assert.ElementsMatch(t, []int{4, 5}, reserved, "failed settlement never releases seats")
	})

	t.Run("Gateway Error Leaves Status Untouched", func(t *testing.T) {
		fx := newSettlementFixture()
		reference := initialize(t, fx)
		fx.gateway.verifyErr = &models.GatewayError{Op: "verify", Err: errors.New("timeout")}

		_, err := fx.service.VerifyPurchase(reference)
		require.Error(t, err)

		booking, getErr := fx.bookings.GetByReference(reference)
		require.NoError(t, getErr)
		assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	})

	t.Run("Completed Booking Ignores Late Failure Report", func(t *testing.T) {
		fx := newSettlementFixture()
		reference := initialize(t, fx)

		fx.gateway.verifyResp = &VerifyTransactionResponse{Status: GatewayStatusSuccess}
		_, err := fx.service.VerifyPurchase(reference)
		require.NoError(t, err)

		fx.gateway.verifyResp = &VerifyTransactionResponse{Status: GatewayStatusFailed}
		resp, err := fx.service.VerifyPurchase(reference)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, resp.Status, "completed never regresses to failed")
	})

	t.Run("Malformed Reference Rejected Before Gateway", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.gateway.verifyErr = errors.New("gateway must not be called")

		for _, ref := range []string{"", "bogus", "RPB-abc", "RPB-ABCDE23456789"} {
			_, err := fx.service.VerifyPurchase(ref)
			assert.ErrorIs(t, err, models.ErrInvalidReference, "reference %q", ref)
		}
	})

	t.Run("Unknown Reference", func(t *testing.T) {
		fx := newSettlementFixture()

		_, err := fx.service.VerifyPurchase("RPB-ZZZZZZZZZZ")
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})
}

// ============================================================================
// WALLET-PAY
// ============================================================================

func TestWalletPay(t *testing.T) {
	const userID = "user-1"

	t.Run("Exact Balance Settles To Zero", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.wallets.fund(userID, 15000)

		resp, err := fx.service.WalletPay(userID, testPurchaseRequest([]int{7}))
		require.NoError(t, err)
		assert.Zero(t, resp.NewBalance)
		assert.True(t, models.IsValidReference(resp.Reference))

		booking, err := fx.bookings.GetByReference(resp.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, booking.PaymentStatus)
		assert.Equal(t, models.PaymentChannelWallet, booking.PaymentChannel)
		require.NotNil(t, booking.UserID)
		assert.Equal(t, userID, *booking.UserID)

		require.Len(t, fx.wallets.transactions, 1)
		tx := fx.wallets.transactions[0]
		assert.Equal(t, models.TransactionTypeDebit, tx.Type)
		assert.Equal(t, int64(-15000), tx.Amount, "ledger debits are negative")
		require.NotNil(t, tx.BookingReference)
		assert.Equal(t, resp.Reference, *tx.BookingReference)
	})

	t.Run("Insufficient Funds Holds Nothing", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.wallets.fund(userID, 10000)

		_, err := fx.service.WalletPay(userID, testPurchaseRequest([]int{7}))

		var insufficient *models.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(10000), insufficient.Balance)
		assert.Equal(t, int64(15000), insufficient.Amount)

		assert.Empty(t, fx.bookings.byID, "no booking on insufficient funds")
		reserved, _ := fx.seats.ReservedSeats(testPurchaseRequest(nil).TripKey())
		assert.Empty(t, reserved, "no seats held on insufficient funds")
		assert.Empty(t, fx.wallets.transactions)
	})

	t.Run("First Use Creates Empty Wallet", func(t *testing.T) {
		fx := newSettlementFixture()

		_, err := fx.service.WalletPay(userID, testPurchaseRequest([]int{7}))

		var insufficient *models.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)
		assert.Zero(t, insufficient.Balance)

		wallet, err := fx.wallets.GetByUser(userID)
		require.NoError(t, err)
		assert.Zero(t, wallet.Balance)
	})

	t.Run("Debit Race Rolls Back Seats And Booking", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.wallets.fund(userID, 15000)
		// Advisory check passes, then the authoritative decrement loses a race
		fx.wallets.debitErr = &models.InsufficientFundsError{Balance: 5000, Amount: 15000}

		_, err := fx.service.WalletPay(userID, testPurchaseRequest([]int{7}))

		var insufficient *models.InsufficientFundsError
		require.ErrorAs(t, err, &insufficient)

		assert.Empty(t, fx.bookings.byID)
		reserved, _ := fx.seats.ReservedSeats(testPurchaseRequest(nil).TripKey())
		assert.Empty(t, reserved)
	})

	t.Run("Seat Conflict Before Any Debit", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.wallets.fund(userID, 50000)

		_, err := fx.service.WalletPay(userID, testPurchaseRequest([]int{7}))
		require.NoError(t, err)

		_, err = fx.service.WalletPay(userID, testPurchaseRequest([]int{7}))
		var conflict *models.SeatConflictError
		require.ErrorAs(t, err, &conflict)

		wallet, _ := fx.wallets.GetByUser(userID)
		assert.Equal(t, int64(35000), wallet.Balance, "only the winning attempt debits")
	})
}

// ============================================================================
// REFUND
// ============================================================================

func TestRefund(t *testing.T) {
	const userID = "user-1"
	admin := Caller{UserID: "admin-1", Roles: []string{AdminRole}}

	completedWalletBooking := func(t *testing.T, fx *settlementFixture) *models.Booking {
		t.Helper()
		fx.users.add(&models.User{ID: userID, Email: "ada@example.com"})
		fx.wallets.fund(userID, 15000)
		resp, err := fx.service.WalletPay(userID, testPurchaseRequest([]int{7}))
		require.NoError(t, err)
		booking, err := fx.bookings.GetByReference(resp.Reference)
		require.NoError(t, err)
		return booking
	}

	t.Run("Success Credits Wallet And Marks Refunded", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		resp, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ada@example.com",
			Amount:         15000,
			Reason:         "trip cancelled",
		})
		require.NoError(t, err)
		assert.Equal(t, booking.Reference, resp.BookingReference)
		assert.Equal(t, int64(15000), resp.NewWalletBalance)

		updated, err := fx.bookings.GetByID(booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusRefunded, updated.PaymentStatus)

		// debit from the purchase plus the refund credit
		require.Len(t, fx.wallets.transactions, 2)
		refundTx := fx.wallets.transactions[1]
		assert.Equal(t, models.TransactionTypeRefund, refundTx.Type)
		assert.Equal(t, int64(15000), refundTx.Amount)
		require.NotNil(t, refundTx.Narration)
		assert.Equal(t, "trip cancelled", *refundTx.Narration)

		reserved, _ := fx.seats.ReservedSeats(testPurchaseRequest(nil).TripKey())
		assert.ElementsMatch(t, []int{7}, reserved, "refund leaves the manifest untouched")
	})

	t.Run("Non Admin Forbidden", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		passenger := Caller{UserID: userID, Roles: []string{"passenger"}}
		_, err := fx.service.Refund(passenger, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ada@example.com",
			Amount:         15000,
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("Email Mismatch", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		_, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "intruder@example.com",
			Amount:         15000,
		})
		assert.ErrorIs(t, err, models.ErrEmailMismatch)
	})

	t.Run("Email Match Is Case Insensitive", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		_, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ADA@Example.COM",
			Amount:         15000,
		})
		assert.NoError(t, err)
	})

	t.Run("Double Refund Rejected", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		req := &models.RefundRequest{BookingID: booking.ID, PassengerEmail: "ada@example.com", Amount: 15000}
		_, err := fx.service.Refund(admin, req)
		require.NoError(t, err)

		_, err = fx.service.Refund(admin, req)
		assert.ErrorIs(t, err, models.ErrAlreadyRefunded)

		wallet, _ := fx.wallets.GetByUser(userID)
		assert.Equal(t, int64(15000), wallet.Balance, "second attempt must not credit again")
	})

	t.Run("Ledger Backstop Blocks Refund After Status Update Failure", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		// First refund credits the wallet but fails to advance the status
		fx.bookings.updateErr = errors.New("database error")
		req := &models.RefundRequest{BookingID: booking.ID, PassengerEmail: "ada@example.com", Amount: 15000}
		_, err := fx.service.Refund(admin, req)
		require.NoError(t, err, "credit succeeded; status failure is absorbed")

		stuck, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, models.PaymentStatusCompleted, stuck.PaymentStatus)

		// Retry sees the refund ledger entry and refuses a second credit
		fx.bookings.updateErr = nil
		_, err = fx.service.Refund(admin, req)
		assert.ErrorIs(t, err, models.ErrAlreadyRefunded)

		wallet, _ := fx.wallets.GetByUser(userID)
		assert.Equal(t, int64(15000), wallet.Balance)
	})

	t.Run("Pending Booking Not Refundable", func(t *testing.T) {
		fx := newSettlementFixture()
		resp, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4}))
		require.NoError(t, err)
		booking, err := fx.bookings.GetByReference(resp.Reference)
		require.NoError(t, err)

		_, err = fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ada@example.com",
			Amount:         15000,
		})
		assert.ErrorIs(t, err, models.ErrNotRefundable)
	})

	t.Run("Amount Above Booking Rejected", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		_, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ada@example.com",
			Amount:         20000,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds booking amount")
	})

	t.Run("Partial Refund Allowed", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)

		resp, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ada@example.com",
			Amount:         5000,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5000), resp.NewWalletBalance)
	})

	t.Run("Card Booking Refunds By Passenger Email", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.users.byEmail["ada@example.com"] = &models.User{ID: userID, Email: "ada@example.com"}

		initResp, err := fx.service.InitializePurchase(testPurchaseRequest([]int{4, 5}))
		require.NoError(t, err)
		fx.gateway.verifyResp = &VerifyTransactionResponse{Status: GatewayStatusSuccess}
		_, err = fx.service.VerifyPurchase(initResp.Reference)
		require.NoError(t, err)

		booking, err := fx.bookings.GetByReference(initResp.Reference)
		require.NoError(t, err)

		resp, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ada@example.com",
			Amount:         30000,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(30000), resp.NewWalletBalance)

		wallet, err := fx.wallets.GetByUser(userID)
		require.NoError(t, err)
		assert.Equal(t, int64(30000), wallet.Balance, "refund lands in the matched user's wallet")
	})

	t.Run("Unknown Booking", func(t *testing.T) {
		fx := newSettlementFixture()

		_, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      "missing",
			PassengerEmail: "ada@example.com",
			Amount:         100,
		})
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})

	t.Run("Deleted Account Gets No Wallet", func(t *testing.T) {
		fx := newSettlementFixture()
		booking := completedWalletBooking(t, fx)
		delete(fx.users.byID, userID)

		_, err := fx.service.Refund(admin, &models.RefundRequest{
			BookingID:      booking.ID,
			PassengerEmail: "ada@example.com",
			Amount:         15000,
		})
		assert.ErrorIs(t, err, models.ErrUserNotFound)

		wallet, err := fx.wallets.GetByUser(userID)
		require.NoError(t, err)
		assert.Zero(t, wallet.Balance, "no credit for an account that no longer exists")

		updated, _ := fx.bookings.GetByID(booking.ID)
		assert.Equal(t, models.PaymentStatusCompleted, updated.PaymentStatus)
	})
}

// ============================================================================
// READS
// ============================================================================

func TestSeatAvailability(t *testing.T) {
	fx := newSettlementFixture()
	fx.wallets.fund("user-1", 30000)

	_, err := fx.service.WalletPay("user-1", testPurchaseRequest([]int{3, 9}))
	require.NoError(t, err)

	seatMap, err := fx.service.SeatAvailability(testPurchaseRequest(nil).TripKey())
	require.NoError(t, err)
	require.Len(t, seatMap, 36)

	assert.Equal(t, models.SeatStatusTaken, seatMap[2].Status)
	assert.Equal(t, models.SeatStatusTaken, seatMap[8].Status)
	assert.Equal(t, models.SeatStatusAvailable, seatMap[0].Status)

	t.Run("Invalid Trip Key", func(t *testing.T) {
		_, err := fx.service.SeatAvailability(models.TripKey{RouteID: testRouteID, TravelDate: "bad", DepartureTime: "7:00 AM"})
		assert.Error(t, err)
	})
}

func TestWalletSummary(t *testing.T) {
	t.Run("No Wallet Yet Reads As Zero", func(t *testing.T) {
		fx := newSettlementFixture()

		summary, err := fx.service.WalletSummary("user-1")
		require.NoError(t, err)
		assert.Zero(t, summary.Balance)
		assert.Empty(t, summary.Transactions)

		// Reads never create
		_, err = fx.wallets.GetByUser("user-1")
		assert.ErrorIs(t, err, models.ErrWalletNotFound)
	})

	t.Run("Balance And Ledger", func(t *testing.T) {
		fx := newSettlementFixture()
		fx.wallets.fund("user-1", 45000)

		_, err := fx.service.WalletPay("user-1", testPurchaseRequest([]int{3}))
		require.NoError(t, err)

		summary, err := fx.service.WalletSummary("user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(30000), summary.Balance)
		require.Len(t, summary.Transactions, 1)
		assert.Equal(t, models.TransactionTypeDebit, summary.Transactions[0].Type)
	})
}

package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/roadpass/booking-backend/internal/models"
)

// WalletRepository owns the wallets and wallet_transactions tables. Balance
// changes are single atomic statements; the conditional decrement in Debit is
// what keeps a balance from going negative under concurrent wallet-pay
// attempts.
type WalletRepository struct {
	db DB
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(db DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByUser retrieves a user's wallet
func (r *WalletRepository) GetByUser(userID string) (*models.Wallet, error) {
	query := `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	wallet := &models.Wallet{}
	err := r.db.QueryRow(query, userID).Scan(
		&wallet.ID, &wallet.UserID, &wallet.Balance,
		&wallet.CreatedAt, &wallet.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return wallet, nil
}

// GetOrCreateByUser returns the user's wallet, creating an empty one if none
// exists yet. The upsert keeps concurrent first-use calls from racing: the
// unique index on user_id guarantees a single wallet per user.
func (r *WalletRepository) GetOrCreateByUser(userID string) (*models.Wallet, error) {
	insert := `
		INSERT INTO wallets (id, user_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.db.Exec(insert, uuid.New().String(), userID); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return r.GetByUser(userID)
}

// Debit decreases the balance by amount only if the current balance covers it,
// as a single conditional update. Zero affected rows with an existing wallet
// means insufficient funds; the error carries the current balance.
func (r *WalletRepository) Debit(walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive")
	}

	query := `
		UPDATE wallets
		SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`

	var newBalance int64
	err := r.db.QueryRow(query, walletID, amount).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		var balance int64
		getErr := r.db.QueryRow(`SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&balance)
		if errors.Is(getErr, sql.ErrNoRows) {
			return 0, models.ErrWalletNotFound
		}
		if getErr != nil {
			return 0, fmt.Errorf("failed to read wallet balance: %w", getErr)
		}
		return 0, &models.InsufficientFundsError{Balance: balance, Amount: amount}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit wallet: %w", err)
	}

	return newBalance, nil
}

// Credit increases the balance by amount as a single atomic increment
func (r *WalletRepository) Credit(walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive")
	}

	query := `
		UPDATE wallets
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance
	`

	var newBalance int64
	err := r.db.QueryRow(query, walletID, amount).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrWalletNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}

	return newBalance, nil
}

// RecordTransaction appends a ledger entry. Entries are immutable once
// written; they are never updated or deleted.
func (r *WalletRepository) RecordTransaction(tx *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (
			id, wallet_id, amount, type, booking_reference, narration
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	err := r.db.QueryRow(
		query,
		tx.ID, tx.WalletID, tx.Amount, tx.Type, tx.BookingReference, tx.Narration,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}

	return nil
}

// TransactionsByWallet returns the most recent ledger entries for a wallet
func (r *WalletRepository) TransactionsByWallet(walletID string, limit int) ([]models.WalletTransaction, error) {
	query := `
		SELECT id, wallet_id, amount, type, booking_reference, narration, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.WalletTransaction{}
	for rows.Next() {
		var tx models.WalletTransaction
		var bookingReference sql.NullString
		var narration sql.NullString

		err := rows.Scan(
			&tx.ID, &tx.WalletID, &tx.Amount, &tx.Type,
			&bookingReference, &narration, &tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if bookingReference.Valid {
			tx.BookingReference = &bookingReference.String
		}
		if narration.Valid {
			tx.Narration = &narration.String
		}

		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// HasRefundForBooking reports whether a refund entry already exists for a
// booking reference. Backstop for the status-machine double-refund guard.
func (r *WalletRepository) HasRefundForBooking(reference string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM wallet_transactions WHERE type = 'refund' AND booking_reference = $1`,
		reference,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check refund history: %w", err)
	}
	return count > 0, nil
}

package models

import (
	"time"
)

// Wallet holds a user's pre-funded balance in kobo. One wallet per user,
// created lazily on first wallet-pay attempt or first refund. The balance is
// always the sum of the wallet's transactions and never goes negative.
type Wallet struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"` // kobo
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TransactionType classifies a wallet ledger entry
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeRefund TransactionType = "refund"
)

// WalletTransaction is an append-only ledger entry. Immutable once written;
// the sole source of truth for balance reconstruction.
type WalletTransaction struct {
	ID               string          `json:"id" db:"id"`
	WalletID         string          `json:"wallet_id" db:"wallet_id"`
	Amount           int64           `json:"amount" db:"amount"` // signed kobo
	Type             TransactionType `json:"type" db:"type"`
	BookingReference *string         `json:"booking_reference,omitempty" db:"booking_reference"`
	Narration        *string         `json:"narration,omitempty" db:"narration"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// WalletSummary is the owner-facing view of a wallet
type WalletSummary struct {
	Balance      int64               `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
}

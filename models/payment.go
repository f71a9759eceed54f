package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionPaid    TransactionStatus = "paid"
	TransactionFailed  TransactionStatus = "failed"
)

// Transaction mirrors the transactions collection record. A row moves
// pending -> paid at most once; status is the sole idempotency guard.
type Transaction struct {
	ID                string            `json:"id" db:"id"`
	UserID            string            `json:"user_id" db:"user_id"`
	ProviderPaymentID string            `json:"provider_payment_id" db:"provider_payment_id"`
	Amount            decimal.Decimal   `json:"amount" db:"amount"`
	Status            TransactionStatus `json:"status" db:"status"`
	PaidAt            *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
}

type Wallet struct {
	UserID  string          `json:"user_id" db:"user_id"`
	Balance decimal.Decimal `json:"balance" db:"balance"`
}

// WebhookEvent is the payment provider's delivery payload.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payment struct {
		ID string `json:"id"`
	} `json:"payment"`
}

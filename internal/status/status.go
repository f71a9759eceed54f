package status

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyQueued       = errors.New("queue: client already waiting")
	ErrNotQueued           = errors.New("queue: client not in queue")
	ErrEmptyQueue          = errors.New("queue: no waiting clients")
	ErrConsultantNotFound  = errors.New("presence: consultant not found")
	ErrProviderUnavailable = errors.New("provider: payment provider not configured")
)

// ProviderEvent is a settled-payment notification pushed or pulled
// from the payment provider.
type ProviderEvent struct {
	RefID             string          `json:"ref_id"`
	ProviderPaymentID string          `json:"provider_payment_id"`
	Payer             string          `json:"payer"`
	AccountNumber     string          `json:"account_number"`
	Ccy               string          `json:"ccy"`
	Amount            decimal.Decimal `json:"amount"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ChargeForm carries the fields needed to register a charge with the provider.
type ChargeForm struct {
	ProviderPaymentID string
	Reference         string
	Phone             string
	MerchantID        string
	Amount            decimal.Decimal
}

package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"consult-system/config"
	"consult-system/internal/services"
	"consult-system/internal/services/provider"
	"consult-system/internal/services/provider/paygate"
	"consult-system/internal/status"
	"consult-system/models"
	"consult-system/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	ledgerService *services.LedgerService
	provider      provider.PaymentProvider
	config        *config.Config
}

func NewPaymentHandler(ledgerService *services.LedgerService, prov provider.PaymentProvider, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		ledgerService: ledgerService,
		provider:      prov,
		config:        cfg,
	}
}

// Webhook - Receive a payment provider delivery. Unknown events,
// unknown payments and duplicates are all acknowledged with 200 so the
// provider stops retrying.
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	if hash := h.config.Paygate.WebhookTokenHash; hash != "" {
		token := e.Request.Header.Get("X-Webhook-Token")
		if !paygate.CompareHash([]byte(hash), []byte(token)) {
			return apis.NewUnauthorizedError("Invalid webhook token", nil)
		}
	}

	var event models.WebhookEvent
	if err := e.BindBody(&event); err != nil {
		return apis.NewBadRequestError("Invalid webhook payload", err)
	}
	if event.Event == "" || event.Payment.ID == "" {
		return apis.NewBadRequestError("Event and payment id required", nil)
	}

	credited, err := h.ledgerService.Process(e.Request.Context(), event.Event, event.Payment.ID)
	if err != nil {
		log.Printf("payment: webhook %s/%s: %v", event.Event, event.Payment.ID, err)
		return apis.NewApiError(http.StatusInternalServerError, "Failed to process payment", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"received": true,
		"credited": credited,
	})
}

// CreateCharge - Register a pending transaction and get a payable QR
// from the provider
func (h *PaymentHandler) CreateCharge(e *core.RequestEvent) error {
	var req struct {
		UserID string `json:"user_id"`
		Amount string `json:"amount"`
		Phone  string `json:"phone"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.UserID == "" || req.Amount == "" {
		return apis.NewBadRequestError("User ID and amount required", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return apis.NewBadRequestError("Invalid amount", err)
	}

	if h.provider == nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Payment provider unavailable", status.ErrProviderUnavailable)
	}

	providerPaymentID, err := utils.GenerateCode(8)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to create charge", err)
	}
	reference, err := utils.GenerateOTP(6)
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to create charge", err)
	}

	tx, err := h.ledgerService.CreateCharge(e.Request.Context(), req.UserID, providerPaymentID, amount)
	if err != nil {
		return apis.NewBadRequestError("Failed to create charge", err)
	}

	qr, err := h.provider.CreateCharge(e.Request.Context(), &status.ChargeForm{
		ProviderPaymentID: providerPaymentID,
		Reference:         reference,
		Phone:             req.Phone,
		Amount:            amount,
	})
	if err != nil {
		log.Printf("payment: provider charge %s: %v", providerPaymentID, err)
		return apis.NewApiError(http.StatusBadGateway, "Payment provider rejected the charge", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transaction_id":      tx.ID,
		"provider_payment_id": providerPaymentID,
		"qr_code":             qr,
	})
}

// GetPaymentStatus - Report where a charge stands. A still-pending
// charge is double checked against the provider, covering payments
// whose push event or webhook never arrived.
func (h *PaymentHandler) GetPaymentStatus(e *core.RequestEvent) error {
	paymentID := e.Request.PathValue("paymentId")
	if paymentID == "" {
		return apis.NewBadRequestError("Payment ID required", nil)
	}

	tx, err := h.ledgerService.Find(e.Request.Context(), paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return apis.NewNotFoundError("Payment not found", nil)
	}
	if err != nil {
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load payment", err)
	}

	currentStatus := tx.Status
	if currentStatus == models.TransactionPending && h.provider != nil {
		if ev, err := h.provider.CheckPayment(e.Request.Context(), paymentID); err != nil {
			log.Printf("payment: check %s: %v", paymentID, err)
		} else if ev != nil {
			credited, err := h.ledgerService.Process(e.Request.Context(), "PAYMENT_RECEIVED", paymentID)
			if err != nil {
				return apis.NewApiError(http.StatusInternalServerError, "Failed to settle payment", err)
			}
			if credited {
				currentStatus = models.TransactionPaid
			}
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"provider_payment_id": tx.ProviderPaymentID,
		"status":              currentStatus,
		"amount":              tx.Amount,
	})
}

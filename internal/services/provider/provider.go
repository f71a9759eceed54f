package provider

import (
	"context"
	"fmt"

	"consult-system/config"
	"consult-system/internal/services/provider/paygate"
	"consult-system/internal/status"
)

// ProviderKind identifies a payment provider integration.
type ProviderKind string

const (
	ProviderPaygate ProviderKind = "paygate"
)

// PaymentProvider is the common surface for payment provider integrations.
type PaymentProvider interface {
	// Kind returns the provider type.
	Kind() ProviderKind

	// CreateCharge registers the charge with the provider and returns
	// the payable artifact (an EMV QR payload).
	CreateCharge(ctx context.Context, form *status.ChargeForm) (string, error)

	// CheckPayment asks the provider for the settled payment, used as a
	// fallback when the push event never arrived.
	CheckPayment(ctx context.Context, providerPaymentID string) (*status.ProviderEvent, error)

	// SetEventChannel wires the channel that receives settled-payment
	// push events.
	SetEventChannel(ch chan *status.ProviderEvent)

	// Close releases provider connections.
	Close(ctx context.Context) error
}

// New creates the configured provider. Paygate is the only integration
// today; the factory keeps the call sites stable when more land.
func New(ctx context.Context, kind ProviderKind, cfg *config.PaygateConfig) (PaymentProvider, error) {
	switch kind {
	case ProviderPaygate:
		return newPaygateAdapter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", kind)
	}
}

// paygateAdapter wraps the paygate client to conform to PaymentProvider.
type paygateAdapter struct {
	client *paygate.Paygate
}

func newPaygateAdapter(ctx context.Context, cfg *config.PaygateConfig) (*paygateAdapter, error) {
	client, err := paygate.New(ctx, &paygate.Config{
		BaseURL:    cfg.BaseURL,
		PartnerID:  cfg.PartnerID,
		ClientID:   cfg.ClientID,
		ClientKey:  cfg.ClientKey,
		HMACKey:    cfg.HMACKey,
		MerchantID: cfg.MerchantID,

		PNSubKey:    cfg.PNSubKey,
		PNSubSecret: cfg.PNSubSecret,
		PNUUID:      cfg.PNUUID,
		PNChannel:   cfg.PNChannel,
		PNCipherKey: cfg.PNCipherKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create paygate client: %w", err)
	}

	return &paygateAdapter{client: client}, nil
}

func (a *paygateAdapter) Kind() ProviderKind {
	return ProviderPaygate
}

func (a *paygateAdapter) CreateCharge(ctx context.Context, form *status.ChargeForm) (string, error) {
	return a.client.GenQRCode(ctx, form)
}

func (a *paygateAdapter) CheckPayment(ctx context.Context, providerPaymentID string) (*status.ProviderEvent, error) {
	return a.client.CheckPayment(ctx, providerPaymentID)
}

func (a *paygateAdapter) SetEventChannel(ch chan *status.ProviderEvent) {
	a.client.SetEventChannel(ch)
}

func (a *paygateAdapter) Close(ctx context.Context) error {
	a.client.Unsubscribe(ctx)
	return nil
}

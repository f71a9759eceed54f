package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"consult-system/config"
	"consult-system/internal/services"
	"consult-system/internal/services/provider"
	"consult-system/internal/services/provider/paygate"
	"consult-system/internal/status"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestEvent(method, target, body string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	event := &core.RequestEvent{}
	event.Request = req
	event.Response = rec
	return event, rec
}

func newPaymentFixture(t *testing.T, cfg *config.Config, prov provider.PaymentProvider) (*PaymentHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	builder := dbx.NewFromDB(db, "sqlite")
	ledger := services.NewLedgerService(builder, func(fn func(tx dbx.Builder) error) error {
		return builder.Transactional(func(tx *dbx.Tx) error { return fn(tx) })
	})

	if cfg == nil {
		cfg = &config.Config{}
	}
	return NewPaymentHandler(ledger, prov, cfg), mock
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	handler, mock := newPaymentFixture(t, nil, nil)

	event, _ := newRequestEvent(http.MethodPost, "/api/webhooks/payment", `{"event":`)
	err := handler.Webhook(event)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "bad payloads never reach the ledger")
}

func TestWebhookRequiresEventAndPaymentID(t *testing.T) {
	handler, mock := newPaymentFixture(t, nil, nil)

	event, _ := newRequestEvent(http.MethodPost, "/api/webhooks/payment", `{"event":"PAYMENT_RECEIVED"}`)
	err := handler.Webhook(event)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRejectsBadToken(t *testing.T) {
	hash, err := paygate.GenerateHash([]byte("expected-token"))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Paygate.WebhookTokenHash = hash
	handler, mock := newPaymentFixture(t, cfg, nil)

	event, _ := newRequestEvent(http.MethodPost, "/api/webhooks/payment", `{"event":"PAYMENT_RECEIVED","payment":{"id":"pp-1"}}`)
	event.Request.Header.Set("X-Webhook-Token", "wrong-token")

	err = handler.Webhook(event)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookAcksUnrecognizedEvent(t *testing.T) {
	handler, mock := newPaymentFixture(t, nil, nil)

	event, rec := newRequestEvent(http.MethodPost, "/api/webhooks/payment", `{"event":"PAYMENT_EXPIRED","payment":{"id":"pp-1"}}`)
	require.NoError(t, handler.Webhook(event))

	assert.Equal(t, http.StatusOK, rec.Code, "unknown events are acked so the provider stops retrying")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["received"])
	assert.Equal(t, false, body["credited"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookSettlesPendingPayment(t *testing.T) {
	handler, mock := newPaymentFixture(t, nil, nil)

	mock.ExpectQuery("SELECT id, user_id, amount FROM transactions").
		WithArgs("pp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount"}).AddRow("tx1", "user1", "120.50"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status='paid'").
		WithArgs(sqlmock.AnyArg(), "tx1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE wallets SET balance = balance \+`).
		WithArgs(sqlmock.AnyArg(), "user1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	event, rec := newRequestEvent(http.MethodPost, "/api/webhooks/payment", `{"event":"PAYMENT_RECEIVED","payment":{"id":"pp-1"}}`)
	require.NoError(t, handler.Webhook(event))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["credited"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentStatusUnknownPayment(t *testing.T) {
	handler, mock := newPaymentFixture(t, nil, nil)

	mock.ExpectQuery("SELECT id, user_id, provider_payment_id, amount, status FROM transactions").
		WithArgs("pp-404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider_payment_id", "amount", "status"}))

	event, _ := newRequestEvent(http.MethodGet, "/api/payments/pp-404/status", "")
	event.Request.SetPathValue("paymentId", "pp-404")

	err := handler.GetPaymentStatus(event)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentStatusReportsPaid(t *testing.T) {
	handler, mock := newPaymentFixture(t, nil, nil)

	mock.ExpectQuery("SELECT id, user_id, provider_payment_id, amount, status FROM transactions").
		WithArgs("pp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider_payment_id", "amount", "status"}).
			AddRow("tx1", "user1", "pp-1", "120.50", "paid"))

	event, rec := newRequestEvent(http.MethodGet, "/api/payments/pp-1/status", "")
	event.Request.SetPathValue("paymentId", "pp-1")

	require.NoError(t, handler.GetPaymentStatus(event))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "paid", body["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// settledProvider reports every payment as settled.
type settledProvider struct{}

func (settledProvider) Kind() provider.ProviderKind { return provider.ProviderPaygate }

func (settledProvider) CreateCharge(ctx context.Context, form *status.ChargeForm) (string, error) {
	return "qr-payload", nil
}

func (settledProvider) CheckPayment(ctx context.Context, providerPaymentID string) (*status.ProviderEvent, error) {
	return &status.ProviderEvent{
		ProviderPaymentID: providerPaymentID,
		Amount:            decimal.RequireFromString("120.50"),
	}, nil
}

func (settledProvider) SetEventChannel(ch chan *status.ProviderEvent) {}

func (settledProvider) Close(ctx context.Context) error { return nil }

func TestGetPaymentStatusFallsBackToProvider(t *testing.T) {
	handler, mock := newPaymentFixture(t, nil, settledProvider{})

	// the row is still pending because neither push event nor webhook
	// arrived, so the handler pulls from the provider and settles
	mock.ExpectQuery("SELECT id, user_id, provider_payment_id, amount, status FROM transactions").
		WithArgs("pp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider_payment_id", "amount", "status"}).
			AddRow("tx1", "user1", "pp-1", "120.50", "pending"))
	mock.ExpectQuery("SELECT id, user_id, amount FROM transactions").
		WithArgs("pp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount"}).AddRow("tx1", "user1", "120.50"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status='paid'").
		WithArgs(sqlmock.AnyArg(), "tx1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE wallets SET balance = balance \+`).
		WithArgs(sqlmock.AnyArg(), "user1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	event, rec := newRequestEvent(http.MethodGet, "/api/payments/pp-1/status", "")
	event.Request.SetPathValue("paymentId", "pp-1")

	require.NoError(t, handler.GetPaymentStatus(event))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "paid", body["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

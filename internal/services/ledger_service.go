package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"consult-system/models"
	"consult-system/monitoring"
	"consult-system/utils"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
)

// recognizedEvents maps provider event names to "this settles the
// payment". Anything else is acknowledged and ignored.
var recognizedEvents = map[string]bool{
	"PAYMENT_RECEIVED":  true,
	"PAYMENT_CONFIRMED": true,
}

// RunInTransaction executes fn with every statement bound to a single
// transaction, committing on nil and rolling back on error.
type RunInTransaction func(fn func(tx dbx.Builder) error) error

// LedgerService applies settled payments to the ledger exactly once.
// The single UPDATE guarded by status='pending' is the whole
// idempotency story: of N concurrent deliveries for the same payment,
// exactly one flips the row and credits the wallet. The flip and the
// credit share one transaction, so a failed credit rolls the row back
// to pending and the provider's retry can settle it again.
type LedgerService struct {
	db      dbx.Builder
	runInTx RunInTransaction
}

func NewLedgerService(db dbx.Builder, runInTx RunInTransaction) *LedgerService {
	return &LedgerService{db: db, runInTx: runInTx}
}

func newRecordID() string {
	id, err := utils.GenerateCode(8)
	if err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id
}

func (s *LedgerService) Recognized(event string) bool {
	return recognizedEvents[event]
}

// Process settles the transaction identified by the provider's payment
// id. It returns true when this call won the pending->paid transition
// and credited the wallet; false on duplicates, unknown events and
// unknown payments, all of which are silent no-ops. A store error
// rolls everything back and surfaces, leaving the row pending for the
// provider's retry.
func (s *LedgerService) Process(ctx context.Context, event, providerPaymentID string) (bool, error) {
	if !s.Recognized(event) {
		monitoring.TrackWebhookEvent(event, "ignored")
		return false, nil
	}

	var tx models.Transaction
	err := s.db.NewQuery(
		"SELECT id, user_id, amount FROM transactions WHERE provider_payment_id={:pid} AND status='pending'",
	).Bind(dbx.Params{"pid": providerPaymentID}).WithContext(ctx).One(&tx)
	if errors.Is(err, sql.ErrNoRows) {
		// already settled, or never ours
		monitoring.TrackWebhookEvent(event, "noop")
		return false, nil
	}
	if err != nil {
		monitoring.TrackWebhookEvent(event, "error")
		return false, fmt.Errorf("ledger: lookup %s: %w", providerPaymentID, err)
	}

	credited := false
	err = s.runInTx(func(db dbx.Builder) error {
		res, err := db.NewQuery(
			"UPDATE transactions SET status='paid', paid_at={:now} WHERE id={:id} AND status='pending'",
		).Bind(dbx.Params{
			"now": time.Now().UTC().Format(time.RFC3339),
			"id":  tx.ID,
		}).WithContext(ctx).Execute()
		if err != nil {
			return fmt.Errorf("ledger: settle %s: %w", tx.ID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("ledger: settle %s: %w", tx.ID, err)
		}
		if affected == 0 {
			// lost the race to a concurrent delivery
			return nil
		}

		if err := s.credit(ctx, db, tx.UserID, tx.Amount); err != nil {
			return err
		}

		credited = true
		return nil
	})
	if err != nil {
		monitoring.TrackWebhookEvent(event, "error")
		return false, err
	}

	if !credited {
		monitoring.TrackWebhookEvent(event, "duplicate")
		return false, nil
	}

	monitoring.TrackWebhookEvent(event, "credited")
	log.Printf("ledger: settled %s, credited %s to user %s", tx.ID, tx.Amount, tx.UserID)
	return true, nil
}

// credit adds the amount to the user's wallet. The arithmetic runs in
// SQL so concurrent credits for the same user cannot lose updates.
func (s *LedgerService) credit(ctx context.Context, db dbx.Builder, userID string, amount decimal.Decimal) error {
	res, err := db.NewQuery(
		"UPDATE wallets SET balance = balance + {:amount} WHERE user_id={:uid}",
	).Bind(dbx.Params{"amount": amount, "uid": userID}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("ledger: credit %s: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: credit %s: %w", userID, err)
	}
	if affected > 0 {
		return nil
	}

	_, err = db.NewQuery(
		"INSERT INTO wallets (id, user_id, balance) VALUES ({:id}, {:uid}, {:amount})",
	).Bind(dbx.Params{
		"id":     newRecordID(),
		"uid":    userID,
		"amount": amount,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("ledger: open wallet %s: %w", userID, err)
	}
	return nil
}

// Find returns the transaction registered for a provider payment id.
// Absent payments surface sql.ErrNoRows.
func (s *LedgerService) Find(ctx context.Context, providerPaymentID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.NewQuery(
		"SELECT id, user_id, provider_payment_id, amount, status FROM transactions WHERE provider_payment_id={:pid}",
	).Bind(dbx.Params{"pid": providerPaymentID}).WithContext(ctx).One(&tx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateCharge registers a pending transaction ahead of the provider
// charge request.
func (s *LedgerService) CreateCharge(ctx context.Context, userID, providerPaymentID string, amount decimal.Decimal) (*models.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("ledger: charge amount must be positive, got %s", amount)
	}

	tx := &models.Transaction{
		ID:                newRecordID(),
		UserID:            userID,
		ProviderPaymentID: providerPaymentID,
		Amount:            amount,
		Status:            models.TransactionPending,
	}

	_, err := s.db.NewQuery(
		"INSERT INTO transactions (id, user_id, provider_payment_id, amount, status) VALUES ({:id}, {:uid}, {:pid}, {:amount}, 'pending')",
	).Bind(dbx.Params{
		"id":     tx.ID,
		"uid":    tx.UserID,
		"pid":    tx.ProviderPaymentID,
		"amount": tx.Amount,
	}).WithContext(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("ledger: create charge %s: %w", providerPaymentID, err)
	}

	return tx, nil
}

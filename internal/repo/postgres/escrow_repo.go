package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEscrowNotFound = errors.New("escrow session not found")

// EscrowRepo persists the per-conversation escrow state machine. Every
// transition is a guarded UPDATE on the expected current status; a zero-row
// result means the session was not on the required edge and the service maps
// that to the proper domain failure.
type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

type EscrowRecord struct {
	ConversationID int64
	ListingID      int64
	Status         string
	PriceSnapshot  *int64
	Currency       string
	UpdatedAt      time.Time
}

const escrowColumns = `conversation_id, listing_id, status, price_snapshot, COALESCE(currency, ''), updated_at`

// Ensure creates the inactive session row for a conversation if absent.
func (r *EscrowRepo) Ensure(ctx context.Context, tx pgx.Tx, conversationID, listingID int64, now time.Time) error {
	if conversationID <= 0 || listingID <= 0 {
		return fmt.Errorf("invalid escrow payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := tx.Exec(ctx, `
INSERT INTO escrow_sessions (conversation_id, listing_id, status, updated_at)
VALUES ($1, $2, 'inactive', $3)
ON CONFLICT (conversation_id) DO NOTHING
`, conversationID, listingID, now.UTC())
	if err != nil {
		return fmt.Errorf("ensure escrow session: %w", err)
	}

	return nil
}

func (r *EscrowRepo) Get(ctx context.Context, conversationID int64) (EscrowRecord, error) {
	if conversationID <= 0 {
		return EscrowRecord{}, fmt.Errorf("invalid conversation id")
	}
	if r.pool == nil {
		return EscrowRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec EscrowRecord
	err := r.pool.QueryRow(ctx, `
SELECT `+escrowColumns+`
FROM escrow_sessions
WHERE conversation_id = $1
`, conversationID).Scan(
		&rec.ConversationID,
		&rec.ListingID,
		&rec.Status,
		&rec.PriceSnapshot,
		&rec.Currency,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EscrowRecord{}, ErrEscrowNotFound
		}
		return EscrowRecord{}, fmt.Errorf("get escrow session: %w", err)
	}

	return rec, nil
}

func (r *EscrowRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, conversationID int64) (EscrowRecord, error) {
	if conversationID <= 0 {
		return EscrowRecord{}, fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return EscrowRecord{}, fmt.Errorf("transaction is required")
	}

	var rec EscrowRecord
	err := tx.QueryRow(ctx, `
SELECT `+escrowColumns+`
FROM escrow_sessions
WHERE conversation_id = $1
FOR UPDATE
`, conversationID).Scan(
		&rec.ConversationID,
		&rec.ListingID,
		&rec.Status,
		&rec.PriceSnapshot,
		&rec.Currency,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EscrowRecord{}, ErrEscrowNotFound
		}
		return EscrowRecord{}, fmt.Errorf("get escrow session for update: %w", err)
	}

	return rec, nil
}

// SetActive moves inactive->active or active->inactive. Activation from any
// other status is refused by the guard.
func (r *EscrowRepo) SetActive(ctx context.Context, tx pgx.Tx, conversationID int64, active bool, now time.Time) (bool, error) {
	if conversationID <= 0 {
		return false, fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	target, expected := "active", "inactive"
	if !active {
		target, expected = "inactive", "active"
	}

	result, err := tx.Exec(ctx, `
UPDATE escrow_sessions
SET status = $2, updated_at = $4
WHERE conversation_id = $1 AND status = $3
`, conversationID, target, expected, now.UTC())
	if err != nil {
		return false, fmt.Errorf("toggle escrow session: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// BeginCheckout moves active->checkout and stores the fresh price snapshot.
func (r *EscrowRepo) BeginCheckout(ctx context.Context, tx pgx.Tx, conversationID, priceMinor int64, currency string, now time.Time) (bool, error) {
	if conversationID <= 0 || priceMinor < 0 {
		return false, fmt.Errorf("invalid checkout payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, `
UPDATE escrow_sessions
SET status = 'checkout', price_snapshot = $2, currency = $3, updated_at = $4
WHERE conversation_id = $1 AND status = 'active'
`, conversationID, priceMinor, currency, now.UTC())
	if err != nil {
		return false, fmt.Errorf("begin escrow checkout: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// CancelCheckout moves checkout->active and drops the snapshot so the next
// attempt re-captures the price.
func (r *EscrowRepo) CancelCheckout(ctx context.Context, tx pgx.Tx, conversationID int64, now time.Time) (bool, error) {
	if conversationID <= 0 {
		return false, fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, `
UPDATE escrow_sessions
SET status = 'active', price_snapshot = NULL, currency = NULL, updated_at = $2
WHERE conversation_id = $1 AND status = 'checkout'
`, conversationID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("cancel escrow checkout: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkPaid moves checkout->paid. Paid is terminal; no guard ever moves a
// session out of it.
func (r *EscrowRepo) MarkPaid(ctx context.Context, tx pgx.Tx, conversationID int64, now time.Time) (bool, error) {
	if conversationID <= 0 {
		return false, fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, `
UPDATE escrow_sessions
SET status = 'paid', updated_at = $2
WHERE conversation_id = $1 AND status = 'checkout'
`, conversationID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("mark escrow paid: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

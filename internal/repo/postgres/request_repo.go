package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRequestNotFound = errors.New("match request not found")

	// ErrDuplicatePendingRequest fires when a pending request already exists
	// for the (from_user, listing) pair. The existing record travels with it
	// so callers can treat the conflict as a success path.
	ErrDuplicatePendingRequest = errors.New("pending request already exists")
)

type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

type RequestRecord struct {
	ID          int64
	FromUserID  int64
	ToUserID    int64
	ListingID   int64
	MessageText string
	Status      string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// PendingRequestItem carries the display joins the inbox needs.
type PendingRequestItem struct {
	RequestRecord
	SenderName      string
	SenderAvatarKey string
	ListingTitle    string
	ListingPrice    int64
	ListingImageKey string
}

const requestColumns = `id, from_user_id, to_user_id, listing_id, COALESCE(message_text, ''), status, created_at, resolved_at`

// Create inserts a pending request. The partial unique index on
// (from_user_id, listing_id) WHERE status = 'pending' is the authoritative
// duplicate guard; a conflicting insert returns the existing pending row
// wrapped in ErrDuplicatePendingRequest.
func (r *RequestRepo) Create(ctx context.Context, tx pgx.Tx, fromUserID, toUserID, listingID int64, message string, now time.Time) (RequestRecord, error) {
	if fromUserID <= 0 || toUserID <= 0 || listingID <= 0 {
		return RequestRecord{}, fmt.Errorf("invalid request payload")
	}
	if tx == nil {
		return RequestRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec RequestRecord
	err := tx.QueryRow(ctx, `
INSERT INTO match_requests (
	from_user_id,
	to_user_id,
	listing_id,
	message_text,
	status,
	created_at
) VALUES ($1, $2, $3, NULLIF($4, ''), 'pending', $5)
ON CONFLICT (from_user_id, listing_id) WHERE status = 'pending' DO NOTHING
RETURNING `+requestColumns+`
`, fromUserID, toUserID, listingID, strings.TrimSpace(message), now.UTC()).Scan(
		&rec.ID,
		&rec.FromUserID,
		&rec.ToUserID,
		&rec.ListingID,
		&rec.MessageText,
		&rec.Status,
		&rec.CreatedAt,
		&rec.ResolvedAt,
	)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RequestRecord{}, fmt.Errorf("create match request: %w", err)
	}

	existing, lookupErr := r.getPendingByFromListing(ctx, tx, fromUserID, listingID)
	if lookupErr != nil {
		return RequestRecord{}, lookupErr
	}
	return existing, ErrDuplicatePendingRequest
}

func (r *RequestRepo) getPendingByFromListing(ctx context.Context, tx pgx.Tx, fromUserID, listingID int64) (RequestRecord, error) {
	var rec RequestRecord
	err := tx.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM match_requests
WHERE from_user_id = $1 AND listing_id = $2 AND status = 'pending'
`, fromUserID, listingID).Scan(
		&rec.ID,
		&rec.FromUserID,
		&rec.ToUserID,
		&rec.ListingID,
		&rec.MessageText,
		&rec.Status,
		&rec.CreatedAt,
		&rec.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestRecord{}, ErrRequestNotFound
		}
		return RequestRecord{}, fmt.Errorf("lookup pending request: %w", err)
	}
	return rec, nil
}

// GetForUpdate locks the request row for the duration of a resolve
// transaction so concurrent resolutions serialize on it.
func (r *RequestRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, requestID int64) (RequestRecord, error) {
	if requestID <= 0 {
		return RequestRecord{}, fmt.Errorf("invalid request id")
	}
	if tx == nil {
		return RequestRecord{}, fmt.Errorf("transaction is required")
	}

	var rec RequestRecord
	err := tx.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM match_requests
WHERE id = $1
FOR UPDATE
`, requestID).Scan(
		&rec.ID,
		&rec.FromUserID,
		&rec.ToUserID,
		&rec.ListingID,
		&rec.MessageText,
		&rec.Status,
		&rec.CreatedAt,
		&rec.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestRecord{}, ErrRequestNotFound
		}
		return RequestRecord{}, fmt.Errorf("get match request: %w", err)
	}
	return rec, nil
}

// Resolve flips a pending request exactly once. A zero-row update means the
// request was already resolved (or never existed).
func (r *RequestRepo) Resolve(ctx context.Context, tx pgx.Tx, requestID int64, status string, now time.Time) (bool, error) {
	if requestID <= 0 || strings.TrimSpace(status) == "" {
		return false, fmt.Errorf("invalid resolve payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, `
UPDATE match_requests
SET status = $2, resolved_at = $3
WHERE id = $1 AND status = 'pending'
`, requestID, status, now.UTC())
	if err != nil {
		return false, fmt.Errorf("resolve match request: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListPendingForOwner returns the newest-first pending requests aimed at the
// user's listings, with sender and listing display fields joined in.
func (r *RequestRepo) ListPendingForOwner(ctx context.Context, ownerUserID int64, limit int) ([]PendingRequestItem, error) {
	if ownerUserID <= 0 {
		return nil, fmt.Errorf("invalid owner user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []PendingRequestItem{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	mr.id, mr.from_user_id, mr.to_user_id, mr.listing_id,
	COALESCE(mr.message_text, ''), mr.status, mr.created_at, mr.resolved_at,
	COALESCE(u.display_name, ''),
	COALESCE(u.avatar_key, ''),
	COALESCE(l.title, ''),
	COALESCE(l.price_minor, 0),
	COALESCE(l.image_key, '')
FROM match_requests mr
JOIN users u ON u.id = mr.from_user_id
JOIN listings l ON l.id = mr.listing_id
WHERE mr.to_user_id = $1 AND mr.status = 'pending'
ORDER BY mr.created_at DESC, mr.id DESC
LIMIT $2
`, ownerUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	return scanPendingItems(rows, limit)
}

// ListSentByUser returns the user's own outstanding requests, newest first.
func (r *RequestRepo) ListSentByUser(ctx context.Context, fromUserID int64, limit int) ([]PendingRequestItem, error) {
	if fromUserID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []PendingRequestItem{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	mr.id, mr.from_user_id, mr.to_user_id, mr.listing_id,
	COALESCE(mr.message_text, ''), mr.status, mr.created_at, mr.resolved_at,
	COALESCE(u.display_name, ''),
	COALESCE(u.avatar_key, ''),
	COALESCE(l.title, ''),
	COALESCE(l.price_minor, 0),
	COALESCE(l.image_key, '')
FROM match_requests mr
JOIN users u ON u.id = mr.to_user_id
JOIN listings l ON l.id = mr.listing_id
WHERE mr.from_user_id = $1 AND mr.status = 'pending'
ORDER BY mr.created_at DESC, mr.id DESC
LIMIT $2
`, fromUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent requests: %w", err)
	}
	defer rows.Close()

	return scanPendingItems(rows, limit)
}

func scanPendingItems(rows pgx.Rows, limit int) ([]PendingRequestItem, error) {
	items := make([]PendingRequestItem, 0, limit)
	for rows.Next() {
		var item PendingRequestItem
		if err := rows.Scan(
			&item.ID,
			&item.FromUserID,
			&item.ToUserID,
			&item.ListingID,
			&item.MessageText,
			&item.Status,
			&item.CreatedAt,
			&item.ResolvedAt,
			&item.SenderName,
			&item.SenderAvatarKey,
			&item.ListingTitle,
			&item.ListingPrice,
			&item.ListingImageKey,
		); err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate pending requests: %w", rows.Err())
	}

	return items, nil
}

// DeleteDeclinedBefore purges declined requests older than the cutoff.
func (r *RequestRepo) DeleteDeclinedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if cutoff.IsZero() {
		return 0, fmt.Errorf("cutoff is required")
	}

	result, err := r.pool.Exec(ctx, `
DELETE FROM match_requests
WHERE status = 'declined' AND resolved_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete declined requests: %w", err)
	}

	return result.RowsAffected(), nil
}

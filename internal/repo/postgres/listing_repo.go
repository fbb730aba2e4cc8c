package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrListingNotFound = errors.New("listing not found")

// ListingRepo is read-only. Listings are owned by the catalog side of the
// product; this core only references them.
type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

type ListingRecord struct {
	ID          int64
	OwnerUserID int64
	Title       string
	PriceMinor  int64
	Currency    string
	ImageKey    string
	CreatedAt   time.Time
}

const listingColumns = `id, owner_user_id, COALESCE(title, ''), COALESCE(price_minor, 0), COALESCE(currency, 'NGN'), COALESCE(image_key, ''), created_at`

func (r *ListingRepo) GetByID(ctx context.Context, listingID int64) (ListingRecord, error) {
	if listingID <= 0 {
		return ListingRecord{}, fmt.Errorf("invalid listing id")
	}
	if r.pool == nil {
		return ListingRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec ListingRecord
	err := r.pool.QueryRow(ctx, `
SELECT `+listingColumns+`
FROM listings
WHERE id = $1
`, listingID).Scan(
		&rec.ID,
		&rec.OwnerUserID,
		&rec.Title,
		&rec.PriceMinor,
		&rec.Currency,
		&rec.ImageKey,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ListingRecord{}, ErrListingNotFound
		}
		return ListingRecord{}, fmt.Errorf("get listing: %w", err)
	}

	return rec, nil
}

// GetByIDTx is the transactional variant used where a price snapshot must be
// read inside the same transaction that stores it.
func (r *ListingRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, listingID int64) (ListingRecord, error) {
	if listingID <= 0 {
		return ListingRecord{}, fmt.Errorf("invalid listing id")
	}
	if tx == nil {
		return ListingRecord{}, fmt.Errorf("transaction is required")
	}

	var rec ListingRecord
	err := tx.QueryRow(ctx, `
SELECT `+listingColumns+`
FROM listings
WHERE id = $1
`, listingID).Scan(
		&rec.ID,
		&rec.OwnerUserID,
		&rec.Title,
		&rec.PriceMinor,
		&rec.Currency,
		&rec.ImageKey,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ListingRecord{}, ErrListingNotFound
		}
		return ListingRecord{}, fmt.Errorf("get listing in tx: %w", err)
	}

	return rec, nil
}

func (r *ListingRepo) ListByOwner(ctx context.Context, ownerUserID int64, limit int) ([]ListingRecord, error) {
	if ownerUserID <= 0 {
		return nil, fmt.Errorf("invalid owner user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []ListingRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+listingColumns+`
FROM listings
WHERE owner_user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, ownerUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	defer rows.Close()

	items := make([]ListingRecord, 0, limit)
	for rows.Next() {
		var rec ListingRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerUserID,
			&rec.Title,
			&rec.PriceMinor,
			&rec.Currency,
			&rec.ImageKey,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate listings: %w", rows.Err())
	}

	return items, nil
}

package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

var ErrListingNotFound = errors.New("listing not found")

type Store interface {
	GetByID(ctx context.Context, listingID int64) (pgrepo.ListingRecord, error)
	ListByOwner(ctx context.Context, ownerUserID int64, limit int) ([]pgrepo.ListingRecord, error)
}

type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service is a read-only view over the catalog. Matching and escrow need
// listing titles, owners and prices; everything else about listings lives
// elsewhere.
type Service struct {
	store     Store
	presigner Presigner
	urlTTL    time.Duration
	listLimit int
}

type Listing struct {
	ID          int64
	OwnerUserID int64
	Title       string
	PriceMinor  int64
	Currency    string
	ImageURL    string
	CreatedAt   time.Time
}

func NewService(store Store, presigner Presigner, urlTTL time.Duration, listLimit int) *Service {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	if listLimit <= 0 {
		listLimit = 100
	}

	return &Service{
		store:     store,
		presigner: presigner,
		urlTTL:    urlTTL,
		listLimit: listLimit,
	}
}

func (s *Service) Get(ctx context.Context, listingID int64) (Listing, error) {
	if listingID <= 0 {
		return Listing{}, ErrListingNotFound
	}
	if s.store == nil {
		return Listing{}, fmt.Errorf("listing store is not configured")
	}

	rec, err := s.store.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			return Listing{}, ErrListingNotFound
		}
		return Listing{}, fmt.Errorf("get listing: %w", err)
	}

	return s.toListing(ctx, rec), nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID int64) ([]Listing, error) {
	if ownerUserID <= 0 {
		return nil, fmt.Errorf("invalid owner user id")
	}
	if s.store == nil {
		return nil, fmt.Errorf("listing store is not configured")
	}

	recs, err := s.store.ListByOwner(ctx, ownerUserID, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	items := make([]Listing, 0, len(recs))
	for _, rec := range recs {
		items = append(items, s.toListing(ctx, rec))
	}

	return items, nil
}

func (s *Service) toListing(ctx context.Context, rec pgrepo.ListingRecord) Listing {
	item := Listing{
		ID:          rec.ID,
		OwnerUserID: rec.OwnerUserID,
		Title:       rec.Title,
		PriceMinor:  rec.PriceMinor,
		Currency:    rec.Currency,
		CreatedAt:   rec.CreatedAt,
	}

	if rec.ImageKey != "" && s.presigner != nil {
		// A broken presign should not take the listing down with it.
		if url, err := s.presigner.PresignGet(ctx, rec.ImageKey, s.urlTTL); err == nil {
			item.ImageURL = url
		}
	}

	return item
}

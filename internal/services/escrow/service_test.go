package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

type escrowStoreFake struct {
	rec pgrepo.EscrowRecord
}

func (f *escrowStoreFake) Get(_ context.Context, conversationID int64) (pgrepo.EscrowRecord, error) {
	if conversationID != f.rec.ConversationID {
		return pgrepo.EscrowRecord{}, pgrepo.ErrEscrowNotFound
	}
	return f.rec, nil
}

func (f *escrowStoreFake) GetForUpdate(_ context.Context, _ pgx.Tx, conversationID int64) (pgrepo.EscrowRecord, error) {
	return f.Get(context.Background(), conversationID)
}

func (f *escrowStoreFake) SetActive(_ context.Context, _ pgx.Tx, _ int64, active bool, now time.Time) (bool, error) {
	target, expected := enums.EscrowStatusActive, enums.EscrowStatusInactive
	if !active {
		target, expected = enums.EscrowStatusInactive, enums.EscrowStatusActive
	}
	if enums.EscrowStatus(f.rec.Status) != expected {
		return false, nil
	}
	f.rec.Status = string(target)
	f.rec.UpdatedAt = now
	return true, nil
}

func (f *escrowStoreFake) BeginCheckout(_ context.Context, _ pgx.Tx, _ int64, priceMinor int64, currency string, now time.Time) (bool, error) {
	if enums.EscrowStatus(f.rec.Status) != enums.EscrowStatusActive {
		return false, nil
	}
	f.rec.Status = string(enums.EscrowStatusCheckout)
	f.rec.PriceSnapshot = &priceMinor
	f.rec.Currency = currency
	f.rec.UpdatedAt = now
	return true, nil
}

func (f *escrowStoreFake) CancelCheckout(_ context.Context, _ pgx.Tx, _ int64, now time.Time) (bool, error) {
	if enums.EscrowStatus(f.rec.Status) != enums.EscrowStatusCheckout {
		return false, nil
	}
	f.rec.Status = string(enums.EscrowStatusActive)
	f.rec.PriceSnapshot = nil
	f.rec.Currency = ""
	f.rec.UpdatedAt = now
	return true, nil
}

func (f *escrowStoreFake) MarkPaid(_ context.Context, _ pgx.Tx, _ int64, now time.Time) (bool, error) {
	if enums.EscrowStatus(f.rec.Status) != enums.EscrowStatusCheckout {
		return false, nil
	}
	f.rec.Status = string(enums.EscrowStatusPaid)
	f.rec.UpdatedAt = now
	return true, nil
}

type membersStub struct {
	members map[int64]bool
}

func (s membersStub) IsActiveMember(_ context.Context, _ int64, userID int64) (bool, error) {
	return s.members[userID], nil
}

type listingTxStub struct {
	rec pgrepo.ListingRecord
}

func (s *listingTxStub) GetByIDTx(_ context.Context, _ pgx.Tx, listingID int64) (pgrepo.ListingRecord, error) {
	if listingID != s.rec.ID {
		return pgrepo.ListingRecord{}, pgrepo.ErrListingNotFound
	}
	return s.rec, nil
}

type escrowFixture struct {
	svc     *Service
	store   *escrowStoreFake
	listing *listingTxStub
}

func newEscrowFixture() *escrowFixture {
	f := &escrowFixture{
		store: &escrowStoreFake{rec: pgrepo.EscrowRecord{
			ConversationID: 7,
			ListingID:      10,
			Status:         string(enums.EscrowStatusInactive),
		}},
		listing: &listingTxStub{rec: pgrepo.ListingRecord{
			ID: 10, OwnerUserID: 2, PriceMinor: 250_000, Currency: "NGN",
		}},
	}

	f.svc = NewService(Dependencies{
		Store:         f.store,
		Conversations: membersStub{members: map[int64]bool{1: true, 2: true}},
		Listings:      f.listing,
	})
	f.svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	f.svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	return f
}

func TestSetActiveIsIdempotent(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	first, err := f.svc.SetActive(ctx, 7, 1, true)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if first.Status != string(enums.EscrowStatusActive) {
		t.Fatalf("unexpected status %q", first.Status)
	}

	again, err := f.svc.SetActive(ctx, 7, 2, true)
	if err != nil {
		t.Fatalf("repeated activate must be a no-op: %v", err)
	}
	if again.Status != string(enums.EscrowStatusActive) {
		t.Fatalf("unexpected status %q", again.Status)
	}
}

func TestSetActiveRefusedOnceInCheckout(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.SetActive(ctx, 7, 1, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := f.svc.BeginCheckout(ctx, 7, 1); err != nil {
		t.Fatalf("begin checkout: %v", err)
	}

	if _, err := f.svc.SetActive(ctx, 7, 1, false); !errors.Is(err, ErrEscrowClosed) {
		t.Fatalf("expected ErrEscrowClosed, got %v", err)
	}
}

func TestBeginCheckoutRequiresActive(t *testing.T) {
	f := newEscrowFixture()

	if _, err := f.svc.BeginCheckout(context.Background(), 7, 1); !errors.Is(err, ErrEscrowNotActive) {
		t.Fatalf("expected ErrEscrowNotActive, got %v", err)
	}
}

func TestBeginCheckoutSnapshotsCurrentPrice(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.SetActive(ctx, 7, 1, true); err != nil {
		t.Fatalf("activate: %v", err)
	}

	rec, err := f.svc.BeginCheckout(ctx, 7, 1)
	if err != nil {
		t.Fatalf("begin checkout: %v", err)
	}
	if rec.PriceSnapshot == nil || *rec.PriceSnapshot != 250_000 {
		t.Fatalf("unexpected snapshot %v", rec.PriceSnapshot)
	}

	// Cancel, reprice, begin again: the snapshot must be re-captured.
	if _, err := f.svc.Cancel(ctx, 7, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.listing.rec.PriceMinor = 300_000

	rec, err = f.svc.BeginCheckout(ctx, 7, 2)
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if rec.PriceSnapshot == nil || *rec.PriceSnapshot != 300_000 {
		t.Fatalf("expected fresh snapshot, got %v", rec.PriceSnapshot)
	}
}

func TestCancelClearsSnapshot(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.SetActive(ctx, 7, 1, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := f.svc.BeginCheckout(ctx, 7, 1); err != nil {
		t.Fatalf("begin checkout: %v", err)
	}

	rec, err := f.svc.Cancel(ctx, 7, 1)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if rec.Status != string(enums.EscrowStatusActive) || rec.PriceSnapshot != nil {
		t.Fatalf("unexpected record after cancel: %+v", rec)
	}
}

func TestPaidIsTerminal(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	if _, err := f.svc.SetActive(ctx, 7, 1, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := f.svc.BeginCheckout(ctx, 7, 1); err != nil {
		t.Fatalf("begin checkout: %v", err)
	}

	rec, err := f.svc.ConfirmPayment(ctx, 7, 1)
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if rec.Status != string(enums.EscrowStatusPaid) {
		t.Fatalf("unexpected status %q", rec.Status)
	}

	if _, err := f.svc.SetActive(ctx, 7, 1, false); !errors.Is(err, ErrEscrowClosed) {
		t.Fatalf("expected ErrEscrowClosed after paid, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, 7, 1); !errors.Is(err, ErrNotInCheckout) {
		t.Fatalf("expected ErrNotInCheckout after paid, got %v", err)
	}
	if _, err := f.svc.ConfirmPayment(ctx, 7, 1); !errors.Is(err, ErrNotInCheckout) {
		t.Fatalf("expected ErrNotInCheckout on replayed confirm, got %v", err)
	}
}

func TestEscrowRejectsOutsider(t *testing.T) {
	f := newEscrowFixture()

	if _, err := f.svc.Get(context.Background(), 7, 99); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := f.svc.SetActive(context.Background(), 7, 99, true); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

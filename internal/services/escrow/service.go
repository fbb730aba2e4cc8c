package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("escrow session not found")
	ErrNotParticipant = errors.New("not a conversation participant")

	// Transition guards. Each maps a zero-row guarded update to the state
	// the session was actually in.
	ErrEscrowNotActive = errors.New("escrow is not active")
	ErrNotInCheckout   = errors.New("escrow is not in checkout")
	ErrEscrowClosed    = errors.New("escrow session is closed")
)

type Store interface {
	Get(ctx context.Context, conversationID int64) (pgrepo.EscrowRecord, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, conversationID int64) (pgrepo.EscrowRecord, error)
	SetActive(ctx context.Context, tx pgx.Tx, conversationID int64, active bool, now time.Time) (bool, error)
	BeginCheckout(ctx context.Context, tx pgx.Tx, conversationID, priceMinor int64, currency string, now time.Time) (bool, error)
	CancelCheckout(ctx context.Context, tx pgx.Tx, conversationID int64, now time.Time) (bool, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, conversationID int64, now time.Time) (bool, error)
}

type ConversationStore interface {
	IsActiveMember(ctx context.Context, conversationID, userID int64) (bool, error)
}

type ListingStore interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, listingID int64) (pgrepo.ListingRecord, error)
}

// Service drives the per-conversation escrow state machine:
//
//	inactive <-> active -> checkout -> paid
//	                ^          |
//	                +----------+  (cancel)
//
// Every transition is a guarded single-row update; concurrent actors race on
// the row lock and the loser observes the new state, never a broken edge.
type Service struct {
	runTx         func(context.Context, func(context.Context, pgx.Tx) error) error
	store         Store
	conversations ConversationStore
	listings      ListingStore
	now           func() time.Time
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	Store         Store
	Conversations ConversationStore
	Listings      ListingStore
}

func NewService(deps Dependencies) *Service {
	runTx := func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, deps.Pool, fn)
	}

	return &Service{
		runTx:         runTx,
		store:         deps.Store,
		conversations: deps.Conversations,
		listings:      deps.Listings,
		now:           time.Now,
	}
}

// Get is the server-truth readback a client uses to re-derive its escrow
// view when a conversation is reopened.
func (s *Service) Get(ctx context.Context, conversationID, userID int64) (pgrepo.EscrowRecord, error) {
	if conversationID <= 0 || userID <= 0 {
		return pgrepo.EscrowRecord{}, ErrValidation
	}
	if s.store == nil || s.conversations == nil {
		return pgrepo.EscrowRecord{}, fmt.Errorf("escrow dependencies are not configured")
	}

	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	rec, err := s.store.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrEscrowNotFound) {
			return pgrepo.EscrowRecord{}, ErrNotFound
		}
		return pgrepo.EscrowRecord{}, fmt.Errorf("get escrow session: %w", err)
	}

	return rec, nil
}

// SetActive toggles inactive<->active. Asking for the state the session is
// already in is a no-op success; anything past active refuses the toggle.
func (s *Service) SetActive(ctx context.Context, conversationID, actingUserID int64, active bool) (pgrepo.EscrowRecord, error) {
	if err := s.checkActor(ctx, conversationID, actingUserID); err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	now := s.now().UTC()

	var rec pgrepo.EscrowRecord
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		current, err := s.lockSession(txCtx, tx, conversationID)
		if err != nil {
			return err
		}

		target := enums.EscrowStatusActive
		if !active {
			target = enums.EscrowStatusInactive
		}
		status := enums.EscrowStatus(current.Status)

		if status == target {
			rec = current
			return nil
		}
		if status == enums.EscrowStatusCheckout || status == enums.EscrowStatusPaid {
			return ErrEscrowClosed
		}

		toggled, err := s.store.SetActive(txCtx, tx, conversationID, active, now)
		if err != nil {
			return err
		}
		if !toggled {
			return ErrEscrowClosed
		}

		current.Status = string(target)
		current.UpdatedAt = now
		rec = current
		return nil
	})
	if err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	return rec, nil
}

// BeginCheckout moves active->checkout, snapshotting the listing's current
// price inside the same transaction. Every begin re-captures the price, so a
// cancel-then-retry always checks out at today's price, not a stale one.
func (s *Service) BeginCheckout(ctx context.Context, conversationID, actingUserID int64) (pgrepo.EscrowRecord, error) {
	if err := s.checkActor(ctx, conversationID, actingUserID); err != nil {
		return pgrepo.EscrowRecord{}, err
	}
	if s.listings == nil {
		return pgrepo.EscrowRecord{}, fmt.Errorf("escrow dependencies are not configured")
	}

	now := s.now().UTC()

	var rec pgrepo.EscrowRecord
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		current, err := s.lockSession(txCtx, tx, conversationID)
		if err != nil {
			return err
		}
		if enums.EscrowStatus(current.Status) != enums.EscrowStatusActive {
			return ErrEscrowNotActive
		}

		listing, err := s.listings.GetByIDTx(txCtx, tx, current.ListingID)
		if err != nil {
			return fmt.Errorf("snapshot listing price: %w", err)
		}

		moved, err := s.store.BeginCheckout(txCtx, tx, conversationID, listing.PriceMinor, listing.Currency, now)
		if err != nil {
			return err
		}
		if !moved {
			return ErrEscrowNotActive
		}

		price := listing.PriceMinor
		current.Status = string(enums.EscrowStatusCheckout)
		current.PriceSnapshot = &price
		current.Currency = listing.Currency
		current.UpdatedAt = now
		rec = current
		return nil
	})
	if err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	return rec, nil
}

// Cancel moves checkout->active and drops the price snapshot.
func (s *Service) Cancel(ctx context.Context, conversationID, actingUserID int64) (pgrepo.EscrowRecord, error) {
	if err := s.checkActor(ctx, conversationID, actingUserID); err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	now := s.now().UTC()

	var rec pgrepo.EscrowRecord
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		current, err := s.lockSession(txCtx, tx, conversationID)
		if err != nil {
			return err
		}
		if enums.EscrowStatus(current.Status) != enums.EscrowStatusCheckout {
			return ErrNotInCheckout
		}

		moved, err := s.store.CancelCheckout(txCtx, tx, conversationID, now)
		if err != nil {
			return err
		}
		if !moved {
			return ErrNotInCheckout
		}

		current.Status = string(enums.EscrowStatusActive)
		current.PriceSnapshot = nil
		current.Currency = ""
		current.UpdatedAt = now
		rec = current
		return nil
	})
	if err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	return rec, nil
}

// ConfirmPayment moves checkout->paid. Paid is terminal.
func (s *Service) ConfirmPayment(ctx context.Context, conversationID, actingUserID int64) (pgrepo.EscrowRecord, error) {
	if err := s.checkActor(ctx, conversationID, actingUserID); err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	now := s.now().UTC()

	var rec pgrepo.EscrowRecord
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		current, err := s.lockSession(txCtx, tx, conversationID)
		if err != nil {
			return err
		}
		if enums.EscrowStatus(current.Status) != enums.EscrowStatusCheckout {
			return ErrNotInCheckout
		}

		moved, err := s.store.MarkPaid(txCtx, tx, conversationID, now)
		if err != nil {
			return err
		}
		if !moved {
			return ErrNotInCheckout
		}

		current.Status = string(enums.EscrowStatusPaid)
		current.UpdatedAt = now
		rec = current
		return nil
	})
	if err != nil {
		return pgrepo.EscrowRecord{}, err
	}

	return rec, nil
}

func (s *Service) checkActor(ctx context.Context, conversationID, actingUserID int64) error {
	if conversationID <= 0 || actingUserID <= 0 {
		return ErrValidation
	}
	if s.runTx == nil || s.store == nil || s.conversations == nil {
		return fmt.Errorf("escrow dependencies are not configured")
	}
	return s.requireParticipant(ctx, conversationID, actingUserID)
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	member, err := s.conversations.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotParticipant
	}
	return nil
}

func (s *Service) lockSession(ctx context.Context, tx pgx.Tx, conversationID int64) (pgrepo.EscrowRecord, error) {
	rec, err := s.store.GetForUpdate(ctx, tx, conversationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrEscrowNotFound) {
			return pgrepo.EscrowRecord{}, ErrNotFound
		}
		return pgrepo.EscrowRecord{}, fmt.Errorf("lock escrow session: %w", err)
	}
	return rec, nil
}

package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
	"github.com/ebuka-odih/nyem-backend/internal/domain/rules"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrListingNotFound = errors.New("listing not found")
	ErrSelfRequest     = errors.New("cannot request own listing")
	ErrRequestNotFound = errors.New("match request not found")
	ErrNotAuthorized   = errors.New("not authorized to resolve request")
	ErrAlreadyResolved = errors.New("request already resolved")

	// ErrDuplicatePending travels with the existing pending request so the
	// caller can surface it instead of a failure.
	ErrDuplicatePending = errors.New("pending request already exists")
)

type RequestStore interface {
	Create(ctx context.Context, tx pgx.Tx, fromUserID, toUserID, listingID int64, message string, now time.Time) (pgrepo.RequestRecord, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, requestID int64) (pgrepo.RequestRecord, error)
	Resolve(ctx context.Context, tx pgx.Tx, requestID int64, status string, now time.Time) (bool, error)
	ListPendingForOwner(ctx context.Context, ownerUserID int64, limit int) ([]pgrepo.PendingRequestItem, error)
	ListSentByUser(ctx context.Context, fromUserID int64, limit int) ([]pgrepo.PendingRequestItem, error)
}

type ConversationStore interface {
	GetOrCreate(ctx context.Context, tx pgx.Tx, userA, userB, listingID int64, now time.Time) (pgrepo.ConversationRecord, bool, error)
	Touch(ctx context.Context, tx pgx.Tx, conversationID int64, at time.Time) error
}

type MessageStore interface {
	Insert(ctx context.Context, tx pgx.Tx, conversationID, senderID int64, clientRef uuid.UUID, text string, now time.Time) (pgrepo.MessageRecord, bool, error)
}

type EscrowStore interface {
	Ensure(ctx context.Context, tx pgx.Tx, conversationID, listingID int64, now time.Time) error
}

type ListingStore interface {
	GetByID(ctx context.Context, listingID int64) (pgrepo.ListingRecord, error)
}

type Signaler interface {
	BumpNewMessages(ctx context.Context, userID int64) error
}

// Resolution is what a resolve call hands back: the flipped request plus,
// on accept, the materialized conversation and the optional first reply.
type Resolution struct {
	Request      pgrepo.RequestRecord
	Conversation *pgrepo.ConversationRecord
	FirstMessage *pgrepo.MessageRecord
	Replayed     bool
}

type Service struct {
	runTx         func(context.Context, func(context.Context, pgx.Tx) error) error
	requestStore  RequestStore
	conversations ConversationStore
	messages      MessageStore
	escrow        EscrowStore
	listings      ListingStore
	signaler      Signaler
	listLimit     int
	now           func() time.Time
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	RequestStore  RequestStore
	Conversations ConversationStore
	Messages      MessageStore
	Escrow        EscrowStore
	Listings      ListingStore
	Signaler      Signaler
}

func NewService(deps Dependencies, listLimit int) *Service {
	if listLimit <= 0 {
		listLimit = rules.DefaultListLimit
	}

	runTx := func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, deps.Pool, fn)
	}

	return &Service{
		runTx:         runTx,
		requestStore:  deps.RequestStore,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		escrow:        deps.Escrow,
		listings:      deps.Listings,
		signaler:      deps.Signaler,
		listLimit:     listLimit,
		now:           time.Now,
	}
}

// Submit files a pending request from fromUserID against a listing. A second
// pending submit for the same (sender, listing) returns the existing request
// wrapped in ErrDuplicatePending.
func (s *Service) Submit(ctx context.Context, fromUserID, listingID int64, message string) (pgrepo.RequestRecord, error) {
	if fromUserID <= 0 || listingID <= 0 {
		return pgrepo.RequestRecord{}, ErrValidation
	}
	if s.runTx == nil || s.requestStore == nil || s.listings == nil {
		return pgrepo.RequestRecord{}, fmt.Errorf("request dependencies are not configured")
	}

	message = strings.TrimSpace(message)
	if len(message) > rules.MaxRequestMessageLen {
		return pgrepo.RequestRecord{}, ErrValidation
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrListingNotFound) {
			return pgrepo.RequestRecord{}, ErrListingNotFound
		}
		return pgrepo.RequestRecord{}, fmt.Errorf("load listing: %w", err)
	}
	if listing.OwnerUserID == fromUserID {
		return pgrepo.RequestRecord{}, ErrSelfRequest
	}

	now := s.now().UTC()

	var rec pgrepo.RequestRecord
	err = s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		created, err := s.requestStore.Create(txCtx, tx, fromUserID, listing.OwnerUserID, listingID, message, now)
		if err != nil && !errors.Is(err, pgrepo.ErrDuplicatePendingRequest) {
			return err
		}
		rec = created
		if errors.Is(err, pgrepo.ErrDuplicatePendingRequest) {
			return ErrDuplicatePending
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePending) {
			return rec, ErrDuplicatePending
		}
		return pgrepo.RequestRecord{}, err
	}

	return rec, nil
}

// Resolve flips a pending request. Accepting materializes the conversation,
// seeds the escrow session and stores the optional reply as the first
// message, all in one transaction. Replaying an accept is benign: the same
// conversation comes back with Replayed set.
func (s *Service) Resolve(ctx context.Context, requestID, actingUserID int64, decision enums.Decision, replyMessage string) (Resolution, error) {
	if requestID <= 0 || actingUserID <= 0 {
		return Resolution{}, ErrValidation
	}
	if decision != enums.DecisionAccept && decision != enums.DecisionDecline {
		return Resolution{}, ErrValidation
	}
	if s.runTx == nil || s.requestStore == nil || s.conversations == nil || s.messages == nil || s.escrow == nil {
		return Resolution{}, fmt.Errorf("request dependencies are not configured")
	}

	replyMessage = strings.TrimSpace(replyMessage)
	if len(replyMessage) > rules.MaxMessageLen {
		return Resolution{}, ErrValidation
	}

	now := s.now().UTC()

	var result Resolution
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.requestStore.GetForUpdate(txCtx, tx, requestID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrRequestNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if rec.ToUserID != actingUserID {
			return ErrNotAuthorized
		}

		status := enums.RequestStatus(rec.Status)
		if status.Resolved() {
			if decision == enums.DecisionAccept && status == enums.RequestStatusAccepted {
				conv, _, err := s.conversations.GetOrCreate(txCtx, tx, rec.FromUserID, rec.ToUserID, rec.ListingID, now)
				if err != nil {
					return err
				}
				result = Resolution{Request: rec, Conversation: &conv, Replayed: true}
				return nil
			}
			if decision == enums.DecisionDecline && status == enums.RequestStatusDeclined {
				result = Resolution{Request: rec, Replayed: true}
				return nil
			}
			return ErrAlreadyResolved
		}

		target := enums.RequestStatusDeclined
		if decision == enums.DecisionAccept {
			target = enums.RequestStatusAccepted
		}

		flipped, err := s.requestStore.Resolve(txCtx, tx, requestID, string(target), now)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyResolved
		}
		rec.Status = string(target)
		resolvedAt := now
		rec.ResolvedAt = &resolvedAt
		result.Request = rec

		if decision != enums.DecisionAccept {
			return nil
		}

		conv, _, err := s.conversations.GetOrCreate(txCtx, tx, rec.FromUserID, rec.ToUserID, rec.ListingID, now)
		if err != nil {
			return err
		}
		result.Conversation = &conv

		if err := s.escrow.Ensure(txCtx, tx, conv.ID, rec.ListingID, now); err != nil {
			return err
		}

		if replyMessage != "" {
			msg, _, err := s.messages.Insert(txCtx, tx, conv.ID, actingUserID, uuid.New(), replyMessage, now)
			if err != nil {
				return err
			}
			result.FirstMessage = &msg
			if err := s.conversations.Touch(txCtx, tx, conv.ID, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return Resolution{}, err
	}

	if result.FirstMessage != nil && s.signaler != nil {
		// Signal loss only delays the peer's next poll.
		_ = s.signaler.BumpNewMessages(ctx, result.Request.FromUserID)
	}

	return result, nil
}

func (s *Service) ListPending(ctx context.Context, forUserID int64, limit int) ([]pgrepo.PendingRequestItem, error) {
	if forUserID <= 0 {
		return nil, ErrValidation
	}
	if s.requestStore == nil {
		return nil, fmt.Errorf("request store is not configured")
	}
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}

	items, err := s.requestStore.ListPendingForOwner(ctx, forUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return items, nil
}

func (s *Service) ListSent(ctx context.Context, fromUserID int64, limit int) ([]pgrepo.PendingRequestItem, error) {
	if fromUserID <= 0 {
		return nil, ErrValidation
	}
	if s.requestStore == nil {
		return nil, fmt.Errorf("request store is not configured")
	}
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}

	items, err := s.requestStore.ListSentByUser(ctx, fromUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent requests: %w", err)
	}
	return items, nil
}

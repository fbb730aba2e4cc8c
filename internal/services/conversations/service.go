package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebuka-odih/nyem-backend/internal/domain/rules"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a conversation participant")
)

type Store interface {
	GetByID(ctx context.Context, conversationID int64) (pgrepo.ConversationRecord, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]pgrepo.ConversationSummary, error)
	IsActiveMember(ctx context.Context, conversationID, userID int64) (bool, error)
	Leave(ctx context.Context, conversationID, userID int64, at time.Time) (bool, error)
	MarkRead(ctx context.Context, conversationID, userID int64, at time.Time) error
}

// Service is the inbox surface. Conversations are created by the request
// ledger on accept; here they are only listed, fetched, read and left.
// There is no delete: a conversation survives for the peer.
type Service struct {
	store     Store
	listLimit int
	now       func() time.Time
}

func NewService(store Store, listLimit int) *Service {
	if listLimit <= 0 {
		listLimit = rules.DefaultListLimit
	}

	return &Service{
		store:     store,
		listLimit: listLimit,
		now:       time.Now,
	}
}

func (s *Service) List(ctx context.Context, userID int64, limit int) ([]pgrepo.ConversationSummary, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("conversation store is not configured")
	}
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}

	items, err := s.store.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

// Get is the membership-checked fetch used by every per-conversation handler.
func (s *Service) Get(ctx context.Context, conversationID, userID int64) (pgrepo.ConversationRecord, error) {
	if conversationID <= 0 || userID <= 0 {
		return pgrepo.ConversationRecord{}, ErrValidation
	}
	if s.store == nil {
		return pgrepo.ConversationRecord{}, fmt.Errorf("conversation store is not configured")
	}

	rec, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return pgrepo.ConversationRecord{}, ErrConversationNotFound
		}
		return pgrepo.ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}

	member, err := s.store.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return pgrepo.ConversationRecord{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return pgrepo.ConversationRecord{}, ErrNotParticipant
	}

	return rec, nil
}

func (s *Service) Leave(ctx context.Context, conversationID, userID int64) error {
	if conversationID <= 0 || userID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("conversation store is not configured")
	}

	left, err := s.store.Leave(ctx, conversationID, userID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("leave conversation: %w", err)
	}
	if !left {
		return ErrNotParticipant
	}

	return nil
}

func (s *Service) MarkRead(ctx context.Context, conversationID, userID int64) error {
	if conversationID <= 0 || userID <= 0 {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("conversation store is not configured")
	}

	member, err := s.store.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotParticipant
	}

	if err := s.store.MarkRead(ctx, conversationID, userID, s.now().UTC()); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}

	return nil
}

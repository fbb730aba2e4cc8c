package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebuka-odih/nyem-backend/internal/domain/rules"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a conversation participant")
)

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

type MessageStore interface {
	Insert(ctx context.Context, tx pgx.Tx, conversationID, senderID int64, clientRef uuid.UUID, text string, now time.Time) (pgrepo.MessageRecord, bool, error)
	ListPage(ctx context.Context, conversationID int64, beforeCreatedAt *time.Time, beforeID *int64, limit int) ([]pgrepo.MessageRecord, error)
}

type ConversationStore interface {
	GetByID(ctx context.Context, conversationID int64) (pgrepo.ConversationRecord, error)
	IsActiveMember(ctx context.Context, conversationID, userID int64) (bool, error)
	Touch(ctx context.Context, tx pgx.Tx, conversationID int64, at time.Time) error
	MarkRead(ctx context.Context, conversationID, userID int64, at time.Time) error
}

type RateLimiter interface {
	AllowSend(ctx context.Context, userID int64) (int64, bool, error)
}

type Signaler interface {
	BumpNewMessages(ctx context.Context, userID int64) error
	NewMessages(ctx context.Context, userID int64) (int64, error)
	ClearNewMessages(ctx context.Context, userID int64) error
}

// SendResult reports the stored message plus whether this was a replay of an
// earlier send with the same client_ref.
type SendResult struct {
	Message pgrepo.MessageRecord
	Replay  bool
}

// HistoryCursor points just past the oldest message of the previous page.
type HistoryCursor struct {
	BeforeCreatedAt time.Time
	BeforeID        int64
}

type Service struct {
	runTx         func(context.Context, func(context.Context, pgx.Tx) error) error
	messageStore  MessageStore
	conversations ConversationStore
	rateLimiter   RateLimiter
	signaler      Signaler
	historyPage   int
	now           func() time.Time
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	MessageStore  MessageStore
	Conversations ConversationStore
	RateLimiter   RateLimiter
	Signaler      Signaler
	HistoryPage   int
}

func NewService(deps Dependencies) *Service {
	runTx := func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, deps.Pool, fn)
	}

	return &Service{
		runTx:         runTx,
		messageStore:  deps.MessageStore,
		conversations: deps.Conversations,
		rateLimiter:   deps.RateLimiter,
		signaler:      deps.Signaler,
		historyPage:   deps.HistoryPage,
		now:           time.Now,
	}
}

// Send stores one message. The insert is idempotent on (conversation,
// sender, client_ref): replaying a send, including a retry of a send the
// client recorded as failed, returns the row stored the first time.
func (s *Service) Send(ctx context.Context, conversationID, senderID int64, clientRef uuid.UUID, text string) (SendResult, error) {
	if conversationID <= 0 || senderID <= 0 || clientRef == uuid.Nil {
		return SendResult{}, ErrValidation
	}
	if s.runTx == nil || s.messageStore == nil || s.conversations == nil {
		return SendResult{}, fmt.Errorf("message dependencies are not configured")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrEmptyMessage
	}
	if len(text) > rules.MaxMessageLen {
		return SendResult{}, ErrValidation
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return SendResult{}, ErrConversationNotFound
		}
		return SendResult{}, fmt.Errorf("get conversation: %w", err)
	}
	member, err := s.conversations.IsActiveMember(ctx, conversationID, senderID)
	if err != nil {
		return SendResult{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return SendResult{}, ErrNotParticipant
	}

	if s.rateLimiter != nil {
		retryAfter, allowed, err := s.rateLimiter.AllowSend(ctx, senderID)
		if err != nil {
			return SendResult{}, fmt.Errorf("apply send rate limiter: %w", err)
		}
		if !allowed {
			return SendResult{}, TooFastError{RetryAfterSec: retryAfter}
		}
	}

	now := s.now().UTC()

	var result SendResult
	err = s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, existed, err := s.messageStore.Insert(txCtx, tx, conversationID, senderID, clientRef, text, now)
		if err != nil {
			return err
		}
		result = SendResult{Message: rec, Replay: existed}
		if existed {
			return nil
		}
		return s.conversations.Touch(txCtx, tx, conversationID, now)
	})
	if err != nil {
		return SendResult{}, err
	}

	if !result.Replay && s.signaler != nil {
		peer := conv.UserAID
		if peer == senderID {
			peer = conv.UserBID
		}
		// Signal loss only delays the peer's next poll.
		_ = s.signaler.BumpNewMessages(ctx, peer)
	}

	return result, nil
}

// History returns one page of messages in ascending (created_at, id) order.
// Without a cursor it is the newest page; with one it is the next older
// page. The (created_at, id) order is total, so pages never overlap or skip.
func (s *Service) History(ctx context.Context, conversationID, userID int64, cursor *HistoryCursor, limit int) ([]pgrepo.MessageRecord, error) {
	if conversationID <= 0 || userID <= 0 {
		return nil, ErrValidation
	}
	if s.messageStore == nil || s.conversations == nil {
		return nil, fmt.Errorf("message dependencies are not configured")
	}

	member, err := s.conversations.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, ErrNotParticipant
	}

	if limit <= 0 {
		limit = s.historyPage
	}
	limit = rules.ClampHistoryLimit(limit)

	var beforeCreatedAt *time.Time
	var beforeID *int64
	if cursor != nil {
		if cursor.BeforeCreatedAt.IsZero() || cursor.BeforeID <= 0 {
			return nil, ErrValidation
		}
		beforeCreatedAt = &cursor.BeforeCreatedAt
		beforeID = &cursor.BeforeID
	}

	page, err := s.messageStore.ListPage(ctx, conversationID, beforeCreatedAt, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// The store pages newest-first; readers want oldest-first.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	return page, nil
}

// MarkRead moves the reader's watermark and clears their new-message signal.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID int64) error {
	if conversationID <= 0 || userID <= 0 {
		return ErrValidation
	}
	if s.conversations == nil {
		return fmt.Errorf("message dependencies are not configured")
	}

	member, err := s.conversations.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotParticipant
	}

	if err := s.conversations.MarkRead(ctx, conversationID, userID, s.now().UTC()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if s.signaler != nil {
		_ = s.signaler.ClearNewMessages(ctx, userID)
	}

	return nil
}

// Signal is the cheap poll the client uses to decide whether to refresh an
// open thread.
func (s *Service) Signal(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, ErrValidation
	}
	if s.signaler == nil {
		return 0, nil
	}

	count, err := s.signaler.NewMessages(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("read new-message signal: %w", err)
	}
	return count, nil
}

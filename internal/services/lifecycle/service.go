package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
	escrowsvc "github.com/ebuka-odih/nyem-backend/internal/services/escrow"
	requestssvc "github.com/ebuka-odih/nyem-backend/internal/services/requests"
)

var (
	ErrValidation = errors.New("validation error")
)

type RequestResolver interface {
	Resolve(ctx context.Context, requestID, actingUserID int64, decision enums.Decision, replyMessage string) (requestssvc.Resolution, error)
	ListPending(ctx context.Context, forUserID int64, limit int) ([]pgrepo.PendingRequestItem, error)
}

type ConversationReader interface {
	Get(ctx context.Context, conversationID, userID int64) (pgrepo.ConversationRecord, error)
	List(ctx context.Context, userID int64, limit int) ([]pgrepo.ConversationSummary, error)
}

type MessageReader interface {
	MarkRead(ctx context.Context, conversationID, userID int64) error
	Signal(ctx context.Context, userID int64) (int64, error)
}

type EscrowReader interface {
	Get(ctx context.Context, conversationID, userID int64) (pgrepo.EscrowRecord, error)
}

type FocusStore interface {
	SetOpen(ctx context.Context, sessionScope string, conversationID int64) error
	Open(ctx context.Context, sessionScope string) (int64, error)
	Clear(ctx context.Context, sessionScope string) error
}

// OpenState is everything a client needs when a conversation comes into
// focus: the thread itself plus the server-truth escrow session it
// re-derives its local escrow view from.
type OpenState struct {
	Conversation pgrepo.ConversationRecord
	Escrow       *pgrepo.EscrowRecord
	Request      *pgrepo.RequestRecord
	FirstMessage *pgrepo.MessageRecord
}

// Snapshot is the pull-based refresh payload the client polls for.
type Snapshot struct {
	PendingRequests []pgrepo.PendingRequestItem
	Conversations   []pgrepo.ConversationSummary
	NewMessages     int64
}

// Service sequences the cross-module flows: the atomic accept-then-open, the
// per-session conversation focus, and the periodic refresh snapshot. Focus
// lives in redis with a TTL, so an abandoned session simply expires.
type Service struct {
	requests      RequestResolver
	conversations ConversationReader
	messages      MessageReader
	escrow        EscrowReader
	focus         FocusStore
	listLimit     int
}

type Dependencies struct {
	Requests      RequestResolver
	Conversations ConversationReader
	Messages      MessageReader
	Escrow        EscrowReader
	Focus         FocusStore
}

func NewService(deps Dependencies, listLimit int) *Service {
	if listLimit <= 0 {
		listLimit = 100
	}

	return &Service{
		requests:      deps.Requests,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		escrow:        deps.Escrow,
		focus:         deps.Focus,
		listLimit:     listLimit,
	}
}

// AcceptAndOpen accepts a request and brings the materialized conversation
// into focus in one flow. Replaying it lands on the same conversation.
func (s *Service) AcceptAndOpen(ctx context.Context, requestID, actingUserID int64, sessionScope, replyMessage string) (OpenState, error) {
	if requestID <= 0 || actingUserID <= 0 || strings.TrimSpace(sessionScope) == "" {
		return OpenState{}, ErrValidation
	}
	if s.requests == nil || s.conversations == nil {
		return OpenState{}, fmt.Errorf("lifecycle dependencies are not configured")
	}

	res, err := s.requests.Resolve(ctx, requestID, actingUserID, enums.DecisionAccept, replyMessage)
	if err != nil {
		return OpenState{}, err
	}
	if res.Conversation == nil {
		return OpenState{}, fmt.Errorf("accept did not materialize a conversation")
	}

	state, err := s.Open(ctx, actingUserID, sessionScope, res.Conversation.ID)
	if err != nil {
		return OpenState{}, err
	}
	state.Request = &res.Request
	state.FirstMessage = res.FirstMessage
	return state, nil
}

// Open marks the conversation as the session's current focus, moves the
// reader's watermark and returns the server-truth escrow state. At most one
// conversation is open per session; opening another replaces it.
func (s *Service) Open(ctx context.Context, userID int64, sessionScope string, conversationID int64) (OpenState, error) {
	if userID <= 0 || conversationID <= 0 || strings.TrimSpace(sessionScope) == "" {
		return OpenState{}, ErrValidation
	}
	if s.conversations == nil {
		return OpenState{}, fmt.Errorf("lifecycle dependencies are not configured")
	}

	conv, err := s.conversations.Get(ctx, conversationID, userID)
	if err != nil {
		return OpenState{}, err
	}

	if s.focus != nil {
		if err := s.focus.SetOpen(ctx, sessionScope, conversationID); err != nil {
			return OpenState{}, fmt.Errorf("set open conversation: %w", err)
		}
	}
	if s.messages != nil {
		if err := s.messages.MarkRead(ctx, conversationID, userID); err != nil {
			return OpenState{}, err
		}
	}

	state := OpenState{Conversation: conv}
	if s.escrow != nil {
		rec, err := s.escrow.Get(ctx, conversationID, userID)
		switch {
		case err == nil:
			state.Escrow = &rec
		case errors.Is(err, escrowsvc.ErrNotFound):
			// Conversations that predate escrow seeding have no session.
		default:
			return OpenState{}, err
		}
	}

	return state, nil
}

// Close drops the session's focus. Server escrow state is deliberately left
// alone: the client resets only its local view and re-reads truth on the
// next open.
func (s *Service) Close(ctx context.Context, sessionScope string) error {
	if strings.TrimSpace(sessionScope) == "" {
		return ErrValidation
	}
	if s.focus == nil {
		return nil
	}
	if err := s.focus.Clear(ctx, sessionScope); err != nil {
		return fmt.Errorf("clear open conversation: %w", err)
	}
	return nil
}

// CurrentOpen reports the conversation the session has in focus, zero when
// none.
func (s *Service) CurrentOpen(ctx context.Context, sessionScope string) (int64, error) {
	if strings.TrimSpace(sessionScope) == "" {
		return 0, ErrValidation
	}
	if s.focus == nil {
		return 0, nil
	}
	return s.focus.Open(ctx, sessionScope)
}

// Refresh assembles the polling snapshot: pending inbound requests, the
// conversation list and the new-message counter.
func (s *Service) Refresh(ctx context.Context, userID int64) (Snapshot, error) {
	if userID <= 0 {
		return Snapshot{}, ErrValidation
	}
	if s.requests == nil || s.conversations == nil || s.messages == nil {
		return Snapshot{}, fmt.Errorf("lifecycle dependencies are not configured")
	}

	pending, err := s.requests.ListPending(ctx, userID, s.listLimit)
	if err != nil {
		return Snapshot{}, err
	}
	convs, err := s.conversations.List(ctx, userID, s.listLimit)
	if err != nil {
		return Snapshot{}, err
	}
	signal, err := s.messages.Signal(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		PendingRequests: pending,
		Conversations:   convs,
		NewMessages:     signal,
	}, nil
}

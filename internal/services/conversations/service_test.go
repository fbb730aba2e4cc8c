package conversations

import (
	"context"
	"errors"
	"testing"
	"time"

	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

type convStoreFake struct {
	records  map[int64]pgrepo.ConversationRecord
	members  map[[2]int64]bool
	left     [][2]int64
	readMark [][2]int64
}

func newConvStoreFake() *convStoreFake {
	return &convStoreFake{
		records: map[int64]pgrepo.ConversationRecord{},
		members: map[[2]int64]bool{},
	}
}

func (f *convStoreFake) GetByID(_ context.Context, conversationID int64) (pgrepo.ConversationRecord, error) {
	rec, ok := f.records[conversationID]
	if !ok {
		return pgrepo.ConversationRecord{}, pgrepo.ErrConversationNotFound
	}
	return rec, nil
}

func (f *convStoreFake) ListForUser(_ context.Context, userID int64, _ int) ([]pgrepo.ConversationSummary, error) {
	var items []pgrepo.ConversationSummary
	for id, rec := range f.records {
		if f.members[[2]int64{id, userID}] {
			items = append(items, pgrepo.ConversationSummary{ConversationRecord: rec})
		}
	}
	return items, nil
}

func (f *convStoreFake) IsActiveMember(_ context.Context, conversationID, userID int64) (bool, error) {
	return f.members[[2]int64{conversationID, userID}], nil
}

func (f *convStoreFake) Leave(_ context.Context, conversationID, userID int64, _ time.Time) (bool, error) {
	key := [2]int64{conversationID, userID}
	if !f.members[key] {
		return false, nil
	}
	f.members[key] = false
	f.left = append(f.left, key)
	return true, nil
}

func (f *convStoreFake) MarkRead(_ context.Context, conversationID, userID int64, _ time.Time) error {
	f.readMark = append(f.readMark, [2]int64{conversationID, userID})
	return nil
}

func newConvFixture() (*Service, *convStoreFake) {
	store := newConvStoreFake()
	store.records[7] = pgrepo.ConversationRecord{ID: 7, UserAID: 1, UserBID: 2, ListingID: 10}
	store.members[[2]int64{7, 1}] = true
	store.members[[2]int64{7, 2}] = true
	return NewService(store, 100), store
}

func TestGetRejectsOutsider(t *testing.T) {
	svc, _ := newConvFixture()

	if _, err := svc.Get(context.Background(), 7, 99); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestGetUnknownConversation(t *testing.T) {
	svc, _ := newConvFixture()

	if _, err := svc.Get(context.Background(), 404, 1); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestLeaveKeepsConversationForPeer(t *testing.T) {
	svc, store := newConvFixture()
	ctx := context.Background()

	if err := svc.Leave(ctx, 7, 1); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if _, err := svc.Get(ctx, 7, 1); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected left member to lose access, got %v", err)
	}
	if _, err := svc.Get(ctx, 7, 2); err != nil {
		t.Fatalf("peer must keep the conversation: %v", err)
	}
	if len(store.left) != 1 {
		t.Fatalf("expected one leave record, got %d", len(store.left))
	}
}

func TestLeaveTwiceFails(t *testing.T) {
	svc, _ := newConvFixture()
	ctx := context.Background()

	if err := svc.Leave(ctx, 7, 1); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := svc.Leave(ctx, 7, 1); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant on second leave, got %v", err)
	}
}

func TestMarkReadRequiresMembership(t *testing.T) {
	svc, store := newConvFixture()
	ctx := context.Background()

	if err := svc.MarkRead(ctx, 7, 99); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if err := svc.MarkRead(ctx, 7, 2); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(store.readMark) != 1 || store.readMark[0] != [2]int64{7, 2} {
		t.Fatalf("unexpected read marks %v", store.readMark)
	}
}

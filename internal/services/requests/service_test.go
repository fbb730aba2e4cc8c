package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
)

type listingStoreStub struct {
	listings map[int64]pgrepo.ListingRecord
}

func (s *listingStoreStub) GetByID(_ context.Context, listingID int64) (pgrepo.ListingRecord, error) {
	rec, ok := s.listings[listingID]
	if !ok {
		return pgrepo.ListingRecord{}, pgrepo.ErrListingNotFound
	}
	return rec, nil
}

type requestStoreFake struct {
	nextID  int64
	records map[int64]pgrepo.RequestRecord
}

func newRequestStoreFake() *requestStoreFake {
	return &requestStoreFake{nextID: 1, records: map[int64]pgrepo.RequestRecord{}}
}

func (f *requestStoreFake) Create(_ context.Context, _ pgx.Tx, fromUserID, toUserID, listingID int64, message string, now time.Time) (pgrepo.RequestRecord, error) {
	for _, rec := range f.records {
		if rec.FromUserID == fromUserID && rec.ListingID == listingID && rec.Status == string(enums.RequestStatusPending) {
			return rec, pgrepo.ErrDuplicatePendingRequest
		}
	}
	rec := pgrepo.RequestRecord{
		ID:          f.nextID,
		FromUserID:  fromUserID,
		ToUserID:    toUserID,
		ListingID:   listingID,
		MessageText: message,
		Status:      string(enums.RequestStatusPending),
		CreatedAt:   now,
	}
	f.nextID++
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *requestStoreFake) GetForUpdate(_ context.Context, _ pgx.Tx, requestID int64) (pgrepo.RequestRecord, error) {
	rec, ok := f.records[requestID]
	if !ok {
		return pgrepo.RequestRecord{}, pgrepo.ErrRequestNotFound
	}
	return rec, nil
}

func (f *requestStoreFake) Resolve(_ context.Context, _ pgx.Tx, requestID int64, status string, now time.Time) (bool, error) {
	rec, ok := f.records[requestID]
	if !ok || rec.Status != string(enums.RequestStatusPending) {
		return false, nil
	}
	rec.Status = status
	resolvedAt := now
	rec.ResolvedAt = &resolvedAt
	f.records[requestID] = rec
	return true, nil
}

func (f *requestStoreFake) ListPendingForOwner(_ context.Context, ownerUserID int64, _ int) ([]pgrepo.PendingRequestItem, error) {
	var items []pgrepo.PendingRequestItem
	for _, rec := range f.records {
		if rec.ToUserID == ownerUserID && rec.Status == string(enums.RequestStatusPending) {
			items = append(items, pgrepo.PendingRequestItem{RequestRecord: rec})
		}
	}
	return items, nil
}

func (f *requestStoreFake) ListSentByUser(_ context.Context, fromUserID int64, _ int) ([]pgrepo.PendingRequestItem, error) {
	var items []pgrepo.PendingRequestItem
	for _, rec := range f.records {
		if rec.FromUserID == fromUserID {
			items = append(items, pgrepo.PendingRequestItem{RequestRecord: rec})
		}
	}
	return items, nil
}

type conversationStoreFake struct {
	nextID  int64
	byKey   map[[3]int64]pgrepo.ConversationRecord
	touched []int64
}

func newConversationStoreFake() *conversationStoreFake {
	return &conversationStoreFake{nextID: 100, byKey: map[[3]int64]pgrepo.ConversationRecord{}}
}

func (f *conversationStoreFake) GetOrCreate(_ context.Context, _ pgx.Tx, userA, userB, listingID int64, now time.Time) (pgrepo.ConversationRecord, bool, error) {
	if userA > userB {
		userA, userB = userB, userA
	}
	key := [3]int64{userA, userB, listingID}
	if rec, ok := f.byKey[key]; ok {
		return rec, false, nil
	}
	rec := pgrepo.ConversationRecord{
		ID:        f.nextID,
		UserAID:   userA,
		UserBID:   userB,
		ListingID: listingID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.nextID++
	f.byKey[key] = rec
	return rec, true, nil
}

func (f *conversationStoreFake) Touch(_ context.Context, _ pgx.Tx, conversationID int64, _ time.Time) error {
	f.touched = append(f.touched, conversationID)
	return nil
}

type messageStoreFake struct {
	nextID   int64
	inserted []pgrepo.MessageRecord
}

func (f *messageStoreFake) Insert(_ context.Context, _ pgx.Tx, conversationID, senderID int64, clientRef uuid.UUID, text string, now time.Time) (pgrepo.MessageRecord, bool, error) {
	f.nextID++
	rec := pgrepo.MessageRecord{
		ID:             f.nextID,
		ConversationID: conversationID,
		SenderID:       senderID,
		ClientRef:      clientRef,
		Text:           text,
		DeliveryState:  string(enums.DeliveryStateSent),
		CreatedAt:      now,
	}
	f.inserted = append(f.inserted, rec)
	return rec, false, nil
}

type escrowStoreFake struct {
	ensured [][2]int64
}

func (f *escrowStoreFake) Ensure(_ context.Context, _ pgx.Tx, conversationID, listingID int64, _ time.Time) error {
	f.ensured = append(f.ensured, [2]int64{conversationID, listingID})
	return nil
}

type signalerFake struct {
	bumped []int64
}

func (f *signalerFake) BumpNewMessages(_ context.Context, userID int64) error {
	f.bumped = append(f.bumped, userID)
	return nil
}

type requestFixture struct {
	svc      *Service
	requests *requestStoreFake
	convs    *conversationStoreFake
	msgs     *messageStoreFake
	escrow   *escrowStoreFake
	signals  *signalerFake
}

func newRequestFixture() *requestFixture {
	f := &requestFixture{
		requests: newRequestStoreFake(),
		convs:    newConversationStoreFake(),
		msgs:     &messageStoreFake{},
		escrow:   &escrowStoreFake{},
		signals:  &signalerFake{},
	}

	f.svc = NewService(Dependencies{
		RequestStore:  f.requests,
		Conversations: f.convs,
		Messages:      f.msgs,
		Escrow:        f.escrow,
		Signaler:      f.signals,
		Listings: &listingStoreStub{listings: map[int64]pgrepo.ListingRecord{
			10: {ID: 10, OwnerUserID: 2, Title: "Road bike", PriceMinor: 250_000, Currency: "NGN"},
		}},
	}, 100)
	f.svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	f.svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	return f
}

func TestSubmitRejectsOwnListing(t *testing.T) {
	f := newRequestFixture()

	if _, err := f.svc.Submit(context.Background(), 2, 10, "hi"); !errors.Is(err, ErrSelfRequest) {
		t.Fatalf("expected ErrSelfRequest, got %v", err)
	}
}

func TestSubmitUnknownListing(t *testing.T) {
	f := newRequestFixture()

	if _, err := f.svc.Submit(context.Background(), 1, 999, ""); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestSubmitDuplicateReturnsExisting(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, 1, 10, "is this available?")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	second, err := f.svc.Submit(ctx, 1, 10, "still available?")
	if !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate submit returned a different request: %d vs %d", second.ID, first.ID)
	}
}

func TestResolveAcceptMaterializesConversation(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, 1, 10, "interested")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := f.svc.Resolve(ctx, req.ID, 2, enums.DecisionAccept, "sure, let's talk")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Conversation == nil {
		t.Fatal("expected a conversation on accept")
	}
	if res.Request.Status != string(enums.RequestStatusAccepted) {
		t.Fatalf("unexpected request status %q", res.Request.Status)
	}
	if res.FirstMessage == nil || res.FirstMessage.Text != "sure, let's talk" {
		t.Fatalf("expected the reply as first message, got %+v", res.FirstMessage)
	}
	if len(f.escrow.ensured) != 1 || f.escrow.ensured[0] != [2]int64{res.Conversation.ID, 10} {
		t.Fatalf("expected escrow seeded for conversation, got %v", f.escrow.ensured)
	}
	if len(f.signals.bumped) != 1 || f.signals.bumped[0] != 1 {
		t.Fatalf("expected requester signalled, got %v", f.signals.bumped)
	}
}

func TestResolveRequiresListingOwner(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, 1, 10, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.Resolve(ctx, req.ID, 3, enums.DecisionAccept, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestResolveAcceptReplayReturnsSameConversation(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, 1, 10, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := f.svc.Resolve(ctx, req.ID, 2, enums.DecisionAccept, "")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	replay, err := f.svc.Resolve(ctx, req.ID, 2, enums.DecisionAccept, "ignored on replay")
	if err != nil {
		t.Fatalf("replayed resolve: %v", err)
	}
	if !replay.Replayed {
		t.Fatal("expected replay to be flagged")
	}
	if replay.Conversation == nil || replay.Conversation.ID != first.Conversation.ID {
		t.Fatalf("replay returned a different conversation: %+v", replay.Conversation)
	}
	if len(f.msgs.inserted) != 0 {
		t.Fatalf("replay must not insert messages, got %d", len(f.msgs.inserted))
	}
}

func TestResolveDeclineThenAcceptFails(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, 1, 10, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.Resolve(ctx, req.ID, 2, enums.DecisionDecline, ""); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := f.svc.Resolve(ctx, req.ID, 2, enums.DecisionAccept, ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

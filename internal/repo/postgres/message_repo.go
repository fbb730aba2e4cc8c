package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

type MessageRecord struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	ClientRef      uuid.UUID
	Text           string
	DeliveryState  string
	CreatedAt      time.Time
}

const messageColumns = `id, conversation_id, sender_id, client_ref, text, delivery_state, created_at`

// Insert appends a message. The unique index on (conversation_id, sender_id,
// client_ref) makes retries of the same optimistic send land on the existing
// row; the second return value reports whether the row already existed.
func (r *MessageRepo) Insert(ctx context.Context, tx pgx.Tx, conversationID, senderID int64, clientRef uuid.UUID, text string, now time.Time) (MessageRecord, bool, error) {
	if conversationID <= 0 || senderID <= 0 || strings.TrimSpace(text) == "" {
		return MessageRecord{}, false, fmt.Errorf("invalid message payload")
	}
	if clientRef == uuid.Nil {
		return MessageRecord{}, false, fmt.Errorf("client ref is required")
	}
	if tx == nil {
		return MessageRecord{}, false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec MessageRecord
	err := tx.QueryRow(ctx, `
INSERT INTO messages (
	conversation_id,
	sender_id,
	client_ref,
	text,
	delivery_state,
	created_at
) VALUES ($1, $2, $3, $4, 'sent', $5)
ON CONFLICT (conversation_id, sender_id, client_ref) DO NOTHING
RETURNING `+messageColumns+`
`, conversationID, senderID, clientRef, text, now.UTC()).Scan(
		&rec.ID,
		&rec.ConversationID,
		&rec.SenderID,
		&rec.ClientRef,
		&rec.Text,
		&rec.DeliveryState,
		&rec.CreatedAt,
	)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return MessageRecord{}, false, fmt.Errorf("insert message: %w", err)
	}

	err = tx.QueryRow(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE conversation_id = $1 AND sender_id = $2 AND client_ref = $3
`, conversationID, senderID, clientRef).Scan(
		&rec.ID,
		&rec.ConversationID,
		&rec.SenderID,
		&rec.ClientRef,
		&rec.Text,
		&rec.DeliveryState,
		&rec.CreatedAt,
	)
	if err != nil {
		return MessageRecord{}, false, fmt.Errorf("lookup message by client ref: %w", err)
	}

	return rec, true, nil
}

// ListPage returns one history page in descending (created_at, id) order.
// A nil cursor yields the newest page; a cursor pages strictly older rows.
// Callers reverse the page for display; the total order is stable across
// page boundaries because the cursor is the full ordering key.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID int64, beforeCreatedAt *time.Time, beforeID *int64, limit int) ([]MessageRecord, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("invalid conversation id")
	}
	if limit <= 0 {
		limit = 50
	}
	if r.pool == nil {
		return []MessageRecord{}, nil
	}

	var (
		rows pgx.Rows
		err  error
	)
	if beforeCreatedAt != nil && beforeID != nil {
		rows, err = r.pool.Query(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE conversation_id = $1 AND (created_at, id) < ($2, $3)
ORDER BY created_at DESC, id DESC
LIMIT $4
`, conversationID, beforeCreatedAt.UTC(), *beforeID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE conversation_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, conversationID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list message page: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRecord, 0, limit)
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ConversationID,
			&rec.SenderID,
			&rec.ClientRef,
			&rec.Text,
			&rec.DeliveryState,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}

	return items, nil
}

func (r *MessageRepo) CountForConversation(ctx context.Context, conversationID int64) (int64, error) {
	if conversationID <= 0 {
		return 0, fmt.Errorf("invalid conversation id")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int64
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM messages
WHERE conversation_id = $1
`, conversationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}

	return count, nil
}

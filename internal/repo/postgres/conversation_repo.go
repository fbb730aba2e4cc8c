package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

type ConversationRecord struct {
	ID        int64
	UserAID   int64
	UserBID   int64
	ListingID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationSummary is one row of the inbox list.
type ConversationSummary struct {
	ConversationRecord
	OtherUserID       int64
	OtherName         string
	OtherAvatarKey    string
	ListingTitle      string
	LastMessageText   string
	LastMessageAt     *time.Time
	LastMessageSender int64
	UnreadCount       int
}

const conversationColumns = `id, user_a_id, user_b_id, listing_id, created_at, updated_at`

// GetOrCreate is the idempotent creation primitive. The pair is normalized so
// the unique index on (user_a_id, user_b_id, listing_id) collapses concurrent
// creations from either participant onto one row; both callers observe the
// same id. Membership rows are ensured for both participants.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, userA, userB, listingID int64, now time.Time) (ConversationRecord, bool, error) {
	if userA <= 0 || userB <= 0 || userA == userB || listingID <= 0 {
		return ConversationRecord{}, false, fmt.Errorf("invalid conversation payload")
	}
	if tx == nil {
		return ConversationRecord{}, false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if userA > userB {
		userA, userB = userB, userA
	}

	created := true
	var rec ConversationRecord
	err := tx.QueryRow(ctx, `
INSERT INTO conversations (
	user_a_id,
	user_b_id,
	listing_id,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_a_id, user_b_id, listing_id) DO NOTHING
RETURNING `+conversationColumns+`
`, userA, userB, listingID, now.UTC()).Scan(
		&rec.ID,
		&rec.UserAID,
		&rec.UserBID,
		&rec.ListingID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return ConversationRecord{}, false, fmt.Errorf("create conversation: %w", err)
		}

		created = false
		err = tx.QueryRow(ctx, `
SELECT `+conversationColumns+`
FROM conversations
WHERE user_a_id = $1 AND user_b_id = $2 AND listing_id = $3
`, userA, userB, listingID).Scan(
			&rec.ID,
			&rec.UserAID,
			&rec.UserBID,
			&rec.ListingID,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return ConversationRecord{}, false, fmt.Errorf("lookup existing conversation: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO conversation_members (conversation_id, user_id, joined_at)
VALUES ($1, $2, $4), ($1, $3, $4)
ON CONFLICT (conversation_id, user_id) DO UPDATE SET left_at = NULL
`, rec.ID, userA, userB, now.UTC()); err != nil {
		return ConversationRecord{}, false, fmt.Errorf("ensure conversation members: %w", err)
	}

	return rec, created, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, conversationID int64) (ConversationRecord, error) {
	if conversationID <= 0 {
		return ConversationRecord{}, fmt.Errorf("invalid conversation id")
	}
	if r.pool == nil {
		return ConversationRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec ConversationRecord
	err := r.pool.QueryRow(ctx, `
SELECT `+conversationColumns+`
FROM conversations
WHERE id = $1
`, conversationID).Scan(
		&rec.ID,
		&rec.UserAID,
		&rec.UserBID,
		&rec.ListingID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversationRecord{}, ErrConversationNotFound
		}
		return ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}

	return rec, nil
}

// Touch bumps updated_at, which drives the inbox sort.
func (r *ConversationRepo) Touch(ctx context.Context, tx pgx.Tx, conversationID int64, at time.Time) error {
	if conversationID <= 0 {
		return fmt.Errorf("invalid conversation id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, `
UPDATE conversations
SET updated_at = GREATEST(updated_at, $2)
WHERE id = $1
`, conversationID, at.UTC())
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// ListForUser returns inbox summaries ordered by updated_at descending. Left
// conversations are excluded for the leaver only; the peer keeps theirs.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]ConversationSummary, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []ConversationSummary{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	c.id, c.user_a_id, c.user_b_id, c.listing_id, c.created_at, c.updated_at,
	CASE WHEN c.user_a_id = $1 THEN c.user_b_id ELSE c.user_a_id END AS other_user_id,
	COALESCE(u.display_name, ''),
	COALESCE(u.avatar_key, ''),
	COALESCE(l.title, ''),
	COALESCE(lm.text, ''),
	lm.created_at,
	COALESCE(lm.sender_id, 0),
	COALESCE((
		SELECT COUNT(*)
		FROM messages m
		WHERE m.conversation_id = c.id
			AND m.sender_id <> $1
			AND m.created_at > COALESCE(cm.last_read_at, 'epoch'::timestamptz)
	), 0) AS unread_count
FROM conversations c
JOIN conversation_members cm ON cm.conversation_id = c.id AND cm.user_id = $1
JOIN users u ON u.id = CASE WHEN c.user_a_id = $1 THEN c.user_b_id ELSE c.user_a_id END
JOIN listings l ON l.id = c.listing_id
LEFT JOIN LATERAL (
	SELECT text, created_at, sender_id
	FROM messages
	WHERE conversation_id = c.id
	ORDER BY created_at DESC, id DESC
	LIMIT 1
) lm ON TRUE
WHERE cm.left_at IS NULL
ORDER BY c.updated_at DESC, c.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationSummary, 0, limit)
	for rows.Next() {
		var item ConversationSummary
		if err := rows.Scan(
			&item.ID,
			&item.UserAID,
			&item.UserBID,
			&item.ListingID,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.OtherUserID,
			&item.OtherName,
			&item.OtherAvatarKey,
			&item.ListingTitle,
			&item.LastMessageText,
			&item.LastMessageAt,
			&item.LastMessageSender,
			&item.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}

	return items, nil
}

// IsActiveMember reports whether the user belongs to the conversation and has
// not left it.
func (r *ConversationRepo) IsActiveMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	if conversationID <= 0 || userID <= 0 {
		return false, fmt.Errorf("invalid membership payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var one int
	err := r.pool.QueryRow(ctx, `
SELECT 1
FROM conversation_members
WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
`, conversationID, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check conversation membership: %w", err)
	}

	return true, nil
}

// Leave marks the membership left. The conversation itself survives for the
// peer; neither participant may delete it unilaterally.
func (r *ConversationRepo) Leave(ctx context.Context, conversationID, userID int64, at time.Time) (bool, error) {
	if conversationID <= 0 || userID <= 0 {
		return false, fmt.Errorf("invalid leave payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result, err := r.pool.Exec(ctx, `
UPDATE conversation_members
SET left_at = $3
WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
`, conversationID, userID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("leave conversation: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkRead records the read watermark used by unread counts.
func (r *ConversationRepo) MarkRead(ctx context.Context, conversationID, userID int64, at time.Time) error {
	if conversationID <= 0 || userID <= 0 {
		return fmt.Errorf("invalid mark read payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
UPDATE conversation_members
SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), $3)
WHERE conversation_id = $1 AND user_id = $2
`, conversationID, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}

	return nil
}

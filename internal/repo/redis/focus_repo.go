package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const focusPrefix = "focus:"

// FocusRepo tracks the single open conversation per client session. The key
// expires on its own so an abandoned tab never pins a stale focus.
type FocusRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewFocusRepo(client *goredis.Client, ttl time.Duration) *FocusRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &FocusRepo{client: client, ttl: ttl}
}

// SetOpen replaces the session's focus with the given conversation. At most
// one conversation is open per session; opening another closes the first.
func (r *FocusRepo) SetOpen(ctx context.Context, sessionScope string, conversationID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if sessionScope == "" || conversationID <= 0 {
		return fmt.Errorf("invalid focus payload")
	}

	if err := r.client.Set(ctx, focusKey(sessionScope), conversationID, r.ttl).Err(); err != nil {
		return fmt.Errorf("set open conversation: %w", err)
	}
	return nil
}

// Open returns the session's open conversation id, zero when none.
func (r *FocusRepo) Open(ctx context.Context, sessionScope string) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if sessionScope == "" {
		return 0, fmt.Errorf("session scope is required")
	}

	raw, err := r.client.Get(ctx, focusKey(sessionScope)).Result()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get open conversation: %w", err)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, nil
	}
	return id, nil
}

func (r *FocusRepo) Clear(ctx context.Context, sessionScope string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if sessionScope == "" {
		return fmt.Errorf("session scope is required")
	}

	if err := r.client.Del(ctx, focusKey(sessionScope)).Err(); err != nil {
		return fmt.Errorf("clear open conversation: %w", err)
	}
	return nil
}

func focusKey(sessionScope string) string {
	return focusPrefix + sessionScope
}

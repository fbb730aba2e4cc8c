package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

const newMessagePrefix = "signal:new_messages:"

// SignalRepo keeps the per-user "new message arrived" counter that polling
// clients read to decide when to refresh and auto-scroll. It is a hint, not
// a source of truth; message rows in postgres stay authoritative.
type SignalRepo struct {
	client *goredis.Client
}

func NewSignalRepo(client *goredis.Client) *SignalRepo {
	return &SignalRepo{client: client}
}

func (r *SignalRepo) BumpNewMessages(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if err := r.client.Incr(ctx, newMessageKey(userID)).Err(); err != nil {
		return fmt.Errorf("bump new message signal: %w", err)
	}
	return nil
}

func (r *SignalRepo) NewMessages(ctx context.Context, userID int64) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	count, err := r.client.Get(ctx, newMessageKey(userID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read new message signal: %w", err)
	}
	return count, nil
}

func (r *SignalRepo) ClearNewMessages(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if err := r.client.Del(ctx, newMessageKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear new message signal: %w", err)
	}
	return nil
}

func newMessageKey(userID int64) string {
	return newMessagePrefix + strconv.FormatInt(userID, 10)
}

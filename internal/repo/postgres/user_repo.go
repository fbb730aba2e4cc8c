package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

type UserRecord struct {
	ID          int64
	Email       string
	DisplayName string
	AvatarKey   string
	Role        string
	CreatedAt   time.Time
}

type UserCredentials struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
}

func (r *UserRepo) GetByID(ctx context.Context, userID int64) (UserRecord, error) {
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, email, COALESCE(display_name, ''), COALESCE(avatar_key, ''), COALESCE(role, 'user'), created_at
FROM users
WHERE id = $1
`, userID).Scan(
		&rec.ID,
		&rec.Email,
		&rec.DisplayName,
		&rec.AvatarKey,
		&rec.Role,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("get user: %w", err)
	}

	return rec, nil
}

func (r *UserRepo) GetCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return UserCredentials{}, fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return UserCredentials{}, fmt.Errorf("postgres pool is nil")
	}

	var rec UserCredentials
	err := r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, COALESCE(role, 'user')
FROM users
WHERE email = $1
`, email).Scan(
		&rec.ID,
		&rec.Email,
		&rec.PasswordHash,
		&rec.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserCredentials{}, ErrUserNotFound
		}
		return UserCredentials{}, fmt.Errorf("get user credentials: %w", err)
	}

	return rec, nil
}

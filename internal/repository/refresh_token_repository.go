package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshToken represents a stored refresh credential. Rows are never
// deleted; revocation is logical.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RefreshTokenRepository manages refresh token persistence. Every login
// inserts a fresh row; prior rows for the same user stay untouched so
// concurrent sessions remain valid.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindActiveByUser(ctx context.Context, userID string) (*RefreshToken, error)
	RevokeByToken(ctx context.Context, token string) error
}

type refreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository constructs repository.
func NewRefreshTokenRepository(pool *pgxpool.Pool) RefreshTokenRepository {
	return &refreshTokenRepository{pool: pool}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	const query = `
        INSERT INTO refresh_tokens (user_id, token, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, revoked, created_at`

	return r.pool.QueryRow(ctx, query,
		token.UserID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.Revoked, &token.CreatedAt)
}

// FindActiveByUser returns the latest non-revoked row for the user, or
// pgx.ErrNoRows when none exists.
func (r *refreshTokenRepository) FindActiveByUser(ctx context.Context, userID string) (*RefreshToken, error) {
	const query = `
        SELECT id, user_id, token, expires_at, revoked, created_at
        FROM refresh_tokens
        WHERE user_id=$1 AND revoked=FALSE
        ORDER BY created_at DESC
        LIMIT 1`

	var token RefreshToken
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.ExpiresAt,
		&token.Revoked,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeByToken flips the revoked flag for the exact token string and
// returns pgx.ErrNoRows when no row matches.
func (r *refreshTokenRepository) RevokeByToken(ctx context.Context, tokenStr string) error {
	const query = `UPDATE refresh_tokens SET revoked=TRUE WHERE token=$1`

	cmd, err := r.pool.Exec(ctx, query, tokenStr)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

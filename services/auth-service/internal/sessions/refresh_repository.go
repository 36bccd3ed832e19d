// Package sessions persists refresh tokens. Only the SHA-256 hash of a token
// is stored; the raw value exists solely in the response to the client.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/almatopete/clinica-backend/libs/db"
)

type RefreshSession struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

type RefreshRepository struct {
	pool *db.Pool
}

func NewRefreshRepository(pool *db.Pool) *RefreshRepository {
	return &RefreshRepository{pool: pool}
}

func (r *RefreshRepository) Create(ctx context.Context, userID string, rawToken string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, HashToken(rawToken), userID, expiresAt)
	return err
}

func (r *RefreshRepository) GetByHash(ctx context.Context, hash string) (RefreshSession, error) {
	var session RefreshSession
	err := r.pool.QueryRow(ctx, `
		SELECT token_hash, user_id, expires_at, revoked_at
		FROM refresh_sessions
		WHERE token_hash = $1
	`, hash).Scan(&session.TokenHash, &session.UserID, &session.ExpiresAt, &session.RevokedAt)
	if err != nil {
		return RefreshSession{}, err
	}
	return session, nil
}

func (r *RefreshRepository) Revoke(ctx context.Context, hash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE token_hash = $1
	`, hash)
	return err
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

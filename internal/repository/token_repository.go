package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/dinetab/table-reservation/internal/model"
)

// TokenRepo persists refresh-token sessions. Only SHA-256 hashes of
// token values ever reach this layer (utils.HashRefreshRaw); rows map
// onto model.RefreshToken.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh records a new session for the user.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// GetByHash loads the session row for a token hash, revoked or not.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t       model.RefreshToken
		revoked sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &revoked, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if revoked.Valid {
		at := revoked.Time
		t.RevokedAt = &at
	}
	return t, nil
}

// ValidateRefresh returns the session when the token is still
// exchangeable. Revoked and expired tokens surface as sql.ErrNoRows so
// callers treat them exactly like tokens that never existed.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	t, err := r.GetByHash(ctx, tokenHash)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if !t.Active(time.Now().UTC()) {
		return model.RefreshToken{}, sql.ErrNoRows
	}
	return t, nil
}

// RevokeByHash ends the single session identified by the hash.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser ends every active session the user holds.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

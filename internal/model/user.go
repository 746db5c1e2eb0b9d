package model

import "time"

// User represents a row in the `users` table. Guests and employees share
// the same table; the is_employee flag is what separates their
// capabilities.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique email address.
//  Username     – unique login name; reservations reference it as guestName.
//  PasswordHash – bcrypt hashed password.
//  IsEmployee   – whether the account has staff capabilities.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	IsEmployee   bool      // users.is_employee
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Principal is the authenticated actor attached to each request by the
// JWT middleware. The reservation core trusts these three fields and
// nothing else about the caller.
type Principal struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsEmployee bool   `json:"is_employee"`
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token value is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Active reports whether the token can still be exchanged at the given
// instant: not revoked and not past its expiry.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

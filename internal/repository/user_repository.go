// Package repository holds the relational data access for accounts and
// refresh tokens. Reservation and restaurant documents live in the
// transactional document store instead; see internal/store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dinetab/table-reservation/internal/model"
	"github.com/dinetab/table-reservation/internal/utils"
)

var (
	// ErrEmailExists is returned when registering with a taken email.
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists is returned when registering with a taken username.
	ErrUsernameExists = errors.New("username already exists")
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID. The email is normalized to
// lower case; the password is stored as a bcrypt hash.
func (r *UserRepo) Create(ctx context.Context, email, username, password string, isEmployee bool, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, username, password_hash, is_employee) VALUES (?,?,?,?)",
		email, username, hash, isEmployee)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "1062") {
			if strings.Contains(msg, "username") {
				return 0, ErrUsernameExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,username,password_hash,is_employee,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsEmployee, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,username,password_hash,is_employee,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsEmployee, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

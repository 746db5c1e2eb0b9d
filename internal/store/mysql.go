package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dinetab/table-reservation/internal/model"
)

// errConflict marks a version-guarded replace that lost a race. It never
// leaves RunTransaction: the transaction is retried, and if retries run
// out the caller sees ErrTxFailed.
var errConflict = errors.New("write conflict")

// txAttempts bounds the internal retry loop for conflicting transactions.
const txAttempts = 4

// MySQL implements Store on top of a MySQL documents table. Row locks
// taken by Get (SELECT ... FOR UPDATE) serialize transactions touching
// the same documents; the version column guards replaces against handles
// read in an earlier, already-finished transaction.
type MySQL struct {
	db *sql.DB
}

// Open connects to MySQL, verifies the connection and makes sure the
// schema exists.
func Open(user, pass, host, port, name string) (*MySQL, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	s := &MySQL{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for the relational repositories
// (users, refresh tokens) that live next to the document collections.
func (s *MySQL) DB() *sql.DB { return s.db }

// Close closes the underlying connection pool.
func (s *MySQL) Close() error { return s.db.Close() }

// ensureSchema creates the three tables the service owns. Statements are
// idempotent so startup is safe to repeat.
func (s *MySQL) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection VARCHAR(64)     NOT NULL,
			id         CHAR(36)        NOT NULL,
			doc        JSON            NOT NULL,
			version    BIGINT UNSIGNED NOT NULL DEFAULT 1,
			created_at TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			email         VARCHAR(255) NOT NULL,
			username      VARCHAR(64)  NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			is_employee   BOOLEAN      NOT NULL DEFAULT FALSE,
			is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_users_email (email),
			UNIQUE KEY uq_users_username (username)
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			user_id    BIGINT UNSIGNED NOT NULL,
			token_hash CHAR(64)   NOT NULL,
			expires_at TIMESTAMP  NOT NULL,
			revoked_at TIMESTAMP  NULL DEFAULT NULL,
			created_at TIMESTAMP  NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_refresh_token_hash (token_hash),
			KEY idx_refresh_user (user_id)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RunTransaction implements Store. Conflicting transactions (deadlock,
// lock wait timeout, stale version) are rolled back and retried with a
// short backoff. Errors returned by fn are never retried.
func (s *MySQL) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrTxFailed, ctx.Err())
			}
		}

		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("%w: retries exhausted: %v", ErrTxFailed, lastErr)
}

func (s *MySQL) runOnce(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTxFailed, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isAmbiguous(err) {
			return fmt.Errorf("%w: %v", ErrTxAmbiguous, err)
		}
		if isRetryable(err) {
			return err
		}
		return fmt.Errorf("%w: commit: %v", ErrTxFailed, err)
	}
	committed = true
	return nil
}

// isRetryable reports whether the transaction may be transparently rerun:
// a lost version race, an InnoDB deadlock (1213) or a lock wait timeout
// (1205).
func isRetryable(err error) bool {
	if errors.Is(err, errConflict) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

// isAmbiguous reports whether a commit error leaves the outcome unknown.
func isAmbiguous(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn)
}

// mysqlTx adapts *sql.Tx to the Tx interface.
type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) Get(ctx context.Context, collection, id string) (*Document, error) {
	const q = `SELECT doc, version FROM documents WHERE collection = ? AND id = ? FOR UPDATE`
	var content json.RawMessage
	var version uint64
	err := t.tx.QueryRowContext(ctx, q, collection, id).Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Document{Collection: collection, ID: id, Content: content, version: version}, nil
}

func (t *mysqlTx) Insert(ctx context.Context, collection, id string, v any) error {
	content, err := json.Marshal(v)
	if err != nil {
		return err
	}
	const q = `INSERT INTO documents (collection, id, doc) VALUES (?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, q, collection, id, content); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrExists
		}
		return err
	}
	return nil
}

func (t *mysqlTx) Replace(ctx context.Context, doc *Document, v any) error {
	content, err := json.Marshal(v)
	if err != nil {
		return err
	}
	const q = `UPDATE documents SET doc = ?, version = version + 1
	           WHERE collection = ? AND id = ? AND version = ?`
	res, err := t.tx.ExecContext(ctx, q, content, doc.Collection, doc.ID, doc.version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errConflict
	}
	doc.Content = content
	doc.version++
	return nil
}

// QueryReservations implements Store. The filter and ordering run on the
// JSON document fields; reservationDateTime is stored as epoch millis so
// a numeric cast gives the right order.
func (s *MySQL) QueryReservations(ctx context.Context, guestName string, after int64) ([]model.Reservation, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	q := `SELECT doc FROM documents
	      WHERE collection = ?
	        AND CAST(JSON_UNQUOTE(JSON_EXTRACT(doc, '$.reservationDateTime')) AS SIGNED) > ?`
	args := []any{CollectionReservations, after}
	if guestName != "" {
		q += ` AND JSON_UNQUOTE(JSON_EXTRACT(doc, '$.guestName')) = ?`
		args = append(args, guestName)
	}
	q += ` ORDER BY CAST(JSON_UNQUOTE(JSON_EXTRACT(doc, '$.reservationDateTime')) AS SIGNED) DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer rows.Close()

	out := make([]model.Reservation, 0)
	for rows.Next() {
		var content json.RawMessage
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		var r model.Reservation
		if err := json.Unmarshal(content, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return out, nil
}

// QueryRestaurants implements Store.
func (s *MySQL) QueryRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	q := `SELECT doc FROM documents
	      WHERE collection = ?
	      ORDER BY JSON_UNQUOTE(JSON_EXTRACT(doc, '$.name'))`

	rows, err := s.db.QueryContext(ctx, q, CollectionRestaurants)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer rows.Close()

	out := make([]model.Restaurant, 0)
	for rows.Next() {
		var content json.RawMessage
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		var r model.Restaurant
		if err := json.Unmarshal(content, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return out, nil
}

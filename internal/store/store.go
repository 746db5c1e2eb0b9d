// Package store provides the transactional document store backing the
// reservation engine.
//
// Documents are versioned JSON blobs addressed by (collection, id). All
// mutations happen inside RunTransaction: the callback reads documents
// through the transaction, stages inserts and replaces, and everything
// commits atomically or not at all. A Replace is guarded by the version
// observed at Get time, so two transactions racing on the same document
// cannot both commit; the store retries conflicting transactions
// internally and only surfaces ErrTxFailed once retries are exhausted.
//
// Business-rule errors returned from the callback abort the transaction
// and propagate unchanged, so callers can test them with errors.Is.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dinetab/table-reservation/internal/model"
)

// Collection names used by the service.
const (
	CollectionRestaurants  = "restaurants"
	CollectionReservations = "reservations"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrExists indicates an insert hit an existing (collection, id) pair.
	ErrExists = errors.New("document already exists")

	// ErrTxFailed indicates a transaction did not reach its commit point.
	// Nothing was written; the operation may be retried safely.
	ErrTxFailed = errors.New("transaction failed")

	// ErrTxAmbiguous indicates the commit outcome is unknown (the
	// connection was lost while committing). Callers must not assume the
	// operation applied, and must not blindly retry.
	ErrTxAmbiguous = errors.New("transaction commit ambiguous")

	// ErrUnavailable indicates the store cannot be reached at all.
	ErrUnavailable = errors.New("store unavailable")

	// ErrQuery indicates a read query failed to execute.
	ErrQuery = errors.New("query failed")
)

// Document is a versioned snapshot of a stored JSON document. The version
// acts as the CAS handle for Replace: a replace only succeeds while the
// stored version still matches the one read.
type Document struct {
	Collection string
	ID         string
	Content    json.RawMessage

	version uint64
}

// Decode unmarshals the document content into v.
func (d *Document) Decode(v any) error {
	return json.Unmarshal(d.Content, v)
}

// Tx is the handle passed to a RunTransaction callback. It is only valid
// for the duration of the callback.
type Tx interface {
	// Get reads a document and locks it for the rest of the transaction.
	// Returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Insert stages a new document. Returns ErrExists on id collision.
	Insert(ctx context.Context, collection, id string, v any) error

	// Replace overwrites the document previously obtained via Get with
	// the JSON encoding of v.
	Replace(ctx context.Context, doc *Document, v any) error
}

// Store is the contract the reservation service operates against. Any
// implementation providing atomic all-or-nothing commits with conflict
// detection satisfies it; the repo ships a MySQL-backed store and an
// in-memory store used by tests.
type Store interface {
	// RunTransaction executes fn inside one atomic unit of work. Errors
	// returned by fn roll the transaction back and are returned
	// unchanged. Write conflicts with concurrent transactions are
	// retried internally before surfacing as ErrTxFailed.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	// QueryReservations returns reservations with reservationDateTime
	// after the given epoch-millis cutoff, newest first. An empty
	// guestName matches every reservation; otherwise only the named
	// guest's reservations are returned. This is a plain read outside
	// any transaction.
	QueryReservations(ctx context.Context, guestName string, after int64) ([]model.Reservation, error)

	// QueryRestaurants returns every restaurant document, ordered by
	// name. Like QueryReservations this is a plain read; the capacity
	// counters it returns may be stale by the time the caller acts.
	QueryRestaurants(ctx context.Context) ([]model.Restaurant, error)
}

// Package service implements the reservation lifecycle engine: the
// transactional create/update/status-change operations that keep a
// restaurant's per-table capacity consistent under concurrent access,
// and the authorization predicates guarding them.
package service

import (
	"errors"

	"github.com/dinetab/table-reservation/internal/store"
)

// Centralized service-layer errors. Handlers map these onto HTTP status
// codes; everything raised inside a transaction rolls it back, so none of
// them ever leaves partial writes behind.
var (
	ErrRestaurantNotFound  = errors.New("restaurant not found")
	ErrTableNotFound       = errors.New("table not found")
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrForbidden is returned when the principal may not touch the
	// reservation: a guest acting on someone else's booking, or a guest
	// attempting an employee-only status change.
	ErrForbidden = errors.New("forbidden")

	// ErrNotConfirmed is returned when an operation requires the
	// reservation to be in the confirmed state and it is not. Completed
	// and canceled are terminal; nothing transitions out of them.
	ErrNotConfirmed = errors.New("reservation is not confirmed")

	// ErrInvalidStatus is returned when a status change names a target
	// other than completed or canceled.
	ErrInvalidStatus = errors.New("status must be completed or canceled")

	// ErrCapacityExhausted is returned when the requested table has no
	// free capacity left.
	ErrCapacityExhausted = errors.New("insufficient table capacity")
)

// Store-level failures surface through the same package so callers have a
// single errors.Is vocabulary.
var (
	ErrUnavailable = store.ErrUnavailable
	ErrQueryFailed = store.ErrQuery
	ErrTxFailed    = store.ErrTxFailed
	ErrTxAmbiguous = store.ErrTxAmbiguous
)

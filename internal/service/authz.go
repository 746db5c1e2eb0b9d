package service

import "github.com/dinetab/table-reservation/internal/model"

// Authorization predicates for reservation operations. They are stateless
// and always evaluated against the reservation as freshly read inside the
// current transaction, never against a cached copy, so decisions reflect
// the authoritative state at commit time.

// CanModify reports whether the principal may edit the reservation:
// employees may touch any booking, guests only their own.
func CanModify(p model.Principal, r *model.Reservation) bool {
	return p.IsEmployee || p.Username == r.GuestName
}

// CanCancel reports whether the principal may cancel the reservation.
// Cancellation follows the same ownership rule as editing.
func CanCancel(p model.Principal, r *model.Reservation) bool {
	return CanModify(p, r)
}

// CanComplete reports whether the principal may mark a reservation
// completed. Completion is a staff capability: owning the booking is not
// enough.
func CanComplete(p model.Principal) bool {
	return p.IsEmployee
}

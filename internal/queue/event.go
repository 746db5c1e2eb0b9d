// Package queue defines reservation lifecycle messages exchanged over the
// message broker, the publisher that emits them and the background
// consumer that turns them into an audit log.
package queue

// Event types carried in ReservationEvent.Type.
const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCanceled  = "reservation.canceled"
	TypeReservationCompleted = "reservation.completed"
)

// ReservationEvent is published after a reservation transaction commits.
// It carries enough information for downstream consumers to log or
// trigger analytics without querying the primary store.
type ReservationEvent struct {
	Type                string `json:"type"`
	ReservationID       string `json:"reservation_id"`
	RestaurantID        string `json:"restaurant_id"`
	RestaurantName      string `json:"restaurant_name"`
	TableID             string `json:"table_id"`
	TableSize           int    `json:"table_size"`
	GuestName           string `json:"guest_name"`
	Status              string `json:"status"`
	ReservationDateTime int64  `json:"reservation_date_time"`
	OccurredAt          string `json:"occurred_at"`
}

package model

// Reservation statuses. A reservation is created confirmed and ends in
// exactly one of the two terminal states.
const (
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// RestaurantInfo is the snapshot of restaurant identity embedded in a
// reservation. It is always copied from the authoritative restaurant
// document at write time, never from client input.
type RestaurantInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// TableInfo snapshots the booked table. Size is resolved server-side from
// the restaurant document so a client cannot claim a different table size
// than the one it reserved.
type TableInfo struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

// Reservation is the document stored under the "reservations" collection.
// All timestamps are epoch milliseconds (UTC). Exactly one capacity unit
// of the booked table is held while Status is "confirmed"; the unit is
// returned exactly once, when the reservation leaves that state.
type Reservation struct {
	ID                  string         `json:"id"`
	RestaurantInfo      RestaurantInfo `json:"restaurantInfo"`
	GuestName           string         `json:"guestName"`
	GuestEmail          string         `json:"guestEmail"`
	ReservationDateTime int64          `json:"reservationDateTime"`
	TableInfo           TableInfo      `json:"tableInfo"`
	Status              string         `json:"status"`
	SpecialRequests     string         `json:"specialRequests,omitempty"`
	CreatedAt           int64          `json:"createdAt"`
	UpdatedAt           int64          `json:"updatedAt,omitempty"`
}

// NewReservation is the client input for creating a reservation. Only the
// restaurant and table ids are trusted; every other persisted field is
// derived server-side.
type NewReservation struct {
	RestaurantInfo struct {
		ID string `json:"id"`
	} `json:"restaurantInfo"`
	ReservationDateTime int64 `json:"reservationDateTime"`
	TableInfo           struct {
		ID string `json:"id"`
	} `json:"tableInfo"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

// UpdateReservation is the client patch for editing a confirmed
// reservation. The table id may point at a different table, in which
// case a capacity unit moves from the old table to the new one.
type UpdateReservation struct {
	GuestEmail          string `json:"guestEmail"`
	ReservationDateTime int64  `json:"reservationDateTime"`
	TableInfo           struct {
		ID string `json:"id"`
	} `json:"tableInfo"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

// UpdateStatusReservation carries the target status for a status change.
// Only "completed" and "canceled" are valid targets.
type UpdateStatusReservation struct {
	Status string `json:"status"`
}

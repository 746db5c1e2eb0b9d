package model

// Restaurant is the read-model document stored under the "restaurants"
// collection. Identity fields never change after seeding; the only part
// that mutates is the per-table capacity, and only inside the same
// transaction as the reservation write that caused the change.
//
// Fields:
//  ID      – document identifier (UUID string).
//  Name    – display name of the restaurant.
//  Email   – contact email.
//  Address – street address shown to guests.
//  Phone   – contact phone number.
//  Tables  – table classes available for booking.
type Restaurant struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	Tables  []Table `json:"tables"`
}

// Table describes one class of bookable tables. Size is the number of
// seats per table instance; Capacity counts how many tables of this size
// are currently free. Capacity must never go below zero.
type Table struct {
	ID       string `json:"id"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// FindTable returns a pointer into r.Tables for the table with the given
// id, or nil when no such table exists. The pointer aliases the slice so
// capacity adjustments made through it are visible when the restaurant
// document is written back.
func (r *Restaurant) FindTable(id string) *Table {
	for i := range r.Tables {
		if r.Tables[i].ID == id {
			return &r.Tables[i]
		}
	}
	return nil
}

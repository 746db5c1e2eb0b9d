package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dinetab/table-reservation/internal/model"
	"github.com/dinetab/table-reservation/internal/queue"
	"github.com/dinetab/table-reservation/internal/store"
)

// EventPublisher delivers reservation lifecycle events to the broker.
// Publishing happens after the transaction commits and is best-effort:
// the reservation outcome never depends on it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// ReservationService implements the reservation lifecycle operations.
// Every mutating operation runs as one transaction against the store:
// all reads establish the state the writes are validated against, and a
// conflicting concurrent commit on the same reservation or restaurant
// causes the store to retry or fail the whole unit. The service itself
// holds no state between calls and never caches capacity.
type ReservationService struct {
	store  store.Store
	window time.Duration
	events EventPublisher
	now    func() time.Time
}

// NewReservationService builds a service over the given store. window
// bounds the listing lookback (how far back reservations remain visible);
// events may be nil to disable publishing.
func NewReservationService(s store.Store, window time.Duration, events EventPublisher) *ReservationService {
	return &ReservationService{
		store:  s,
		window: window,
		events: events,
		now:    time.Now,
	}
}

// List returns reservations whose reservationDateTime falls inside the
// recent window, newest first. Employees see every reservation; guests
// only their own. Pure read, no transaction.
func (s *ReservationService) List(ctx context.Context, p model.Principal) ([]model.Reservation, error) {
	after := s.now().UTC().Add(-s.window).UnixMilli()
	guestName := p.Username
	if p.IsEmployee {
		guestName = ""
	}
	return s.store.QueryReservations(ctx, guestName, after)
}

// Create books a table for the principal. Inside one transaction it
// verifies the restaurant and table exist and have capacity, inserts the
// reservation with server-derived snapshots, and decrements the table's
// capacity. Two callers racing for the last seat cannot both commit: the
// loser re-reads capacity 0 and fails with ErrCapacityExhausted.
func (s *ReservationService) Create(ctx context.Context, input model.NewReservation, p model.Principal) (*model.Reservation, error) {
	var created *model.Reservation
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		restDoc, err := tx.Get(ctx, store.CollectionRestaurants, input.RestaurantInfo.ID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrRestaurantNotFound
		}
		if err != nil {
			return err
		}
		var rest model.Restaurant
		if err := restDoc.Decode(&rest); err != nil {
			return err
		}

		table := rest.FindTable(input.TableInfo.ID)
		if table == nil {
			return ErrTableNotFound
		}
		if table.Capacity < 1 {
			return ErrCapacityExhausted
		}

		// Snapshots come from the restaurant document just read, never
		// from client input beyond the ids.
		res := &model.Reservation{
			ID: uuid.NewString(),
			RestaurantInfo: model.RestaurantInfo{
				ID:      rest.ID,
				Name:    rest.Name,
				Address: rest.Address,
			},
			GuestName:           p.Username,
			GuestEmail:          p.Email,
			ReservationDateTime: input.ReservationDateTime,
			TableInfo:           model.TableInfo{ID: table.ID, Size: table.Size},
			Status:              model.StatusConfirmed,
			SpecialRequests:     input.SpecialRequests,
			CreatedAt:           s.now().UTC().UnixMilli(),
		}
		if err := tx.Insert(ctx, store.CollectionReservations, res.ID, res); err != nil {
			return err
		}

		table.Capacity--
		if err := tx.Replace(ctx, restDoc, &rest); err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.TypeReservationCreated, created)
	return created, nil
}

// Update edits a confirmed reservation owned by the principal (or any
// reservation, for employees). When the patch names a different table,
// one capacity unit moves from the old table to the new one in the same
// transaction; when the table is unchanged the restaurant document is
// not written at all.
func (s *ReservationService) Update(ctx context.Context, id string, patch model.UpdateReservation, p model.Principal) (*model.Reservation, error) {
	var updated *model.Reservation
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		resDoc, err := tx.Get(ctx, store.CollectionReservations, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrReservationNotFound
		}
		if err != nil {
			return err
		}
		var res model.Reservation
		if err := resDoc.Decode(&res); err != nil {
			return err
		}

		if !CanModify(p, &res) {
			return ErrForbidden
		}
		if res.Status != model.StatusConfirmed {
			return ErrNotConfirmed
		}

		restDoc, err := tx.Get(ctx, store.CollectionRestaurants, res.RestaurantInfo.ID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrRestaurantNotFound
		}
		if err != nil {
			return err
		}
		var rest model.Restaurant
		if err := restDoc.Decode(&rest); err != nil {
			return err
		}

		oldTable := rest.FindTable(res.TableInfo.ID)
		newTable := rest.FindTable(patch.TableInfo.ID)
		if oldTable == nil || newTable == nil {
			return ErrTableNotFound
		}

		if oldTable.ID != newTable.ID {
			if newTable.Capacity < 1 {
				return ErrCapacityExhausted
			}
			oldTable.Capacity++
			newTable.Capacity--
			if err := tx.Replace(ctx, restDoc, &rest); err != nil {
				return err
			}
		}

		res.GuestEmail = patch.GuestEmail
		res.ReservationDateTime = patch.ReservationDateTime
		res.TableInfo = model.TableInfo{ID: newTable.ID, Size: newTable.Size}
		res.SpecialRequests = patch.SpecialRequests
		res.UpdatedAt = s.now().UTC().UnixMilli()
		if err := tx.Replace(ctx, resDoc, &res); err != nil {
			return err
		}
		updated = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateStatus moves a confirmed reservation to completed or canceled.
// Both transitions return the held capacity unit to the table's pool;
// the terminal states accept no further mutation, so the unit can never
// be released twice. Canceling requires ownership or employee status;
// completing is employee-only.
func (s *ReservationService) UpdateStatus(ctx context.Context, id string, patch model.UpdateStatusReservation, p model.Principal) (*model.Reservation, error) {
	if patch.Status != model.StatusCompleted && patch.Status != model.StatusCanceled {
		return nil, ErrInvalidStatus
	}

	var updated *model.Reservation
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		resDoc, err := tx.Get(ctx, store.CollectionReservations, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrReservationNotFound
		}
		if err != nil {
			return err
		}
		var res model.Reservation
		if err := resDoc.Decode(&res); err != nil {
			return err
		}

		if res.Status != model.StatusConfirmed {
			return ErrNotConfirmed
		}
		if patch.Status == model.StatusCompleted {
			if !CanComplete(p) {
				return ErrForbidden
			}
		} else if !CanCancel(p, &res) {
			return ErrForbidden
		}

		restDoc, err := tx.Get(ctx, store.CollectionRestaurants, res.RestaurantInfo.ID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrRestaurantNotFound
		}
		if err != nil {
			return err
		}
		var rest model.Restaurant
		if err := restDoc.Decode(&rest); err != nil {
			return err
		}
		table := rest.FindTable(res.TableInfo.ID)
		if table == nil {
			return ErrTableNotFound
		}

		// Cancel and complete both return the seat to the pool.
		table.Capacity++
		if err := tx.Replace(ctx, restDoc, &rest); err != nil {
			return err
		}

		res.Status = patch.Status
		res.UpdatedAt = s.now().UTC().UnixMilli()
		if err := tx.Replace(ctx, resDoc, &res); err != nil {
			return err
		}
		updated = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.Status == model.StatusCanceled {
		s.publish(ctx, queue.TypeReservationCanceled, updated)
	} else {
		s.publish(ctx, queue.TypeReservationCompleted, updated)
	}
	return updated, nil
}

// publish emits a lifecycle event after a successful commit. Failures are
// logged and dropped; the write already happened.
func (s *ReservationService) publish(ctx context.Context, eventType string, res *model.Reservation) {
	if s.events == nil || res == nil {
		return
	}
	ev := queue.ReservationEvent{
		Type:                eventType,
		ReservationID:       res.ID,
		RestaurantID:        res.RestaurantInfo.ID,
		RestaurantName:      res.RestaurantInfo.Name,
		TableID:             res.TableInfo.ID,
		TableSize:           res.TableInfo.Size,
		GuestName:           res.GuestName,
		Status:              res.Status,
		ReservationDateTime: res.ReservationDateTime,
		OccurredAt:          s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		logrus.WithError(err).WithField("reservation_id", res.ID).Warn("failed to publish reservation event")
	}
}

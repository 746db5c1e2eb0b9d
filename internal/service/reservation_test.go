package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinetab/table-reservation/internal/model"
	"github.com/dinetab/table-reservation/internal/queue"
	"github.com/dinetab/table-reservation/internal/store"
)

var (
	guest    = model.Principal{Username: "alice", Email: "alice@example.com"}
	otherOne = model.Principal{Username: "bob", Email: "bob@example.com"}
	employee = model.Principal{Username: "staff", Email: "staff@dinetab.io", IsEmployee: true}
)

// fakePublisher records published events so tests can assert on them.
type fakePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

func seedRestaurant(t *testing.T, m *store.Memory, r model.Restaurant) {
	t.Helper()
	ctx := context.Background()
	err := m.RunTransaction(ctx, func(tx store.Tx) error {
		return tx.Insert(ctx, store.CollectionRestaurants, r.ID, &r)
	})
	require.NoError(t, err)
}

func loadRestaurant(t *testing.T, m *store.Memory, id string) model.Restaurant {
	t.Helper()
	ctx := context.Background()
	var out model.Restaurant
	err := m.RunTransaction(ctx, func(tx store.Tx) error {
		doc, err := tx.Get(ctx, store.CollectionRestaurants, id)
		if err != nil {
			return err
		}
		return doc.Decode(&out)
	})
	require.NoError(t, err)
	return out
}

func testRestaurant() model.Restaurant {
	return model.Restaurant{
		ID:      "rest-1",
		Name:    "Trattoria Da Mario",
		Email:   "book@damario.example",
		Address: "12 Via Roma",
		Phone:   "+39 055 123456",
		Tables: []model.Table{
			{ID: "tbl-4a", Size: 4, Capacity: 2},
			{ID: "tbl-2a", Size: 2, Capacity: 1},
			{ID: "tbl-6a", Size: 6, Capacity: 0},
		},
	}
}

func newTestService(t *testing.T) (*ReservationService, *store.Memory, *fakePublisher) {
	t.Helper()
	m := store.NewMemory()
	pub := &fakePublisher{}
	svc := NewReservationService(m, 6*time.Hour, pub)
	seedRestaurant(t, m, testRestaurant())
	return svc, m, pub
}

func TestCreate_BooksTableAndDecrementsCapacity(t *testing.T) {
	svc, m, pub := newTestService(t)
	ctx := context.Background()

	when := time.Now().Add(2 * time.Hour).UnixMilli()
	input := model.NewReservation{ReservationDateTime: when, SpecialRequests: "window seat"}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-4a"

	res, err := svc.Create(ctx, input, guest)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, "alice", res.GuestName)
	assert.Equal(t, "alice@example.com", res.GuestEmail)
	assert.Equal(t, when, res.ReservationDateTime)
	assert.Equal(t, "window seat", res.SpecialRequests)
	assert.NotZero(t, res.CreatedAt)

	// Snapshots come from the stored restaurant, not the request.
	assert.Equal(t, "Trattoria Da Mario", res.RestaurantInfo.Name)
	assert.Equal(t, "12 Via Roma", res.RestaurantInfo.Address)
	assert.Equal(t, 4, res.TableInfo.Size)

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 1, rest.FindTable("tbl-4a").Capacity)
	assert.Equal(t, []string{queue.TypeReservationCreated}, pub.types())
}

func TestCreate_UnknownRestaurant(t *testing.T) {
	svc, _, pub := newTestService(t)

	input := model.NewReservation{ReservationDateTime: time.Now().UnixMilli()}
	input.RestaurantInfo.ID = "nope"
	input.TableInfo.ID = "tbl-4a"

	_, err := svc.Create(context.Background(), input, guest)
	assert.ErrorIs(t, err, ErrRestaurantNotFound)
	assert.Empty(t, pub.types())
}

func TestCreate_UnknownTable(t *testing.T) {
	svc, _, _ := newTestService(t)

	input := model.NewReservation{ReservationDateTime: time.Now().UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-nope"

	_, err := svc.Create(context.Background(), input, guest)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestCreate_CapacityExhausted(t *testing.T) {
	svc, m, pub := newTestService(t)
	ctx := context.Background()

	input := model.NewReservation{ReservationDateTime: time.Now().UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-6a" // seeded with capacity 0

	_, err := svc.Create(ctx, input, guest)
	assert.ErrorIs(t, err, ErrCapacityExhausted)
	assert.Empty(t, pub.types())

	// The failed create must not leave a reservation behind.
	all, err := m.QueryReservations(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_LastUnitGoesToExactlyOneCaller(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	input := model.NewReservation{ReservationDateTime: time.Now().UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-2a" // capacity 1

	_, err := svc.Create(ctx, input, guest)
	require.NoError(t, err)

	_, err = svc.Create(ctx, input, otherOne)
	assert.ErrorIs(t, err, ErrCapacityExhausted)

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 0, rest.FindTable("tbl-2a").Capacity)
}

func TestCreate_ConcurrentNeverOversells(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	input := model.NewReservation{ReservationDateTime: time.Now().UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-4a" // capacity 2

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, input, guest)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCapacityExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, callers-2, exhausted)

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 0, rest.FindTable("tbl-4a").Capacity)
}

func TestCreate_CommitFailureLeavesNoTrace(t *testing.T) {
	svc, m, pub := newTestService(t)
	ctx := context.Background()

	m.FailNextCommit(store.ErrTxFailed)

	input := model.NewReservation{ReservationDateTime: time.Now().UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-4a"

	_, err := svc.Create(ctx, input, guest)
	assert.ErrorIs(t, err, ErrTxFailed)
	assert.Empty(t, pub.types())

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 2, rest.FindTable("tbl-4a").Capacity)
}

func TestCreate_PublishFailureDoesNotFailBooking(t *testing.T) {
	svc, _, pub := newTestService(t)
	pub.err = errors.New("broker down")

	input := model.NewReservation{ReservationDateTime: time.Now().UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-4a"

	res, err := svc.Create(context.Background(), input, guest)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)
}

func mustCreate(t *testing.T, svc *ReservationService, tableID string, p model.Principal) *model.Reservation {
	t.Helper()
	input := model.NewReservation{ReservationDateTime: time.Now().Add(time.Hour).UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = tableID
	res, err := svc.Create(context.Background(), input, p)
	require.NoError(t, err)
	return res
}

func TestUpdate_SameTableEditsDetailsOnly(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-4a", guest)
	before := loadRestaurant(t, m, "rest-1")

	patch := model.UpdateReservation{
		GuestEmail:          "alice+dinner@example.com",
		ReservationDateTime: res.ReservationDateTime + int64(time.Hour/time.Millisecond),
		SpecialRequests:     "birthday cake",
	}
	patch.TableInfo.ID = "tbl-4a"

	updated, err := svc.Update(ctx, res.ID, patch, guest)
	require.NoError(t, err)
	assert.Equal(t, "alice+dinner@example.com", updated.GuestEmail)
	assert.Equal(t, "birthday cake", updated.SpecialRequests)
	assert.NotZero(t, updated.UpdatedAt)
	assert.Equal(t, model.StatusConfirmed, updated.Status)

	after := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, before.FindTable("tbl-4a").Capacity, after.FindTable("tbl-4a").Capacity)
}

func TestUpdate_TableMoveShiftsCapacity(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-4a", guest)

	patch := model.UpdateReservation{
		GuestEmail:          res.GuestEmail,
		ReservationDateTime: res.ReservationDateTime,
	}
	patch.TableInfo.ID = "tbl-2a"

	updated, err := svc.Update(ctx, res.ID, patch, guest)
	require.NoError(t, err)
	assert.Equal(t, "tbl-2a", updated.TableInfo.ID)
	assert.Equal(t, 2, updated.TableInfo.Size)

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 2, rest.FindTable("tbl-4a").Capacity, "old table gets its unit back")
	assert.Equal(t, 0, rest.FindTable("tbl-2a").Capacity, "new table loses one unit")
}

func TestUpdate_TableMoveToFullTableFailsAtomically(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-4a", guest)

	patch := model.UpdateReservation{
		GuestEmail:          res.GuestEmail,
		ReservationDateTime: res.ReservationDateTime,
	}
	patch.TableInfo.ID = "tbl-6a" // capacity 0

	_, err := svc.Update(ctx, res.ID, patch, guest)
	assert.ErrorIs(t, err, ErrCapacityExhausted)

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 1, rest.FindTable("tbl-4a").Capacity, "held unit stays put")
	assert.Equal(t, 0, rest.FindTable("tbl-6a").Capacity)
}

func TestUpdate_OtherGuestForbiddenEmployeeAllowed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-4a", guest)

	patch := model.UpdateReservation{
		GuestEmail:          res.GuestEmail,
		ReservationDateTime: res.ReservationDateTime,
	}
	patch.TableInfo.ID = "tbl-4a"

	_, err := svc.Update(ctx, res.ID, patch, otherOne)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, res.ID, patch, employee)
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.GuestName, "employee edit keeps the guest")
}

func TestUpdate_TerminalReservationRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-4a", guest)
	_, err := svc.UpdateStatus(ctx, res.ID, model.UpdateStatusReservation{Status: model.StatusCanceled}, guest)
	require.NoError(t, err)

	patch := model.UpdateReservation{
		GuestEmail:          res.GuestEmail,
		ReservationDateTime: res.ReservationDateTime,
	}
	patch.TableInfo.ID = "tbl-4a"

	_, err = svc.Update(ctx, res.ID, patch, guest)
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestUpdate_UnknownReservation(t *testing.T) {
	svc, _, _ := newTestService(t)

	patch := model.UpdateReservation{ReservationDateTime: time.Now().UnixMilli()}
	patch.TableInfo.ID = "tbl-4a"

	_, err := svc.Update(context.Background(), "missing", patch, guest)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestUpdateStatus_CancelReturnsCapacity(t *testing.T) {
	svc, m, pub := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-2a", guest)
	rest := loadRestaurant(t, m, "rest-1")
	require.Equal(t, 0, rest.FindTable("tbl-2a").Capacity)

	updated, err := svc.UpdateStatus(ctx, res.ID, model.UpdateStatusReservation{Status: model.StatusCanceled}, guest)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, updated.Status)
	assert.NotZero(t, updated.UpdatedAt)

	rest = loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 1, rest.FindTable("tbl-2a").Capacity)
	assert.Equal(t, []string{queue.TypeReservationCreated, queue.TypeReservationCanceled}, pub.types())
}

func TestUpdateStatus_CompleteIsEmployeeOnly(t *testing.T) {
	svc, m, pub := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-4a", guest)

	_, err := svc.UpdateStatus(ctx, res.ID, model.UpdateStatusReservation{Status: model.StatusCompleted}, guest)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateStatus(ctx, res.ID, model.UpdateStatusReservation{Status: model.StatusCompleted}, employee)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 2, rest.FindTable("tbl-4a").Capacity)
	assert.Equal(t, []string{queue.TypeReservationCreated, queue.TypeReservationCompleted}, pub.types())
}

func TestUpdateStatus_CancelForbiddenForOtherGuest(t *testing.T) {
	svc, _, _ := newTestService(t)

	res := mustCreate(t, svc, "tbl-4a", guest)

	_, err := svc.UpdateStatus(context.Background(), res.ID, model.UpdateStatusReservation{Status: model.StatusCanceled}, otherOne)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateStatus_InvalidTarget(t *testing.T) {
	svc, _, _ := newTestService(t)

	res := mustCreate(t, svc, "tbl-4a", guest)

	for _, target := range []string{"", "confirmed", "archived"} {
		_, err := svc.UpdateStatus(context.Background(), res.ID, model.UpdateStatusReservation{Status: target}, employee)
		assert.ErrorIs(t, err, ErrInvalidStatus, "target %q", target)
	}
}

func TestUpdateStatus_CapacityReleasedExactlyOnce(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	res := mustCreate(t, svc, "tbl-2a", guest)

	_, err := svc.UpdateStatus(ctx, res.ID, model.UpdateStatusReservation{Status: model.StatusCanceled}, guest)
	require.NoError(t, err)

	// A second transition out of confirmed must fail and not touch
	// capacity again.
	_, err = svc.UpdateStatus(ctx, res.ID, model.UpdateStatusReservation{Status: model.StatusCanceled}, guest)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	_, err = svc.UpdateStatus(ctx, res.ID, model.UpdateStatusReservation{Status: model.StatusCompleted}, employee)
	assert.ErrorIs(t, err, ErrNotConfirmed)

	rest := loadRestaurant(t, m, "rest-1")
	assert.Equal(t, 1, rest.FindTable("tbl-2a").Capacity)
}

func TestList_NeverMutatesStoreState(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, "tbl-4a", guest)
	mustCreate(t, svc, "tbl-2a", otherOne)

	restBefore := loadRestaurant(t, m, "rest-1")
	docsBefore, err := m.QueryReservations(ctx, "", 0)
	require.NoError(t, err)

	_, err = svc.List(ctx, guest)
	require.NoError(t, err)
	_, err = svc.List(ctx, employee)
	require.NoError(t, err)

	restAfter := loadRestaurant(t, m, "rest-1")
	docsAfter, err := m.QueryReservations(ctx, "", 0)
	require.NoError(t, err)

	assert.Equal(t, restBefore, restAfter, "capacities untouched by listing")
	assert.Equal(t, docsBefore, docsAfter, "reservation documents untouched by listing")
}

func TestLifecycle_CancelFreesTableForNextGuest(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	input := model.NewReservation{ReservationDateTime: time.Now().Add(time.Hour).UnixMilli()}
	input.RestaurantInfo.ID = "rest-1"
	input.TableInfo.ID = "tbl-2a" // capacity 1

	r1, err := svc.Create(ctx, input, guest)
	require.NoError(t, err)

	_, err = svc.Create(ctx, input, otherOne)
	require.ErrorIs(t, err, ErrCapacityExhausted)

	canceled, err := svc.UpdateStatus(ctx, r1.ID, model.UpdateStatusReservation{Status: model.StatusCanceled}, employee)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)

	rest := loadRestaurant(t, m, "rest-1")
	require.Equal(t, 1, rest.FindTable("tbl-2a").Capacity)

	r2, err := svc.Create(ctx, input, otherOne)
	require.NoError(t, err)
	assert.Equal(t, "bob", r2.GuestName)
}

func TestList_WindowAndOwnershipFiltering(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	// Capacity is irrelevant here; seed a roomier restaurant.
	seedRestaurant(t, m, model.Restaurant{
		ID:     "rest-2",
		Name:   "Big Hall",
		Tables: []model.Table{{ID: "hall-1", Size: 8, Capacity: 100}},
	})

	mk := func(offset time.Duration, p model.Principal) {
		input := model.NewReservation{ReservationDateTime: base.Add(offset).UnixMilli()}
		input.RestaurantInfo.ID = "rest-2"
		input.TableInfo.ID = "hall-1"
		_, err := svc.Create(ctx, input, p)
		require.NoError(t, err)
	}

	mk(time.Hour, guest)       // upcoming, visible
	mk(-2*time.Hour, guest)    // inside the 6h window, visible
	mk(-7*time.Hour, guest)    // outside the window, hidden
	mk(30*time.Minute, otherOne)

	mine, err := svc.List(ctx, guest)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "alice", mine[0].GuestName)
	assert.Equal(t, "alice", mine[1].GuestName)
	assert.Greater(t, mine[0].ReservationDateTime, mine[1].ReservationDateTime, "newest first")

	all, err := svc.List(ctx, employee)
	require.NoError(t, err)
	assert.Len(t, all, 3, "employees see every guest inside the window")
}

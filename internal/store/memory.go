package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/dinetab/table-reservation/internal/model"
)

// Memory is an in-process Store used by tests. Writes are buffered per
// transaction and applied atomically at commit under a single mutex, so
// transactions are fully serialized. Versions are still validated at
// apply time, which catches handles carried over from a previous
// transaction the same way the MySQL store does.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string]memDoc

	failNext error
}

type memDoc struct {
	content []byte
	version uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]memDoc)}
}

// FailNextCommit makes the next otherwise-successful transaction fail
// with the given error instead of applying its writes. Tests use it to
// exercise the TransactionFailed/TransactionAmbiguous paths.
func (m *Memory) FailNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

type memWrite struct {
	doc     *Document
	content []byte
	insert  bool
}

type memTx struct {
	store  *Memory
	writes []memWrite
}

// RunTransaction implements Store.
func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}

	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}

	// Validate staged writes before touching anything, then apply.
	for _, w := range tx.writes {
		coll := m.docs[w.doc.Collection]
		cur, ok := coll[w.doc.ID]
		if w.insert {
			if ok {
				return ErrExists
			}
			continue
		}
		if !ok || cur.version != w.doc.version {
			return ErrTxFailed
		}
	}
	for _, w := range tx.writes {
		coll := m.docs[w.doc.Collection]
		if coll == nil {
			coll = make(map[string]memDoc)
			m.docs[w.doc.Collection] = coll
		}
		if w.insert {
			coll[w.doc.ID] = memDoc{content: w.content, version: 1}
			continue
		}
		coll[w.doc.ID] = memDoc{content: w.content, version: w.doc.version + 1}
	}
	return nil
}

func (t *memTx) Get(ctx context.Context, collection, id string) (*Document, error) {
	// Reads observe writes staged earlier in the same transaction.
	for i := len(t.writes) - 1; i >= 0; i-- {
		w := t.writes[i]
		if w.doc.Collection == collection && w.doc.ID == id {
			return &Document{
				Collection: collection,
				ID:         id,
				Content:    append(json.RawMessage(nil), w.content...),
				version:    w.doc.version,
			}, nil
		}
	}
	d, ok := t.store.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{
		Collection: collection,
		ID:         id,
		Content:    append(json.RawMessage(nil), d.content...),
		version:    d.version,
	}, nil
}

func (t *memTx) Insert(ctx context.Context, collection, id string, v any) error {
	content, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, ok := t.store.docs[collection][id]; ok {
		return ErrExists
	}
	t.writes = append(t.writes, memWrite{
		doc:     &Document{Collection: collection, ID: id},
		content: content,
		insert:  true,
	})
	return nil
}

func (t *memTx) Replace(ctx context.Context, doc *Document, v any) error {
	content, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, memWrite{doc: doc, content: content})
	doc.Content = content
	return nil
}

// QueryReservations implements Store.
func (m *Memory) QueryReservations(ctx context.Context, guestName string, after int64) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Reservation, 0)
	for _, d := range m.docs[CollectionReservations] {
		var r model.Reservation
		if err := json.Unmarshal(d.content, &r); err != nil {
			return nil, err
		}
		if r.ReservationDateTime <= after {
			continue
		}
		if guestName != "" && r.GuestName != guestName {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReservationDateTime > out[j].ReservationDateTime
	})
	return out, nil
}

// QueryRestaurants implements Store.
func (m *Memory) QueryRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Restaurant, 0)
	for _, d := range m.docs[CollectionRestaurants] {
		var r model.Restaurant
		if err := json.Unmarshal(d.content, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

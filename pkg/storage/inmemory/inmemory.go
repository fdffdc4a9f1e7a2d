// Package inmemory provides a map backed storage.Driver for tests and local
// development.
package inmemory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/eduspark/portal/pkg/storage"
)

// Driver implements storage.Driver in memory. Records keep insertion order
// within a collection.
type Driver struct {
	mu          sync.RWMutex
	collections map[string][]storage.Record
	now         func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		collections: make(map[string][]storage.Record),
		now:         time.Now,
	}
}

// Insert stores a normalized copy of rec.
func (d *Driver) Insert(_ context.Context, collection string, rec storage.Record) (storage.Record, error) {
	prepared, err := storage.Prepare(collection, rec, d.now())
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.collections[collection] {
		if existing.ID() == prepared.ID() {
			return nil, fmt.Errorf("duplicate %s %q in %s", storage.ColumnID, prepared.ID(), collection)
		}
	}
	d.collections[collection] = append(d.collections[collection], prepared)

	return clone(prepared), nil
}

// Select returns copies of the matching records.
func (d *Driver) Select(_ context.Context, q storage.Query) ([]storage.Record, error) {
	filters, err := prepareQuery(q)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []storage.Record{}
	for _, rec := range d.collections[q.Collection] {
		if matches(rec, filters) {
			out = append(out, clone(rec))
		}
	}

	sortRecords(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Single returns the only matching record.
func (d *Driver) Single(ctx context.Context, q storage.Query) (storage.Record, error) {
	recs, err := d.Select(ctx, q.Take(2))
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, storage.NotFoundError{Collection: q.Collection}
	case 1:
		return recs[0], nil
	default:
		return nil, storage.ErrMultipleRows
	}
}

// Update merges patch into the matching records.
func (d *Driver) Update(_ context.Context, q storage.Query, patch storage.Record) (int, error) {
	filters, err := prepareQuery(q)
	if err != nil {
		return 0, err
	}
	if _, ok := patch[storage.ColumnID]; ok {
		return 0, fmt.Errorf("cannot update %s", storage.ColumnID)
	}
	normalized, err := storage.Encode(patch)
	if err != nil {
		return 0, err
	}
	for col := range normalized {
		if err := storage.ValidateIdentifier(col); err != nil {
			return 0, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, rec := range d.collections[q.Collection] {
		if !matches(rec, filters) {
			continue
		}
		for k, v := range normalized {
			rec[k] = v
		}
		n++
	}
	return n, nil
}

// Delete removes the matching records.
func (d *Driver) Delete(_ context.Context, q storage.Query) (int, error) {
	filters, err := prepareQuery(q)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	recs := d.collections[q.Collection]
	kept := recs[:0]
	n := 0
	for _, rec := range recs {
		if matches(rec, filters) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	d.collections[q.Collection] = kept
	return n, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// prepareQuery validates q and normalizes its filter values so they compare
// equal to stored values.
func prepareQuery(q storage.Query) ([]storage.Filter, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filters := make([]storage.Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := storage.Normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Column, err)
		}
		filters[i] = storage.Filter{Column: f.Column, Value: v}
	}
	return filters, nil
}

func matches(rec storage.Record, filters []storage.Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(rec[f.Column], f.Value) {
			return false
		}
	}
	return true
}

// sortRecords sorts by order. Ties keep insertion order, reversed when the
// last ordering is descending.
func sortRecords(recs []storage.Record, order []storage.Order) {
	if len(order) == 0 {
		return
	}
	if order[len(order)-1].Descending {
		for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
			recs[i], recs[j] = recs[j], recs[i]
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, o := range order {
			c := compare(recs[i][o.Column], recs[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compare orders JSON values: null, then booleans, numbers, strings.
// Values of other kinds compare equal.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func clone(rec storage.Record) storage.Record {
	out := make(storage.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

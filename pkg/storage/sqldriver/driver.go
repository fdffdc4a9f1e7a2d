// Package sqldriver implements storage.Driver on database/sql. The sqlite and
// postgres packages open the connection and pick the Dialect.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eduspark/portal/pkg/storage"
)

// Driver implements storage.Driver over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
	now     func() time.Time

	mu     sync.Mutex
	tables map[string]bool
}

// New wraps db. The caller hands ownership of db to the Driver.
func New(db *sql.DB, dialect Dialect) *Driver {
	return &Driver{
		DB:      db,
		dialect: dialect,
		now:     time.Now,
		tables:  make(map[string]bool),
	}
}

// ensureTable creates the collection table on first use.
func (d *Driver) ensureTable(ctx context.Context, collection string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tables[collection] {
		return nil
	}
	if _, err := d.DB.ExecContext(ctx, d.dialect.CreateTable(collection)); err != nil {
		return fmt.Errorf("creating table %s: %w", collection, err)
	}
	d.tables[collection] = true
	return nil
}

// Insert stores rec.
func (d *Driver) Insert(ctx context.Context, collection string, rec storage.Record) (storage.Record, error) {
	prepared, err := storage.Prepare(collection, rec, d.now())
	if err != nil {
		return nil, err
	}
	if err := d.ensureTable(ctx, collection); err != nil {
		return nil, err
	}

	data, err := json.Marshal(prepared)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	stmt := fmt.Sprintf("INSERT INTO %q (id, data) VALUES (%s, %s)",
		collection, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	if _, err := d.DB.ExecContext(ctx, stmt, prepared.ID(), string(data)); err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", collection, err)
	}

	return prepared, nil
}

// Select returns the matching records.
func (d *Driver) Select(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := d.ensureTable(ctx, q.Collection); err != nil {
		return nil, err
	}

	where, args, err := d.where(q.Filters)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT data FROM %q%s", q.Collection, where)
	sb.WriteString(d.orderBy(q.Order))
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := d.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.Collection, err)
		}
		var rec storage.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", q.Collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", q.Collection, err)
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

// Update merges patch into the matching records inside one transaction.
func (d *Driver) Update(ctx context.Context, q storage.Query, patch storage.Record) (int, error) {
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

	recs, err := d.Select(ctx, storage.Query{Collection: q.Collection, Filters: q.Filters})
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt := fmt.Sprintf("UPDATE %q SET data = %s WHERE id = %s",
		q.Collection, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	for _, rec := range recs {
		for k, v := range normalized {
			rec[k] = v
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encoding record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, string(data), rec.ID()); err != nil {
			return 0, fmt.Errorf("updating %s: %w", q.Collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing update: %w", err)
	}
	return len(recs), nil
}

// Delete removes the matching records.
func (d *Driver) Delete(ctx context.Context, q storage.Query) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	if err := d.ensureTable(ctx, q.Collection); err != nil {
		return 0, err
	}

	where, args, err := d.where(q.Filters)
	if err != nil {
		return 0, err
	}

	res, err := d.DB.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q%s", q.Collection, where), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", q.Collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", q.Collection, err)
	}
	return int(n), nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

func (d *Driver) where(filters []storage.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for i, f := range filters {
		v, err := storage.Normalize(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("filter %s: %w", f.Column, err)
		}
		cond, arg, err := d.dialect.Filter(f.Column, v, i+1)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, arg)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// orderBy adds seq as the final key so rows with equal sort values keep
// insertion order, reversed along with the last descending column.
func (d *Driver) orderBy(order []storage.Order) string {
	if len(order) == 0 {
		return " ORDER BY seq"
	}

	parts := make([]string, 0, len(order)+1)
	for _, o := range order {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		parts = append(parts, d.dialect.OrderExpr(o.Column)+" "+dir)
	}
	if order[len(order)-1].Descending {
		parts = append(parts, "seq DESC")
	} else {
		parts = append(parts, "seq ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

var _ storage.Driver = (*Driver)(nil)

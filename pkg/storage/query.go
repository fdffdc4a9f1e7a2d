package storage

import "fmt"

// Filter matches records whose Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Order sorts results by Column.
type Order struct {
	Column     string
	Descending bool
}

// Query selects records from a collection. Filters are combined with AND.
// A zero Limit means no limit.
type Query struct {
	Collection string
	Filters    []Filter
	Order      []Order
	Limit      int
}

// From starts a query over collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

// Where returns a copy of q with an equality filter added.
func (q Query) Where(column string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Value: value})
	return q
}

// OrderBy returns a copy of q with an ordering added.
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = append(append([]Order(nil), q.Order...), Order{Column: column, Descending: descending})
	return q
}

// Take returns a copy of q limited to n records.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Validate checks every identifier in q.
func (q Query) Validate() error {
	if err := ValidateIdentifier(q.Collection); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := ValidateIdentifier(f.Column); err != nil {
			return err
		}
	}
	for _, o := range q.Order {
		if err := ValidateIdentifier(o.Column); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

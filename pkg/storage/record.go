package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	// ColumnID is the primary key column of every record.
	ColumnID = "id"

	// ColumnCreatedAt holds the insertion time in TimeFormat.
	ColumnCreatedAt = "created_at"

	// TimeFormat is a fixed width UTC timestamp so lexical and chronological
	// order agree.
	TimeFormat = "2006-01-02T15:04:05.000000Z"
)

var identifierRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Record is a single stored row. Values follow encoding/json conventions:
// numbers come back as float64.
type Record map[string]any

// String returns the string value at key, or "".
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns the numeric value at key truncated to int, or 0.
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// Bool returns the boolean value at key, or false.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Time parses the timestamp at key. It accepts TimeFormat and RFC 3339.
func (r Record) Time(key string) time.Time {
	s := r.String(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ID returns the record id.
func (r Record) ID() string {
	return r.String(ColumnID)
}

// Encode converts v, a struct with json tags or a map, into a Record.
func Encode(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("encoding record: %T is not an object", v)
	}
	return rec, nil
}

// Decode fills v, a pointer to a struct with json tags, from rec.
func Decode(rec Record, v any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}

// DecodeAll decodes every record into a new T.
func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := Decode(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Prepare normalizes rec for insertion into collection: values go through a
// JSON round trip, and missing id and created_at columns are filled in.
func Prepare(collection string, rec Record, now time.Time) (Record, error) {
	if err := ValidateIdentifier(collection); err != nil {
		return nil, err
	}

	out, err := Encode(rec)
	if err != nil {
		return nil, err
	}
	for col := range out {
		if err := ValidateIdentifier(col); err != nil {
			return nil, err
		}
	}

	if id, ok := out[ColumnID]; !ok || id == "" || id == nil {
		out[ColumnID] = uuid.NewString()
	} else if _, isString := id.(string); !isString {
		return nil, fmt.Errorf("%s must be a string, got %T", ColumnID, id)
	}
	if _, ok := out[ColumnCreatedAt]; !ok {
		out[ColumnCreatedAt] = now.UTC().Format(TimeFormat)
	}

	return out, nil
}

// Normalize returns v as it would read back from the store.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateIdentifier checks that name is safe to use as a collection or
// column name.
func ValidateIdentifier(name string) error {
	if !identifierRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

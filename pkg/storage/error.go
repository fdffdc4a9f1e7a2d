package storage

import "errors"

var (
	// ErrMultipleRows is returned by Single when more than one record matches.
	ErrMultipleRows = errors.New("query matched more than one record")

	// ErrInvalidIdentifier is returned for collection or column names that are
	// not lower case snake case identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// NotFoundError is returned when no record matches a query.
type NotFoundError struct {
	Collection string
}

func (e NotFoundError) Error() string {
	if e.Collection == "" {
		return "record not found"
	}

	return "record not found in " + e.Collection
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

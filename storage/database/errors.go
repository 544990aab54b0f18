package database

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgreSQL error codes
const (
	uniqueViolation           = "23505"
	foreignKeyViolation       = "23503"
	invalidTextRepresentation = "22P02"
)

// Constraints maps constraint names to the domain error reported when they are violated.
type Constraints map[string]error

// Map translates constraint violations and sql.ErrNoRows. Unknown errors are wrapped with msg.
func (c Constraints) Map(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows && notFound != nil {
		return notFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case invalidTextRepresentation:
			// malformed uuid: no such row
			if notFound != nil {
				return notFound
			}
		case uniqueViolation, foreignKeyViolation:
			if domainErr, ok := c[pqErr.Constraint]; ok {
				return domainErr
			}
		}
	}
	return errors.Wrap(err, msg)
}

// IsUniqueViolation reports whether err is a violation of the named unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}

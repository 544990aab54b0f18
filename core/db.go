package core

import (
	"context"
	"time"
)

// Transactor runs units of work. Repositories called with the context handed to fn
// take part in the same transaction; an error returned by fn rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithinReadTx runs fn on a read-only snapshot, so aggregates read inside it are consistent.
	WithinReadTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock returns the current time. Services never call time.Now directly.
type Clock func() time.Time

// SystemClock is the default Clock (UTC wall time).
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Page selects a window of a list query.
type Page struct {
	Number int `query:"page"`
	Size   int `query:"-"`
}

func (p Page) Limit() int {
	if p.Size <= 0 {
		return 10
	}
	return p.Size
}

func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit()
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Package dummydb is an in-memory store implementing every repository of the application.
// It emulates the unique constraints and cascades of the PostgreSQL schema so that services
// can be exercised without a database.
package dummydb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/core/verification"
)

type (
	DB struct {
		mu sync.Mutex
		t  *tables
	}

	tables struct {
		seq         int
		inserted    map[string]int // row id -> insertion sequence
		users       map[string]user.User
		profiles    map[string]user.Profile
		categories  map[string]catalog.Category
		tags        map[string]catalog.Tag
		courses     map[string]catalog.Course
		courseTags  map[string][]string
		lessons     map[string]curriculum.Lesson
		enrollments map[string]enrollment.Enrollment
		progress    map[string]enrollment.Progress
		activities  map[string]enrollment.Activity
		reviews     map[string]review.Review
		submissions map[string]verification.Submission
	}

	txKey struct{}
)

func Open() (*DB, error) {
	return &DB{t: newTables()}, nil
}

func newTables() *tables {
	return &tables{
		inserted:    make(map[string]int),
		users:       make(map[string]user.User),
		profiles:    make(map[string]user.Profile),
		categories:  make(map[string]catalog.Category),
		tags:        make(map[string]catalog.Tag),
		courses:     make(map[string]catalog.Course),
		courseTags:  make(map[string][]string),
		lessons:     make(map[string]curriculum.Lesson),
		enrollments: make(map[string]enrollment.Enrollment),
		progress:    make(map[string]enrollment.Progress),
		activities:  make(map[string]enrollment.Activity),
		reviews:     make(map[string]review.Review),
		submissions: make(map[string]verification.Submission),
	}
}

// clone copies every table. Rows are values and are never mutated in place, so a shallow
// copy of each map is enough to restore them.
func (t *tables) clone() *tables {
	c := newTables()
	c.seq = t.seq
	for k, v := range t.inserted {
		c.inserted[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.profiles {
		c.profiles[k] = v
	}
	for k, v := range t.categories {
		c.categories[k] = v
	}
	for k, v := range t.tags {
		c.tags[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.courseTags {
		c.courseTags[k] = v
	}
	for k, v := range t.lessons {
		c.lessons[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.progress {
		c.progress[k] = v
	}
	for k, v := range t.activities {
		c.activities[k] = v
	}
	for k, v := range t.reviews {
		c.reviews[k] = v
	}
	for k, v := range t.submissions {
		c.submissions[k] = v
	}
	return c
}

func (t *tables) track(id string) {
	t.seq++
	t.inserted[id] = t.seq
}

// newer reports whether row a sorts before row b in a "most recent first" listing.
func (t *tables) newer(aID string, aTime time.Time, bID string, bTime time.Time) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return t.inserted[aID] > t.inserted[bID]
}

// lock acquires the store unless ctx runs in one of its transactions, which already holds it.
func (db *DB) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == db {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// Transactor serializes units of work on the store and discards their writes when they fail.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) == t.db {
		return fn(ctx)
	}

	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	snapshot := t.db.t.clone()
	defer func() {
		if p := recover(); p != nil {
			t.db.t = snapshot
			panic(p)
		}
		if err != nil {
			t.db.t = snapshot
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, t.db))
}

func (t *Transactor) WithinReadTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.WithinTx(ctx, fn)
}

// window returns the bounds of page within a list of n rows.
func window(n int, page core.Page) (lo, hi int) {
	lo = page.Offset()
	if lo > n {
		lo = n
	}
	hi = lo + page.Limit()
	if hi > n {
		hi = n
	}
	return lo, hi
}

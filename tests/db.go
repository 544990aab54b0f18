package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/learnhub/storage/database"
)

// tables lists every application table, children first.
var tables = []string{
	"verification_submissions",
	"reviews",
	"course_activities",
	"progress",
	"enrollments",
	"lessons",
	"course_tags",
	"courses",
	"tags",
	"categories",
	"employee_profiles",
	"instructor_profiles",
	"student_profiles",
	"users",
}

// PrepareDB connects to the PostgreSQL database named by TEST_DATABASE_URL, migrates it and
// empties every table. Tests are skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("OpenURL() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " CASCADE"); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

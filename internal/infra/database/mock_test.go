package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var whitespace = regexp.MustCompile(`\s+`)

func squash(q string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(q, " "))
}

// sameQuery compares SQL text ignoring layout differences.
var sameQuery = sqlmock.QueryMatcherFunc(func(expected, actual string) error {
	if squash(expected) != squash(actual) {
		return fmt.Errorf("query mismatch:\n  expected: %s\n  actual:   %s", squash(expected), squash(actual))
	}
	return nil
})

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sameQuery))
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

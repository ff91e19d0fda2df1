//go:build integration

package integration

import (
	"testing"

	"github.com/dimitrije/querydraft/internal/testutil"
)

// setupTest starts a migrated PostgreSQL container for one test
func setupTest(t *testing.T) *testutil.TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	return testutil.SetupTestDB(t)
}

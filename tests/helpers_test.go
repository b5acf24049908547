// Package tests contains repository and queue integration tests that run against PostgreSQL
package tests

import (
	"errors"
	"testing"

	testingutil "github.com/amirphl/campaign-dispatcher/testing"
	"github.com/stretchr/testify/require"
)

// withDB runs fn against a fresh migrated database, skipping when no server is reachable
func withDB(t *testing.T, fn func(testDB *testingutil.TestDB) error) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	err := testingutil.TestWithDB(fn)
	if errors.Is(err, testingutil.ErrDatabaseUnavailable) {
		t.Skipf("postgres not available: %v", err)
	}
	require.NoError(t, err)
}

package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationFilesAreOrdered(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"0001_wallets.sql", "0002_escrows.sql", "0003_prices.sql"}, names)
}

func TestMigrationsDeclareEngineTables(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0002_escrows.sql")
	require.NoError(t, err)
	require.Contains(t, string(body), "retired_at")
	require.Contains(t, string(body), "'WITHDRAWN'")
}

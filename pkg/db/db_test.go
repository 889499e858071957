package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, f := range files {
		body, err := fs.ReadFile(Migrations(), f)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", f)
		assert.Contains(t, string(body), "-- +goose Down", f)
	}
}

func TestMigrations_DedupIndex(t *testing.T) {
	body, err := fs.ReadFile(Migrations(), "00002_transactions.sql")
	require.NoError(t, err)
	sql := strings.Join(strings.Fields(string(body)), " ")
	assert.Contains(t, sql, "ON transactions (entry_source, external_id) WHERE external_id IS NOT NULL")
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(Config{DSN: "postgres://%zz"}, nil)
	assert.Error(t, err)
}

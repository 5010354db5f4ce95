package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

func TestWithListOpts(t *testing.T) {
	since := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	base := "SELECT id FROM order_snapshots WHERE 1=1"

	cases := []struct {
		desc      string
		opts      domain.ListOpts
		wantQuery string
		wantArgs  int
	}{
		{"no options", domain.ListOpts{}, base + " ORDER BY updated_at DESC, id", 0},
		{
			"since and limit",
			domain.ListOpts{Since: &since, Limit: 10},
			base + " AND updated_at >= $1 ORDER BY updated_at DESC, id LIMIT $2",
			2,
		},
		{
			"window and page",
			domain.ListOpts{Since: &since, Until: &since, Limit: 5, Offset: 10},
			base + " AND updated_at >= $1 AND updated_at <= $2 ORDER BY updated_at DESC, id LIMIT $3 OFFSET $4",
			4,
		},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			q, args := withListOpts(base, nil, "updated_at", tc.opts)
			assert.Equal(t, tc.wantQuery, q)
			assert.Len(t, args, tc.wantArgs)
		})
	}
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/fillbook?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "fillbook"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	assert.NoError(t, err)
	assert.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}

package migration

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/smallbiznis/tradeway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestMigrationsCreateEveryModelTable(t *testing.T) {
	var sqlText strings.Builder
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/"+entry.Name())
		require.NoError(t, err)
		sqlText.Write(body)
	}

	db := testutil.OpenDB(t)
	tables := make([]string, 0, len(Models()))
	for _, model := range Models() {
		stmt := db.Model(model).Statement
		require.NoError(t, stmt.Parse(model))
		tables = append(tables, stmt.Schema.Table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		assert.Contains(t, sqlText.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}

func TestAutoMigrateOnSQLite(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable("orders"))
	assert.True(t, db.Migrator().HasIndex("orders", "ux_orders_org_sequence"))
	assert.True(t, db.Migrator().HasTable("fanout_jobs"))
}

package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/orderflow/internal/config"
	"github.com/smallbiznis/orderflow/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups[strings.TrimSuffix(e.Name(), ".up.sql")] = true
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs[strings.TrimSuffix(e.Name(), ".down.sql")] = true
		}
	}
	assert.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestAutoMigrateCreatesEveryTable(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, Migrate(db, config.Config{DBType: "sqlite", DBAutoMigrate: true}))

	for _, table := range []string{"orders", "queue_messages", "dead_letters", "inventory", "inventory_applications", "notifications", "billing_records"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

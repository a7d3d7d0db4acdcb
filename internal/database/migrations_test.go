package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sqliteMigrations() fstest.MapFS {
	return fstest.MapFS{
		"000001_widgets.up.sql":      {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
		"000001_widgets.down.sql":    {Data: []byte("DROP TABLE widgets;")},
		"000002_widget_idx.up.sql":   {Data: []byte("CREATE INDEX idx_widgets_name ON widgets (name);")},
		"000002_widget_idx.down.sql": {Data: []byte("DROP INDEX idx_widgets_name;")},
	}
}

func newMigrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	all, err := LoadMigrations(sqliteMigrations())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "000001_widgets", all[0].String())
	assert.Equal(t, "000002_widget_idx", all[1].String())
	assert.Contains(t, all[0].Down, "DROP TABLE")

	tests := []struct {
		name string
		fsys fstest.MapFS
		want string
	}{
		{
			name: "missing down",
			fsys: fstest.MapFS{"000001_a.up.sql": {Data: []byte("SELECT 1;")}},
			want: "needs non-empty up and down",
		},
		{
			name: "bad file name",
			fsys: fstest.MapFS{"add_users.sql": {Data: []byte("SELECT 1;")}},
			want: "unexpected migration file name",
		},
		{
			name: "mismatched names",
			fsys: fstest.MapFS{
				"000001_a.up.sql":   {Data: []byte("SELECT 1;")},
				"000001_b.down.sql": {Data: []byte("SELECT 1;")},
			},
			want: "two names",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMigratorUpDown(t *testing.T) {
	ctx := context.Background()
	db := newMigrationDB(t)
	all, err := LoadMigrations(sqliteMigrations())
	require.NoError(t, err)
	m := NewMigrator(db, all)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("widgets"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run is a no-op")

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)

	require.NoError(t, m.Down(ctx, 2))
	assert.False(t, db.Migrator().HasIndex("widgets", "idx_widgets_name"))
	pending, err = m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.ErrorContains(t, m.Down(ctx, 2), "has not been applied")
	assert.ErrorContains(t, m.Down(ctx, 99), "not found")
}

func TestMigratorFailedStepIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := newMigrationDB(t)
	m := NewMigrator(db, []Migration{
		{Version: 1, Name: "ok", Up: "CREATE TABLE a (id INTEGER);", Down: "DROP TABLE a;"},
		{Version: 2, Name: "broken", Up: "CREATE TABLE ;", Down: "SELECT 1;"},
	})

	n, err := m.Up(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "000002_broken")

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
}

func TestMigratorRejectsUnknownVersions(t *testing.T) {
	ctx := context.Background()
	db := newMigrationDB(t)
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	require.NoError(t, db.Create(&MigrationLog{Version: 42, Name: "from_the_future"}).Error)

	_, err := NewMigrator(db, []Migration{{Version: 1, Name: "a", Up: "SELECT 1;", Down: "SELECT 1;"}}).Up(ctx)
	assert.ErrorContains(t, err, "000042")
}

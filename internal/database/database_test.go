package database

import (
	"context"
	"testing"

	"quill/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, Close(db))
	assert.NoError(t, Close(nil))
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		mode        string
		destructive bool
		wantMode    string
		wantSQL     bool
		wantAuto    bool
		wantErr     bool
	}{
		{"hybrid by default in development", "development", "", false, SchemaModeHybrid, true, true, false},
		{"hybrid in production", "production", "hybrid", false, SchemaModeHybrid, true, false, false},
		{"mode is case insensitive", "development", " SQL ", false, SchemaModeSQL, true, false, false},
		{"auto in development", "development", "auto", false, SchemaModeAuto, false, true, false},
		{"auto in staging refused", "staging", "auto", false, SchemaModeAuto, false, false, true},
		{"auto in production allowed explicitly", "Production", "auto", true, SchemaModeAuto, false, true, false},
		{"unknown mode", "development", "yolo", false, "yolo", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&config.Config{
				Env:                           tt.env,
				DBSchemaMode:                  tt.mode,
				DBAutoMigrateAllowDestructive: tt.destructive,
			})
			assert.Equal(t, tt.wantMode, plan.Mode)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAuto, plan.AutoMigrate)
		})
	}
}

func TestApplySchema_AutoMigrateOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := &config.Config{Env: "development", DBSchemaMode: SchemaModeAuto}
	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	for _, table := range []string{"users", "posts", "comments", "likes", "tags", "post_tags", "categories"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.False(t, db.Migrator().HasColumn("posts", "likes_count"), "derived columns must not be persisted")
}

func TestEmbeddedMigrations(t *testing.T) {
	all := Migrations()
	require.NotEmpty(t, all)
	assert.Equal(t, "000001_initial_schema", all[0].String())
	for i, m := range all {
		if i > 0 {
			assert.Greater(t, m.Version, all[i-1].Version)
		}
	}

	// callers get their own copy
	all[0].Name = "changed"
	assert.Equal(t, "initial_schema", Migrations()[0].Name)
}

func TestCheckUnknownVersions(t *testing.T) {
	known := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, checkUnknownVersions(nil, known))
	assert.NoError(t, checkUnknownVersions([]int{1, 2}, known))

	err := checkUnknownVersions([]int{1, 7, 3}, known)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003, 000007")
}

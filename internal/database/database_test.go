package database_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildDSN 测试构建 PostgreSQL DSN
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "erp", Password: "secret", DBName: "erp", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=erp password=secret dbname=erp sslmode=disable", dsn)
}

// TestGetPoolConfig 测试连接池默认值
func TestGetPoolConfig(t *testing.T) {
	pool := database.GetPoolConfig(config.DatabaseConfig{})
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 100, pool.MaxOpenConns)
	assert.Equal(t, 3600, pool.ConnMaxLifetime)
	assert.Equal(t, 600, pool.ConnMaxIdleTime)

	pool = database.GetPoolConfig(config.DatabaseConfig{MaxOpenConns: 20})
	assert.Equal(t, 20, pool.MaxOpenConns)
}

// TestConnectSQLite 测试连接 SQLite 并迁移
func TestConnectSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "approval.db")}

	db, err := database.ConnectWithRetry(cfg, 2, 10*time.Millisecond)
	require.NoError(t, err)
	defer database.Close(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, database.Migrate(db))
	// 重复迁移是幂等的
	require.NoError(t, database.Migrate(db))

	for _, table := range []string{"approval_requests", "approval_actions", "approval_events", "audit_logs", "users"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("approval_actions", "idx_actions_request_step"))
	assert.True(t, database.CheckHealth(db))
}

// TestConnect_UnsupportedDriver 测试不支持的驱动
func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
	assert.False(t, database.CheckHealth(nil))
}

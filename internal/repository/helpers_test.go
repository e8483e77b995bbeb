package repository_test

import (
	"testing"

	"github.com/mautops/erp-approval/internal/database"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建内存 SQLite 数据库并执行迁移
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	// 内存库在每个连接上都是独立的
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.Migrate(db))
	return db
}

func newRequest(requester, role string, levels ...int) *domain.ApprovalRequest {
	return &domain.ApprovalRequest{
		Type:           "order",
		EntityID:       "order-" + requester,
		RequesterID:    requester,
		RequesterRole:  role,
		RequiredLevels: levels,
	}
}

func approveStep(approver, role string) func(req *domain.ApprovalRequest) error {
	return func(req *domain.ApprovalRequest) error {
		req.Approvals = append(req.Approvals, domain.Decision{
			Step:         req.Progress,
			Level:        req.CurrentLevel,
			ApproverID:   approver,
			ApproverRole: role,
			Action:       domain.ActionApprove,
		})
		if req.IsLastStep() {
			req.Status = domain.StatusApproved
			return nil
		}
		req.Progress++
		req.CurrentLevel = req.RequiredLevels[req.Progress]
		return nil
	}
}

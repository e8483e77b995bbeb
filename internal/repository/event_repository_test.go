package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/erp-approval/internal/model"
	"github.com/mautops/erp-approval/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newEvent(id, requestID string, createdAt time.Time) *model.ApprovalEventModel {
	return &model.ApprovalEventModel{
		ID:        id,
		RequestID: requestID,
		Type:      "approval.created",
		Data:      datatypes.JSON(`{"request_id":"` + requestID + `"}`),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// TestEventRepository_SaveAndFind 测试保存和查询事件
func TestEventRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEventRepository(setupTestDB(t))

	now := time.Now()
	require.NoError(t, repo.Save(ctx, newEvent("evt-1", "req-1", now)))
	require.NoError(t, repo.Save(ctx, newEvent("evt-2", "req-1", now.Add(time.Second))))

	got, err := repo.FindByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusPending, got.Status)
	assert.JSONEq(t, `{"request_id":"req-1"}`, string(got.Data))

	list, err := repo.FindByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// TestEventRepository_SaveInvalid 测试缺少必填字段
func TestEventRepository_SaveInvalid(t *testing.T) {
	repo := repository.NewEventRepository(setupTestDB(t))
	evt := newEvent("evt-1", "req-1", time.Now())
	evt.Data = nil
	assert.Error(t, repo.Save(context.Background(), evt))
}

// TestEventRepository_UpdateStatus 测试更新推送状态
func TestEventRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEventRepository(setupTestDB(t))

	now := time.Now()
	require.NoError(t, repo.Save(ctx, newEvent("evt-1", "req-1", now)))
	require.NoError(t, repo.Save(ctx, newEvent("evt-2", "req-2", now.Add(time.Second))))
	require.NoError(t, repo.UpdateStatus(ctx, "evt-1", model.EventStatusFailed, 3))

	got, err := repo.FindByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)

	pending, err := repo.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-2", pending[0].ID)
}

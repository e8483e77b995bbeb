package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/identity"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestIDs(list []*domain.ApprovalRequest) []string {
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	return ids
}

// TestEngine_ListMine 测试只返回自己发起的请求
func TestEngine_ListMine(t *testing.T) {
	f := newFixture(t)
	mine := f.create(t, salesRep)
	f.create(t, medicalRep)

	list, err := f.engine.ListMine(context.Background(), salesRep)
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, requestIDs(list))

	// 全局视图角色的"我发起的"同样只包含自己的请求
	list, err = f.engine.ListMine(context.Background(), gm)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestEngine_ListPending 测试待审批视图
func TestEngine_ListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	atManager := f.create(t, salesRep)
	atAccountant := f.create(t, medicalRep)
	f.act(t, atAccountant.ID, manager, domain.ActionApprove)
	done := f.create(t, warehouse)
	f.act(t, done.ID, manager, domain.ActionReject)

	list, err := f.engine.ListPending(ctx, manager2)
	require.NoError(t, err)
	assert.Equal(t, []string{atManager.ID}, requestIDs(list))

	list, err = f.engine.ListPending(ctx, accountant)
	require.NoError(t, err)
	assert.Equal(t, []string{atAccountant.ID}, requestIDs(list))

	list, err = f.engine.ListPending(ctx, gm)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{atManager.ID, atAccountant.ID}, requestIDs(list))

	list, err = f.engine.ListPending(ctx, warehouse)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

// TestEngine_ListHistory 测试历史视图包含发起的、审批过的和直属下级的请求
func TestEngine_ListHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fromReport := f.create(t, medicalRep) // rep-1 的上级是 mgr-1
	fromOther := f.create(t, salesRep)    // sales-1 的上级是 mgr-2
	own := f.create(t, manager)
	f.act(t, fromOther.ID, manager, domain.ActionApprove)
	unrelated := f.create(t, domain.Actor{UserID: "sales-9", Role: "sales_rep"})

	list, err := f.engine.ListHistory(ctx, manager)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{fromReport.ID, fromOther.ID, own.ID}, requestIDs(list))

	list, err = f.engine.ListHistory(ctx, admin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{fromReport.ID, fromOther.ID, own.ID, unrelated.ID}, requestIDs(list))

	list, err = f.engine.ListHistory(ctx, accountant)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestEngine_GetVisibility 测试单个请求只对可见的调用方返回
func TestEngine_GetVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, salesRep)

	for _, actor := range []domain.Actor{salesRep, manager2, manager, gm, admin} {
		got, err := f.engine.Get(ctx, actor, req.ID)
		require.NoError(t, err, actor.UserID)
		assert.Equal(t, req.ID, got.ID)
	}

	// 会计在请求进入第 4 级之前看不到
	_, err := f.engine.Get(ctx, accountant, req.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.engine.Get(ctx, medicalRep, req.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.act(t, req.ID, manager, domain.ActionApprove)
	_, err = f.engine.Get(ctx, accountant, req.ID)
	assert.NoError(t, err)

	_, err = f.engine.Get(ctx, salesRep, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failingDirectory struct {
	identity.Directory
}

func (failingDirectory) DirectReports(context.Context, string) ([]string, error) {
	return nil, errors.New("directory unavailable")
}

// TestHistoryFilter_DirectoryError 测试用户目录不可用时返回错误
func TestHistoryFilter_DirectoryError(t *testing.T) {
	_, err := workflow.HistoryFilter(context.Background(), newTable(t), failingDirectory{}, manager)
	assert.Error(t, err)

	p, err := workflow.HistoryFilter(context.Background(), newTable(t), failingDirectory{}, gm)
	require.NoError(t, err)
	assert.Equal(t, domain.KindAll, p.Kind)

	p, err = workflow.HistoryFilter(context.Background(), newTable(t), nil, manager)
	require.NoError(t, err)
	assert.Len(t, p.Children, 2)
}

// TestPendingFilter 测试待审批条件
func TestPendingFilter(t *testing.T) {
	table := newTable(t)

	_, ok := workflow.PendingFilter(table, warehouse)
	assert.False(t, ok)

	p, ok := workflow.PendingFilter(table, accountant)
	require.True(t, ok)
	assert.True(t, p.Match(&domain.ApprovalRequest{Status: domain.StatusPending, CurrentLevel: 4}))
	assert.False(t, p.Match(&domain.ApprovalRequest{Status: domain.StatusPending, CurrentLevel: 3}))
	assert.False(t, p.Match(&domain.ApprovalRequest{Status: domain.StatusRejected, CurrentLevel: 4}))
}

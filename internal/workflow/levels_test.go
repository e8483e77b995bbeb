package workflow_test

import (
	"testing"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLevelTable_Resolve 测试按角色计算审批链
func TestLevelTable_Resolve(t *testing.T) {
	table := newTable(t)

	tests := map[string][]int{
		"medical_rep":      {3, 4, 3, 3},
		"sales_rep":        {3, 4, 2},
		"warehouse_keeper": {3, 2},
		"manager":          {4, 2},
		"accountant":       {3, 2},
		"gm":               {2},
		"admin":            {1},
	}
	for role, want := range tests {
		got, err := table.Resolve(role)
		require.NoError(t, err, role)
		assert.Equal(t, want, got, role)
	}

	_, err := table.Resolve("intern")
	assert.ErrorIs(t, err, domain.ErrUnknownRole)
}

// TestLevelTable_ResolveReturnsCopy 测试返回的层级链不能修改层级表
func TestLevelTable_ResolveReturnsCopy(t *testing.T) {
	table := newTable(t)
	levels, err := table.Resolve("sales_rep")
	require.NoError(t, err)
	levels[0] = 1

	again, err := table.Resolve("sales_rep")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 2}, again)
}

// TestLevelTable_Authorization 测试层级授权和越级权限
func TestLevelTable_Authorization(t *testing.T) {
	table := newTable(t)

	assert.True(t, table.CanAct("manager", 3))
	assert.False(t, table.CanAct("manager", 4))
	assert.True(t, table.CanAct("accountant", 4))
	assert.False(t, table.CanAct("gm", 3))

	assert.True(t, table.CanOverride("gm"))
	assert.True(t, table.CanOverride("admin"))
	assert.False(t, table.CanOverride("manager"))

	assert.True(t, table.HasSystemWideView("admin"))
	assert.False(t, table.HasSystemWideView("accountant"))

	assert.Equal(t, []int{3}, table.LevelsFor("manager"))
	assert.Empty(t, table.LevelsFor("warehouse_keeper"))
	assert.Equal(t, []string{"manager"}, table.AuthorizedRoles(3))

	assert.True(t, table.KnowsRole("warehouse_keeper"))
	assert.False(t, table.KnowsRole("intern"))
}

// TestNewLevelTable_Invalid 测试非法配置
func TestNewLevelTable_Invalid(t *testing.T) {
	tests := map[string]func(cfg *config.ApprovalConfig){
		"empty chain": func(cfg *config.ApprovalConfig) {
			cfg.Chains = append(cfg.Chains, config.ChainConfig{Role: "intern"})
		},
		"duplicate chain": func(cfg *config.ApprovalConfig) {
			cfg.Chains = append(cfg.Chains, config.ChainConfig{Role: "gm", Levels: []int{1}})
		},
		"chain without role": func(cfg *config.ApprovalConfig) {
			cfg.Chains = append(cfg.Chains, config.ChainConfig{Levels: []int{1}})
		},
		"level without roles": func(cfg *config.ApprovalConfig) {
			cfg.Levels = append(cfg.Levels, config.LevelConfig{Level: 5})
		},
		"unmapped level": func(cfg *config.ApprovalConfig) {
			cfg.Chains = append(cfg.Chains, config.ChainConfig{Role: "intern", Levels: []int{3, 9}})
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := approvalConfig()
			mutate(&cfg)
			_, err := workflow.NewLevelTable(cfg)
			assert.Error(t, err)
		})
	}
}

// TestLevelTable_Snapshot 测试导出层级表
func TestLevelTable_Snapshot(t *testing.T) {
	snap := newTable(t).Snapshot()

	require.Len(t, snap.Chains, 7)
	assert.Equal(t, "accountant", snap.Chains[0].Role)
	require.Len(t, snap.Levels, 4)
	assert.Equal(t, 1, snap.Levels[0].Level)
	assert.Equal(t, []string{"admin", "gm"}, snap.OverrideRoles)
	assert.Equal(t, []string{"admin", "gm"}, snap.SystemRoles)

	rebuilt, err := workflow.NewLevelTable(snap)
	require.NoError(t, err)
	levels, err := rebuilt.Resolve("medical_rep")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 3, 3}, levels)
}

// TestLevelTableHolder_Reload 测试热更新层级表
func TestLevelTableHolder_Reload(t *testing.T) {
	holder := workflow.NewLevelTableHolder(newTable(t))

	cfg := approvalConfig()
	cfg.Chains[1].Levels = []int{3, 2}
	require.NoError(t, holder.Reload(cfg))
	levels, err := holder.Load().Resolve("sales_rep")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, levels)

	// 非法配置保留旧表
	bad := approvalConfig()
	bad.Chains = append(bad.Chains, config.ChainConfig{Role: "intern"})
	assert.Error(t, holder.Reload(bad))
	levels, err = holder.Load().Resolve("sales_rep")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, levels)
}

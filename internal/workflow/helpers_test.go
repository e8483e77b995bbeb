package workflow_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/identity"
	"github.com/mautops/erp-approval/internal/repository"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	medicalRep  = domain.Actor{UserID: "rep-1", Role: "medical_rep"}
	salesRep    = domain.Actor{UserID: "sales-1", Role: "sales_rep"}
	manager     = domain.Actor{UserID: "mgr-1", Role: "manager"}
	manager2    = domain.Actor{UserID: "mgr-2", Role: "manager"}
	accountant  = domain.Actor{UserID: "acct-1", Role: "accountant"}
	gm          = domain.Actor{UserID: "gm-1", Role: "gm"}
	admin       = domain.Actor{UserID: "admin-1", Role: "admin"}
	warehouse   = domain.Actor{UserID: "wh-1", Role: "warehouse_keeper"}
	fixedTime   = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	quietLogger = func() *logrus.Logger {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}()
)

// approvalConfig 默认的审批层级配置
func approvalConfig() config.ApprovalConfig {
	return config.ApprovalConfig{
		Chains: []config.ChainConfig{
			{Role: "medical_rep", Levels: []int{3, 4, 3, 3}},
			{Role: "sales_rep", Levels: []int{3, 4, 2}},
			{Role: "warehouse_keeper", Levels: []int{3, 2}},
			{Role: "manager", Levels: []int{4, 2}},
			{Role: "accountant", Levels: []int{3, 2}},
			{Role: "gm", Levels: []int{2}},
			{Role: "admin", Levels: []int{1}},
		},
		Levels: []config.LevelConfig{
			{Level: 1, Roles: []string{"admin"}},
			{Level: 2, Roles: []string{"gm"}},
			{Level: 3, Roles: []string{"manager"}},
			{Level: 4, Roles: []string{"accountant"}},
		},
		OverrideRoles: []string{"admin", "gm"},
		SystemRoles:   []string{"admin", "gm"},
		MaxRetries:    3,
	}
}

func newTable(t *testing.T) *workflow.LevelTable {
	t.Helper()
	table, err := workflow.NewLevelTable(approvalConfig())
	require.NoError(t, err)
	return table
}

func directory() *identity.StaticDirectory {
	return identity.NewStaticDirectory(
		identity.User{ID: "rep-1", Name: "Rita Rep", Role: "medical_rep", ManagerID: "mgr-1"},
		identity.User{ID: "sales-1", Name: "Sam Sales", Role: "sales_rep", ManagerID: "mgr-2"},
		identity.User{ID: "mgr-1", Name: "Mona Manager", Role: "manager", ManagerID: "gm-1"},
		identity.User{ID: "mgr-2", Name: "Max Manager", Role: "manager", ManagerID: "gm-1"},
		identity.User{ID: "acct-1", Name: "Ada Accountant", Role: "accountant", ManagerID: "gm-1"},
		identity.User{ID: "gm-1", Name: "Gina GM", Role: "gm"},
	)
}

type fixture struct {
	repo   *repository.MemoryApprovalRepository
	levels *workflow.LevelTableHolder
	engine *workflow.Engine
}

func newFixture(t *testing.T, opts ...workflow.Option) *fixture {
	t.Helper()
	repo := repository.NewMemoryApprovalRepository()
	levels := workflow.NewLevelTableHolder(newTable(t))
	opts = append([]workflow.Option{
		workflow.WithLogger(quietLogger),
		workflow.WithClock(func() time.Time { return fixedTime }),
	}, opts...)
	return &fixture{
		repo:   repo,
		levels: levels,
		engine: workflow.NewEngine(repo, levels, directory(), opts...),
	}
}

func (f *fixture) create(t *testing.T, actor domain.Actor) *domain.ApprovalRequest {
	t.Helper()
	req, err := f.engine.Create(context.Background(), actor, workflow.CreateInput{
		Type:     "order",
		EntityID: "order-" + actor.UserID,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) act(t *testing.T, id string, actor domain.Actor, action domain.Action) *workflow.ActResult {
	t.Helper()
	res, err := f.engine.Act(context.Background(), id, actor, action, "")
	require.NoError(t, err)
	return res
}

package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/database"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/identity"
	"github.com/mautops/erp-approval/internal/notify"
	"github.com/mautops/erp-approval/internal/repository"
	"github.com/mautops/erp-approval/internal/service"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建内存 SQLite 数据库并执行迁移
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db))
	return db
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, evt notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      service.ApprovalService
	audit    service.AuditLogService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db := setupTestDB(t)
	table, err := workflow.NewLevelTable(config.Default().Approval)
	require.NoError(t, err)
	directory := identity.NewGormDirectory(db)
	engine := workflow.NewEngine(
		repository.NewApprovalRepository(db),
		workflow.NewLevelTableHolder(table),
		directory,
		workflow.WithLogger(logger),
	)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	notifier := &recordingNotifier{}
	return &fixture{
		svc:      service.NewApprovalService(engine, workflow.NewEnricher(directory, logger), audit, notifier, logger),
		audit:    audit,
		notifier: notifier,
	}
}

var (
	salesRep = domain.Actor{UserID: "sales-1", Role: "sales_rep"}
	manager  = domain.Actor{UserID: "mgr-1", Role: "manager"}
	acct     = domain.Actor{UserID: "acct-1", Role: "accountant"}
	gm       = domain.Actor{UserID: "gm-1", Role: "gm"}
)

// TestApprovalService_Lifecycle 测试审批全流程的审计和通知
func TestApprovalService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := service.WithRequestInfo(context.Background(), service.RequestInfo{
		RequestID: "http-req-1",
		IP:        "10.0.0.8",
		UserAgent: "erp-web",
	})

	created, err := f.svc.Create(ctx, salesRep, &service.CreateApprovalRequest{
		Type:       "order",
		EntityID:   "order-1001",
		EntityData: json.RawMessage(`{"amount":1000}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 2}, created.RequiredLevels)

	for _, actor := range []domain.Actor{manager, acct, gm} {
		_, err := f.svc.Act(ctx, actor, created.RequestID, &service.ActionRequest{Action: "approve"})
		require.NoError(t, err, actor.Role)
	}

	assert.Equal(t, []string{
		notify.EventCreated,
		notify.EventAdvanced,
		notify.EventAdvanced,
		notify.EventApproved,
	}, f.notifier.types())

	logs, err := f.audit.ListByResource(context.Background(), service.AuditResourceApproval, created.RequestID)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, service.AuditActionCreate, logs[0].Action)
	assert.Equal(t, "sales-1", logs[0].UserID)
	assert.Equal(t, "http-req-1", logs[0].RequestID)
	assert.Equal(t, "10.0.0.8", logs[0].IP)
	assert.Equal(t, service.AuditActionApprove, logs[3].Action)
	assert.Equal(t, "gm", logs[3].UserRole)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[1].Details, &details))
	assert.Equal(t, float64(3), details["level"])
	assert.Equal(t, float64(4), details["to_level"])
}

// TestApprovalService_Reject 测试拒绝的审计和通知
func TestApprovalService_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, salesRep, &service.CreateApprovalRequest{Type: "order", EntityID: "o-1"})
	require.NoError(t, err)

	resp, err := f.svc.Act(ctx, manager, created.RequestID, &service.ActionRequest{Action: "reject", Notes: "no budget"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, resp.Status)
	assert.False(t, resp.Override)

	assert.Equal(t, []string{notify.EventCreated, notify.EventRejected}, f.notifier.types())
	logs, err := f.audit.ListByResource(ctx, service.AuditResourceApproval, created.RequestID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, service.AuditActionReject, logs[1].Action)
}

// TestApprovalService_FailedActionHasNoSideEffects 测试失败的动作不产生审计和通知
func TestApprovalService_FailedActionHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, salesRep, &service.CreateApprovalRequest{Type: "order", EntityID: "o-1"})
	require.NoError(t, err)

	_, err = f.svc.Act(ctx, acct, created.RequestID, &service.ActionRequest{Action: "approve"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Act(ctx, manager, created.RequestID, &service.ActionRequest{Action: "later"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, []string{notify.EventCreated}, f.notifier.types())
	logs, err := f.audit.ListByResource(ctx, service.AuditResourceApproval, created.RequestID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

// TestApprovalService_NotifierErrorIgnored 测试通知失败不影响审批结果
func TestApprovalService_NotifierErrorIgnored(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	ctx := context.Background()

	created, err := f.svc.Create(ctx, salesRep, &service.CreateApprovalRequest{Type: "order", EntityID: "o-1"})
	require.NoError(t, err)
	resp, err := f.svc.Act(ctx, manager, created.RequestID, &service.ActionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.CurrentLevel)
}

// TestApprovalService_Levels 测试导出层级表
func TestApprovalService_Levels(t *testing.T) {
	levels := newFixture(t).svc.Levels()
	assert.Len(t, levels.Chains, 7)
	assert.Equal(t, []string{"admin", "gm"}, levels.SystemRoles)
}

// TestRequestInfo 测试请求信息的 context 传递
func TestRequestInfo(t *testing.T) {
	assert.Equal(t, service.RequestInfo{}, service.RequestInfoFrom(context.Background()))
	ctx := service.WithRequestInfo(context.Background(), service.RequestInfo{RequestID: "r-1"})
	assert.Equal(t, "r-1", service.RequestInfoFrom(ctx).RequestID)
}

package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/metrics"
	"github.com/mautops/erp-approval/internal/notify"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/sirupsen/logrus"
)

// ApprovalService 审批服务接口
type ApprovalService interface {
	Create(ctx context.Context, actor domain.Actor, req *CreateApprovalRequest) (*CreateApprovalResponse, error)
	Act(ctx context.Context, actor domain.Actor, id string, req *ActionRequest) (*ActionResponse, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*workflow.EnrichedRequest, error)
	ListMine(ctx context.Context, actor domain.Actor) ([]*domain.ApprovalRequest, error)
	ListPending(ctx context.Context, actor domain.Actor) ([]*domain.ApprovalRequest, error)
	ListHistory(ctx context.Context, actor domain.Actor) ([]*workflow.EnrichedRequest, error)
	Levels() config.ApprovalConfig
}

// CreateApprovalRequest 创建审批请求
// @Description 创建审批请求的参数
type CreateApprovalRequest struct {
	Type       string          `json:"type" example:"order"`                                                 // 业务类型
	EntityID   string          `json:"entity_id" example:"order-1001"`                                       // 业务实体 ID
	EntityData json.RawMessage `json:"entity_data" swaggertype:"object" example:"{\"amount\":1000}"`         // 业务实体快照,原样存储
	Notes      string          `json:"notes" example:"请尽快审批"`                                                // 备注
}

// CreateApprovalResponse 创建审批请求的结果
// @Description 创建审批请求的结果
type CreateApprovalResponse struct {
	RequestID      string        `json:"request_id" example:"8a4f2c1e-..."` // 审批请求 ID
	RequiredLevels []int         `json:"required_levels" example:"3,4,3,3"` // 审批层级链
	CurrentLevel   int           `json:"current_level" example:"3"`         // 当前待审批层级
	Status         domain.Status `json:"status" example:"pending"`          // 状态
}

// ActionRequest 审批动作请求
// @Description 审批或拒绝的参数
type ActionRequest struct {
	Action string `json:"action" example:"approve"` // approve 或 reject
	Notes  string `json:"notes" example:"同意"`      // 审批意见
}

// ActionResponse 审批动作结果
// @Description 审批动作的结果
type ActionResponse struct {
	Success      bool          `json:"success" example:"true"`
	Status       domain.Status `json:"status" example:"pending"`
	CurrentLevel int           `json:"current_level" example:"4"`
	Override     bool          `json:"override" example:"false"`
}

type approvalService struct {
	engine      *workflow.Engine
	enricher    *workflow.Enricher
	auditLogSvc AuditLogService
	notifier    notify.Notifier
	logger      *logrus.Logger
}

// NewApprovalService 创建审批服务
func NewApprovalService(
	engine *workflow.Engine,
	enricher *workflow.Enricher,
	auditLogSvc AuditLogService,
	notifier notify.Notifier,
	logger *logrus.Logger,
) ApprovalService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &approvalService{
		engine:      engine,
		enricher:    enricher,
		auditLogSvc: auditLogSvc,
		notifier:    notifier,
		logger:      logger,
	}
}

// Create 创建审批请求
func (s *approvalService) Create(ctx context.Context, actor domain.Actor, req *CreateApprovalRequest) (*CreateApprovalResponse, error) {
	created, err := s.engine.Create(ctx, actor, workflow.CreateInput{
		Type:       req.Type,
		EntityID:   req.EntityID,
		EntityData: req.EntityData,
		Notes:      req.Notes,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": RequestInfoFrom(ctx).RequestID,
			"user_id":    actor.UserID,
			"role":       actor.Role,
			"type":       req.Type,
		}).Warn("Approval request rejected")
		return nil, err
	}

	metrics.RecordRequestCreated(created.Type)
	s.audit(ctx, actor, AuditActionCreate, created.ID, map[string]interface{}{
		"type":            created.Type,
		"entity_id":       created.EntityID,
		"required_levels": created.RequiredLevels,
	})
	s.notify(ctx, notify.Event{
		ID:           uuid.New().String(),
		Type:         notify.EventCreated,
		RequestID:    created.ID,
		RequestType:  created.Type,
		EntityID:     created.EntityID,
		RequesterID:  created.RequesterID,
		ActorID:      actor.UserID,
		ActorRole:    actor.Role,
		Status:       created.Status,
		CurrentLevel: created.CurrentLevel,
		Timestamp:    created.CreatedAt,
	})

	return &CreateApprovalResponse{
		RequestID:      created.ID,
		RequiredLevels: created.RequiredLevels,
		CurrentLevel:   created.CurrentLevel,
		Status:         created.Status,
	}, nil
}

// Act 审批或拒绝
func (s *approvalService) Act(ctx context.Context, actor domain.Actor, id string, req *ActionRequest) (*ActionResponse, error) {
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		metrics.RecordAction("unknown", outcomeOf(err))
		return nil, err
	}

	result, err := s.engine.Act(ctx, id, actor, action, req.Notes)
	metrics.RecordAction(string(action), outcomeOf(err))
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id":  RequestInfoFrom(ctx).RequestID,
			"approval_id": id,
			"user_id":     actor.UserID,
			"role":        actor.Role,
			"action":      action,
		}).Warn("Approval action rejected")
		return nil, err
	}

	updated := result.Request
	d := result.Transition.Decision
	auditAction := AuditActionApprove
	if action == domain.ActionReject {
		auditAction = AuditActionReject
	}
	s.audit(ctx, actor, auditAction, updated.ID, map[string]interface{}{
		"step":       d.Step,
		"level":      d.Level,
		"override":   d.Override,
		"from_level": result.Transition.FromLevel,
		"to_level":   result.Transition.ToLevel,
		"status":     updated.Status,
		"notes":      d.Notes,
		"attempts":   result.Attempts,
	})
	s.notify(ctx, notify.Event{
		ID:           uuid.New().String(),
		Type:         notify.EventType(action, updated.Status),
		RequestID:    updated.ID,
		RequestType:  updated.Type,
		EntityID:     updated.EntityID,
		RequesterID:  updated.RequesterID,
		ActorID:      actor.UserID,
		ActorRole:    actor.Role,
		Action:       action,
		Override:     d.Override,
		Status:       updated.Status,
		CurrentLevel: updated.CurrentLevel,
		Timestamp:    d.Timestamp,
	})

	return &ActionResponse{
		Success:      true,
		Status:       updated.Status,
		CurrentLevel: updated.CurrentLevel,
		Override:     d.Override,
	}, nil
}

// Get 查询单个请求
func (s *approvalService) Get(ctx context.Context, actor domain.Actor, id string) (*workflow.EnrichedRequest, error) {
	req, err := s.engine.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichOne(ctx, req), nil
}

// ListMine 我发起的请求
func (s *approvalService) ListMine(ctx context.Context, actor domain.Actor) ([]*domain.ApprovalRequest, error) {
	return s.engine.ListMine(ctx, actor)
}

// ListPending 待我审批的请求
func (s *approvalService) ListPending(ctx context.Context, actor domain.Actor) ([]*domain.ApprovalRequest, error) {
	return s.engine.ListPending(ctx, actor)
}

// ListHistory 历史请求, 附带姓名
func (s *approvalService) ListHistory(ctx context.Context, actor domain.Actor) ([]*workflow.EnrichedRequest, error) {
	requests, err := s.engine.ListHistory(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, requests), nil
}

// Levels 当前生效的层级表
func (s *approvalService) Levels() config.ApprovalConfig {
	return s.engine.Levels().Snapshot()
}

// audit 审计失败只记录日志, 不影响已完成的状态变更
func (s *approvalService) audit(ctx context.Context, actor domain.Actor, action, resourceID string, details interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	if err := s.auditLogSvc.RecordAction(ctx, actor.UserID, actor.Role, action, AuditResourceApproval, resourceID, details); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"approval_id": resourceID,
			"action":      action,
		}).Error("Failed to record audit log")
	}
}

// notify 通知失败只记录日志
func (s *approvalService) notify(ctx context.Context, evt notify.Event) {
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"approval_id": evt.RequestID,
			"type":        evt.Type,
		}).Warn("Failed to dispatch approval notification")
	}
}

// outcomeOf 审批动作结果的指标标签
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

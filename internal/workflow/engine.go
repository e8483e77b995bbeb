package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/identity"
	"github.com/mautops/erp-approval/internal/metrics"
	"github.com/mautops/erp-approval/internal/repository"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxRetries = 3

// CreateInput 创建审批请求的输入
type CreateInput struct {
	Type       string
	EntityID   string
	EntityData json.RawMessage
	Notes      string
}

// ActResult 审批动作的结果
type ActResult struct {
	Request    *domain.ApprovalRequest
	Transition *Transition
	Attempts   int
}

// Engine 审批引擎
// 所有状态变更都经过 ApprovalRepository.ConditionalUpdate
type Engine struct {
	repo       repository.ApprovalRepository
	levels     *LevelTableHolder
	directory  identity.Directory
	types      map[string]bool
	maxRetries int
	logger     *logrus.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option 引擎选项
type Option func(*Engine)

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxRetries 设置冲突重试上限(总尝试次数)
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithTypes 限制允许的请求类型, 为空时不限制
func WithTypes(types []string) Option {
	return func(e *Engine) {
		if len(types) > 0 {
			e.types = toSet(types)
		}
	}
}

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine 创建审批引擎
func NewEngine(repo repository.ApprovalRepository, levels *LevelTableHolder, directory identity.Directory, opts ...Option) *Engine {
	e := &Engine{
		repo:       repo,
		levels:     levels,
		directory:  directory,
		maxRetries: defaultMaxRetries,
		logger:     logrus.StandardLogger(),
		tracer:     otel.Tracer("github.com/mautops/erp-approval/internal/workflow"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Levels 返回当前生效的层级表
func (e *Engine) Levels() *LevelTable {
	return e.levels.Load()
}

// Create 创建审批请求
// 层级链在创建时根据发起人角色计算, 之后不再变化
func (e *Engine) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.ApprovalRequest, error) {
	ctx, span := e.tracer.Start(ctx, "approval.create", trace.WithAttributes(
		attribute.String("approval.type", in.Type),
		attribute.String("approval.requester_role", actor.Role),
	))
	defer span.End()

	if in.Type == "" {
		return nil, recordSpanError(span, domain.Validationf("type is required"))
	}
	if e.types != nil && !e.types[in.Type] {
		return nil, recordSpanError(span, domain.Validationf("unknown type %q", in.Type))
	}
	if in.EntityID == "" {
		return nil, recordSpanError(span, domain.Validationf("entity_id is required"))
	}
	if actor.UserID == "" {
		return nil, recordSpanError(span, domain.Validationf("requester_id is required"))
	}
	if len(in.EntityData) > 0 && !json.Valid(in.EntityData) {
		return nil, recordSpanError(span, domain.Validationf("entity_data must be valid JSON"))
	}

	levels, err := e.levels.Load().Resolve(actor.Role)
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	req := &domain.ApprovalRequest{
		Type:           in.Type,
		EntityID:       in.EntityID,
		EntityData:     in.EntityData,
		RequesterID:    actor.UserID,
		RequesterRole:  actor.Role,
		RequiredLevels: levels,
		Notes:          in.Notes,
	}
	if _, err := e.repo.Create(ctx, req); err != nil {
		return nil, recordSpanError(span, err)
	}

	span.SetAttributes(attribute.String("approval.id", req.ID))
	e.logger.WithFields(logrus.Fields{
		"approval_id":     req.ID,
		"type":            req.Type,
		"requester_id":    req.RequesterID,
		"required_levels": req.RequiredLevels,
	}).Info("Approval request created")
	return req, nil
}

// Act 审批或拒绝
// 版本冲突时从头重新执行状态机, 最多尝试 maxRetries 次
func (e *Engine) Act(ctx context.Context, requestID string, actor domain.Actor, action domain.Action, notes string) (*ActResult, error) {
	ctx, span := e.tracer.Start(ctx, "approval.act", trace.WithAttributes(
		attribute.String("approval.id", requestID),
		attribute.String("approval.action", string(action)),
		attribute.String("approval.actor_role", actor.Role),
	))
	defer span.End()

	if _, err := domain.ParseAction(string(action)); err != nil {
		return nil, recordSpanError(span, err)
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, recordSpanError(span, err)
		}

		current, err := e.repo.FindByID(ctx, requestID)
		if err != nil {
			return nil, recordSpanError(span, err)
		}

		table := e.levels.Load()
		var tr *Transition
		updated, err := e.repo.ConditionalUpdate(ctx, requestID, current.Version, func(req *domain.ApprovalRequest) error {
			t, err := Decide(table, req, actor, action, notes, e.now())
			if err != nil {
				return err
			}
			tr = t
			return nil
		})
		if err == nil {
			span.SetAttributes(
				attribute.String("approval.status", string(updated.Status)),
				attribute.Int("approval.attempts", attempt),
			)
			e.logger.WithFields(logrus.Fields{
				"approval_id": requestID,
				"actor_id":    actor.UserID,
				"actor_role":  actor.Role,
				"action":      action,
				"override":    tr.Decision.Override,
				"from_level":  tr.FromLevel,
				"to_level":    tr.ToLevel,
				"status":      tr.Status,
			}).Info("Approval action accepted")
			return &ActResult{Request: updated, Transition: tr, Attempts: attempt}, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, recordSpanError(span, err)
		}

		lastErr = err
		metrics.RecordConflictRetry()
		e.logger.WithFields(logrus.Fields{
			"approval_id": requestID,
			"attempt":     attempt,
		}).Debug("Approval update conflicted, retrying")
	}

	return nil, recordSpanError(span, lastErr)
}

// Get 查询单个请求, 调用方无权查看时返回 NotFound
func (e *Engine) Get(ctx context.Context, actor domain.Actor, id string) (*domain.ApprovalRequest, error) {
	req, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := e.VisibilityFilter(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !visible.Match(req) {
		return nil, domain.NotFound(id)
	}
	return req, nil
}

// ListMine 调用方自己发起的请求
func (e *Engine) ListMine(ctx context.Context, actor domain.Actor) ([]*domain.ApprovalRequest, error) {
	return e.repo.Find(ctx, MineFilter(actor))
}

// ListPending 等待调用方审批的请求
func (e *Engine) ListPending(ctx context.Context, actor domain.Actor) ([]*domain.ApprovalRequest, error) {
	p, ok := PendingFilter(e.levels.Load(), actor)
	if !ok {
		return []*domain.ApprovalRequest{}, nil
	}
	return e.repo.Find(ctx, p)
}

// ListHistory 调用方可见的历史请求
func (e *Engine) ListHistory(ctx context.Context, actor domain.Actor) ([]*domain.ApprovalRequest, error) {
	p, err := HistoryFilter(ctx, e.levels.Load(), e.directory, actor)
	if err != nil {
		return nil, err
	}
	return e.repo.Find(ctx, p)
}

// VisibilityFilter 单个请求的可见范围: 历史视图或待审批视图
func (e *Engine) VisibilityFilter(ctx context.Context, actor domain.Actor) (domain.Predicate, error) {
	table := e.levels.Load()
	history, err := HistoryFilter(ctx, table, e.directory, actor)
	if err != nil {
		return domain.Predicate{}, err
	}
	if pending, ok := PendingFilter(table, actor); ok {
		return domain.Or(history, pending), nil
	}
	return history, nil
}

// StrandedLevels 统计待审批请求中当前层级已无授权角色的数量, 按层级分组
// 这些请求只能由越级角色处理
func (e *Engine) StrandedLevels(ctx context.Context) (map[int]int, error) {
	table := e.levels.Load()
	pending, err := e.repo.Find(ctx, domain.ByStatus(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	stranded := make(map[int]int)
	for _, req := range pending {
		if len(table.AuthorizedRoles(req.CurrentLevel)) == 0 {
			stranded[req.CurrentLevel]++
		}
	}
	return stranded, nil
}

func recordSpanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

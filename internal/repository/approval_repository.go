package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MutationFunc 在请求副本上执行的状态变更
type MutationFunc func(req *domain.ApprovalRequest) error

// ApprovalRepository 审批请求仓储接口
// ConditionalUpdate 是唯一的变更入口
type ApprovalRepository interface {
	Create(ctx context.Context, req *domain.ApprovalRequest) (string, error)
	FindByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, mutate MutationFunc) (*domain.ApprovalRequest, error)
	Find(ctx context.Context, p domain.Predicate) ([]*domain.ApprovalRequest, error)
}

// prepareNew 校验并初始化新请求: pending, 第一级, 版本 1
func prepareNew(req *domain.ApprovalRequest, now time.Time) error {
	if req == nil {
		return domain.Validationf("request is nil")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = domain.StatusPending
	req.Progress = 0
	req.CurrentLevel = req.RequiredLevels[0]
	req.Approvals = []domain.Decision{}
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now
	return nil
}

// checkMutation 校验变更结果: 不可变字段保持不变, 审批记录只能追加
func checkMutation(before, after *domain.ApprovalRequest) error {
	if after.ID != before.ID || after.RequesterID != before.RequesterID || after.EntityID != before.EntityID {
		return domain.Validationf("immutable fields of %s cannot change", before.ID)
	}
	if !after.Status.Valid() {
		return domain.Validationf("invalid status %q", after.Status)
	}
	if len(after.Approvals) < len(before.Approvals) {
		return domain.Validationf("approvals of %s are append-only", before.ID)
	}
	if after.Progress < before.Progress || after.Progress >= len(before.RequiredLevels) {
		return domain.Validationf("progress of %s cannot move from %d to %d", before.ID, before.Progress, after.Progress)
	}
	return nil
}

// approvalRepository 基于 gorm 的审批请求仓储
type approvalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository 创建审批请求仓储
func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

// Create 保存新请求
func (r *approvalRepository) Create(ctx context.Context, req *domain.ApprovalRequest) (string, error) {
	if err := prepareNew(req, time.Now()); err != nil {
		return "", err
	}
	m := toRequestModel(req)
	if err := m.Validate(); err != nil {
		return "", domain.Validationf("%s", err.Error())
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return "", fmt.Errorf("failed to save approval request: %w", err)
	}
	return req.ID, nil
}

// FindByID 根据 ID 查找请求
func (r *approvalRepository) FindByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	var m model.ApprovalRequestModel
	err := r.db.WithContext(ctx).
		Preload("Actions", orderActions).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound(id)
		}
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	return toDomain(&m), nil
}

// ConditionalUpdate 版本号匹配时才写入变更
// 请求行更新与新审批记录写入在同一事务内完成
func (r *approvalRepository) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, mutate MutationFunc) (*domain.ApprovalRequest, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, domain.Conflict(id, expectedVersion)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := checkMutation(current, next); err != nil {
		return nil, err
	}
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ApprovalRequestModel{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]interface{}{
				"status":        string(next.Status),
				"progress":      next.Progress,
				"current_level": next.CurrentLevel,
				"version":       next.Version,
				"updated_at":    next.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update approval request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.Conflict(id, expectedVersion)
		}

		for _, d := range next.Approvals[len(current.Approvals):] {
			if err := tx.Create(toActionModel(id, d)).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.Conflict(id, expectedVersion)
				}
				return fmt.Errorf("failed to save approval action: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Find 按条件查询,按创建时间倒序
func (r *approvalRepository) Find(ctx context.Context, p domain.Predicate) ([]*domain.ApprovalRequest, error) {
	where, args := buildWhere(p)

	var models []*model.ApprovalRequestModel
	err := r.db.WithContext(ctx).
		Preload("Actions", orderActions).
		Where(where, args...).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query approval requests: %w", err)
	}

	requests := make([]*domain.ApprovalRequest, 0, len(models))
	for _, m := range models {
		requests = append(requests, toDomain(m))
	}
	return requests, nil
}

func orderActions(db *gorm.DB) *gorm.DB {
	return db.Order("step ASC")
}

// buildWhere 将查询条件翻译为 SQL 片段
func buildWhere(p domain.Predicate) (string, []interface{}) {
	switch p.Kind {
	case domain.KindAll:
		return "1 = 1", nil
	case domain.KindRequester:
		if len(p.Values) == 0 {
			return "1 = 0", nil
		}
		return "requester_id IN ?", []interface{}{p.Values}
	case domain.KindStatus:
		if len(p.Values) == 0 {
			return "1 = 0", nil
		}
		return "status IN ?", []interface{}{p.Values}
	case domain.KindCurrentLevel:
		if len(p.Levels) == 0 {
			return "1 = 0", nil
		}
		return "current_level IN ?", []interface{}{p.Levels}
	case domain.KindActedBy:
		if len(p.Values) == 0 {
			return "1 = 0", nil
		}
		return "id IN (SELECT request_id FROM approval_actions WHERE approver_id IN ?)", []interface{}{p.Values}
	case domain.KindAnd, domain.KindOr:
		if len(p.Children) == 0 {
			if p.Kind == domain.KindAnd {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		sep := " AND "
		if p.Kind == domain.KindOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(p.Children))
		var args []interface{}
		for _, c := range p.Children {
			clause, cargs := buildWhere(c)
			parts = append(parts, "("+clause+")")
			args = append(args, cargs...)
		}
		return strings.Join(parts, sep), args
	}
	return "1 = 0", nil
}

func toRequestModel(req *domain.ApprovalRequest) *model.ApprovalRequestModel {
	var entityData datatypes.JSON
	if len(req.EntityData) > 0 {
		entityData = datatypes.JSON(req.EntityData)
	}
	return &model.ApprovalRequestModel{
		ID:             req.ID,
		Type:           req.Type,
		EntityID:       req.EntityID,
		EntityData:     entityData,
		RequesterID:    req.RequesterID,
		RequesterRole:  req.RequesterRole,
		RequiredLevels: datatypes.NewJSONType(req.RequiredLevels),
		Progress:       req.Progress,
		CurrentLevel:   req.CurrentLevel,
		Status:         string(req.Status),
		Notes:          req.Notes,
		Version:        req.Version,
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}
}

func toActionModel(requestID string, d domain.Decision) *model.ApprovalActionModel {
	return &model.ApprovalActionModel{
		ID:           uuid.New().String(),
		RequestID:    requestID,
		Step:         d.Step,
		Level:        d.Level,
		ApproverID:   d.ApproverID,
		ApproverRole: d.ApproverRole,
		Action:       string(d.Action),
		Notes:        d.Notes,
		Override:     d.Override,
		CreatedAt:    d.Timestamp,
	}
}

func toDomain(m *model.ApprovalRequestModel) *domain.ApprovalRequest {
	approvals := make([]domain.Decision, 0, len(m.Actions))
	for _, a := range m.Actions {
		approvals = append(approvals, domain.Decision{
			Step:         a.Step,
			Level:        a.Level,
			ApproverID:   a.ApproverID,
			ApproverRole: a.ApproverRole,
			Action:       domain.Action(a.Action),
			Notes:        a.Notes,
			Override:     a.Override,
			Timestamp:    a.CreatedAt,
		})
	}
	var entityData []byte
	if len(m.EntityData) > 0 {
		entityData = []byte(m.EntityData)
	}
	return &domain.ApprovalRequest{
		ID:             m.ID,
		Type:           m.Type,
		EntityID:       m.EntityID,
		EntityData:     entityData,
		RequesterID:    m.RequesterID,
		RequesterRole:  m.RequesterRole,
		RequiredLevels: append([]int(nil), m.RequiredLevels.Data()...),
		Progress:       m.Progress,
		CurrentLevel:   m.CurrentLevel,
		Status:         domain.Status(m.Status),
		Approvals:      approvals,
		Notes:          m.Notes,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Version:        m.Version,
	}
}

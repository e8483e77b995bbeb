package repository

import (
	"context"
	"time"

	"github.com/mautops/erp-approval/internal/model"
	"gorm.io/gorm"
)

// EventRepository 审批事件仓储接口
type EventRepository interface {
	Save(ctx context.Context, event *model.ApprovalEventModel) error
	FindByID(ctx context.Context, id string) (*model.ApprovalEventModel, error)
	FindByRequestID(ctx context.Context, requestID string) ([]*model.ApprovalEventModel, error)
	FindPending(ctx context.Context) ([]*model.ApprovalEventModel, error)
	UpdateStatus(ctx context.Context, id string, status string, retryCount int) error
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(ctx context.Context, event *model.ApprovalEventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(event).Error
}

// FindByID 根据 ID 查找事件
func (r *eventRepository) FindByID(ctx context.Context, id string) (*model.ApprovalEventModel, error) {
	var event model.ApprovalEventModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByRequestID 根据审批请求 ID 查找事件
func (r *eventRepository) FindByRequestID(ctx context.Context, requestID string) ([]*model.ApprovalEventModel, error) {
	var events []*model.ApprovalEventModel
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待推送的事件
func (r *eventRepository) FindPending(ctx context.Context) ([]*model.ApprovalEventModel, error) {
	var events []*model.ApprovalEventModel
	err := r.db.WithContext(ctx).Where("status = ?", model.EventStatusPending).Order("created_at ASC").Find(&events).Error
	return events, err
}

// UpdateStatus 更新推送状态和重试次数
func (r *eventRepository) UpdateStatus(ctx context.Context, id string, status string, retryCount int) error {
	return r.db.WithContext(ctx).Model(&model.ApprovalEventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"updated_at":  time.Now(),
		}).Error
}

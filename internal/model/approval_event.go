package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 事件推送状态
const (
	EventStatusPending = "pending"
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
)

// ApprovalEventModel 审批状态变更事件(通知发件箱)
type ApprovalEventModel struct {
	ID         string         `gorm:"primaryKey;type:varchar(64)"`
	RequestID  string         `gorm:"type:varchar(64);not null;index"`
	Type       string         `gorm:"type:varchar(32);not null;index"`
	Data       datatypes.JSON `gorm:"not null"` // 序列化后的事件数据
	Status     string         `gorm:"type:varchar(32);not null;default:'pending';index"`
	RetryCount int            `gorm:"type:int;default:0"`
	CreatedAt  time.Time      `gorm:"not null;index"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (ApprovalEventModel) TableName() string {
	return "approval_events"
}

// Validate 验证事件模型
func (em *ApprovalEventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.RequestID == "" {
		return errors.New("request ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}

package model

import (
	"errors"
	"time"
)

// ApprovalActionModel 审批记录数据模型
// 每个请求的每一步只允许一条记录,由 (request_id, step) 唯一索引保证
type ApprovalActionModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	RequestID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_actions_request_step"`
	Step         int       `gorm:"type:int;not null;uniqueIndex:idx_actions_request_step"`
	Level        int       `gorm:"type:int;not null"`
	ApproverID   string    `gorm:"type:varchar(64);not null;index"`
	ApproverRole string    `gorm:"type:varchar(64);not null"`
	Action       string    `gorm:"type:varchar(32);not null"` // approve/reject
	Notes        string    `gorm:"type:text"`
	Override     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (ApprovalActionModel) TableName() string {
	return "approval_actions"
}

// Validate 验证审批记录模型
func (m *ApprovalActionModel) Validate() error {
	if m.ID == "" {
		return errors.New("action ID is required")
	}
	if m.RequestID == "" {
		return errors.New("request ID is required")
	}
	if m.ApproverID == "" {
		return errors.New("approver ID is required")
	}
	if m.Action == "" {
		return errors.New("action is required")
	}
	return nil
}

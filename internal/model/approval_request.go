package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ApprovalRequestModel 审批请求数据模型
type ApprovalRequestModel struct {
	ID             string                    `gorm:"primaryKey;type:varchar(64)"`
	Type           string                    `gorm:"type:varchar(64);not null;index"`
	EntityID       string                    `gorm:"type:varchar(64);not null;index"`
	EntityData     datatypes.JSON            // 业务实体快照,原样存储
	RequesterID    string                    `gorm:"type:varchar(64);not null;index"`
	RequesterRole  string                    `gorm:"type:varchar(64);not null"`
	RequiredLevels datatypes.JSONType[[]int] `gorm:"not null"`
	Progress       int                       `gorm:"type:int;not null;default:0"` // required_levels 下标
	CurrentLevel   int                       `gorm:"type:int;not null;index"`
	Status         string                    `gorm:"type:varchar(32);not null;index"` // pending/approved/rejected
	Notes          string                    `gorm:"type:text"`
	Version        int64                     `gorm:"not null;default:1"` // 乐观锁版本号
	CreatedAt      time.Time                 `gorm:"not null;index"`
	UpdatedAt      time.Time                 `gorm:"not null"`

	Actions []ApprovalActionModel `gorm:"foreignKey:RequestID;references:ID"`
}

// TableName 指定表名
func (ApprovalRequestModel) TableName() string {
	return "approval_requests"
}

// Validate 验证审批请求模型
func (m *ApprovalRequestModel) Validate() error {
	if m.ID == "" {
		return errors.New("request ID is required")
	}
	if m.EntityID == "" {
		return errors.New("entity ID is required")
	}
	if m.RequesterID == "" {
		return errors.New("requester ID is required")
	}
	if len(m.RequiredLevels.Data()) == 0 {
		return errors.New("required levels must not be empty")
	}
	if m.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

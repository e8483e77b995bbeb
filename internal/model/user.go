package model

import (
	"time"

	"gorm.io/gorm"
)

// UserModel 用户目录只读模型(由 ERP 用户模块维护)
type UserModel struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)"`
	Name      string         `gorm:"type:varchar(255);not null"`
	Role      string         `gorm:"type:varchar(64);not null;index"`
	ManagerID string         `gorm:"type:varchar(64);index"` // 直属上级
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mautops/erp-approval/internal/model"
	"gorm.io/gorm"
)

// ErrUserNotFound 用户不存在或已删除
var ErrUserNotFound = errors.New("user not found")

// User 用户目录条目
type User struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Role      string `json:"role" yaml:"role"`
	ManagerID string `json:"manager_id,omitempty" yaml:"manager_id"`
}

// Directory 用户目录
// 审批引擎只通过该接口查询用户姓名和汇报关系
type Directory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	DirectReports(ctx context.Context, managerID string) ([]string, error)
}

// gormDirectory 基于 users 表的用户目录
type gormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory 创建基于数据库的用户目录
func NewGormDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

// GetUser 根据 ID 查询用户, 软删除的用户视为不存在
func (d *gormDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	var m model.UserModel
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &User{ID: m.ID, Name: m.Name, Role: m.Role, ManagerID: m.ManagerID}, nil
}

// DirectReports 查询直属下级的用户 ID
func (d *gormDirectory) DirectReports(ctx context.Context, managerID string) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&model.UserModel{}).
		Where("manager_id = ?", managerID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list direct reports: %w", err)
	}
	return ids, nil
}

// StaticDirectory 内存用户目录, 用于测试和 header 认证模式下的本地运行
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewStaticDirectory 创建内存用户目录
func NewStaticDirectory(users ...User) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put 新增或替换用户
func (d *StaticDirectory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Remove 删除用户
func (d *StaticDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

// GetUser 根据 ID 查询用户
func (d *StaticDirectory) GetUser(_ context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return &u, nil
}

// DirectReports 查询直属下级的用户 ID
func (d *StaticDirectory) DirectReports(_ context.Context, managerID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0)
	for _, u := range d.users {
		if u.ManagerID == managerID {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

var (
	_ Directory = (*gormDirectory)(nil)
	_ Directory = (*StaticDirectory)(nil)
)

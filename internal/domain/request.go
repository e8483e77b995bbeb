package domain

import (
	"encoding/json"
	"time"
)

// Status 审批请求状态
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid 判断是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal 已通过或已拒绝的请求不再接受任何操作
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Action 审批动作
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction 解析审批动作
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject:
		return Action(s), nil
	}
	return "", Validationf("unknown action %q", s)
}

// Actor 当前操作人(由身份中间件提供)
type Actor struct {
	UserID string
	Role   string
}

// Decision 单个层级的审批记录
type Decision struct {
	Step         int       `json:"step"`
	Level        int       `json:"level"`
	ApproverID   string    `json:"approver_id"`
	ApproverRole string    `json:"approver_role"`
	Action       Action    `json:"action"`
	Notes        string    `json:"notes"`
	Override     bool      `json:"override"`
	Timestamp    time.Time `json:"timestamp"`
}

// ApprovalRequest 审批请求
type ApprovalRequest struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	EntityID       string          `json:"entity_id"`
	EntityData     json.RawMessage `json:"entity_data,omitempty"`
	RequesterID    string          `json:"requester_id"`
	RequesterRole  string          `json:"requester_role"`
	RequiredLevels []int           `json:"required_levels"`
	Progress       int             `json:"progress"`
	CurrentLevel   int             `json:"current_level"`
	Status         Status          `json:"status"`
	Approvals      []Decision      `json:"approvals"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int64           `json:"version"`
}

// Clone 深拷贝,供 ConditionalUpdate 在副本上执行变更
func (r *ApprovalRequest) Clone() *ApprovalRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.EntityData != nil {
		c.EntityData = append(json.RawMessage(nil), r.EntityData...)
	}
	c.RequiredLevels = append([]int(nil), r.RequiredLevels...)
	c.Approvals = make([]Decision, len(r.Approvals))
	copy(c.Approvals, r.Approvals)
	return &c
}

// IsLastStep 当前步骤是否为最后一级
func (r *ApprovalRequest) IsLastStep() bool {
	return r.Progress >= len(r.RequiredLevels)-1
}

// ActedBy 判断用户是否在该请求上做过审批
func (r *ApprovalRequest) ActedBy(userID string) bool {
	for _, d := range r.Approvals {
		if d.ApproverID == userID {
			return true
		}
	}
	return false
}

// Validate 校验新建请求的必填字段
func (r *ApprovalRequest) Validate() error {
	if r.Type == "" {
		return Validationf("type is required")
	}
	if r.EntityID == "" {
		return Validationf("entity_id is required")
	}
	if r.RequesterID == "" {
		return Validationf("requester_id is required")
	}
	if len(r.RequiredLevels) == 0 {
		return Validationf("required_levels must not be empty")
	}
	return nil
}

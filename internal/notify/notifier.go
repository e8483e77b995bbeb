package notify

import (
	"context"
	"errors"
	"time"

	"github.com/mautops/erp-approval/internal/domain"
)

// 事件类型
const (
	EventCreated  = "approval.created"
	EventAdvanced = "approval.advanced"
	EventApproved = "approval.approved"
	EventRejected = "approval.rejected"
)

// Event 审批状态变更事件
type Event struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	RequestID    string        `json:"request_id"`
	RequestType  string        `json:"request_type"`
	EntityID     string        `json:"entity_id"`
	RequesterID  string        `json:"requester_id"`
	ActorID      string        `json:"actor_id"`
	ActorRole    string        `json:"actor_role"`
	Action       domain.Action `json:"action,omitempty"`
	Override     bool          `json:"override,omitempty"`
	Status       domain.Status `json:"status"`
	CurrentLevel int           `json:"current_level"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Notifier 状态变更通知
// 通知失败不影响审批动作本身
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// NotifierFunc 函数形式的 Notifier
type NotifierFunc func(ctx context.Context, evt Event) error

// Notify 调用函数本身
func (f NotifierFunc) Notify(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Multi 依次调用多个 Notifier, 汇总所有错误
type Multi []Notifier

// Notify 通知所有 Notifier
func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop 不做任何事
type Nop struct{}

// Notify 忽略事件
func (Nop) Notify(context.Context, Event) error { return nil }

// EventType 根据动作结果确定事件类型
func EventType(action domain.Action, status domain.Status) string {
	switch {
	case status == domain.StatusApproved:
		return EventApproved
	case status == domain.StatusRejected:
		return EventRejected
	case action == "":
		return EventCreated
	default:
		return EventAdvanced
	}
}

// Recipients 事件需要推送的用户
func (e Event) Recipients() []string {
	if e.ActorID == "" || e.ActorID == e.RequesterID {
		return []string{e.RequesterID}
	}
	return []string{e.RequesterID, e.ActorID}
}

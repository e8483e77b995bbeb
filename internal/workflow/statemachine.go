package workflow

import (
	"time"

	"github.com/mautops/erp-approval/internal/domain"
)

// Transition 一次审批动作的计算结果
type Transition struct {
	Decision  domain.Decision
	FromLevel int
	ToLevel   int
	Status    domain.Status
}

// Decide 校验审批动作并在请求上应用变更
// req 必须是副本, 调用方负责持久化
func Decide(table *LevelTable, req *domain.ApprovalRequest, actor domain.Actor, action domain.Action, notes string, now time.Time) (*Transition, error) {
	if req.Status.Terminal() {
		return nil, domain.AlreadyResolved(req.ID, req.Status)
	}
	if req.Progress < 0 || req.Progress >= len(req.RequiredLevels) {
		return nil, domain.Validationf("request %s has progress %d outside its %d levels", req.ID, req.Progress, len(req.RequiredLevels))
	}

	level := req.RequiredLevels[req.Progress]
	override := false
	if !table.CanAct(actor.Role, level) {
		if !table.CanOverride(actor.Role) {
			return nil, domain.Forbidden(actor.Role, level)
		}
		override = true
	}

	// 越级审批同样记录在当前层级, 不会跳过后续层级
	d := domain.Decision{
		Step:         req.Progress,
		Level:        level,
		ApproverID:   actor.UserID,
		ApproverRole: actor.Role,
		Action:       action,
		Notes:        notes,
		Override:     override,
		Timestamp:    now,
	}
	req.Approvals = append(req.Approvals, d)

	tr := &Transition{Decision: d, FromLevel: level, ToLevel: level}
	switch action {
	case domain.ActionReject:
		req.Status = domain.StatusRejected
	case domain.ActionApprove:
		if req.IsLastStep() {
			req.Status = domain.StatusApproved
		} else {
			req.Progress++
			req.CurrentLevel = req.RequiredLevels[req.Progress]
			tr.ToLevel = req.CurrentLevel
		}
	default:
		return nil, domain.Validationf("unknown action %q", action)
	}
	tr.Status = req.Status
	return tr, nil
}

package workflow

import (
	"context"
	"fmt"

	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/identity"
)

// MineFilter 只匹配调用方发起的请求, 与角色无关
func MineFilter(actor domain.Actor) domain.Predicate {
	return domain.ByRequester(actor.UserID)
}

// PendingFilter 待审批视图
// 全局视图角色看到所有 pending 请求, 其他角色只看到当前层级由自己负责的请求
// 角色没有可审批层级时返回 false
func PendingFilter(table *LevelTable, actor domain.Actor) (domain.Predicate, bool) {
	if table.HasSystemWideView(actor.Role) {
		return domain.ByStatus(domain.StatusPending), true
	}
	levels := table.LevelsFor(actor.Role)
	if len(levels) == 0 {
		return domain.Predicate{}, false
	}
	return domain.And(
		domain.ByStatus(domain.StatusPending),
		domain.ByCurrentLevel(levels...),
	), true
}

// HistoryFilter 历史视图
// 全局视图角色看到全部请求, 其他角色看到自己发起的、自己审批过的以及直属下级发起的请求
func HistoryFilter(ctx context.Context, table *LevelTable, directory identity.Directory, actor domain.Actor) (domain.Predicate, error) {
	if table.HasSystemWideView(actor.Role) {
		return domain.All(), nil
	}

	children := []domain.Predicate{
		domain.ByRequester(actor.UserID),
		domain.ActedBy(actor.UserID),
	}
	if directory != nil {
		reports, err := directory.DirectReports(ctx, actor.UserID)
		if err != nil {
			return domain.Predicate{}, fmt.Errorf("failed to resolve direct reports of %s: %w", actor.UserID, err)
		}
		if len(reports) > 0 {
			children = append(children, domain.ByRequester(reports...))
		}
	}
	return domain.Or(children...), nil
}

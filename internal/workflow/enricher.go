package workflow

import (
	"context"
	"errors"

	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/identity"
	"github.com/sirupsen/logrus"
)

// UnknownUserName 用户不存在或已删除时显示的名称
const UnknownUserName = "Unknown user"

// EnrichedDecision 附带审批人姓名的审批记录
type EnrichedDecision struct {
	domain.Decision
	ApproverName string `json:"approver_name"`
}

// EnrichedRequest 附带发起人和审批人姓名的审批请求
// 外层 Approvals 覆盖内嵌请求的同名字段
type EnrichedRequest struct {
	*domain.ApprovalRequest
	RequesterName string             `json:"requester_name"`
	Approvals     []EnrichedDecision `json:"approvals"`
}

// Enricher 为读取结果补充用户姓名, 不修改存储的数据
type Enricher struct {
	directory identity.Directory
	logger    *logrus.Logger
}

// NewEnricher 创建姓名补充器
func NewEnricher(directory identity.Directory, logger *logrus.Logger) *Enricher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Enricher{directory: directory, logger: logger}
}

// Enrich 批量补充姓名, 同一次调用内每个用户只查询一次
func (e *Enricher) Enrich(ctx context.Context, requests []*domain.ApprovalRequest) []*EnrichedRequest {
	names := make(map[string]string)
	out := make([]*EnrichedRequest, 0, len(requests))
	for _, req := range requests {
		out = append(out, e.enrich(ctx, req, names))
	}
	return out
}

// EnrichOne 补充单个请求
func (e *Enricher) EnrichOne(ctx context.Context, req *domain.ApprovalRequest) *EnrichedRequest {
	return e.enrich(ctx, req, make(map[string]string))
}

func (e *Enricher) enrich(ctx context.Context, req *domain.ApprovalRequest, names map[string]string) *EnrichedRequest {
	r := req.Clone()
	enriched := &EnrichedRequest{
		ApprovalRequest: r,
		RequesterName:   e.lookup(ctx, r.RequesterID, names),
		Approvals:       make([]EnrichedDecision, 0, len(r.Approvals)),
	}
	for _, d := range r.Approvals {
		enriched.Approvals = append(enriched.Approvals, EnrichedDecision{
			Decision:     d,
			ApproverName: e.lookup(ctx, d.ApproverID, names),
		})
	}
	return enriched
}

func (e *Enricher) lookup(ctx context.Context, userID string, names map[string]string) string {
	if name, ok := names[userID]; ok {
		return name
	}

	name := UnknownUserName
	if e.directory != nil && userID != "" {
		u, err := e.directory.GetUser(ctx, userID)
		switch {
		case err == nil && u.Name != "":
			name = u.Name
		case err != nil && !errors.Is(err, identity.ErrUserNotFound):
			e.logger.WithError(err).WithField("user_id", userID).Warn("Failed to resolve user name")
		}
	}
	names[userID] = name
	return name
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mautops/erp-approval/internal/domain"
)

// MemoryApprovalRepository 内存版审批请求仓储,用于测试和本地运行
// 所有读写都返回副本,调用方无法绕过 ConditionalUpdate 修改存储
type MemoryApprovalRepository struct {
	mu       sync.RWMutex
	records  map[string]*domain.ApprovalRequest
	inserted map[string]int64 // 写入顺序, 创建时间相同时用于排序
	now      func() time.Time
	sequence int64
}

// MemoryOption 内存仓储选项
type MemoryOption func(*MemoryApprovalRepository)

// WithMemoryClock 设置内存仓储的时钟
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(r *MemoryApprovalRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewMemoryApprovalRepository 创建内存仓储
func NewMemoryApprovalRepository(opts ...MemoryOption) *MemoryApprovalRepository {
	r := &MemoryApprovalRepository{
		records:  make(map[string]*domain.ApprovalRequest),
		inserted: make(map[string]int64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create 保存新请求
func (r *MemoryApprovalRepository) Create(_ context.Context, req *domain.ApprovalRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := prepareNew(req, r.now()); err != nil {
		return "", err
	}
	if _, exists := r.records[req.ID]; exists {
		return "", domain.Validationf("approval request %s already exists", req.ID)
	}
	r.sequence++
	r.records[req.ID] = req.Clone()
	r.inserted[req.ID] = r.sequence
	return req.ID, nil
}

// FindByID 根据 ID 查找请求
func (r *MemoryApprovalRepository) FindByID(_ context.Context, id string) (*domain.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.records[id]
	if !ok {
		return nil, domain.NotFound(id)
	}
	return req.Clone(), nil
}

// ConditionalUpdate 版本号匹配时才写入变更
func (r *MemoryApprovalRepository) ConditionalUpdate(_ context.Context, id string, expectedVersion int64, mutate MutationFunc) (*domain.ApprovalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[id]
	if !ok {
		return nil, domain.NotFound(id)
	}
	if current.Version != expectedVersion {
		return nil, domain.Conflict(id, expectedVersion)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := checkMutation(current, next); err != nil {
		return nil, err
	}
	next.Version = expectedVersion + 1
	next.UpdatedAt = r.now()

	r.records[id] = next
	return next.Clone(), nil
}

// Find 按条件查询,按创建时间倒序
func (r *MemoryApprovalRepository) Find(_ context.Context, p domain.Predicate) ([]*domain.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ApprovalRequest, 0)
	for _, req := range r.records {
		if p.Match(req) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return r.inserted[out[i].ID] > r.inserted[out[j].ID]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ ApprovalRepository = (*MemoryApprovalRepository)(nil)

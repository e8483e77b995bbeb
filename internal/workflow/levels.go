package workflow

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/domain"
)

// LevelTable 审批层级表
// 角色 -> 审批层级链, 层级 -> 授权角色, 以及拥有越级审批和全局视图的角色
// 构造后只读
type LevelTable struct {
	chains        map[string][]int
	levelRoles    map[int][]string
	roleLevels    map[string][]int
	overrideRoles map[string]bool
	systemRoles   map[string]bool
}

// NewLevelTable 根据配置构建层级表并校验
// 每条审批链不能为空, 链上的每个层级都必须至少有一个授权角色
func NewLevelTable(cfg config.ApprovalConfig) (*LevelTable, error) {
	t := &LevelTable{
		chains:        make(map[string][]int),
		levelRoles:    make(map[int][]string),
		roleLevels:    make(map[string][]int),
		overrideRoles: toSet(cfg.OverrideRoles),
		systemRoles:   toSet(cfg.SystemRoles),
	}

	for _, l := range cfg.Levels {
		if len(l.Roles) == 0 {
			return nil, fmt.Errorf("level %d has no authorized roles", l.Level)
		}
		for _, role := range l.Roles {
			t.levelRoles[l.Level] = appendUnique(t.levelRoles[l.Level], role)
			t.roleLevels[role] = appendUniqueInt(t.roleLevels[role], l.Level)
		}
	}
	for role := range t.roleLevels {
		sort.Ints(t.roleLevels[role])
	}

	for _, c := range cfg.Chains {
		if c.Role == "" {
			return nil, fmt.Errorf("approval chain without role")
		}
		if _, dup := t.chains[c.Role]; dup {
			return nil, fmt.Errorf("duplicate approval chain for role %q", c.Role)
		}
		if len(c.Levels) == 0 {
			return nil, fmt.Errorf("approval chain for role %q is empty", c.Role)
		}
		for _, level := range c.Levels {
			if len(t.levelRoles[level]) == 0 {
				return nil, fmt.Errorf("approval chain for role %q uses level %d which has no authorized roles", c.Role, level)
			}
		}
		t.chains[c.Role] = append([]int(nil), c.Levels...)
	}

	return t, nil
}

// Resolve 返回角色对应的审批层级链副本
func (t *LevelTable) Resolve(role string) ([]int, error) {
	levels, ok := t.chains[role]
	if !ok {
		return nil, domain.UnknownRole(role)
	}
	return append([]int(nil), levels...), nil
}

// AuthorizedRoles 返回可以审批该层级的角色
func (t *LevelTable) AuthorizedRoles(level int) []string {
	return append([]string(nil), t.levelRoles[level]...)
}

// LevelsFor 返回角色可以审批的层级
func (t *LevelTable) LevelsFor(role string) []int {
	return append([]int(nil), t.roleLevels[role]...)
}

// CanAct 角色是否被授权审批该层级(不含越级审批)
func (t *LevelTable) CanAct(role string, level int) bool {
	for _, r := range t.levelRoles[level] {
		if r == role {
			return true
		}
	}
	return false
}

// CanOverride 角色是否拥有越级审批权限
func (t *LevelTable) CanOverride(role string) bool {
	return t.overrideRoles[role]
}

// HasSystemWideView 角色是否可以查看全部请求
func (t *LevelTable) HasSystemWideView(role string) bool {
	return t.systemRoles[role]
}

// KnowsRole 角色是否出现在层级表中
func (t *LevelTable) KnowsRole(role string) bool {
	if _, ok := t.chains[role]; ok {
		return true
	}
	if _, ok := t.roleLevels[role]; ok {
		return true
	}
	return t.overrideRoles[role] || t.systemRoles[role]
}

// Snapshot 导出当前生效的层级表
func (t *LevelTable) Snapshot() config.ApprovalConfig {
	var out config.ApprovalConfig

	roles := make([]string, 0, len(t.chains))
	for role := range t.chains {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		out.Chains = append(out.Chains, config.ChainConfig{Role: role, Levels: append([]int(nil), t.chains[role]...)})
	}

	levels := make([]int, 0, len(t.levelRoles))
	for level := range t.levelRoles {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	for _, level := range levels {
		out.Levels = append(out.Levels, config.LevelConfig{Level: level, Roles: t.AuthorizedRoles(level)})
	}

	out.OverrideRoles = sortedKeys(t.overrideRoles)
	out.SystemRoles = sortedKeys(t.systemRoles)
	return out
}

// LevelTableHolder 可热更新的层级表
// 进行中的请求保存了创建时的层级链, 替换不会影响它们
type LevelTableHolder struct {
	current atomic.Pointer[LevelTable]
}

// NewLevelTableHolder 创建层级表持有者
func NewLevelTableHolder(t *LevelTable) *LevelTableHolder {
	h := &LevelTableHolder{}
	h.current.Store(t)
	return h
}

// Load 返回当前层级表
func (h *LevelTableHolder) Load() *LevelTable {
	return h.current.Load()
}

// Reload 用新配置替换层级表, 配置非法时保留旧表
func (h *LevelTableHolder) Reload(cfg config.ApprovalConfig) error {
	t, err := NewLevelTable(cfg)
	if err != nil {
		return err
	}
	h.current.Store(t)
	return nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func appendUniqueInt(values []int, v int) []int {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

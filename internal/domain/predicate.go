package domain

// PredicateKind 查询条件类型
type PredicateKind int

const (
	KindAll PredicateKind = iota
	KindRequester
	KindStatus
	KindCurrentLevel
	KindActedBy
	KindAnd
	KindOr
)

// Predicate 可组合的查询条件
// 仓储实现既可以直接调用 Match 过滤,也可以将其翻译为 SQL
type Predicate struct {
	Kind     PredicateKind
	Values   []string
	Levels   []int
	Children []Predicate
}

// All 匹配所有请求
func All() Predicate {
	return Predicate{Kind: KindAll}
}

// ByRequester 按发起人过滤,空列表不匹配任何请求
func ByRequester(userIDs ...string) Predicate {
	return Predicate{Kind: KindRequester, Values: userIDs}
}

// ByStatus 按状态过滤
func ByStatus(statuses ...Status) Predicate {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return Predicate{Kind: KindStatus, Values: values}
}

// ByCurrentLevel 按当前待审批层级过滤
func ByCurrentLevel(levels ...int) Predicate {
	return Predicate{Kind: KindCurrentLevel, Levels: levels}
}

// ActedBy 匹配用户审批过的请求
func ActedBy(userID string) Predicate {
	return Predicate{Kind: KindActedBy, Values: []string{userID}}
}

// And 所有子条件同时满足
func And(children ...Predicate) Predicate {
	return Predicate{Kind: KindAnd, Children: children}
}

// Or 任一子条件满足
func Or(children ...Predicate) Predicate {
	return Predicate{Kind: KindOr, Children: children}
}

// Match 判断请求是否满足条件
func (p Predicate) Match(r *ApprovalRequest) bool {
	switch p.Kind {
	case KindAll:
		return true
	case KindRequester:
		return containsString(p.Values, r.RequesterID)
	case KindStatus:
		return containsString(p.Values, string(r.Status))
	case KindCurrentLevel:
		for _, l := range p.Levels {
			if l == r.CurrentLevel {
				return true
			}
		}
		return false
	case KindActedBy:
		for _, v := range p.Values {
			if r.ActedBy(v) {
				return true
			}
		}
		return false
	case KindAnd:
		for _, c := range p.Children {
			if !c.Match(r) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range p.Children {
			if c.Match(r) {
				return true
			}
		}
		return false
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

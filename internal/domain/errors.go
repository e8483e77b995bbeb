package domain

import (
	"errors"
	"fmt"
)

// 审批引擎错误分类,调用方通过 errors.Is 判断
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnknownRole     = errors.New("unknown role")
	ErrNotFound        = errors.New("approval request not found")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyResolved = errors.New("approval request already resolved")
	ErrConflict        = errors.New("concurrent update conflict")
)

// Validationf 构造校验错误
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UnknownRole 构造未知角色错误
func UnknownRole(role string) error {
	return fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

// NotFound 构造请求不存在错误
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Forbidden 构造无权限错误
func Forbidden(role string, level int) error {
	return fmt.Errorf("%w: role %q cannot act on level %d", ErrForbidden, role, level)
}

// AlreadyResolved 构造请求已结束错误
func AlreadyResolved(id string, status Status) error {
	return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, status)
}

// Conflict 构造版本冲突错误
func Conflict(id string, expected int64) error {
	return fmt.Errorf("%w: %s changed since version %d", ErrConflict, id, expected)
}

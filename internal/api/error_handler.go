package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/erp-approval/internal/domain"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
// 处理器通过 c.Error 上报、尚未写响应的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		HandleError(c, c.Errors.Last().Err)
	}
}

// HandleError 将领域错误映射为 HTTP 响应
func HandleError(c *gin.Context, err error) {
	apiErr := ToAPIError(err)
	Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
}

// ToAPIError 领域错误到 HTTP 状态码的映射
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return WrapError(err, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrUnknownRole):
		return WrapError(err, http.StatusUnprocessableEntity, "unknown role")
	case errors.Is(err, domain.ErrNotFound):
		return WrapError(err, http.StatusNotFound, "approval request not found")
	case errors.Is(err, domain.ErrForbidden):
		return WrapError(err, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrAlreadyResolved):
		return WrapError(err, http.StatusConflict, domain.ErrAlreadyResolved.Error())
	case errors.Is(err, domain.ErrConflict):
		return WrapError(err, http.StatusConflict, domain.ErrConflict.Error())
	default:
		return WrapError(err, http.StatusInternalServerError, "internal server error")
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

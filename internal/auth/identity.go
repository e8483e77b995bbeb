package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mautops/erp-approval/internal/domain"
)

// 上下文键
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextRoles  = "roles"
)

// RoleFilter 判断角色是否为审批引擎认识的角色
type RoleFilter func(role string) bool

// HeaderAuthMiddleware 信任网关注入的身份头
func HeaderAuthMiddleware(userHeader, roleHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userHeader))
		role := strings.TrimSpace(c.GetHeader(roleHeader))
		if userID == "" || role == "" {
			abortUnauthorized(c, "missing identity headers", userHeader+" and "+roleHeader+" are required")
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Set(ContextRoles, []string{role})
		c.Next()
	}
}

// KeycloakAuthMiddleware Keycloak JWT 认证中间件
// 角色取 realm 角色中第一个被 known 接受的角色
// 浏览器 WebSocket 无法设置请求头, 仅 WebSocket 握手请求接受 token 查询参数
func KeycloakAuthMiddleware(validator *KeycloakTokenValidator, known RoleFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" && websocket.IsWebSocketUpgrade(c.Request) {
			token = c.Query("token")
		}
		if token == "" {
			abortUnauthorized(c, "missing authorization header", "")
			return
		}

		// 移除 "Bearer " 前缀
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := validator.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid token", err.Error())
			return
		}

		role := PickRole(claims.RealmAccess.Roles, known)
		if role == "" {
			abortUnauthorized(c, "no approval role", "token carries no role known to the approval engine")
			return
		}

		c.Set(ContextUserID, claims.Sub)
		c.Set(ContextRole, role)
		c.Set(ContextRoles, claims.RealmAccess.Roles)
		c.Set("username", claims.PreferredUsername)
		c.Set("email", claims.Email)
		c.Set("name", claims.Name)
		c.Next()
	}
}

// PickRole 返回第一个被 known 接受的角色
func PickRole(roles []string, known RoleFilter) string {
	for _, r := range roles {
		if known == nil || known(r) {
			return r
		}
	}
	return ""
}

// ActorFromContext 从上下文读取当前操作人
func ActorFromContext(c *gin.Context) (domain.Actor, bool) {
	userID := c.GetString(ContextUserID)
	role := c.GetString(ContextRole)
	if userID == "" || role == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: userID, Role: role}, true
}

func abortUnauthorized(c *gin.Context, message, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
		"detail":  detail,
	})
}

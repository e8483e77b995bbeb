package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/erp-approval/internal/auth"
)

// NewUpgrader 创建 WebSocket upgrader, allowedOrigins 包含 "*" 时不校验 Origin
func NewUpgrader(allowedOrigins []string) gorillaWS.Upgrader {
	return gorillaWS.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// WebSocketHandler WebSocket 处理器
// 必须挂在身份中间件之后, 连接与当前用户关联
func WebSocketHandler(hub *Hub, upgrader gorillaWS.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade 已写入错误响应
			hub.logger.WithError(err).WithField("user_id", actor.UserID).Warn("Failed to upgrade websocket")
			return
		}

		client := NewClient(uuid.New().String(), actor.UserID, hub, conn)

		select {
		case hub.Register <- client:
		case <-hub.Done():
			conn.Close()
			return
		}

		go client.ReadPump()
		go client.WritePump()
	}
}

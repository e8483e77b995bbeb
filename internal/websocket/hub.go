package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mautops/erp-approval/internal/notify"
	"github.com/sirupsen/logrus"
)

// Hub 管理所有 WebSocket 连接, 将审批事件推送给相关用户
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	logger *logrus.Logger
	done   chan struct{}

	// 互斥锁，保护 clients map
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run 运行 Hub, ctx 取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Done Run 退出后关闭
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// SendToUser 向特定用户的所有连接推送消息, 发送缓冲已满的连接会被断开
func (h *Hub) SendToUser(userID string, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Send <- message:
			sent++
		default:
			delete(h.clients, client)
			close(client.Send)
		}
	}
	return sent
}

// Notify 实现 notify.Notifier, 推送给发起人和操作人
func (h *Hub) Notify(_ context.Context, evt notify.Event) error {
	message, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	for _, userID := range evt.Recipients() {
		if n := h.SendToUser(userID, message); n > 0 {
			h.logger.WithFields(logrus.Fields{
				"user_id":     userID,
				"approval_id": evt.RequestID,
				"type":        evt.Type,
				"clients":     n,
			}).Debug("Pushed approval event")
		}
	}
	return nil
}

// HasClient 检查客户端是否存在
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID == clientID {
			return true
		}
	}
	return false
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

var _ notify.Notifier = (*Hub)(nil)

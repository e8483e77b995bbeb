package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/erp-approval/internal/model"
	"github.com/mautops/erp-approval/internal/repository"
	"github.com/sirupsen/logrus"
)

// WebhookConfig Webhook 推送配置
type WebhookConfig struct {
	URLs       []string
	Workers    int
	QueueSize  int
	MaxRetries int
	Timeout    time.Duration
	Backoff    time.Duration
}

// WebhookNotifier 先将事件写入 approval_events, 再由 worker 异步推送到所有 Webhook
type WebhookNotifier struct {
	eventRepo  repository.EventRepository
	httpClient *http.Client
	cfg        WebhookConfig
	logger     *logrus.Logger
	queue      chan *model.ApprovalEventModel
	stop       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewWebhookNotifier 创建 Webhook 通知器并启动 worker
func NewWebhookNotifier(eventRepo repository.EventRepository, cfg WebhookConfig, logger *logrus.Logger) *WebhookNotifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	n := &WebhookNotifier{
		eventRepo:  eventRepo,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
		queue:      make(chan *model.ApprovalEventModel, cfg.QueueSize),
		stop:       make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// Notify 持久化事件并入队
func (n *WebhookNotifier) Notify(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	now := time.Now()
	m := &model.ApprovalEventModel{
		ID:         evt.ID,
		RequestID:  evt.RequestID,
		Type:       evt.Type,
		Data:       data,
		Status:     model.EventStatusPending,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	// 没有配置 Webhook 时只记录事件
	if len(n.cfg.URLs) == 0 {
		m.Status = model.EventStatusSuccess
	}
	if err := n.eventRepo.Save(ctx, m); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	if m.Status != model.EventStatusPending {
		return nil
	}

	select {
	case n.queue <- m:
	default:
		// 队列满时保留 pending 状态, 由 Redeliver 补偿
		n.logger.WithFields(logrus.Fields{
			"event_id":    m.ID,
			"approval_id": m.RequestID,
			"type":        m.Type,
		}).Warn("Event queue full, delivery deferred")
	}
	return nil
}

// Redeliver 重新入队所有 pending 事件, 用于启动时补偿
func (n *WebhookNotifier) Redeliver(ctx context.Context) (int, error) {
	if len(n.cfg.URLs) == 0 {
		return 0, nil
	}
	events, err := n.eventRepo.FindPending(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, m := range events {
		select {
		case n.queue <- m:
			queued++
		default:
			return queued, nil
		}
	}
	return queued, nil
}

// worker 事件推送 worker
func (n *WebhookNotifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case m := <-n.queue:
			n.deliver(m)
		case <-n.stop:
			return
		}
	}
}

// deliver 推送到所有 Webhook, 失败时指数退避重试
func (n *WebhookNotifier) deliver(m *model.ApprovalEventModel) {
	ctx := context.Background()
	logger := n.logger.WithFields(logrus.Fields{
		"event_id":    m.ID,
		"approval_id": m.RequestID,
		"type":        m.Type,
	})

	backoff := n.cfg.Backoff
	for i := 0; i < n.cfg.MaxRetries; i++ {
		success := true
		for _, url := range n.cfg.URLs {
			if err := n.send(ctx, url, m.Data); err != nil {
				success = false
				logger.WithError(err).WithField("url", url).Warn("Failed to send webhook")
			}
		}

		if success {
			if err := n.eventRepo.UpdateStatus(ctx, m.ID, model.EventStatusSuccess, m.RetryCount); err != nil {
				logger.WithError(err).Error("Failed to update event status")
			}
			return
		}

		m.RetryCount++
		if err := n.eventRepo.UpdateStatus(ctx, m.ID, model.EventStatusPending, m.RetryCount); err != nil {
			logger.WithError(err).Error("Failed to update event retry count")
		}

		if i < n.cfg.MaxRetries-1 {
			select {
			case <-time.After(backoff):
			case <-n.stop:
				return
			}
			backoff *= 2
		}
	}

	if err := n.eventRepo.UpdateStatus(ctx, m.ID, model.EventStatusFailed, m.RetryCount); err != nil {
		logger.WithError(err).Error("Failed to update event status")
	}
	logger.WithField("retry_count", m.RetryCount).Error("Webhook delivery failed")
}

// send 发送 Webhook 请求
func (n *WebhookNotifier) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}
	return nil
}

// Stop 停止所有 worker
func (n *WebhookNotifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.stop)
	})
	n.wg.Wait()
}

var _ Notifier = (*WebhookNotifier)(nil)

package container

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/erp-approval/internal/api"
	"github.com/mautops/erp-approval/internal/auth"
	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/database"
	"github.com/mautops/erp-approval/internal/identity"
	"github.com/mautops/erp-approval/internal/metrics"
	"github.com/mautops/erp-approval/internal/notify"
	"github.com/mautops/erp-approval/internal/repository"
	"github.com/mautops/erp-approval/internal/service"
	"github.com/mautops/erp-approval/internal/websocket"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、审批引擎、通知等
type Container struct {
	cfg             *config.Config
	logger          *logrus.Logger
	db              *gorm.DB
	levels          *workflow.LevelTableHolder
	engine          *workflow.Engine
	approvalService service.ApprovalService
	webhook         *notify.WebhookNotifier
	hub             *websocket.Hub
	collector       *metrics.Collector
	identity        gin.HandlerFunc
	cancel          context.CancelFunc
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// 1. 初始化审批层级表
	table, err := workflow.NewLevelTable(cfg.Approval)
	if err != nil {
		return nil, fmt.Errorf("invalid approval level table: %w", err)
	}
	levels := workflow.NewLevelTableHolder(table)

	// 2. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// 3. 初始化通知: approval_events 发件箱 + WebSocket 推送
	webhook := notify.NewWebhookNotifier(repository.NewEventRepository(db), notify.WebhookConfig{
		URLs:       cfg.Notify.Webhooks,
		Workers:    cfg.Notify.Workers,
		QueueSize:  cfg.Notify.QueueSize,
		MaxRetries: cfg.Notify.MaxRetries,
		Timeout:    time.Duration(cfg.Notify.Timeout) * time.Second,
	}, logger)
	if n, err := webhook.Redeliver(ctx); err != nil {
		logger.WithError(err).Warn("Failed to redeliver pending events")
	} else if n > 0 {
		logger.WithField("count", n).Info("Redelivering pending events")
	}

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// 4. 初始化审批引擎和服务
	directory := identity.NewGormDirectory(db)
	engine := workflow.NewEngine(
		repository.NewApprovalRepository(db),
		levels,
		directory,
		workflow.WithLogger(logger),
		workflow.WithMaxRetries(cfg.Approval.MaxRetries),
		workflow.WithTypes(cfg.Approval.Types),
	)
	approvalService := service.NewApprovalService(
		engine,
		workflow.NewEnricher(directory, logger),
		service.NewAuditLogService(repository.NewAuditLogRepository(db)),
		notify.Multi{webhook, hub},
		logger,
	)

	// 5. 初始化身份中间件
	var identityMiddleware gin.HandlerFunc
	switch cfg.Auth.Mode {
	case "keycloak":
		validator := auth.NewKeycloakTokenValidator(cfg.Auth.Keycloak.Issuer, cfg.Auth.Keycloak.JWKSURL)
		identityMiddleware = auth.KeycloakAuthMiddleware(validator, func(role string) bool {
			return levels.Load().KnowsRole(role)
		})
	default:
		identityMiddleware = auth.HeaderAuthMiddleware(cfg.Auth.UserHeader, cfg.Auth.RoleHeader)
	}

	// 6. 指标收集器
	collector := metrics.NewCollector(db, 15*time.Second, logger)
	collector.Start()

	return &Container{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		levels:          levels,
		engine:          engine,
		approvalService: approvalService,
		webhook:         webhook,
		hub:             hub,
		collector:       collector,
		identity:        identityMiddleware,
		cancel:          cancel,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Levels 获取可热更新的层级表
func (c *Container) Levels() *workflow.LevelTableHolder {
	return c.levels
}

// ApprovalService 获取审批服务
func (c *Container) ApprovalService() service.ApprovalService {
	return c.approvalService
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Router 创建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	return api.SetupRouter(api.RouterOptions{
		Config:    c.cfg,
		Logger:    c.logger,
		DB:        c.db,
		Hub:       c.hub,
		Approvals: api.NewApprovalController(c.approvalService),
		Identity:  c.identity,
	})
}

// ReloadLevels 配置变更时替换层级表, 非法配置保留旧表
// 新表导致待审批请求无人可批时记录告警
func (c *Container) ReloadLevels(cfg *config.Config) {
	if err := c.levels.Reload(cfg.Approval); err != nil {
		c.logger.WithError(err).Warn("Ignoring invalid approval level table")
		return
	}
	c.logger.Info("Approval level table reloaded")

	stranded, err := c.engine.StrandedLevels(context.Background())
	if err != nil {
		c.logger.WithError(err).Warn("Failed to check pending requests against new level table")
		return
	}
	for level, count := range stranded {
		c.logger.WithFields(logrus.Fields{
			"level": level,
			"count": count,
		}).Warn("Pending requests left at a level with no authorized role, only override roles can act")
	}
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	c.collector.Stop()
	c.webhook.Stop()
	c.cancel()
	database.Close(c.db)
	return nil
}

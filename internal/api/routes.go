package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/mautops/erp-approval/docs" // 导入生成的 docs 包
	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/metrics"
	"github.com/mautops/erp-approval/internal/websocket"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// RouterOptions 路由依赖
type RouterOptions struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *gorm.DB
	Hub       *websocket.Hub
	Approvals *ApprovalController
	Identity  gin.HandlerFunc // 身份中间件, 设置 user_id 和 role
}

// SetupRouter 配置路由
func SetupRouter(opts RouterOptions) *gin.Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(RequestLogMiddleware(opts.Logger))
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(opts.DB, opts.Hub)
	router.GET("/health", healthController.Check)

	// Swagger UI, 生产环境不暴露
	if !config.IsProduction(cfg) {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := router.Group("")
	if opts.Identity != nil {
		authed.Use(opts.Identity)
	}
	if cfg.RateLimit.Enabled {
		authed.Use(UserRateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	// WebSocket 推送
	if opts.Hub != nil {
		authed.GET("/ws/approvals", websocket.WebSocketHandler(opts.Hub, websocket.NewUpgrader(cfg.CORS.AllowedOrigins)))
	}

	// API v1 路由组
	v1 := authed.Group("/api/v1")
	if opts.Approvals != nil {
		approvals := v1.Group("/approvals")
		{
			approvals.POST("/request", opts.Approvals.Create)
			approvals.GET("/my-requests", opts.Approvals.ListMine)
			approvals.GET("/pending", opts.Approvals.ListPending)
			approvals.GET("/history", opts.Approvals.ListHistory)
			approvals.GET("/levels", opts.Approvals.Levels)
			approvals.GET("/:id", opts.Approvals.Get)
			approvals.POST("/:id/action", opts.Approvals.Act)
		}
	}

	// 自定义 NoRoute 处理器,返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}

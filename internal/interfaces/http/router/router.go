// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/interfaces/http/handler"
	"deepwrite-ai-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health  *handler.HealthHandler
	Task    *handler.TaskHandler
	History *handler.HistoryHandler
	Prompt  *handler.PromptHandler

	// RateLimit 限流中间件，可为 nil
	RateLimit gin.HandlerFunc
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	if r.handlers.RateLimit != nil {
		r.engine.Use(r.handlers.RateLimit)
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	{
		// 任务
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", r.handlers.Task.Create)
			tasks.GET("", r.handlers.Task.List)
			tasks.GET("/:tid", r.handlers.Task.Get)
			tasks.POST("/:tid/run", r.handlers.Task.Run)
			tasks.DELETE("/:tid", r.handlers.Task.Delete)
		}

		// 异步生成入队
		v1.POST("/generations", r.handlers.Task.Enqueue)

		// 历史文档
		history := v1.Group("/history")
		{
			history.POST("/save", r.handlers.History.Save)
			history.GET("/index", r.handlers.History.Index)
			history.GET("/load/:id", r.handlers.History.Load)
			history.GET("/download/:id", r.handlers.History.Download)
			history.DELETE("/clear", r.handlers.History.Clear)
		}

		// 提示词审计
		v1.GET("/prompts", r.handlers.Prompt.Recent)
	}
}

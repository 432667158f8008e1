package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"paname-consulting/backend/config"
	"paname-consulting/backend/internal/api/handler"
	"paname-consulting/backend/internal/api/middleware"
	"paname-consulting/backend/internal/dto"
	"paname-consulting/backend/internal/repository"
	"paname-consulting/backend/pkg/jwt"
	"paname-consulting/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil：限流与 Token 黑名单降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, repo *repository.Repository, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if err := dto.RegisterValidators(); err != nil {
		logger.Fatal("注册自定义校验器失败", zap.Error(err))
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	limit := middleware.RateLimit(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// ── 健康检查 ──
	r.GET("/health", healthCheck(repo, rdb))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", limit, h.Auth.Login)
			auth.POST("/register", limit, h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 可用时段查询对访客开放
		v1.GET("/rendezvous/slots", h.Rendezvous.Slots)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 预约模块（归属校验在 Service 层）
			rendezvous := authorized.Group("/rendezvous")
			{
				rendezvous.POST("", limit, h.Rendezvous.Book)
				rendezvous.GET("/me", h.Rendezvous.ListMine)
				rendezvous.GET("/:id", h.Rendezvous.Get)
				rendezvous.GET("/:id/calendar", h.Export.RendezvousCalendar)
				rendezvous.PUT("/:id/confirm", h.Rendezvous.Confirm)
				rendezvous.PUT("/:id/cancel", h.Rendezvous.Cancel)
				rendezvous.PUT("/:id/complete", middleware.RoleAuth("admin"), h.Rendezvous.Complete)
				rendezvous.GET("", middleware.RoleAuth("admin"), h.Rendezvous.List)
				rendezvous.DELETE("/:id", middleware.RoleAuth("admin"), h.Rendezvous.Delete)
			}

			// 签证流程模块
			procedures := authorized.Group("/procedures")
			{
				procedures.POST("", middleware.RoleAuth("admin"), h.Procedure.Create)
				procedures.GET("/me", h.Procedure.ListMine)
				procedures.GET("/:id", h.Procedure.Get)
				procedures.PUT("/:id/steps/:step", middleware.RoleAuth("admin"), h.Procedure.UpdateStep)
				procedures.PUT("/:id/reject", middleware.RoleAuth("admin"), h.Procedure.Reject)
				procedures.PUT("/:id/cancel", h.Procedure.Cancel)
				procedures.DELETE("/:id", middleware.RoleAuth("admin"), h.Procedure.Delete)
				procedures.GET("", middleware.RoleAuth("admin"), h.Procedure.List)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/rendezvous", middleware.RoleAuth("admin"), h.Export.ExportRendezvous)
			}
		}
	}

	return r
}

// healthCheck 数据库不可达返回 503；Redis 为可选依赖，仅报告状态
func healthCheck(repo *repository.Repository, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}

		if err := repo.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "down"
		}

		if rdb != nil {
			if err := rdb.Ping(ctx); err != nil {
				body["redis"] = "down"
			} else {
				body["redis"] = "ok"
			}
		}

		c.JSON(status, body)
	}
}

package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dmgrok/unconference/config"
	"github.com/dmgrok/unconference/internal/api/handler"
	"github.com/dmgrok/unconference/internal/api/middleware"
	"github.com/dmgrok/unconference/internal/dto"
	"github.com/dmgrok/unconference/pkg/jwt"
	"github.com/dmgrok/unconference/pkg/metrics"
	"github.com/dmgrok/unconference/pkg/redis"
)

const (
	defaultBodyLimit = 1 << 20
	importBodyLimit  = 6 << 20

	authRateLimit  = 20
	authRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("注册校验器失败: %w", err)
		}
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger, "/health", "/metrics"))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(m))
	}
	r.Use(middleware.BodyLimit(defaultBodyLimit, map[string]int64{
		"/api/v1/events/:id/rooms/import": importBodyLimit,
	}))

	// ── 运维端点 ──
	r.GET("/health", h.Health.Health)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(rdb, authRateLimit, authRateWindow))
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/register", h.Auth.Register)
			auth.POST("/guest", h.Auth.GuestJoin)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("/me", h.User.GetCurrentUser)
				users.GET("", middleware.RoleAuth("organizer", "admin"), h.User.ListUsers)
				users.GET("/:id", middleware.RoleAuth("organizer", "admin"), h.User.GetUser)
				users.PUT("/:id", h.User.UpdateUser) // admin 或本人（Service 层鉴权）
				users.PUT("/:id/role", middleware.RoleAuth("admin"), h.User.AssignRole)
			}

			// 活动模块
			events := authorized.Group("/events")
			{
				events.POST("", middleware.RoleAuth("organizer", "admin"), h.Event.CreateEvent)
				events.GET("", h.Event.ListEvents)
				events.POST("/join", h.Event.JoinEvent)
				events.GET("/:id", h.Event.GetEvent)
				events.PUT("/:id", h.Event.UpdateEvent)
				events.DELETE("/:id", h.Event.DeleteEvent)
				events.POST("/:id/round/start", h.Event.StartRound)
				events.POST("/:id/round/end", h.Event.EndRound)

				// 议题与投票
				events.POST("/:id/topics", h.Topic.CreateTopic)
				events.GET("/:id/topics", h.Topic.ListTopics)
				events.PUT("/:id/preferences", h.Topic.SetPreferences)
				events.GET("/:id/preferences", h.Topic.MyPreferences)
				events.DELETE("/:id/votes", h.Topic.ClearVotes)

				// 讨论室
				events.POST("/:id/rooms", h.Room.CreateRoom)
				events.GET("/:id/rooms", h.Room.ListRooms)
				events.POST("/:id/rooms/import", h.Room.ImportRooms)

				// 分组（组织者权限在 Service 层按活动校验）
				events.POST("/:id/groups", h.Group.CreateGroups)
				events.GET("/:id/groups", h.Group.GetCurrentGroups)
				events.POST("/:id/groups/rebalance", h.Group.Rebalance)
				events.GET("/:id/groups/me", h.Group.GetMyGroup)
				events.GET("/:id/groups/change-logs", h.Group.ListChangeLogs)
				events.GET("/:id/groups/export", h.Export.ExportGroups)
			}

			topics := authorized.Group("/topics")
			{
				topics.GET("/:id", h.Topic.GetTopic)
				topics.PUT("/:id", h.Topic.UpdateTopic)
				topics.DELETE("/:id", h.Topic.DeleteTopic)
				topics.POST("/:id/vote", h.Topic.Vote)
				topics.DELETE("/:id/vote", h.Topic.Unvote)
				topics.PUT("/:id/selection", h.Topic.SelectTopic)
			}

			rooms := authorized.Group("/rooms")
			{
				rooms.GET("/:id", h.Room.GetRoom)
				rooms.PUT("/:id", h.Room.UpdateRoom)
				rooms.DELETE("/:id", h.Room.DeleteRoom)
			}

			// 系统配置模块
			systemConfig := authorized.Group("/system-config")
			{
				systemConfig.GET("", h.SystemConfig.GetConfig)
				systemConfig.PUT("", middleware.RoleAuth("admin"), h.SystemConfig.UpdateConfig)
			}
		}
	}

	return r, nil
}

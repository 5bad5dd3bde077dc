package router

import (
	"context"
	"net/http"
	"time"

	"peoplegrid/internal/handler"
	"peoplegrid/pkg/db"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/metrics"
	"peoplegrid/pkg/redis"
	"peoplegrid/pkg/response"
	"peoplegrid/pkg/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps 路由需要的全部依赖
type Deps struct {
	DB             *gorm.DB
	Redis          *redis.Store
	JWT            *jwt.JWTService
	AllowedOrigins []string
	MaxUpload      int64

	Auth     *handler.AuthHandler
	Profile  *handler.ProfileHandler
	Friends  *handler.FriendHandler
	Posts    *handler.PostHandler
	Messages *handler.MessageHandler
	Hub      *websocket.Hub
	WS       *websocket.Handler
}

// New 构建路由
func New(d Deps) *gin.Engine {
	r := gin.New()
	if d.MaxUpload > 0 {
		r.MaxMultipartMemory = d.MaxUpload
	}

	r.Use(logger.RequestLogger())
	r.Use(logger.ErrorLoggerMiddleware())
	r.Use(metrics.Middleware())
	r.Use(CORS(d.AllowedOrigins))

	r.GET("/health", healthHandler(d.DB, d.Redis, d.Hub))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", d.WS.ServeWS)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", d.Auth.Register)
		auth.POST("/login", d.Auth.Login)
	}

	// 以下接口需要JWT认证
	protected := api.Group("")
	protected.Use(d.JWT.AuthMiddleware())

	profile := protected.Group("/profile")
	{
		profile.GET("", d.Profile.Get)
		profile.PUT("", d.Profile.Update)
		profile.POST("/upload-photo", d.Profile.UploadPhoto)
	}

	friends := protected.Group("/friends")
	{
		friends.GET("/search", d.Friends.Search)
		friends.POST("/request/:recipientId", d.Friends.SendRequest)
		friends.GET("/pending", d.Friends.Pending)
		friends.PUT("/accept/:requesterId", d.Friends.Accept)
		friends.GET("/list", d.Friends.List)
		friends.GET("/online", d.Friends.Online)
	}

	posts := protected.Group("/posts")
	{
		posts.GET("", d.Posts.List)
		posts.POST("", d.Posts.Create)
		posts.POST("/:postId/like", d.Posts.ToggleLike)
		posts.GET("/:postId/comments", d.Posts.Comments)
		posts.POST("/:postId/comment", d.Posts.AddComment)
		posts.DELETE("/:postId", d.Posts.Delete)
	}

	messages := protected.Group("/messages")
	{
		messages.GET("", d.Messages.Unread)
		messages.GET("/:otherUserId", d.Messages.History)
	}

	return r
}

// healthHandler 数据库和Redis（如已启用）状态，以及在线人数
func healthHandler(gdb *gorm.DB, store *redis.Store, hub *websocket.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		checks := gin.H{"database": "ok"}
		online := hub.Registry().Len()

		if err := db.HealthCheck(gdb); err != nil {
			status = "degraded"
			checks["database"] = "down"
		}
		if store.Enabled() {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			checks["redis"] = "ok"
			if err := store.HealthCheck(ctx); err != nil {
				status = "degraded"
				checks["redis"] = "down"
			} else if ids, err := store.OnlineUsers(ctx); err == nil {
				// 多实例部署时以Redis镜像为准
				online = len(ids)
			}
		}

		body := gin.H{
			"status":       status,
			"checks":       checks,
			"connections":  hub.Count(),
			"online_users": online,
			"time":         time.Now().Format(time.RFC3339),
		}
		if status != "ok" {
			resp := response.Fail(http.StatusServiceUnavailable, status)
			resp.Data = body
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		response.Success(c, body)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peoplegrid/config"
	"peoplegrid/internal/handler"
	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
	"peoplegrid/internal/router"
	"peoplegrid/internal/service"
	dbPkg "peoplegrid/pkg/db"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/media"
	"peoplegrid/pkg/redis"
	"peoplegrid/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== PeopleGrid 启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("log_level", cfg.Log.Level),
	)
	if cfg.JWT.Secret == "change-me" {
		log.Warn("JWT密钥使用默认值，请通过 JWT_SECRET 设置")
	}

	// 3. 初始化数据库连接
	gdb, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(gdb, model.All()...); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 3.2 Redis（可选）
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := redis.Connect(connectCtx, cfg.Redis)
	cancelConnect()
	if err != nil {
		log.Warn("Redis不可用，在线状态与未读计数仅保存在内存", zap.Error(err))
		store = nil
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("关闭Redis连接失败", zap.Error(err))
		}
	}()

	// 3.3 媒体托管
	uploader, err := media.NewUploader(cfg.Cloudinary)
	if err != nil {
		log.Fatal("初始化媒体托管失败", zap.Error(err))
	}

	// 3.4 初始化业务服务
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	hub := websocket.NewHub(store, cfg.WebSocket.SendBuffer)

	userRepo := repository.NewUserRepository(gdb)
	friendRepo := repository.NewFriendshipRepository(gdb)
	postRepo := repository.NewPostRepository(gdb)
	messageRepo := repository.NewMessageRepository(gdb)

	authSvc := service.NewAuthService(userRepo, jwtSvc)
	profileSvc := service.NewProfileService(userRepo, uploader, cfg.Cloudinary.ProfileFolder)
	friendSvc := service.NewFriendService(friendRepo, userRepo, hub)
	postSvc := service.NewPostService(postRepo, userRepo, uploader, cfg.Cloudinary.PostFolder)
	messageSvc := service.NewMessageService(messageRepo, userRepo, hub, store)

	// 4. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 5. 创建Gin路由
	engine := router.New(router.Deps{
		DB:             gdb,
		Redis:          store,
		JWT:            jwtSvc,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUpload:      cfg.Server.MaxUpload,
		Auth:           handler.NewAuthHandler(authSvc),
		Profile:        handler.NewProfileHandler(profileSvc),
		Friends:        handler.NewFriendHandler(friendSvc),
		Posts:          handler.NewPostHandler(postSvc),
		Messages:       handler.NewMessageHandler(messageSvc),
		Hub:            hub,
		WS:             websocket.NewHandler(hub, jwtSvc, messageSvc, cfg.WebSocket),
	})

	// 6. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 7. 启动HTTP服务器
	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 8. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 已升级的WebSocket连接不受 server.Shutdown 管理，单独关闭
	hub.Shutdown()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}

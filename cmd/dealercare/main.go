package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/dealercare/internal/config"
	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/handler"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/bitfantasy/dealercare/internal/dealercare/worker"
	"github.com/bitfantasy/dealercare/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting dealercare service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Dealer{},
		&entity.ServiceOrder{},
		&entity.Video{},
		&entity.Frame{},
		&entity.OrderReview{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services, cfg)

	// 抽帧worker
	frameWorker := worker.NewFrameWorker(rdb, services.Frame, zapLogger)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	frameWorker.Start(workerCtx)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/video/play"})))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	// worker排空在手任务再退出
	frameWorker.Shutdown()
	workerCancel()

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// 客户侧，凭 publicUrl 访问
	r.GET("/services/:publicUrl/show", h.Public.Show)
	r.POST("/services/:publicUrl/decisions", h.Public.SubmitDecisions)
	r.POST("/services/:publicUrl/review", h.Public.SubmitFeedback)
	r.GET("/video/play/:id", h.Public.PlayVideo)

	// 外部系统对接
	external := r.Group("/api/v1/external")
	{
		external.POST("/services", h.External.IngestOrder)
		video := external.Group("/video")
		{
			video.POST("/upload-chunks", h.External.UploadChunks)
			video.POST("", h.External.UploadVideo)
			video.POST("/defects", h.External.SubmitDefects)
			video.GET("", h.External.ShowVideo)
			video.DELETE("", h.External.DeleteVideo)
		}
	}

	// 后台认证
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", middleware.JWTAuth(cfg.JWT.Secret), h.Auth.Me)
	}

	// 管理后台
	admin := r.Group("/api/v1/admin", middleware.JWTAuth(cfg.JWT.Secret), middleware.RequireRole("manager"))
	{
		admin.GET("/dashboard", h.Admin.Dashboard)

		admin.GET("/services", h.Order.List)
		admin.GET("/services/export", h.Admin.ExportOrders)
		admin.GET("/services/:id", h.Order.Get)
		admin.DELETE("/services/:id", middleware.RequireRole("admin"), h.Order.Delete)

		admin.GET("/dealers", h.Dealer.List)
		admin.GET("/dealers/all", h.Dealer.ListAll)
		admin.GET("/dealers/:id", h.Dealer.Get)
		admin.POST("/dealers", h.Dealer.Create)
		admin.PUT("/dealers/:id", h.Dealer.Update)
		admin.DELETE("/dealers/:id", middleware.RequireRole("admin"), h.Dealer.Delete)

		admin.GET("/users", middleware.RequireRole("admin"), h.User.List)
		admin.GET("/users/:id", middleware.RequireRole("admin"), h.User.Get)
		admin.POST("/users", middleware.RequireRole("admin"), h.User.Create)
		admin.PUT("/users/:id", middleware.RequireRole("admin"), h.User.Update)
		admin.DELETE("/users/:id", middleware.RequireRole("admin"), h.User.Delete)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dealerkit/recon/internal/config"
	"github.com/dealerkit/recon/internal/middleware"
	"github.com/dealerkit/recon/internal/recon/entity"
	"github.com/dealerkit/recon/internal/recon/handler"
	"github.com/dealerkit/recon/internal/recon/service"
	"github.com/dealerkit/recon/internal/recon/store"
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

	zapLogger.Info("Starting recon service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 本地库始终打开: 本地模式下是主存储，远端模式下是同步数据源
	localStore, err := store.NewLocalStore(cfg.Local.Path)
	if err != nil {
		zapLogger.Fatal("Failed to open local store", zap.Error(err))
	}

	// 启动时按远端凭证一次性选定主存储，之后不再按调用切换
	var recordStore store.RecordStore = localStore
	if cfg.Database.Configured() {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		runMigrations(db, zapLogger)
		recordStore = store.NewSQLStore(db)
		zapLogger.Info("Using remote record store",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName),
		)
	} else {
		zapLogger.Info("Remote database not configured, using local record store",
			zap.String("path", cfg.Local.Path),
		)
	}

	// Redis 可选，缺席时认证退化为无状态JWT
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = initRedis(cfg.Redis)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zapLogger.Warn("Redis unreachable, refresh tokens degrade to stateless", zap.Error(err))
		}
	}

	// MinIO 可选，缺席时附件落本地磁盘
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			zapLogger.Warn("MinIO init failed, attachments fall back to disk", zap.Error(err))
			minioClient = nil
		}
	}

	// 服务与处理器
	services := service.NewServices(recordStore, localStore, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services, cfg, minioClient)

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
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, recordStore, rdb, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
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

func runMigrations(db *gorm.DB, zapLogger *zap.Logger) {
	if err := db.AutoMigrate(
		&entity.InspectionCase{},
		&entity.StandardDocument{},
		&entity.Appraiser{},
		&entity.Technician{},
		&entity.Setting{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	migrationSQL := []string{
		"CREATE INDEX IF NOT EXISTS idx_inspection_cases_created_at ON inspection_cases(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_inspection_cases_status ON inspection_cases(current_status)",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration warning", zap.String("sql", sql), zap.Error(err))
		}
	}
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, recordStore store.RecordStore, rdb *redis.Client, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		if err := recordStore.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unreachable"})
			return
		}
		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": recordStore.Kind()})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// 静态文件服务 - 上传文件（磁盘模式）
	r.Static("/uploads", "./uploads")

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authorized.GET("/auth/me", h.Auth.Me)

			// 案件
			cases := authorized.Group("/cases")
			{
				cases.GET("", h.Case.List)
				cases.POST("/analyze", h.Case.Analyze)
				cases.GET("/:id", h.Case.Get)
				cases.PUT("/:id", h.Case.Update)
				cases.DELETE("/:id", h.Case.Delete)
				cases.PUT("/:id/status", h.Case.UpdateStatus)
				cases.GET("/:id/history", h.Case.History)
			}

			// 录入辅助
			authorized.POST("/intake/recommend-program", h.Case.RecommendProgram)
			authorized.GET("/vin/:vin", h.Case.DecodeVIN)

			// 标准文档
			standards := authorized.Group("/standards")
			{
				standards.GET("", h.Standard.List)
				standards.POST("", h.Standard.Upload)
				standards.DELETE("/:type", h.Standard.Delete)
			}

			// 人员名录
			authorized.GET("/appraisers", h.Personnel.ListAppraisers)
			authorized.POST("/appraisers", h.Personnel.CreateAppraiser)
			authorized.DELETE("/appraisers/:id", h.Personnel.DeleteAppraiser)
			authorized.GET("/technicians", h.Personnel.ListTechnicians)
			authorized.POST("/technicians", h.Personnel.CreateTechnician)
			authorized.DELETE("/technicians/:id", h.Personnel.DeleteTechnician)

			// 统计报表
			reports := authorized.Group("/reports")
			{
				reports.GET("/dashboard", h.Report.Dashboard)
				reports.GET("/technicians", h.Report.Technicians)
			}

			// 系统设置
			authorized.GET("/settings/brand", h.Admin.GetBrand)
			authorized.PUT("/settings/brand", h.Admin.SetBrand)

			// 后台管理
			admin := authorized.Group("/admin", middleware.RequireRole("admin"))
			{
				admin.POST("/sync", h.Admin.Sync)
				admin.GET("/status", h.Admin.Status)
			}

			// 附件上传
			authorized.POST("/upload", h.Upload.Upload)

			// SSE
			authorized.GET("/sse/events", h.SSE.Stream)
		}
	}
}

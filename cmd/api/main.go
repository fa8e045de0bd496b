package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"cvforge/internal/api"
	"cvforge/internal/auth"
	"cvforge/internal/config"
	"cvforge/internal/database"
	"cvforge/internal/engine"
	"cvforge/internal/guest"
	"cvforge/internal/notify"
	"cvforge/internal/resume"
	"cvforge/internal/storage"
	"cvforge/internal/store"
	"cvforge/internal/thumbnail"
	"cvforge/internal/translate"
	"cvforge/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database ready",
		slog.String("host", cfg.Database.Host),
		slog.String("name", cfg.Database.Name),
	)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}
	defer redisClient.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage ready", slog.String("bucket", cfg.MinIO.Bucket))

	renderer, err := thumbnail.NewRenderer(storageClient, cfg.Thumbnail.FontPath)
	if err != nil {
		log.Fatalf("init thumbnail renderer: %v", err)
	}

	translator, err := translate.New(cfg.Translator)
	if err != nil {
		log.Fatalf("init translator: %v", err)
	}

	privateKey, err := os.ReadFile(cfg.Auth.PrivateKeyPath)
	if err != nil {
		log.Fatalf("read private key: %v", err)
	}
	publicKey, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("read public key: %v", err)
	}
	authService, err := auth.NewAuthService(privateKey, publicKey, cfg.Auth.AccessTokenTTL(), cfg.Auth.RefreshTokenTTL())
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	dataStore := store.New(db)
	resumeService := resume.NewService(dataStore)
	detailService := resume.NewDetailService(dataStore)
	sessionManager := guest.NewManager(dataStore, cfg.Guest, logger)
	notifier := notify.NewPublisher(redisClient)

	eng := engine.New(dataStore, resumeService, detailService, sessionManager, renderer, translator, logger)
	cleaner := worker.NewCleaner(dataStore, eng, sessionManager, notifier, logger)

	// 会话与简历创建共用一套窗口参数：窗口 24h，上限取两者较大值，
	// 细分裁决仍由数据库计数完成。
	limit := cfg.Guest.MaxSessionsPerIPPerDay
	if cfg.Guest.MaxResumesPerIPPerDay > limit {
		limit = cfg.Guest.MaxResumesPerIPPerDay
	}
	limiter := guest.NewFixedWindowLimiter(redisClient, "", limit, 24*time.Hour, logger)

	router := api.NewRouter(
		authService,
		sessionManager,
		api.NewAuthHandler(dataStore.Users(), authService, redisClient, eng, notifier, logger),
		api.NewGuestHandler(sessionManager, limiter, eng, notifier, cfg.Guest),
		api.NewResumeHandler(resumeService, eng, sessionManager),
		api.NewDetailHandler(resumeService, detailService, eng, sessionManager, limiter, translator),
		api.NewAdminHandler(resumeService, cleaner),
		api.NewWsHandler(sessionManager, notifier, logger, nil),
		cfg.API.InternalSecret,
		logger,
	)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Engine().Run(address); err != nil {
		log.Fatalf("start api server: %v", err)
	}
}

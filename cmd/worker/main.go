package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvforge/internal/config"
	"cvforge/internal/database"
	"cvforge/internal/engine"
	"cvforge/internal/guest"
	"cvforge/internal/notify"
	"cvforge/internal/resume"
	"cvforge/internal/storage"
	"cvforge/internal/store"
	"cvforge/internal/tasks"
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

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

	renderer, err := thumbnail.NewRenderer(storageClient, cfg.Thumbnail.FontPath)
	if err != nil {
		log.Fatalf("init thumbnail renderer: %v", err)
	}

	translator, err := translate.New(cfg.Translator)
	if err != nil {
		log.Fatalf("init translator: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	dataStore := store.New(db)
	resumeService := resume.NewService(dataStore)
	detailService := resume.NewDetailService(dataStore)
	sessionManager := guest.NewManager(dataStore, cfg.Guest, logger)
	notifier := notify.NewPublisher(redisClient)
	eng := engine.New(dataStore, resumeService, detailService, sessionManager, renderer, translator, logger)
	cleaner := worker.NewCleaner(dataStore, eng, sessionManager, notifier, logger)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}

	// 周期任务：每小时清扫过期会话，每天回收过期访客简历。
	scheduler := asynq.NewScheduler(redisOpt, nil)
	sessionTask, err := tasks.NewSessionCleanupTask("scheduler")
	if err != nil {
		log.Fatalf("build session cleanup task: %v", err)
	}
	if _, err := scheduler.Register("@every 1h", sessionTask); err != nil {
		log.Fatalf("register session cleanup: %v", err)
	}
	retentionTask, err := tasks.NewResumeRetentionTask("scheduler", 0)
	if err != nil {
		log.Fatalf("build resume retention task: %v", err)
	}
	if _, err := scheduler.Register("@every 24h", retentionTask); err != nil {
		log.Fatalf("register resume retention: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
	})

	mux := asynq.NewServeMux()
	worker.NewHandlers(cleaner, logger).Register(mux)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"cvforge/internal/tasks"
)

// Handlers 把清扫逻辑挂接到 asynq 任务。
type Handlers struct {
	cleaner *Cleaner
	logger  *slog.Logger
}

// NewHandlers 构造任务处理器。
func NewHandlers(cleaner *Cleaner, logger *slog.Logger) *Handlers {
	return &Handlers{cleaner: cleaner, logger: logger}
}

// Register 把处理器注册到 asynq mux。
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeSessionCleanup, h.HandleSessionCleanup)
	mux.HandleFunc(tasks.TypeResumeRetention, h.HandleResumeRetention)
}

// HandleSessionCleanup 处理过期会话清扫任务。
func (h *Handlers) HandleSessionCleanup(ctx context.Context, t *asynq.Task) error {
	var payload tasks.SessionCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal session cleanup payload: %v: %w", err, asynq.SkipRetry)
	}

	deleted, err := h.cleaner.SweepExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired sessions: %w", err)
	}

	h.logger.Info("session cleanup finished",
		slog.String("requested_by", payload.RequestedBy),
		slog.Int64("deleted", deleted),
	)
	return nil
}

// HandleResumeRetention 处理过期访客简历回收任务。
func (h *Handlers) HandleResumeRetention(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ResumeRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal resume retention payload: %v: %w", err, asynq.SkipRetry)
	}

	deleted, failed, err := h.cleaner.SweepExpiredGuestResumes(ctx, payload.BatchLimit)
	if err != nil {
		return fmt.Errorf("sweep expired guest resumes: %w", err)
	}

	h.logger.Info("resume retention finished",
		slog.String("requested_by", payload.RequestedBy),
		slog.Int("deleted", deleted),
		slog.Int("failed", failed),
	)
	return nil
}

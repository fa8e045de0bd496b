// Package worker 承载后台维护任务：过期会话清扫与过期访客简历回收。
package worker

import (
	"context"
	"log/slog"
	"time"

	"cvforge/internal/engine"
	"cvforge/internal/guest"
	"cvforge/internal/notify"
	"cvforge/internal/store"
)

// Cleaner 聚合两类清扫逻辑，供后台任务与运维接口共用。
type Cleaner struct {
	store    store.Store
	engine   *engine.Engine
	sessions *guest.Manager
	notifier *notify.Publisher
	logger   *slog.Logger
}

// NewCleaner 构造清扫器。
func NewCleaner(s store.Store, eng *engine.Engine, sessions *guest.Manager, notifier *notify.Publisher, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		store:    s,
		engine:   eng,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
	}
}

// SweepExpiredSessions 删除全部已过期的访客会话，返回删除数量。
// 简历不在这里级联：回收有独立的保留期任务。
func (c *Cleaner) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return c.sessions.CleanupExpiredSessions(ctx)
}

// SweepExpiredGuestResumes 回收保留期已过的访客简历（含变体与缩略图）。
// 单份简历回收失败不中断整批，失败数随结果返回。
func (c *Cleaner) SweepExpiredGuestResumes(ctx context.Context, batchLimit int) (deleted, failed int, err error) {
	expired, err := c.store.Resumes().ListExpiredGuest(ctx, time.Now().UTC())
	if err != nil {
		return 0, 0, err
	}
	if batchLimit > 0 && len(expired) > batchLimit {
		expired = expired[:batchLimit]
	}

	for i := range expired {
		r := &expired[i]
		if err := c.engine.DeleteResume(ctx, r.ID); err != nil {
			failed++
			c.logger.Error("reclaim expired guest resume failed",
				slog.String("resume_id", r.ID),
				slog.Any("error", err),
			)
			continue
		}
		deleted++

		if r.GuestSessionID != nil {
			if err := c.notifier.PublishSessionEvent(ctx, *r.GuestSessionID, notify.Event{
				Type: notify.EventSessionExpired,
				Data: map[string]any{"resume_id": r.ID},
			}); err != nil {
				c.logger.Warn("publish expiry event failed", slog.Any("error", err))
			}
		}
	}

	c.logger.Info("expired guest resumes swept",
		slog.Int("deleted", deleted),
		slog.Int("failed", failed),
	)
	return deleted, failed, nil
}

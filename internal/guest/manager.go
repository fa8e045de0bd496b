// Package guest 管理匿名访客会话的状态机：
// Active →（时间推移）Expired，Active →（注册/登录）Converted。
// Expired 与 Converted 均为只读终态，不再接受写入。
package guest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cvforge/internal/config"
	"cvforge/internal/database"
	"cvforge/internal/errcode"
	"cvforge/internal/metrics"
	"cvforge/internal/store"
)

// Manager 拥有访客会话的创建、校验、配额计数与清理逻辑。
type Manager struct {
	store  store.Store
	cfg    config.GuestConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewManager 构造会话管理器。
func NewManager(s store.Store, cfg config.GuestConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:  s,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Expiry 返回配置的会话有效期。
func (m *Manager) Expiry() time.Duration {
	return m.cfg.SessionExpiry()
}

// CreateOrReuseSession 优先复用匹配 IP（与可选 UserAgent）的最近活跃会话，
// 避免同一浏览器在 Cookie 落地前的并发请求产生重复会话；没有则新建。
func (m *Manager) CreateOrReuseSession(ctx context.Context, ip, userAgent string) (*database.GuestSession, error) {
	existing, err := m.store.GuestSessions().LatestActiveByFingerprint(ctx, ip, userAgent, m.now())
	switch {
	case err == nil:
		m.logger.Info("reusing active guest session",
			slog.String("session_id", existing.ID),
			slog.String("ip", ip),
		)
		return existing, nil
	case errors.Is(err, errcode.ErrNotFound):
		// 没有可复用的会话，走新建。
	default:
		return nil, err
	}

	session := &database.GuestSession{
		ID:        uuid.NewString(),
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: m.now().Add(m.cfg.SessionExpiry()),
	}
	if err := m.store.GuestSessions().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create guest session: %w", err)
	}

	metrics.GuestSessionsCreated.Inc()
	m.logger.Info("guest session created",
		slog.String("session_id", session.ID),
		slog.String("ip", ip),
	)
	return session, nil
}

// Get 返回指定会话，不存在时返回 ErrNotFound。
func (m *Manager) Get(ctx context.Context, sessionID string) (*database.GuestSession, error) {
	return m.store.GuestSessions().Get(ctx, sessionID)
}

// ValidateSession 判断会话是否仍可写入：存在、未过期、未转正。
// IP 变化默认只记录日志（移动网络/VPN 友好），严格模式下视为无效。
func (m *Manager) ValidateSession(ctx context.Context, sessionID, currentIP string) bool {
	session, err := m.store.GuestSessions().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errcode.ErrNotFound) {
			m.logger.Warn("guest session not found", slog.String("session_id", sessionID))
		} else {
			m.logger.Error("validate guest session failed", slog.Any("error", err))
		}
		return false
	}

	if session.ExpiresAt.Before(m.now()) {
		m.logger.Warn("guest session expired", slog.String("session_id", sessionID))
		return false
	}
	if session.IsConverted {
		m.logger.Warn("guest session already converted", slog.String("session_id", sessionID))
		return false
	}

	if currentIP != "" && session.IPAddress != currentIP {
		m.logger.Info("guest session ip changed",
			slog.String("session_id", sessionID),
			slog.String("from", session.IPAddress),
			slog.String("to", currentIP),
		)
		if m.cfg.StrictIPValidation {
			return false
		}
	}

	return true
}

// IncrementResumeCount 原子递增会话的简历计数。
func (m *Manager) IncrementResumeCount(ctx context.Context, sessionID string) error {
	return m.IncrementResumeCountIn(ctx, m.store, sessionID)
}

// IncrementResumeCountIn 在调用方的工作单元内递增，供 engine 事务折叠使用。
func (m *Manager) IncrementResumeCountIn(ctx context.Context, a store.Accessor, sessionID string) error {
	return a.GuestSessions().AdjustResumeCount(ctx, sessionID, 1)
}

// DecrementResumeCount 原子递减会话的简历计数，下限钳制为 0。
func (m *Manager) DecrementResumeCount(ctx context.Context, sessionID string) error {
	return m.DecrementResumeCountIn(ctx, m.store, sessionID)
}

// DecrementResumeCountIn 在调用方的工作单元内递减。
func (m *Manager) DecrementResumeCountIn(ctx context.Context, a store.Accessor, sessionID string) error {
	return a.GuestSessions().AdjustResumeCount(ctx, sessionID, -1)
}

// ResumeCount 返回会话当前计数；查询失败按 0 处理并记录日志。
func (m *Manager) ResumeCount(ctx context.Context, sessionID string) int {
	session, err := m.store.GuestSessions().Get(ctx, sessionID)
	if err != nil {
		m.logger.Error("get resume count failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		return 0
	}
	return session.ResumeCount
}

// HasReachedResumeLimit 判断会话是否已用尽简历配额。
// 每次调用都重新读库，不做进程内缓存。
func (m *Manager) HasReachedResumeLimit(ctx context.Context, sessionID string) bool {
	return m.ResumeCount(ctx, sessionID) >= m.cfg.MaxResumePerSession
}

// HasExceededSessionRateLimit 统计该 IP 近 24 小时创建的会话数。
// 存储故障时放行（fail-open）：限流子系统劣化不应拒绝服务。
func (m *Manager) HasExceededSessionRateLimit(ctx context.Context, ip string) bool {
	if !m.cfg.EnableRateLimiting {
		return false
	}

	since := m.now().Add(-24 * time.Hour)
	count, err := m.store.GuestSessions().CountByIPSince(ctx, ip, since)
	if err != nil {
		m.logger.Error("session rate limit check failed, allowing",
			slog.String("ip", ip),
			slog.Any("error", err),
		)
		return false
	}

	if count >= int64(m.cfg.MaxSessionsPerIPPerDay) {
		metrics.GuestRateLimitHits.WithLabelValues("session").Inc()
		m.logger.Warn("ip exceeded session rate limit",
			slog.String("ip", ip),
			slog.Int64("count", count),
			slog.Int("limit", m.cfg.MaxSessionsPerIPPerDay),
		)
		return true
	}
	return false
}

// HasExceededResumeRateLimit 统计该 IP 近 24 小时内（跨全部会话，含已转正）
// 创建的简历总数。存储故障时同样放行。
func (m *Manager) HasExceededResumeRateLimit(ctx context.Context, ip string) bool {
	if !m.cfg.EnableRateLimiting {
		return false
	}

	since := m.now().Add(-24 * time.Hour)
	sessions, err := m.store.GuestSessions().ListByIPSince(ctx, ip, since)
	if err != nil {
		m.logger.Error("resume rate limit check failed, allowing",
			slog.String("ip", ip),
			slog.Any("error", err),
		)
		return false
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}

	total, err := m.store.Resumes().CountByGuestSessions(ctx, ids)
	if err != nil {
		m.logger.Error("resume rate limit count failed, allowing",
			slog.String("ip", ip),
			slog.Any("error", err),
		)
		return false
	}

	if total >= int64(m.cfg.MaxResumesPerIPPerDay) {
		metrics.GuestRateLimitHits.WithLabelValues("resume").Inc()
		m.logger.Warn("ip exceeded resume rate limit",
			slog.String("ip", ip),
			slog.Int64("count", total),
			slog.Int("limit", m.cfg.MaxResumesPerIPPerDay),
			slog.Int("sessions", len(sessions)),
		)
		return true
	}
	return false
}

// MarkConvertedIn 在调用方的工作单元内把会话标记为已转正终态。
func (m *Manager) MarkConvertedIn(ctx context.Context, a store.Accessor, sessionID, userID string) error {
	session, err := a.GuestSessions().Get(ctx, sessionID)
	if err != nil {
		return err
	}

	session.IsConverted = true
	session.ConvertedUserID = &userID
	if err := a.GuestSessions().Update(ctx, session); err != nil {
		return fmt.Errorf("mark session converted: %w", err)
	}

	metrics.GuestSessionsConverted.Inc()
	m.logger.Info("guest session converted",
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
	)
	return nil
}

// CleanupExpiredSessions 删除所有已过期会话，尽力而为。
// 不级联删除访客简历：过期简历由独立的保留期清理任务处理。
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	deleted, err := m.store.GuestSessions().DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	if deleted > 0 {
		m.logger.Info("cleaned up expired guest sessions", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}

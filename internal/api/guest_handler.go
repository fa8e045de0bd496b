package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"cvforge/internal/api/middleware"
	"cvforge/internal/config"
	"cvforge/internal/engine"
	"cvforge/internal/errcode"
	"cvforge/internal/guest"
	"cvforge/internal/notify"
)

// GuestHandler 提供访客会话的创建、查询与转正接口。
type GuestHandler struct {
	sessions *guest.Manager
	limiter  *guest.FixedWindowLimiter
	engine   *engine.Engine
	notifier *notify.Publisher
	cfg      config.GuestConfig
}

// NewGuestHandler 构造访客会话 handler。
func NewGuestHandler(
	sessions *guest.Manager,
	limiter *guest.FixedWindowLimiter,
	eng *engine.Engine,
	notifier *notify.Publisher,
	cfg config.GuestConfig,
) *GuestHandler {
	return &GuestHandler{
		sessions: sessions,
		limiter:  limiter,
		engine:   eng,
		notifier: notifier,
		cfg:      cfg,
	}
}

type guestSessionResponse struct {
	SessionID      string    `json:"session_id"`
	ResumeCount    int       `json:"resume_count"`
	MaxResumes     int       `json:"max_resumes"`
	RemainingQuota int       `json:"remaining_quota"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsConverted    bool      `json:"is_converted"`
}

// CreateSession 创建（或复用）访客会话并下发 Cookie。
// POST /api/guest/sessions
func (h *GuestHandler) CreateSession(c *gin.Context) {
	ip := c.ClientIP()

	// Redis 预检挡掉明显超量的来源，数据库计数是最终裁决。
	if !h.limiter.Allow(c.Request.Context(), "session:"+ip) ||
		h.sessions.HasExceededSessionRateLimit(c.Request.Context(), ip) {
		Fail(c, errcode.ErrRateLimited, "too many sessions created from this address")
		return
	}

	session, err := h.sessions.CreateOrReuseSession(c.Request.Context(), ip, c.Request.UserAgent())
	if err != nil {
		Fail(c, err, "")
		return
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	middleware.SetGuestSessionCookie(c, session.ID, maxAge)

	Created(c, h.sessionPayload(session.ID, session.ResumeCount, session.ExpiresAt, session.IsConverted))
}

// CurrentSession 返回请求携带的访客会话状态。
// GET /api/guest/sessions/current
func (h *GuestHandler) CurrentSession(c *gin.Context) {
	sessionID := middleware.GuestSessionFromContext(c)
	if sessionID == "" {
		Fail(c, errcode.ErrNotFound, "no active guest session")
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		Fail(c, err, "")
		return
	}

	OK(c, h.sessionPayload(session.ID, session.ResumeCount, session.ExpiresAt, session.IsConverted))
}

type convertRequest struct {
	SessionID string `json:"session_id"`
}

// Convert 把访客会话名下的简历全部移交给当前登录用户。
// POST /api/guest/convert （需登录）
func (h *GuestHandler) Convert(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		Fail(c, errcode.ErrNotFound, "user not resolved")
		return
	}

	var req convertRequest
	_ = c.ShouldBindJSON(&req)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = middleware.GuestSessionFromContext(c)
	}
	if sessionID == "" {
		FailBadRequest(c, "session_id is required")
		return
	}

	migrated, err := h.engine.ConvertGuestToUser(c.Request.Context(), sessionID, userID)
	if err != nil {
		Fail(c, err, "")
		return
	}

	logSessionEventFailure(c, h.notifier.PublishSessionEvent(c.Request.Context(), sessionID, notify.Event{
		Type: notify.EventSessionConverted,
		Data: map[string]any{"user_id": userID, "migrated_resumes": migrated},
	}))

	// 会话已转正，Cookie 不再有意义。
	middleware.SetGuestSessionCookie(c, "", -1)

	OK(c, gin.H{"migrated_resumes": migrated})
}

func (h *GuestHandler) sessionPayload(id string, count int, expiresAt time.Time, converted bool) guestSessionResponse {
	remaining := h.cfg.MaxResumePerSession - count
	if remaining < 0 {
		remaining = 0
	}
	return guestSessionResponse{
		SessionID:      id,
		ResumeCount:    count,
		MaxResumes:     h.cfg.MaxResumePerSession,
		RemainingQuota: remaining,
		ExpiresAt:      expiresAt,
		IsConverted:    converted,
	}
}

// logSessionEventFailure 发布失败只记日志，不影响主流程。
func logSessionEventFailure(c *gin.Context, err error) {
	if err != nil {
		middleware.LoggerFromContext(c).Warn("publish session event failed", slog.Any("error", err))
	}
}

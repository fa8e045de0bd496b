package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"cvforge/internal/guest"
)

// GuestSessionHeader 访客会话 ID 的 Cookie/Header 名。
const GuestSessionHeader = "X-Guest-Session-Id"

const guestSessionIDKey = "guestSessionID"

// GuestSessionMiddleware 解析并校验请求携带的访客会话。
// 会话可来自同名 Cookie 或 Header；无效会话不报错，仅视为匿名请求，
// 由后续 handler 决定是否要求会话存在。
func GuestSessionMiddleware(sessions *guest.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(GuestSessionHeader)
		if sessionID == "" {
			if cookie, err := c.Cookie(GuestSessionHeader); err == nil {
				sessionID = cookie
			}
		}
		if sessionID == "" {
			c.Next()
			return
		}

		if !sessions.ValidateSession(c.Request.Context(), sessionID, c.ClientIP()) {
			LoggerFromContext(c).Debug("ignoring invalid guest session",
				slog.String("session_id", sessionID),
			)
			c.Next()
			return
		}

		c.Set(guestSessionIDKey, sessionID)
		c.Next()
	}
}

// GuestSessionFromContext 返回已通过校验的访客会话 ID，没有时为空串。
func GuestSessionFromContext(c *gin.Context) string {
	if value, ok := c.Get(guestSessionIDKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// SetGuestSessionCookie 把会话 ID 写入响应 Cookie。
func SetGuestSessionCookie(c *gin.Context, sessionID string, maxAgeSeconds int) {
	c.SetCookie(GuestSessionHeader, sessionID, maxAgeSeconds, "/", "", false, true)
}

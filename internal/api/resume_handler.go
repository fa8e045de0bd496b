package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/engine"
	"cvforge/internal/errcode"
	"cvforge/internal/guest"
	"cvforge/internal/resume"
)

// ResumeHandler 提供简历聚合的查询、更新、克隆与删除接口。
type ResumeHandler struct {
	resumes  *resume.Service
	engine   *engine.Engine
	sessions *guest.Manager
}

// NewResumeHandler 构造简历 handler。
func NewResumeHandler(resumes *resume.Service, eng *engine.Engine, sessions *guest.Manager) *ResumeHandler {
	return &ResumeHandler{resumes: resumes, engine: eng, sessions: sessions}
}

type resumeResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	DetailCount    int        `json:"detail_count"`
	CoverImagePath string     `json:"cover_image_path"`
	IsGuest        bool       `json:"is_guest"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toResumeResponse(r *database.Resume) resumeResponse {
	return resumeResponse{
		ID:             r.ID,
		Title:          r.Title,
		DetailCount:    r.DetailCount,
		CoverImagePath: r.CoverImagePath,
		IsGuest:        r.IsGuest,
		ExpiresAt:      r.ExpiresAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// List 返回当前身份（登录用户或访客会话）名下的简历。
// GET /api/resumes
func (h *ResumeHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		items []database.Resume
		err   error
	)
	if userID := middleware.UserIDFromContext(c); userID != "" {
		items, err = h.resumes.ListByUser(ctx, userID)
	} else if sessionID := middleware.GuestSessionFromContext(c); sessionID != "" {
		items, err = h.resumes.ListByGuestSession(ctx, sessionID)
	} else {
		OK(c, []resumeResponse{})
		return
	}
	if err != nil {
		Fail(c, err, "")
		return
	}

	out := make([]resumeResponse, 0, len(items))
	for i := range items {
		out = append(out, toResumeResponse(&items[i]))
	}
	OK(c, out)
}

// Get 返回单个简历。
// GET /api/resumes/:id
func (h *ResumeHandler) Get(c *gin.Context) {
	r, err := h.ownedResume(c)
	if err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, toResumeResponse(r))
}

type updateResumeRequest struct {
	Title string `json:"title" binding:"required"`
}

// Update 更新简历标题。
// PUT /api/resumes/:id
func (h *ResumeHandler) Update(c *gin.Context) {
	r, err := h.ownedResume(c)
	if err != nil {
		Fail(c, err, "")
		return
	}

	var req updateResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailBadRequest(c, "title is required")
		return
	}

	r.Title = req.Title
	if err := h.resumes.Update(c.Request.Context(), r); err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, toResumeResponse(r))
}

// Clone 克隆简历及其全部变体。
// POST /api/resumes/:id/clone
func (h *ResumeHandler) Clone(c *gin.Context) {
	source, err := h.ownedResume(c)
	if err != nil {
		Fail(c, err, "")
		return
	}

	// 访客克隆同样占用会话配额。
	if source.IsGuest && source.GuestSessionID != nil {
		if h.sessions.HasReachedResumeLimit(c.Request.Context(), *source.GuestSessionID) {
			Fail(c, errcode.ErrQuotaExceeded, "guest resume quota exhausted, register to keep building")
			return
		}
	}

	clone, err := h.engine.CloneResume(c.Request.Context(), source.ID)
	if err != nil {
		Fail(c, err, "")
		return
	}
	Created(c, toResumeResponse(clone))
}

// Delete 删除简历及其变体与缩略图资产。
// DELETE /api/resumes/:id
func (h *ResumeHandler) Delete(c *gin.Context) {
	r, err := h.ownedResume(c)
	if err != nil {
		Fail(c, err, "")
		return
	}

	if err := h.engine.DeleteResume(c.Request.Context(), r.ID); err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, gin.H{"deleted": r.ID})
}

// ownedResume 取出路径里的简历并确认归当前身份所有。
// 归属不符按不存在处理，避免泄露资源存在性。
func (h *ResumeHandler) ownedResume(c *gin.Context) (*database.Resume, error) {
	r, err := h.resumes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}

	if userID := middleware.UserIDFromContext(c); userID != "" {
		if r.UserID != nil && *r.UserID == userID {
			return r, nil
		}
		return nil, errcode.ErrNotFound
	}
	if sessionID := middleware.GuestSessionFromContext(c); sessionID != "" {
		if r.IsGuest && r.GuestSessionID != nil && *r.GuestSessionID == sessionID {
			return r, nil
		}
	}
	return nil, errcode.ErrNotFound
}

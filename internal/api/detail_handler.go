package api

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/engine"
	"cvforge/internal/errcode"
	"cvforge/internal/guest"
	"cvforge/internal/resume"
	"cvforge/internal/translate"
)

// DetailHandler 提供简历变体的创建、查询、更新、默认切换与翻译接口。
type DetailHandler struct {
	resumes    *resume.Service
	details    *resume.DetailService
	engine     *engine.Engine
	sessions   *guest.Manager
	limiter    *guest.FixedWindowLimiter
	translator translate.Translator
}

// NewDetailHandler 构造变体 handler。
func NewDetailHandler(
	resumes *resume.Service,
	details *resume.DetailService,
	eng *engine.Engine,
	sessions *guest.Manager,
	limiter *guest.FixedWindowLimiter,
	translator translate.Translator,
) *DetailHandler {
	return &DetailHandler{
		resumes:    resumes,
		details:    details,
		engine:     eng,
		sessions:   sessions,
		limiter:    limiter,
		translator: translator,
	}
}

type detailResponse struct {
	ID            string    `json:"id"`
	ResumeID      string    `json:"resume_id"`
	Name          string    `json:"name"`
	Language      string    `json:"language"`
	Content       string    `json:"content"`
	ThumbnailPath string    `json:"thumbnail_path"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toDetailResponse(d *database.ResumeDetail) detailResponse {
	return detailResponse{
		ID:            d.ID,
		ResumeID:      d.ResumeID,
		Name:          d.Name,
		Language:      d.Language,
		Content:       d.Content,
		ThumbnailPath: d.ThumbnailPath,
		IsDefault:     d.IsDefault,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type createDetailRequest struct {
	ResumeID string `json:"resume_id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// Create 创建变体；resume_id 为空或 "undefined" 时连带创建新简历。
// POST /api/details
func (h *DetailHandler) Create(c *gin.Context) {
	var req createDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailBadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	owner := engine.OwnerContext{
		UserID:         middleware.UserIDFromContext(c),
		GuestSessionID: middleware.GuestSessionFromContext(c),
		SourceIP:       c.ClientIP(),
	}
	if owner.UserID == "" && owner.GuestSessionID == "" {
		Fail(c, errcode.ErrNotFound, "no identity: sign in or start a guest session")
		return
	}

	newResume := req.ResumeID == "" || req.ResumeID == "undefined"
	if newResume && owner.UserID == "" {
		// 访客新建简历要过配额与 IP 频率两道闸。
		if !h.limiter.Allow(ctx, "resume:"+owner.SourceIP) ||
			h.sessions.HasExceededResumeRateLimit(ctx, owner.SourceIP) {
			Fail(c, errcode.ErrRateLimited, "too many resumes created from this address")
			return
		}
		if h.sessions.HasReachedResumeLimit(ctx, owner.GuestSessionID) {
			Fail(c, errcode.ErrQuotaExceeded, "guest resume quota exhausted, register to keep building")
			return
		}
	}
	if !newResume {
		if _, err := h.ownedResume(c, req.ResumeID); err != nil {
			Fail(c, err, "")
			return
		}
	}

	detail := &database.ResumeDetail{
		ResumeID: req.ResumeID,
		Name:     req.Name,
		Language: req.Language,
		Content:  req.Content,
	}
	created, err := h.engine.CreateResumeDetail(ctx, detail, owner)
	if err != nil {
		Fail(c, err, "")
		return
	}
	Created(c, toDetailResponse(created))
}

// ListByResume 返回简历的全部变体。
// 没有任何变体时返回一条虚拟的 Default 行，前端无需特判空态。
// GET /api/resumes/:id/details
func (h *DetailHandler) ListByResume(c *gin.Context) {
	r, err := h.ownedResume(c, c.Param("id"))
	if err != nil {
		Fail(c, err, "")
		return
	}

	items, err := h.details.ListByResume(c.Request.Context(), r.ID)
	if err != nil {
		Fail(c, err, "")
		return
	}

	if len(items) == 0 {
		OK(c, []detailResponse{{
			ID:        "1",
			ResumeID:  r.ID,
			Name:      "Default",
			IsDefault: true,
		}})
		return
	}

	out := make([]detailResponse, 0, len(items))
	for i := range items {
		out = append(out, toDetailResponse(&items[i]))
	}
	OK(c, out)
}

// Get 返回单个变体。
// GET /api/details/:id
func (h *DetailHandler) Get(c *gin.Context) {
	d, err := h.ownedDetail(c)
	if err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, toDetailResponse(d))
}

type updateDetailRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// Update 更新变体内容，缩略图与父简历封面联动刷新。
// PUT /api/details/:id
func (h *DetailHandler) Update(c *gin.Context) {
	existing, err := h.ownedDetail(c)
	if err != nil {
		Fail(c, err, "")
		return
	}

	var req updateDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailBadRequest(c, "invalid request body")
		return
	}

	updated, err := h.engine.UpdateResumeDetailContent(c.Request.Context(), &database.ResumeDetail{
		ID:       existing.ID,
		Name:     req.Name,
		Language: req.Language,
		Content:  req.Content,
	})
	if err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, toDetailResponse(updated))
}

// SetDefault 把变体提升为所在简历的默认变体。
// POST /api/details/:id/default
func (h *DetailHandler) SetDefault(c *gin.Context) {
	d, err := h.ownedDetail(c)
	if err != nil {
		Fail(c, err, "")
		return
	}

	if err := h.engine.SetDefaultResumeDetail(c.Request.Context(), d.ID); err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, gin.H{"default": d.ID})
}

// Delete 删除变体及其缩略图。
// DELETE /api/details/:id
func (h *DetailHandler) Delete(c *gin.Context) {
	d, err := h.ownedDetail(c)
	if err != nil {
		Fail(c, err, "")
		return
	}

	if err := h.engine.DeleteResumeDetail(c.Request.Context(), d.ID); err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, gin.H{"deleted": d.ID})
}

type translateDetailRequest struct {
	TargetLanguage string `json:"target_language" binding:"required"`
}

// Translate 把变体内容翻译为目标语言并另存为同一简历下的新变体。
// POST /api/details/:id/translate
func (h *DetailHandler) Translate(c *gin.Context) {
	source, err := h.ownedDetail(c)
	if err != nil {
		Fail(c, err, "")
		return
	}

	var req translateDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailBadRequest(c, "target_language is required")
		return
	}
	if strings.TrimSpace(source.Content) == "" {
		FailBadRequest(c, "source detail has no content to translate")
		return
	}

	ctx := c.Request.Context()
	translated, err := h.translator.Translate(ctx, source.Content, source.Language, req.TargetLanguage)
	if err != nil {
		middleware.LoggerFromContext(c).Error("translate detail failed",
			slog.String("detail_id", source.ID),
			slog.String("target_language", req.TargetLanguage),
			slog.Any("error", err),
		)
		Fail(c, errors.Join(errcode.ErrDependencyFailure, err), "translation provider unavailable")
		return
	}

	owner := engine.OwnerContext{
		UserID:         middleware.UserIDFromContext(c),
		GuestSessionID: middleware.GuestSessionFromContext(c),
		SourceIP:       c.ClientIP(),
	}
	copyDetail := &database.ResumeDetail{
		ResumeID: source.ResumeID,
		Name:     source.Name + " (Translated)",
		Language: req.TargetLanguage,
		Content:  translated,
	}
	created, err := h.engine.CreateResumeDetail(ctx, copyDetail, owner)
	if err != nil {
		Fail(c, err, "")
		return
	}
	Created(c, toDetailResponse(created))
}

func (h *DetailHandler) ownedDetail(c *gin.Context) (*database.ResumeDetail, error) {
	d, err := h.details.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if _, err := h.ownedResume(c, d.ResumeID); err != nil {
		return nil, err
	}
	return d, nil
}

// ownedResume 与 ResumeHandler 的归属检查语义一致。
func (h *DetailHandler) ownedResume(c *gin.Context, resumeID string) (*database.Resume, error) {
	r, err := h.resumes.Get(c.Request.Context(), resumeID)
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

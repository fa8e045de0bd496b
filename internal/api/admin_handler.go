package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"cvforge/internal/resume"
	"cvforge/internal/worker"
)

// AdminHandler 提供运维接口：全量分页巡检与手动触发清扫。
type AdminHandler struct {
	resumes *resume.Service
	cleaner *worker.Cleaner
}

// NewAdminHandler 构造运维 handler。
func NewAdminHandler(resumes *resume.Service, cleaner *worker.Cleaner) *AdminHandler {
	return &AdminHandler{resumes: resumes, cleaner: cleaner}
}

// PaginateResumes 按创建时间倒序分页列出全部简历。
// GET /api/internal/resumes?page=&size=
func (h *AdminHandler) PaginateResumes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	result, err := h.resumes.Paginate(c.Request.Context(), page, size)
	if err != nil {
		Fail(c, err, "")
		return
	}

	items := make([]resumeResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toResumeResponse(&result.Items[i]))
	}
	OK(c, gin.H{"items": items, "total_count": result.TotalCount})
}

// CleanupSessions 立即清扫过期访客会话。
// POST /api/internal/cleanup/sessions
func (h *AdminHandler) CleanupSessions(c *gin.Context) {
	deleted, err := h.cleaner.SweepExpiredSessions(c.Request.Context())
	if err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, gin.H{"deleted_sessions": deleted})
}

// CleanupGuestResumes 立即回收保留期已过的访客简历。
// POST /api/internal/cleanup/resumes
func (h *AdminHandler) CleanupGuestResumes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	deleted, failed, err := h.cleaner.SweepExpiredGuestResumes(c.Request.Context(), limit)
	if err != nil {
		Fail(c, err, "")
		return
	}
	OK(c, gin.H{"deleted_resumes": deleted, "failed": failed})
}

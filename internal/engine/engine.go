// Package engine 实现跨 Resume/ResumeDetail/GuestSession 三个聚合的
// 编排操作。每个公开操作都是一个提交/回滚单元：任一步骤失败即整体
// 回滚，调用方看不到中间状态。
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvforge/internal/database"
	"cvforge/internal/errcode"
	"cvforge/internal/guest"
	"cvforge/internal/metrics"
	"cvforge/internal/resume"
	"cvforge/internal/store"
	"cvforge/internal/thumbnail"
	"cvforge/internal/translate"
)

// unsetResumeID 是前端传来的“未设置”哨兵值，等价于空。
const unsetResumeID = "undefined"

// timeNow 可在测试中替换。
var timeNow = time.Now

// OwnerContext 描述调用方身份：注册用户或访客会话，二选一。
type OwnerContext struct {
	UserID         string
	GuestSessionID string
	SourceIP       string
}

// Engine 编排多聚合操作并维护以下不变量：
// 每个简历至多一个默认变体、封面图跟随默认变体缩略图、
// 所有权在用户与访客会话之间互斥。
type Engine struct {
	store      store.Store
	resumes    *resume.Service
	details    *resume.DetailService
	sessions   *guest.Manager
	thumbs     thumbnail.Generator
	translator translate.Translator
	logger     *slog.Logger
}

// New 构造编排引擎。
func New(
	s store.Store,
	resumes *resume.Service,
	details *resume.DetailService,
	sessions *guest.Manager,
	thumbs thumbnail.Generator,
	translator translate.Translator,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:      s,
		resumes:    resumes,
		details:    details,
		sessions:   sessions,
		thumbs:     thumbs,
		translator: translator,
		logger:     logger,
	}
}

// CreateResumeDetail 创建一个简历变体。
// 已有 ResumeId 时只写变体本身；否则在一个事务内先建简历再建变体，
// 访客场景下会话计数在同一事务内递增。
func (e *Engine) CreateResumeDetail(ctx context.Context, d *database.ResumeDetail, owner OwnerContext) (*database.ResumeDetail, error) {
	e.detectLanguage(ctx, d)

	if d.ResumeID != "" && d.ResumeID != unsetResumeID {
		return e.createDetailForExistingResume(ctx, d)
	}
	return e.createDetailWithNewResume(ctx, d, owner)
}

// detectLanguage 尽力而为地补全语言；识别失败不致命，语言留空。
func (e *Engine) detectLanguage(ctx context.Context, d *database.ResumeDetail) {
	if d.Language != "" || strings.TrimSpace(d.Content) == "" {
		return
	}

	lang, err := e.translator.DetectLanguage(ctx, d.Content)
	if err != nil {
		e.logger.Warn("language detection failed, leaving empty", slog.Any("error", err))
		return
	}
	d.Language = lang
}

func (e *Engine) createDetailForExistingResume(ctx context.Context, d *database.ResumeDetail) (*database.ResumeDetail, error) {
	if d.ID == "" {
		count, err := e.details.CountByResume(ctx, d.ResumeID)
		if err != nil {
			return nil, err
		}
		d.ID = strconv.FormatInt(count+1, 10)

		// 序号 ID 与新建简历路径的 UUID 共用同一个主键空间，
		// 其它简历可能已占用同号，占用时退回 UUID。
		taken, err := e.store.ResumeDetails().ExistsBy(ctx, "id", d.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			d.ID = uuid.NewString()
		}
	}

	if strings.TrimSpace(d.Content) != "" {
		path, err := e.generateThumbnail(ctx, d.Content, d.ResumeID, d.ID)
		if err != nil {
			return nil, err
		}
		d.ThumbnailPath = path
	}

	// 单实体写入无需显式事务，直接落库。
	return e.details.Create(ctx, d)
}

func (e *Engine) createDetailWithNewResume(ctx context.Context, d *database.ResumeDetail, owner OwnerContext) (*database.ResumeDetail, error) {
	resumeID := uuid.NewString()
	detailID := uuid.NewString()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	thumbPath := ""
	if strings.TrimSpace(d.Content) != "" {
		// 以（新简历 id，新变体 id）作为对象命名键。
		thumbPath, err = e.generateThumbnail(ctx, d.Content, resumeID, detailID)
		if err != nil {
			return nil, err
		}
	}

	title := d.Name
	if title == "" {
		title = resume.DefaultTitle
	}
	cover := thumbPath
	if cover == "" {
		cover = resume.PlaceholderCoverPath
	}

	newResume := &database.Resume{
		ID:             resumeID,
		Title:          title,
		DetailCount:    1,
		CoverImagePath: cover,
	}
	e.applyOwner(newResume, owner)

	if _, err := e.resumes.With(tx).Create(ctx, newResume); err != nil {
		return nil, err
	}

	d.ID = detailID
	d.ResumeID = resumeID
	d.ThumbnailPath = thumbPath
	if _, err := e.details.With(tx).Create(ctx, d); err != nil {
		return nil, err
	}

	if newResume.IsGuest {
		if err := e.sessions.IncrementResumeCountIn(ctx, tx, owner.GuestSessionID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}

// applyOwner 设置所有权字段，保证用户/访客互斥。
func (e *Engine) applyOwner(r *database.Resume, owner OwnerContext) {
	if owner.UserID != "" {
		r.UserID = &owner.UserID
		r.IsGuest = false
		return
	}
	if owner.GuestSessionID != "" {
		sid := owner.GuestSessionID
		r.GuestSessionID = &sid
		r.IsGuest = true
		r.CreatedIP = owner.SourceIP
		expires := timeNow().Add(e.sessions.Expiry())
		r.ExpiresAt = &expires
	}
}

// CloneResume 在一个事务内克隆简历及其全部变体。
// 变体缩略图按内容重新生成，绝不按引用复用原资产。
func (e *Engine) CloneResume(ctx context.Context, resumeID string) (*database.Resume, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	source, err := e.resumes.With(tx).Get(ctx, resumeID)
	if err != nil {
		return nil, err
	}

	clone := &database.Resume{
		ID:             uuid.NewString(),
		Title:          source.Title + " (Copy)",
		DetailCount:    source.DetailCount,
		CoverImagePath: source.CoverImagePath,
		UserID:         source.UserID,
		GuestSessionID: source.GuestSessionID,
		IsGuest:        source.IsGuest,
		CreatedIP:      source.CreatedIP,
		ExpiresAt:      source.ExpiresAt,
	}
	if _, err := e.resumes.With(tx).Create(ctx, clone); err != nil {
		return nil, err
	}

	details, err := e.details.With(tx).ListByResume(ctx, resumeID)
	if err != nil {
		return nil, err
	}

	defaultThumb := ""
	for _, src := range details {
		cloned := database.ResumeDetail{
			ID:        uuid.NewString(),
			ResumeID:  clone.ID,
			Name:      src.Name,
			Language:  src.Language,
			Content:   src.Content,
			IsDefault: src.IsDefault,
		}

		if strings.TrimSpace(src.Content) != "" {
			path, err := e.generateThumbnail(ctx, src.Content, clone.ID, cloned.ID)
			if err != nil {
				return nil, err
			}
			cloned.ThumbnailPath = path
		}
		if cloned.IsDefault && cloned.ThumbnailPath != "" {
			defaultThumb = cloned.ThumbnailPath
		}

		if _, err := e.details.With(tx).Create(ctx, &cloned); err != nil {
			return nil, err
		}
	}

	// 封面跟随克隆出的默认变体的新缩略图；没有时保留拷贝值。
	if defaultThumb != "" && defaultThumb != clone.CoverImagePath {
		clone.CoverImagePath = defaultThumb
		if err := tx.Resumes().Update(ctx, clone); err != nil {
			return nil, err
		}
	}

	if clone.IsGuest && clone.GuestSessionID != nil {
		if err := e.sessions.IncrementResumeCountIn(ctx, tx, *clone.GuestSessionID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return clone, nil
}

// SetDefaultResumeDetail 把指定变体提升为默认，并同步父简历封面。
// 旧默认的降级与新默认的提升在同一事务内完成。
func (e *Engine) SetDefaultResumeDetail(ctx context.Context, detailID string) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	target, err := e.details.With(tx).Get(ctx, detailID)
	if err != nil {
		return err
	}

	// 单条 UPDATE 降级旧默认，避免并发提升时双默认。
	if err := tx.ResumeDetails().DemoteSiblings(ctx, target.ResumeID, target.ID); err != nil {
		return err
	}

	target.IsDefault = true
	if err := tx.ResumeDetails().Update(ctx, target); err != nil {
		return err
	}

	parent, err := e.resumes.With(tx).Get(ctx, target.ResumeID)
	if err != nil {
		return err
	}
	parent.CoverImagePath = target.ThumbnailPath
	if parent.CoverImagePath == "" {
		parent.CoverImagePath = resume.PlaceholderCoverPath
	}
	if err := tx.Resumes().Update(ctx, parent); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateResumeDetailContent 更新变体内容并联动缩略图与父简历封面。
// 内容变化时旧缩略图被替换；内容清空时变体缩略图清空
// （占位图只出现在简历级封面，变体行不生成占位资产）。
func (e *Engine) UpdateResumeDetailContent(ctx context.Context, d *database.ResumeDetail) (*database.ResumeDetail, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := e.details.With(tx).Get(ctx, d.ID)
	if err != nil {
		return nil, err
	}

	contentChanged := existing.Content != d.Content
	existing.Name = d.Name
	existing.Language = d.Language
	existing.Content = d.Content

	// 旧缩略图在提交成功后才回收，提交失败时对象仍被引用。
	var staleThumb string
	if contentChanged {
		staleThumb = existing.ThumbnailPath
		if strings.TrimSpace(d.Content) != "" {
			path, err := e.generateThumbnail(ctx, d.Content, existing.ResumeID, existing.ID)
			if err != nil {
				return nil, err
			}
			existing.ThumbnailPath = path
		} else {
			existing.ThumbnailPath = ""
		}
	}

	if err := tx.ResumeDetails().Update(ctx, existing); err != nil {
		return nil, err
	}

	if existing.IsDefault {
		parent, err := e.resumes.With(tx).Get(ctx, existing.ResumeID)
		if err != nil {
			return nil, err
		}
		parent.CoverImagePath = existing.ThumbnailPath
		if parent.CoverImagePath == "" {
			parent.CoverImagePath = resume.PlaceholderCoverPath
		}
		if err := tx.Resumes().Update(ctx, parent); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.deleteThumbnail(ctx, staleThumb)
	return existing, nil
}

// DeleteResumeDetail 删除单个变体并回收其缩略图。
// 被删的是默认变体时父简历封面退回占位图，不自动提升其它变体。
func (e *Engine) DeleteResumeDetail(ctx context.Context, detailID string) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	target, err := e.details.With(tx).Get(ctx, detailID)
	if err != nil {
		return err
	}

	if err := e.details.With(tx).Delete(ctx, target.ID); err != nil {
		return err
	}

	parent, err := e.resumes.With(tx).Get(ctx, target.ResumeID)
	if err != nil {
		return err
	}
	if parent.DetailCount > 0 {
		parent.DetailCount--
	}
	if target.IsDefault {
		parent.CoverImagePath = resume.PlaceholderCoverPath
	}
	if err := tx.Resumes().Update(ctx, parent); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	e.deleteThumbnail(ctx, target.ThumbnailPath)
	return nil
}

// DeleteResume 删除简历及其全部变体（级联），访客简历同时归还会话配额。
// 缩略图对象在提交后按前缀回收，失败只记日志。
func (e *Engine) DeleteResume(ctx context.Context, resumeID string) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	target, err := e.resumes.With(tx).Get(ctx, resumeID)
	if err != nil {
		return err
	}

	if err := tx.Resumes().Delete(ctx, target); err != nil {
		return err
	}

	if target.IsGuest && target.GuestSessionID != nil {
		if err := e.sessions.DecrementResumeCountIn(ctx, tx, *target.GuestSessionID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if err := e.thumbs.DeleteForResume(ctx, resumeID); err != nil {
		e.logger.Warn("delete resume thumbnails failed",
			slog.String("resume_id", resumeID),
			slog.Any("error", err),
		)
	}
	return nil
}

// ConvertGuestToUser 把会话名下全部访客简历重新指派给注册用户，
// 并在同一事务内把会话标记为已转正。返回重新指派的简历数量。
// 会话名下没有简历不是错误，返回 0。
func (e *Engine) ConvertGuestToUser(ctx context.Context, guestSessionID, userID string) (int, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.GuestSessions().Get(ctx, guestSessionID); err != nil {
		return 0, err
	}

	resumes, err := tx.Resumes().ListByGuestSession(ctx, guestSessionID, true)
	if err != nil {
		return 0, err
	}

	for i := range resumes {
		r := &resumes[i]
		r.UserID = &userID
		r.IsGuest = false
		r.ExpiresAt = nil
		// GuestSessionID 保留，供审计追溯来源会话。
		if err := tx.Resumes().Update(ctx, r); err != nil {
			return 0, err
		}
	}

	if err := e.sessions.MarkConvertedIn(ctx, tx, guestSessionID, userID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	e.logger.Info("guest resumes reassigned",
		slog.String("session_id", guestSessionID),
		slog.String("user_id", userID),
		slog.Int("count", len(resumes)),
	)
	return len(resumes), nil
}

// generateThumbnail 生成缩略图；失败对所在操作是致命的。
func (e *Engine) generateThumbnail(ctx context.Context, content, resumeID, detailID string) (string, error) {
	path, err := e.thumbs.Generate(ctx, content, resumeID+"_"+detailID)
	if err != nil {
		metrics.ThumbnailFailures.Inc()
		return "", fmt.Errorf("generate thumbnail for %s/%s: %w", resumeID, detailID, errors.Join(errcode.ErrDependencyFailure, err))
	}
	return path, nil
}

// deleteThumbnail 清理旧资产，失败只记日志（对象删除本身幂等）。
func (e *Engine) deleteThumbnail(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := e.thumbs.Delete(ctx, path); err != nil {
		e.logger.Warn("delete stale thumbnail failed",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
}

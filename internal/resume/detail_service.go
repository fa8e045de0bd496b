package resume

import (
	"context"
	"fmt"

	"cvforge/internal/database"
	"cvforge/internal/store"
)

// DetailService 是 ResumeDetail 聚合的 CRUD 服务。
type DetailService struct {
	store store.Accessor
}

// NewDetailService 构造 ResumeDetail 服务。
func NewDetailService(s store.Accessor) *DetailService {
	return &DetailService{store: s}
}

// With 返回绑定到指定工作单元的服务视图。
func (s *DetailService) With(a store.Accessor) *DetailService {
	return &DetailService{store: a}
}

func (s *DetailService) Get(ctx context.Context, id string) (*database.ResumeDetail, error) {
	return s.store.ResumeDetails().Get(ctx, id)
}

func (s *DetailService) ListByResume(ctx context.Context, resumeID string) ([]database.ResumeDetail, error) {
	return s.store.ResumeDetails().ListByResume(ctx, resumeID)
}

func (s *DetailService) CountByResume(ctx context.Context, resumeID string) (int64, error) {
	return s.store.ResumeDetails().CountByResume(ctx, resumeID)
}

func (s *DetailService) Paginate(ctx context.Context, page, size int) (store.Paginated[database.ResumeDetail], error) {
	return s.store.ResumeDetails().Paginate(ctx, page, size, "created_at ASC")
}

func (s *DetailService) Exists(ctx context.Context, column string, value any) (bool, error) {
	return s.store.ResumeDetails().ExistsBy(ctx, column, value)
}

func (s *DetailService) ExistsForUpdate(ctx context.Context, id, column string, value any) (bool, error) {
	return s.store.ResumeDetails().ExistsByExcluding(ctx, id, column, value)
}

func (s *DetailService) Create(ctx context.Context, d *database.ResumeDetail) (*database.ResumeDetail, error) {
	if err := s.store.ResumeDetails().Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create resume detail: %w", err)
	}
	return d, nil
}

// Update 只覆盖内容类字段，默认标记的迁移交给 engine.SetDefaultResumeDetail。
func (s *DetailService) Update(ctx context.Context, d *database.ResumeDetail) error {
	existing, err := s.store.ResumeDetails().Get(ctx, d.ID)
	if err != nil {
		return err
	}

	existing.Name = d.Name
	existing.Language = d.Language
	existing.Content = d.Content
	existing.ThumbnailPath = d.ThumbnailPath
	return s.store.ResumeDetails().Update(ctx, existing)
}

func (s *DetailService) Delete(ctx context.Context, id string) error {
	existing, err := s.store.ResumeDetails().Get(ctx, id)
	if err != nil {
		return err
	}
	return s.store.ResumeDetails().Delete(ctx, existing)
}

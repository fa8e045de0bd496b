// Package resume 提供 Resume 与 ResumeDetail 两个聚合的轻量服务。
// 服务不自行开启事务：经由 With 绑定到调用方打开的工作单元，
// 或在独立调用时直接落库。
package resume

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cvforge/internal/database"
	"cvforge/internal/store"
)

// DefaultTitle 未命名简历的缺省标题。
const DefaultTitle = "New Resume"

// PlaceholderCoverPath 没有任何缩略图可用时的封面占位资源。
const PlaceholderCoverPath = "/assets/default_resume.png"

// Service 是 Resume 聚合的 CRUD 服务。
type Service struct {
	store store.Accessor
}

// NewService 构造 Resume 服务。
func NewService(s store.Accessor) *Service {
	return &Service{store: s}
}

// With 返回绑定到指定工作单元（通常是事务）的服务视图。
func (s *Service) With(a store.Accessor) *Service {
	return &Service{store: a}
}

func (s *Service) Get(ctx context.Context, id string) (*database.Resume, error) {
	return s.store.Resumes().Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]database.Resume, error) {
	return s.store.Resumes().List(ctx)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]database.Resume, error) {
	return s.store.Resumes().ListByUser(ctx, userID)
}

func (s *Service) ListByGuestSession(ctx context.Context, sessionID string) ([]database.Resume, error) {
	return s.store.Resumes().ListByGuestSession(ctx, sessionID, false)
}

// Paginate 返回一页简历；页码与页大小在仓储层钳制。
func (s *Service) Paginate(ctx context.Context, page, size int) (store.Paginated[database.Resume], error) {
	return s.store.Resumes().Paginate(ctx, page, size, "created_at DESC")
}

func (s *Service) Exists(ctx context.Context, column string, value any) (bool, error) {
	return s.store.Resumes().ExistsBy(ctx, column, value)
}

// ExistsForUpdate 用于更新前的唯一性冲突检查，排除自身。
func (s *Service) ExistsForUpdate(ctx context.Context, id, column string, value any) (bool, error) {
	return s.store.Resumes().ExistsByExcluding(ctx, id, column, value)
}

func (s *Service) Create(ctx context.Context, r *database.Resume) (*database.Resume, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	if err := s.store.Resumes().Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create resume: %w", err)
	}
	return r, nil
}

func (s *Service) Update(ctx context.Context, r *database.Resume) error {
	existing, err := s.store.Resumes().Get(ctx, r.ID)
	if err != nil {
		return err
	}

	existing.Title = r.Title
	existing.DetailCount = r.DetailCount
	existing.CoverImagePath = r.CoverImagePath
	return s.store.Resumes().Update(ctx, existing)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.store.Resumes().Get(ctx, id)
	if err != nil {
		return err
	}
	return s.store.Resumes().Delete(ctx, existing)
}

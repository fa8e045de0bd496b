package store

import (
	"context"
	"time"

	"cvforge/internal/database"
)

// Paginated 封装分页查询结果与总数。
type Paginated[T any] struct {
	Items      []T
	TotalCount int64
}

// ResumeRepository 是 Resume 聚合的存储契约。
type ResumeRepository interface {
	Get(ctx context.Context, id string) (*database.Resume, error)
	List(ctx context.Context) ([]database.Resume, error)
	Paginate(ctx context.Context, page, size int, orderBy string) (Paginated[database.Resume], error)
	ExistsBy(ctx context.Context, column string, value any) (bool, error)
	ExistsByExcluding(ctx context.Context, id, column string, value any) (bool, error)
	Create(ctx context.Context, r *database.Resume) error
	Update(ctx context.Context, r *database.Resume) error
	Delete(ctx context.Context, r *database.Resume) error

	ListByUser(ctx context.Context, userID string) ([]database.Resume, error)
	// ListByGuestSession 按会话列出简历；guestOnly 为 true 时仅返回未转正的访客简历。
	ListByGuestSession(ctx context.Context, sessionID string, guestOnly bool) ([]database.Resume, error)
	CountByGuestSessions(ctx context.Context, sessionIDs []string) (int64, error)
	ListExpiredGuest(ctx context.Context, now time.Time) ([]database.Resume, error)
}

// ResumeDetailRepository 是 ResumeDetail 聚合的存储契约。
type ResumeDetailRepository interface {
	Get(ctx context.Context, id string) (*database.ResumeDetail, error)
	List(ctx context.Context) ([]database.ResumeDetail, error)
	Paginate(ctx context.Context, page, size int, orderBy string) (Paginated[database.ResumeDetail], error)
	ExistsBy(ctx context.Context, column string, value any) (bool, error)
	ExistsByExcluding(ctx context.Context, id, column string, value any) (bool, error)
	Create(ctx context.Context, d *database.ResumeDetail) error
	Update(ctx context.Context, d *database.ResumeDetail) error
	Delete(ctx context.Context, d *database.ResumeDetail) error

	ListByResume(ctx context.Context, resumeID string) ([]database.ResumeDetail, error)
	CountByResume(ctx context.Context, resumeID string) (int64, error)
	// DemoteSiblings 将同一简历下除 exceptID 外的默认标记全部清除。
	// 单条 UPDATE 语句执行，避免并发提升时双默认。
	DemoteSiblings(ctx context.Context, resumeID, exceptID string) error
}

// GuestSessionRepository 是 GuestSession 的存储契约。
type GuestSessionRepository interface {
	Get(ctx context.Context, id string) (*database.GuestSession, error)
	Create(ctx context.Context, s *database.GuestSession) error
	Update(ctx context.Context, s *database.GuestSession) error
	Delete(ctx context.Context, s *database.GuestSession) error

	// LatestActiveByFingerprint 返回匹配 IP（及可选 UserAgent）的最近一个
	// 未过期且未转正的会话；没有则返回 ErrNotFound。
	LatestActiveByFingerprint(ctx context.Context, ip, userAgent string, now time.Time) (*database.GuestSession, error)
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
	ListByIPSince(ctx context.Context, ip string, since time.Time) ([]database.GuestSession, error)
	// AdjustResumeCount 以原子读-改-写调整计数，delta 为负时下限钳制为 0。
	AdjustResumeCount(ctx context.Context, id string, delta int) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository 是注册账号的存储契约。
type UserRepository interface {
	Get(ctx context.Context, id string) (*database.User, error)
	GetByEmail(ctx context.Context, email string) (*database.User, error)
	ExistsBy(ctx context.Context, column string, value any) (bool, error)
	Create(ctx context.Context, u *database.User) error
}

// Accessor 暴露各实体仓储；根 Store 与事务 Tx 均实现它，
// 调用方不感知自己处于事务内外。
type Accessor interface {
	Resumes() ResumeRepository
	ResumeDetails() ResumeDetailRepository
	GuestSessions() GuestSessionRepository
	Users() UserRepository
}

// Tx 表示一次逻辑事务；Commit 之后的 Rollback 为幂等空操作。
type Tx interface {
	Accessor
	Commit() error
	Rollback() error
}

// Store 是工作单元入口：直接经由 Accessor 的写入立即落库（单实体路径），
// Begin 打开的事务中所有写入在 Commit 时一并生效。
type Store interface {
	Accessor
	Begin(ctx context.Context) (Tx, error)
}

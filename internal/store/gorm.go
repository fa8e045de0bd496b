package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cvforge/internal/database"
	"cvforge/internal/errcode"
)

// Gorm 基于 GORM 实现 Store。写入语句在调用时即发往数据库：
// 根实例上等价于“立即 Flush”，事务实例上由 Commit/Rollback 决定可见性。
type Gorm struct {
	db *gorm.DB
}

// New 构造基于 GORM 的 Store。
func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) Resumes() ResumeRepository {
	return &resumeRepo{base: base[database.Resume]{db: s.db}}
}

func (s *Gorm) ResumeDetails() ResumeDetailRepository {
	return &resumeDetailRepo{base: base[database.ResumeDetail]{db: s.db}}
}

func (s *Gorm) GuestSessions() GuestSessionRepository {
	return &guestSessionRepo{base: base[database.GuestSession]{db: s.db}}
}

func (s *Gorm) Users() UserRepository {
	return &userRepo{base: base[database.User]{db: s.db}}
}

// Begin 打开一个数据库事务并返回事务作用域的 Store 视图。
func (s *Gorm) Begin(ctx context.Context) (Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &gormTx{Gorm: Gorm{db: tx}}, nil
}

type gormTx struct {
	Gorm
	done bool
}

func (t *gormTx) Commit() error {
	if err := t.db.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	t.done = true
	return nil
}

// Rollback 在 Commit 之后调用是空操作，便于 defer tx.Rollback() 写法。
func (t *gormTx) Rollback() error {
	if t.done {
		return nil
	}
	err := t.db.Rollback().Error
	if err == nil || errors.Is(err, gorm.ErrInvalidTransaction) || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return fmt.Errorf("rollback transaction: %w", err)
}

const defaultPageSize = 10

// base 提供各实体共用的 CRUD 与分页实现。
type base[T any] struct {
	db *gorm.DB
}

func (b base[T]) Get(ctx context.Context, id string) (*T, error) {
	var entity T
	if err := b.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %s", errcode.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get by id %s: %w", id, err)
	}
	return &entity, nil
}

func (b base[T]) List(ctx context.Context) ([]T, error) {
	var entities []T
	if err := b.db.WithContext(ctx).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return entities, nil
}

func (b base[T]) Paginate(ctx context.Context, page, size int, orderBy string) (Paginated[T], error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}

	query := b.db.WithContext(ctx).Model(new(T))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Paginated[T]{}, fmt.Errorf("count: %w", err)
	}

	if orderBy != "" {
		query = query.Order(orderBy)
	}

	var items []T
	if err := query.Offset((page - 1) * size).Limit(size).Find(&items).Error; err != nil {
		return Paginated[T]{}, fmt.Errorf("paginate page %d: %w", page, err)
	}

	return Paginated[T]{Items: items, TotalCount: total}, nil
}

func (b base[T]) ExistsBy(ctx context.Context, column string, value any) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(new(T)).
		Where(fmt.Sprintf("%s = ?", column), value).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("exists by %s: %w", column, err)
	}
	return count > 0, nil
}

func (b base[T]) ExistsByExcluding(ctx context.Context, id, column string, value any) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(new(T)).
		Where(fmt.Sprintf("%s = ? AND id <> ?", column), value, id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("exists by %s excluding %s: %w", column, id, err)
	}
	return count > 0, nil
}

func (b base[T]) Create(ctx context.Context, entity *T) error {
	if err := b.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return nil
}

func (b base[T]) Update(ctx context.Context, entity *T) error {
	if err := b.db.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

func (b base[T]) Delete(ctx context.Context, entity *T) error {
	if err := b.db.WithContext(ctx).Delete(entity).Error; err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

type resumeRepo struct {
	base[database.Resume]
}

func (r *resumeRepo) ListByUser(ctx context.Context, userID string) ([]database.Resume, error) {
	var resumes []database.Resume
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&resumes).Error
	if err != nil {
		return nil, fmt.Errorf("list resumes by user %s: %w", userID, err)
	}
	return resumes, nil
}

func (r *resumeRepo) ListByGuestSession(ctx context.Context, sessionID string, guestOnly bool) ([]database.Resume, error) {
	query := r.db.WithContext(ctx).Where("guest_session_id = ?", sessionID)
	if guestOnly {
		query = query.Where("is_guest = ?", true)
	}

	var resumes []database.Resume
	if err := query.Order("created_at DESC").Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("list resumes by guest session %s: %w", sessionID, err)
	}
	return resumes, nil
}

func (r *resumeRepo) CountByGuestSessions(ctx context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&database.Resume{}).
		Where("guest_session_id IN ?", sessionIDs).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count resumes by guest sessions: %w", err)
	}
	return count, nil
}

func (r *resumeRepo) ListExpiredGuest(ctx context.Context, now time.Time) ([]database.Resume, error) {
	var resumes []database.Resume
	err := r.db.WithContext(ctx).
		Where("is_guest = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Find(&resumes).Error
	if err != nil {
		return nil, fmt.Errorf("list expired guest resumes: %w", err)
	}
	return resumes, nil
}

type resumeDetailRepo struct {
	base[database.ResumeDetail]
}

func (r *resumeDetailRepo) ListByResume(ctx context.Context, resumeID string) ([]database.ResumeDetail, error) {
	var details []database.ResumeDetail
	err := r.db.WithContext(ctx).
		Where("resume_id = ?", resumeID).
		Order("created_at ASC").
		Find(&details).Error
	if err != nil {
		return nil, fmt.Errorf("list details by resume %s: %w", resumeID, err)
	}
	return details, nil
}

func (r *resumeDetailRepo) CountByResume(ctx context.Context, resumeID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&database.ResumeDetail{}).
		Where("resume_id = ?", resumeID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count details by resume %s: %w", resumeID, err)
	}
	return count, nil
}

func (r *resumeDetailRepo) DemoteSiblings(ctx context.Context, resumeID, exceptID string) error {
	err := r.db.WithContext(ctx).Model(&database.ResumeDetail{}).
		Where("resume_id = ? AND id <> ? AND is_default = ?", resumeID, exceptID, true).
		Update("is_default", false).Error
	if err != nil {
		return fmt.Errorf("demote siblings of %s: %w", exceptID, err)
	}
	return nil
}

type guestSessionRepo struct {
	base[database.GuestSession]
}

func (r *guestSessionRepo) LatestActiveByFingerprint(ctx context.Context, ip, userAgent string, now time.Time) (*database.GuestSession, error) {
	query := r.db.WithContext(ctx).
		Where("ip_address = ? AND expires_at > ? AND is_converted = ?", ip, now, false)
	if userAgent != "" {
		query = query.Where("user_agent = ?", userAgent)
	}

	var session database.GuestSession
	err := query.Order("created_at DESC").First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: active session for ip %s", errcode.ErrNotFound, ip)
		}
		return nil, fmt.Errorf("find active session by fingerprint: %w", err)
	}
	return &session, nil
}

func (r *guestSessionRepo) CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&database.GuestSession{}).
		Where("ip_address = ? AND created_at >= ?", ip, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count sessions by ip %s: %w", ip, err)
	}
	return count, nil
}

func (r *guestSessionRepo) ListByIPSince(ctx context.Context, ip string, since time.Time) ([]database.GuestSession, error) {
	var sessions []database.GuestSession
	err := r.db.WithContext(ctx).
		Where("ip_address = ? AND created_at >= ?", ip, since).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions by ip %s: %w", ip, err)
	}
	return sessions, nil
}

// AdjustResumeCount 用单条 UPDATE 完成读-改-写，负增量时把计数钳制在 0。
func (r *guestSessionRepo) AdjustResumeCount(ctx context.Context, id string, delta int) error {
	if delta == 0 {
		return nil
	}

	query := r.db.WithContext(ctx).Model(&database.GuestSession{}).Where("id = ?", id)
	if delta < 0 {
		// 不会降到 0 以下：只在计数足够时执行递减。
		query = query.Where("resume_count >= ?", -delta)
	}

	err := query.UpdateColumn("resume_count", gorm.Expr("resume_count + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("adjust resume count of %s: %w", id, err)
	}
	return nil
}

func (r *guestSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&database.GuestSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

type userRepo struct {
	base[database.User]
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*database.User, error) {
	var user database.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", errcode.ErrNotFound, email)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

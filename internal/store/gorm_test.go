package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/database"
	"cvforge/internal/errcode"
)

func newTestStore(t *testing.T) (*Gorm, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db), db
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Resumes().Get(context.Background(), "missing")
	if !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPaginate_ClampsPageAndSize(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		r := &database.Resume{ID: fmt.Sprintf("r-%02d", i), Title: "t"}
		if err := s.Resumes().Create(ctx, r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	page, err := s.Resumes().Paginate(ctx, 0, -5, "id ASC")
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if page.TotalCount != 15 {
		t.Errorf("total = %d, want 15", page.TotalCount)
	}
	if len(page.Items) != 10 {
		t.Errorf("items = %d, want default size 10", len(page.Items))
	}
	if page.Items[0].ID != "r-00" {
		t.Errorf("first item = %s, want r-00", page.Items[0].ID)
	}

	second, err := s.Resumes().Paginate(ctx, 2, 10, "id ASC")
	if err != nil {
		t.Fatalf("paginate page 2: %v", err)
	}
	if len(second.Items) != 5 {
		t.Errorf("page 2 items = %d, want 5", len(second.Items))
	}
}

func TestExistsByExcluding(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := s.Resumes().Create(ctx, &database.Resume{ID: id, Title: "Shared"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	conflict, err := s.Resumes().ExistsByExcluding(ctx, "a", "title", "Shared")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !conflict {
		t.Error("expected conflict with sibling row")
	}

	if err := s.Resumes().Delete(ctx, &database.Resume{ID: "b"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	conflict, err = s.Resumes().ExistsByExcluding(ctx, "a", "title", "Shared")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if conflict {
		t.Error("row must not conflict with itself")
	}
}

func TestDemoteSiblings(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	seed := []database.ResumeDetail{
		{ID: "1", ResumeID: "r", IsDefault: true},
		{ID: "2", ResumeID: "r", IsDefault: true}, // 历史脏数据：双默认
		{ID: "3", ResumeID: "r"},
		{ID: "4", ResumeID: "other", IsDefault: true},
	}
	for i := range seed {
		if err := s.ResumeDetails().Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := s.ResumeDetails().DemoteSiblings(ctx, "r", "3"); err != nil {
		t.Fatalf("demote: %v", err)
	}

	var defaults []database.ResumeDetail
	if err := db.Where("is_default = ?", true).Find(&defaults).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(defaults) != 1 || defaults[0].ID != "4" {
		t.Errorf("defaults = %+v, want only the other resume's row", defaults)
	}
}

func TestAdjustResumeCount_Floor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	session := &database.GuestSession{ID: "s", IPAddress: "1.1.1.1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.GuestSessions().Create(ctx, session); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := s.GuestSessions().AdjustResumeCount(ctx, "s", -1); err != nil {
		t.Fatalf("decrement at zero: %v", err)
	}
	got, err := s.GuestSessions().Get(ctx, "s")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ResumeCount != 0 {
		t.Errorf("count = %d, want floor 0", got.ResumeCount)
	}

	if err := s.GuestSessions().AdjustResumeCount(ctx, "s", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	got, err = s.GuestSessions().Get(ctx, "s")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ResumeCount != 1 {
		t.Errorf("count = %d, want 1", got.ResumeCount)
	}
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Resumes().Create(ctx, &database.Resume{ID: "r", Title: "t"}); err != nil {
		t.Fatalf("create in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if _, err := s.Resumes().Get(ctx, "r"); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("row visible after rollback, err = %v", err)
	}
}

func TestTx_CommitPublishesWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Resumes().Create(ctx, &database.Resume{ID: "r", Title: "t"}); err != nil {
		t.Fatalf("create in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Commit 之后的 Rollback 是空操作。
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}

	if _, err := s.Resumes().Get(ctx, "r"); err != nil {
		t.Fatalf("row missing after commit: %v", err)
	}
}

func TestListExpiredGuest(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	sid := "s"
	seed := []database.Resume{
		{ID: "expired", IsGuest: true, GuestSessionID: &sid, ExpiresAt: &past},
		{ID: "live", IsGuest: true, GuestSessionID: &sid, ExpiresAt: &future},
		{ID: "user-owned", IsGuest: false},
	}
	for i := range seed {
		if err := s.Resumes().Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	expired, err := s.Resumes().ListExpiredGuest(ctx, time.Now())
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "expired" {
		t.Errorf("expired = %+v, want only the expired guest resume", expired)
	}
}

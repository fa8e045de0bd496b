package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/config"
	"cvforge/internal/database"
	"cvforge/internal/errcode"
	"cvforge/internal/guest"
	"cvforge/internal/resume"
	"cvforge/internal/store"
)

type fakeThumbs struct {
	generated  []string
	deleted    []string
	sweptFor   []string
	failNext   bool
	generation int
}

func (f *fakeThumbs) Generate(_ context.Context, _ string, uniqueKey string) (string, error) {
	if f.failNext {
		return "", errors.New("renderer down")
	}
	f.generation++
	path := fmt.Sprintf("thumbnails/resumes/%s_%d.png", uniqueKey, f.generation)
	f.generated = append(f.generated, path)
	return path, nil
}

func (f *fakeThumbs) Delete(_ context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeThumbs) DeleteForResume(_ context.Context, resumeID string) error {
	f.sweptFor = append(f.sweptFor, resumeID)
	return nil
}

type fakeTranslator struct {
	detectLang string
	detectErr  error
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	return "[" + targetLang + "] " + text, nil
}

func (f *fakeTranslator) DetectLanguage(_ context.Context, _ string) (string, error) {
	if f.detectErr != nil {
		return "", f.detectErr
	}
	return f.detectLang, nil
}

type testEnv struct {
	engine   *Engine
	store    *store.Gorm
	sessions *guest.Manager
	thumbs   *fakeThumbs
	db       *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.GuestConfig{
		SessionExpiryDays:      30,
		MaxResumePerSession:    1,
		MaxSessionsPerIPPerDay: 5,
		MaxResumesPerIPPerDay:  3,
		EnableRateLimiting:     true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dataStore := store.New(db)
	sessions := guest.NewManager(dataStore, cfg, logger)
	thumbs := &fakeThumbs{}
	eng := New(
		dataStore,
		resume.NewService(dataStore),
		resume.NewDetailService(dataStore),
		sessions,
		thumbs,
		&fakeTranslator{detectLang: "en"},
		logger,
	)

	return &testEnv{engine: eng, store: dataStore, sessions: sessions, thumbs: thumbs, db: db}
}

func (e *testEnv) seedGuestSession(t *testing.T, id string) {
	t.Helper()
	session, err := e.sessions.CreateOrReuseSession(context.Background(), "1.2.3.4", "test-agent")
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if id != "" {
		if err := e.db.Model(&database.GuestSession{}).Where("id = ?", session.ID).Update("id", id).Error; err != nil {
			t.Fatalf("rename session: %v", err)
		}
	}
}

func TestCreateResumeDetail_NewGuestResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedGuestSession(t, "session-1")

	created, err := env.engine.CreateResumeDetail(ctx, &database.ResumeDetail{
		Name:    "Backend CV",
		Content: "# Hello",
	}, OwnerContext{GuestSessionID: "session-1", SourceIP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("create detail: %v", err)
	}

	r, err := env.store.Resumes().Get(ctx, created.ResumeID)
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	if r.Title != "Backend CV" {
		t.Errorf("title = %q, want %q", r.Title, "Backend CV")
	}
	if r.DetailCount != 1 {
		t.Errorf("detail count = %d, want 1", r.DetailCount)
	}
	if !r.IsGuest || r.GuestSessionID == nil || *r.GuestSessionID != "session-1" {
		t.Errorf("ownership not guest session-1: %+v", r)
	}
	if r.ExpiresAt == nil {
		t.Error("guest resume should carry an expiry")
	}
	if r.CoverImagePath != created.ThumbnailPath {
		t.Errorf("cover = %q, want thumbnail %q", r.CoverImagePath, created.ThumbnailPath)
	}
	if created.Language != "en" {
		t.Errorf("language = %q, want detected en", created.Language)
	}

	session, err := env.sessions.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.ResumeCount != 1 {
		t.Errorf("session resume count = %d, want 1", session.ResumeCount)
	}
}

func TestCreateResumeDetail_DefaultsWhenBlank(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedGuestSession(t, "session-1")

	created, err := env.engine.CreateResumeDetail(ctx, &database.ResumeDetail{
		ResumeID: "undefined",
	}, OwnerContext{GuestSessionID: "session-1", SourceIP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("create detail: %v", err)
	}

	r, err := env.store.Resumes().Get(ctx, created.ResumeID)
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	if r.Title != resume.DefaultTitle {
		t.Errorf("title = %q, want default", r.Title)
	}
	if r.CoverImagePath != resume.PlaceholderCoverPath {
		t.Errorf("cover = %q, want placeholder", r.CoverImagePath)
	}
	if created.ThumbnailPath != "" {
		t.Errorf("blank content should not produce a thumbnail, got %q", created.ThumbnailPath)
	}
	if len(env.thumbs.generated) != 0 {
		t.Errorf("generator called %d times, want 0", len(env.thumbs.generated))
	}
}

func TestCreateResumeDetail_ExistingResumeSequenceID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	r := &database.Resume{ID: "resume-1", Title: "Mine", DetailCount: 1, UserID: &userID}
	if err := env.store.Resumes().Create(ctx, r); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{ID: "1", ResumeID: "resume-1"}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	created, err := env.engine.CreateResumeDetail(ctx, &database.ResumeDetail{
		ResumeID: "resume-1",
		Name:     "German version",
		Language: "de",
		Content:  "Hallo",
	}, OwnerContext{UserID: userID})
	if err != nil {
		t.Fatalf("create detail: %v", err)
	}

	if created.ID != "2" {
		t.Errorf("sequence id = %q, want 2", created.ID)
	}
	if created.ThumbnailPath == "" {
		t.Error("expected a thumbnail for non-blank content")
	}
}

func TestCreateResumeDetail_ThumbnailFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedGuestSession(t, "session-1")
	env.thumbs.failNext = true

	_, err := env.engine.CreateResumeDetail(ctx, &database.ResumeDetail{
		Name:    "Doomed",
		Content: "non-blank",
	}, OwnerContext{GuestSessionID: "session-1", SourceIP: "1.2.3.4"})
	if !errors.Is(err, errcode.ErrDependencyFailure) {
		t.Fatalf("err = %v, want dependency failure", err)
	}

	var resumeRows int64
	if err := env.db.Model(&database.Resume{}).Count(&resumeRows).Error; err != nil {
		t.Fatalf("count resumes: %v", err)
	}
	if resumeRows != 0 {
		t.Errorf("resume rows = %d, want 0 after rollback", resumeRows)
	}
	var detailRows int64
	if err := env.db.Model(&database.ResumeDetail{}).Count(&detailRows).Error; err != nil {
		t.Fatalf("count details: %v", err)
	}
	if detailRows != 0 {
		t.Errorf("detail rows = %d, want 0 after rollback", detailRows)
	}

	session, err := env.sessions.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.ResumeCount != 0 {
		t.Errorf("session resume count = %d, want 0 after rollback", session.ResumeCount)
	}
}

func TestSetDefaultResumeDetail_SingleDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	if err := env.store.Resumes().Create(ctx, &database.Resume{ID: "resume-1", Title: "Mine", UserID: &userID}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	seed := []database.ResumeDetail{
		{ID: "1", ResumeID: "resume-1", IsDefault: true, ThumbnailPath: "thumbnails/resumes/old.png"},
		{ID: "2", ResumeID: "resume-1", ThumbnailPath: "thumbnails/resumes/new.png"},
	}
	for i := range seed {
		if err := env.store.ResumeDetails().Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed detail: %v", err)
		}
	}

	if err := env.engine.SetDefaultResumeDetail(ctx, "2"); err != nil {
		t.Fatalf("set default: %v", err)
	}

	var defaults int64
	if err := env.db.Model(&database.ResumeDetail{}).
		Where("resume_id = ? AND is_default = ?", "resume-1", true).
		Count(&defaults).Error; err != nil {
		t.Fatalf("count defaults: %v", err)
	}
	if defaults != 1 {
		t.Errorf("default rows = %d, want exactly 1", defaults)
	}

	promoted, err := env.store.ResumeDetails().Get(ctx, "2")
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if !promoted.IsDefault {
		t.Error("detail 2 should be default")
	}

	r, err := env.store.Resumes().Get(ctx, "resume-1")
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	if r.CoverImagePath != "thumbnails/resumes/new.png" {
		t.Errorf("cover = %q, want promoted thumbnail", r.CoverImagePath)
	}
}

func TestSetDefaultResumeDetail_MissingThumbUsesPlaceholder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	if err := env.store.Resumes().Create(ctx, &database.Resume{ID: "resume-1", UserID: &userID}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{ID: "1", ResumeID: "resume-1"}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	if err := env.engine.SetDefaultResumeDetail(ctx, "1"); err != nil {
		t.Fatalf("set default: %v", err)
	}

	r, err := env.store.Resumes().Get(ctx, "resume-1")
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	if r.CoverImagePath != resume.PlaceholderCoverPath {
		t.Errorf("cover = %q, want placeholder", r.CoverImagePath)
	}
}

func TestUpdateResumeDetailContent_RefreshesThumbnailAndCover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	if err := env.store.Resumes().Create(ctx, &database.Resume{ID: "resume-1", UserID: &userID, CoverImagePath: "thumbnails/resumes/stale.png"}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{
		ID: "1", ResumeID: "resume-1", Content: "old", IsDefault: true,
		ThumbnailPath: "thumbnails/resumes/stale.png",
	}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	updated, err := env.engine.UpdateResumeDetailContent(ctx, &database.ResumeDetail{
		ID: "1", Name: "Renamed", Content: "brand new content",
	})
	if err != nil {
		t.Fatalf("update detail: %v", err)
	}

	if updated.ThumbnailPath == "" || updated.ThumbnailPath == "thumbnails/resumes/stale.png" {
		t.Errorf("thumbnail not regenerated: %q", updated.ThumbnailPath)
	}
	if len(env.thumbs.deleted) != 1 || env.thumbs.deleted[0] != "thumbnails/resumes/stale.png" {
		t.Errorf("stale thumbnail not deleted: %v", env.thumbs.deleted)
	}

	r, err := env.store.Resumes().Get(ctx, "resume-1")
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	if r.CoverImagePath != updated.ThumbnailPath {
		t.Errorf("cover = %q, want %q", r.CoverImagePath, updated.ThumbnailPath)
	}
}

func TestUpdateResumeDetailContent_BlankContentClearsThumbnail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	if err := env.store.Resumes().Create(ctx, &database.Resume{ID: "resume-1", UserID: &userID}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{
		ID: "1", ResumeID: "resume-1", Content: "old", IsDefault: true,
		ThumbnailPath: "thumbnails/resumes/stale.png",
	}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	updated, err := env.engine.UpdateResumeDetailContent(ctx, &database.ResumeDetail{ID: "1", Content: "   "})
	if err != nil {
		t.Fatalf("update detail: %v", err)
	}
	if updated.ThumbnailPath != "" {
		t.Errorf("thumbnail = %q, want cleared", updated.ThumbnailPath)
	}

	r, err := env.store.Resumes().Get(ctx, "resume-1")
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	if r.CoverImagePath != resume.PlaceholderCoverPath {
		t.Errorf("cover = %q, want placeholder", r.CoverImagePath)
	}
}

func TestCloneResume_RegeneratesThumbnails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	if err := env.store.Resumes().Create(ctx, &database.Resume{
		ID: "resume-1", Title: "Original", DetailCount: 2, UserID: &userID,
		CoverImagePath: "thumbnails/resumes/orig-default.png",
	}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	seed := []database.ResumeDetail{
		{ID: "1", ResumeID: "resume-1", Content: "v1", IsDefault: true, ThumbnailPath: "thumbnails/resumes/orig-default.png"},
		{ID: "2", ResumeID: "resume-1", Content: "v2", ThumbnailPath: "thumbnails/resumes/orig-2.png"},
	}
	for i := range seed {
		if err := env.store.ResumeDetails().Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed detail: %v", err)
		}
	}

	clone, err := env.engine.CloneResume(ctx, "resume-1")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}

	if clone.Title != "Original (Copy)" {
		t.Errorf("title = %q, want suffix (Copy)", clone.Title)
	}
	if clone.DetailCount != 2 {
		t.Errorf("detail count = %d, want 2", clone.DetailCount)
	}

	details, err := env.store.ResumeDetails().ListByResume(ctx, clone.ID)
	if err != nil {
		t.Fatalf("list cloned details: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("cloned details = %d, want 2", len(details))
	}
	for _, d := range details {
		if d.ThumbnailPath == "thumbnails/resumes/orig-default.png" || d.ThumbnailPath == "thumbnails/resumes/orig-2.png" {
			t.Errorf("cloned detail %s reuses source thumbnail %q", d.ID, d.ThumbnailPath)
		}
		if d.ThumbnailPath == "" {
			t.Errorf("cloned detail %s missing regenerated thumbnail", d.ID)
		}
	}
	if clone.CoverImagePath == "thumbnails/resumes/orig-default.png" {
		t.Error("clone cover should follow the regenerated default thumbnail")
	}
}

func TestConvertGuestToUser_ReassignsEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedGuestSession(t, "session-1")

	sid := "session-1"
	for _, id := range []string{"resume-1", "resume-2"} {
		exp := timeNow().Add(env.sessions.Expiry())
		if err := env.store.Resumes().Create(ctx, &database.Resume{
			ID: id, IsGuest: true, GuestSessionID: &sid, ExpiresAt: &exp,
		}); err != nil {
			t.Fatalf("seed resume: %v", err)
		}
	}

	migrated, err := env.engine.ConvertGuestToUser(ctx, "session-1", "user-9")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if migrated != 2 {
		t.Errorf("migrated = %d, want 2", migrated)
	}

	for _, id := range []string{"resume-1", "resume-2"} {
		r, err := env.store.Resumes().Get(ctx, id)
		if err != nil {
			t.Fatalf("get resume: %v", err)
		}
		if r.IsGuest {
			t.Errorf("%s still flagged guest", id)
		}
		if r.UserID == nil || *r.UserID != "user-9" {
			t.Errorf("%s not owned by user-9", id)
		}
		if r.ExpiresAt != nil {
			t.Errorf("%s still carries expiry", id)
		}
		if r.GuestSessionID == nil {
			t.Errorf("%s lost its source session reference", id)
		}
	}

	session, err := env.sessions.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !session.IsConverted {
		t.Error("session should be marked converted")
	}
	if session.ConvertedUserID == nil || *session.ConvertedUserID != "user-9" {
		t.Error("session should record the converted user")
	}
}

func TestConvertGuestToUser_MissingSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.ConvertGuestToUser(context.Background(), "no-such-session", "user-9")
	if !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestConvertGuestToUser_EmptySessionSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.seedGuestSession(t, "session-1")

	migrated, err := env.engine.ConvertGuestToUser(context.Background(), "session-1", "user-9")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if migrated != 0 {
		t.Errorf("migrated = %d, want 0", migrated)
	}
}

func TestDeleteResume_ReturnsGuestQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedGuestSession(t, "session-1")

	created, err := env.engine.CreateResumeDetail(ctx, &database.ResumeDetail{
		Name:    "Short lived",
		Content: "hello",
	}, OwnerContext{GuestSessionID: "session-1", SourceIP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.engine.DeleteResume(ctx, created.ResumeID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := env.store.Resumes().Get(ctx, created.ResumeID); !errors.Is(err, errcode.ErrNotFound) {
		t.Errorf("resume still present, err = %v", err)
	}
	session, err := env.sessions.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.ResumeCount != 0 {
		t.Errorf("session resume count = %d, want 0", session.ResumeCount)
	}
	if len(env.thumbs.sweptFor) != 1 || env.thumbs.sweptFor[0] != created.ResumeID {
		t.Errorf("thumbnail sweep not triggered: %v", env.thumbs.sweptFor)
	}
}

func TestDeleteResumeDetail_DefaultFallsBackToPlaceholder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	if err := env.store.Resumes().Create(ctx, &database.Resume{
		ID: "resume-1", DetailCount: 1, UserID: &userID,
		CoverImagePath: "thumbnails/resumes/d1.png",
	}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{
		ID: "1", ResumeID: "resume-1", IsDefault: true, ThumbnailPath: "thumbnails/resumes/d1.png",
	}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	if err := env.engine.DeleteResumeDetail(ctx, "1"); err != nil {
		t.Fatalf("delete detail: %v", err)
	}

	r, err := env.store.Resumes().Get(ctx, "resume-1")
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	if r.DetailCount != 0 {
		t.Errorf("detail count = %d, want 0", r.DetailCount)
	}
	if r.CoverImagePath != resume.PlaceholderCoverPath {
		t.Errorf("cover = %q, want placeholder", r.CoverImagePath)
	}
	if len(env.thumbs.deleted) != 1 {
		t.Errorf("deleted thumbs = %v, want the detail thumbnail", env.thumbs.deleted)
	}
}

func TestCreateResumeDetail_SequenceIDCollisionFallsBackToUUID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := "user-1"
	for _, id := range []string{"resume-a", "resume-b"} {
		if err := env.store.Resumes().Create(ctx, &database.Resume{ID: id, UserID: &userID, DetailCount: 1}); err != nil {
			t.Fatalf("seed resume: %v", err)
		}
	}
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{ID: "first-a", ResumeID: "resume-a"}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{ID: "first-b", ResumeID: "resume-b"}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	second, err := env.engine.CreateResumeDetail(ctx, &database.ResumeDetail{
		ResumeID: "resume-a", Name: "Second",
	}, OwnerContext{UserID: userID})
	if err != nil {
		t.Fatalf("create on resume-a: %v", err)
	}
	if second.ID != "2" {
		t.Fatalf("sequence id = %q, want 2", second.ID)
	}

	// resume-b 的第二个变体也会算出序号 2，但主键已被占用，退回 UUID。
	collided, err := env.engine.CreateResumeDetail(ctx, &database.ResumeDetail{
		ResumeID: "resume-b", Name: "Second",
	}, OwnerContext{UserID: userID})
	if err != nil {
		t.Fatalf("create on resume-b: %v", err)
	}
	if collided.ID == "" || collided.ID == "2" {
		t.Errorf("collided id = %q, want a fresh unique id", collided.ID)
	}
}

func TestUpdateResumeDetailContent_AbortedTxKeepsStaleThumbnail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 默认变体的父简历缺失：封面回写失败，事务整体回滚。
	if err := env.store.ResumeDetails().Create(ctx, &database.ResumeDetail{
		ID: "orphan", ResumeID: "missing-resume", Content: "old", IsDefault: true,
		ThumbnailPath: "thumbnails/resumes/stale.png",
	}); err != nil {
		t.Fatalf("seed detail: %v", err)
	}

	_, err := env.engine.UpdateResumeDetailContent(ctx, &database.ResumeDetail{
		ID: "orphan", Content: "brand new content",
	})
	if err == nil {
		t.Fatal("expected update to fail")
	}

	if len(env.thumbs.deleted) != 0 {
		t.Errorf("stale thumbnail must survive an aborted update: %v", env.thumbs.deleted)
	}
	got, err := env.store.ResumeDetails().Get(ctx, "orphan")
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if got.Content != "old" || got.ThumbnailPath != "thumbnails/resumes/stale.png" {
		t.Errorf("detail changed despite rollback: content=%q thumb=%q", got.Content, got.ThumbnailPath)
	}
}

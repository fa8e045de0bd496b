package guest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/config"
	"cvforge/internal/database"
	"cvforge/internal/store"
)

func defaultGuestConfig() config.GuestConfig {
	return config.GuestConfig{
		SessionExpiryDays:      30,
		MaxResumePerSession:    1,
		MaxSessionsPerIPPerDay: 5,
		MaxResumesPerIPPerDay:  3,
		EnableRateLimiting:     true,
	}
}

func newTestManager(t *testing.T, cfg config.GuestConfig) (*Manager, *store.Gorm, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	dataStore := store.New(db)
	m := NewManager(dataStore, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return m, dataStore, db
}

func TestCreateOrReuseSession_ReusesActive(t *testing.T) {
	m, _, _ := newTestManager(t, defaultGuestConfig())
	ctx := context.Background()

	first, err := m.CreateOrReuseSession(ctx, "1.2.3.4", "agent-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := m.CreateOrReuseSession(ctx, "1.2.3.4", "agent-a")
	if err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected session reuse, got %s and %s", first.ID, second.ID)
	}

	other, err := m.CreateOrReuseSession(ctx, "5.6.7.8", "agent-a")
	if err != nil {
		t.Fatalf("create other ip: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different ip must not reuse the session")
	}
}

func TestValidateSession_States(t *testing.T) {
	m, dataStore, _ := newTestManager(t, defaultGuestConfig())
	ctx := context.Background()

	if m.ValidateSession(ctx, "missing", "1.2.3.4") {
		t.Error("missing session should be invalid")
	}

	active, err := m.CreateOrReuseSession(ctx, "1.2.3.4", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !m.ValidateSession(ctx, active.ID, "1.2.3.4") {
		t.Error("active session should be valid")
	}

	// 宽松策略下 IP 变化不致命。
	if !m.ValidateSession(ctx, active.ID, "9.9.9.9") {
		t.Error("ip change should be tolerated by default")
	}

	expired := &database.GuestSession{
		ID: "expired", IPAddress: "1.2.3.4",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := dataStore.GuestSessions().Create(ctx, expired); err != nil {
		t.Fatalf("seed expired: %v", err)
	}
	if m.ValidateSession(ctx, "expired", "1.2.3.4") {
		t.Error("expired session should be invalid")
	}

	userID := "user-1"
	converted := &database.GuestSession{
		ID: "converted", IPAddress: "1.2.3.4",
		ExpiresAt: time.Now().Add(time.Hour), IsConverted: true, ConvertedUserID: &userID,
	}
	if err := dataStore.GuestSessions().Create(ctx, converted); err != nil {
		t.Fatalf("seed converted: %v", err)
	}
	if m.ValidateSession(ctx, "converted", "1.2.3.4") {
		t.Error("converted session should be read-only")
	}
}

func TestValidateSession_StrictIP(t *testing.T) {
	cfg := defaultGuestConfig()
	cfg.StrictIPValidation = true
	m, _, _ := newTestManager(t, cfg)
	ctx := context.Background()

	session, err := m.CreateOrReuseSession(ctx, "1.2.3.4", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ValidateSession(ctx, session.ID, "9.9.9.9") {
		t.Error("strict mode should reject ip changes")
	}
}

func TestResumeCount_FloorAtZero(t *testing.T) {
	m, _, _ := newTestManager(t, defaultGuestConfig())
	ctx := context.Background()

	session, err := m.CreateOrReuseSession(ctx, "1.2.3.4", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.DecrementResumeCount(ctx, session.ID); err != nil {
		t.Fatalf("decrement at zero: %v", err)
	}
	if got := m.ResumeCount(ctx, session.ID); got != 0 {
		t.Errorf("count = %d, want floor 0", got)
	}

	if err := m.IncrementResumeCount(ctx, session.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := m.IncrementResumeCount(ctx, session.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := m.DecrementResumeCount(ctx, session.ID); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if got := m.ResumeCount(ctx, session.ID); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestHasReachedResumeLimit(t *testing.T) {
	m, _, _ := newTestManager(t, defaultGuestConfig())
	ctx := context.Background()

	session, err := m.CreateOrReuseSession(ctx, "1.2.3.4", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if m.HasReachedResumeLimit(ctx, session.ID) {
		t.Error("fresh session should have quota")
	}
	if err := m.IncrementResumeCount(ctx, session.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if !m.HasReachedResumeLimit(ctx, session.ID) {
		t.Error("quota of 1 should be exhausted after one resume")
	}
}

func TestSessionRateLimit(t *testing.T) {
	cfg := defaultGuestConfig()
	cfg.MaxSessionsPerIPPerDay = 2
	m, dataStore, _ := newTestManager(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		session := &database.GuestSession{
			ID: fmt.Sprintf("s-%d", i), IPAddress: "1.2.3.4",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := dataStore.GuestSessions().Create(ctx, session); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	if !m.HasExceededSessionRateLimit(ctx, "1.2.3.4") {
		t.Error("third session from same ip within a day should be limited")
	}
	if m.HasExceededSessionRateLimit(ctx, "5.6.7.8") {
		t.Error("other ip should not be limited")
	}
}

func TestSessionRateLimit_DisabledGate(t *testing.T) {
	cfg := defaultGuestConfig()
	cfg.EnableRateLimiting = false
	cfg.MaxSessionsPerIPPerDay = 1
	m, dataStore, _ := newTestManager(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		session := &database.GuestSession{
			ID: fmt.Sprintf("s-%d", i), IPAddress: "1.2.3.4",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := dataStore.GuestSessions().Create(ctx, session); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	if m.HasExceededSessionRateLimit(ctx, "1.2.3.4") {
		t.Error("disabled rate limiting must always allow")
	}
}

func TestResumeRateLimit_CountsAcrossSessions(t *testing.T) {
	cfg := defaultGuestConfig()
	cfg.MaxResumesPerIPPerDay = 3
	m, dataStore, _ := newTestManager(t, cfg)
	ctx := context.Background()

	// 同一 IP 的两个会话，各挂若干简历。
	for i := 0; i < 2; i++ {
		sid := fmt.Sprintf("s-%d", i)
		session := &database.GuestSession{
			ID: sid, IPAddress: "1.2.3.4",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := dataStore.GuestSessions().Create(ctx, session); err != nil {
			t.Fatalf("seed session: %v", err)
		}
		for j := 0; j < 2; j++ {
			sidRef := sid
			r := &database.Resume{
				ID: fmt.Sprintf("r-%d-%d", i, j), IsGuest: true, GuestSessionID: &sidRef,
			}
			if err := dataStore.Resumes().Create(ctx, r); err != nil {
				t.Fatalf("seed resume: %v", err)
			}
		}
	}

	if !m.HasExceededResumeRateLimit(ctx, "1.2.3.4") {
		t.Error("4 resumes across sessions should exceed the limit of 3")
	}
	if m.HasExceededResumeRateLimit(ctx, "5.6.7.8") {
		t.Error("other ip should not be limited")
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	m, dataStore, db := newTestManager(t, defaultGuestConfig())
	ctx := context.Background()

	seed := []database.GuestSession{
		{ID: "old-1", IPAddress: "1.1.1.1", ExpiresAt: time.Now().Add(-time.Hour)},
		{ID: "old-2", IPAddress: "1.1.1.1", ExpiresAt: time.Now().Add(-time.Minute)},
		{ID: "live", IPAddress: "1.1.1.1", ExpiresAt: time.Now().Add(time.Hour)},
	}
	for i := range seed {
		if err := dataStore.GuestSessions().Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	deleted, err := m.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	var remaining int64
	if err := db.Model(&database.GuestSession{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}

func TestRateLimit_FailOpenOnStorageError(t *testing.T) {
	m, _, db := newTestManager(t, defaultGuestConfig())
	ctx := context.Background()

	// 关掉底层连接模拟存储故障：限流查询全部报错。
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	if m.HasExceededSessionRateLimit(ctx, "1.2.3.4") {
		t.Error("session limit check must allow when storage errors")
	}
	if m.HasExceededResumeRateLimit(ctx, "1.2.3.4") {
		t.Error("resume limit check must allow when storage errors")
	}
}

package delivery

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pastel/internal/auth"
	"pastel/internal/capsule"
)

// capsuleRow mirrors the capsules table without the Postgres-only array
// column so the store's queries run against sqlite.
type capsuleRow struct {
	ID           uint64 `gorm:"primaryKey"`
	UserID       uint64
	Title        string
	Content      string
	DeliveryDate time.Time
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeliveredAt  *time.Time
}

func (capsuleRow) TableName() string { return "capsules" }

func storeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&capsuleRow{}, &capsule.DeliveryLog{}, &auth.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCapsule(t *testing.T, db *gorm.DB, id uint64, status string, due time.Time) {
	t.Helper()
	row := capsuleRow{
		ID:           id,
		UserID:       1,
		Title:        "test",
		Content:      "body",
		DeliveryDate: due,
		Status:       status,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed capsule %d: %v", id, err)
	}
}

func capsuleStatus(t *testing.T, db *gorm.DB, id uint64) string {
	t.Helper()
	var row capsuleRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("read capsule %d: %v", id, err)
	}
	return row.Status
}

func TestGormStoreDue_FiltersAndOrdersByDeliveryDate(t *testing.T) {
	db := storeTestDB(t)
	now := time.Now().UTC()

	seedCapsule(t, db, 1, capsule.StatusScheduled, now.Add(-time.Hour))
	seedCapsule(t, db, 2, capsule.StatusScheduled, now.Add(-3*time.Hour))
	seedCapsule(t, db, 3, capsule.StatusScheduled, now.Add(-2*time.Hour))
	seedCapsule(t, db, 4, capsule.StatusScheduled, now.Add(time.Hour)) // not due yet
	seedCapsule(t, db, 5, capsule.StatusDelivered, now.Add(-time.Hour))
	seedCapsule(t, db, 6, capsule.StatusFailed, now.Add(-time.Hour))

	store := &GormStore{DB: db}
	caps, err := store.Due(context.Background(), now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}

	want := []uint64{2, 3, 1}
	if len(caps) != len(want) {
		t.Fatalf("due = %d capsules, want %d", len(caps), len(want))
	}
	for i, id := range want {
		if caps[i].ID != id {
			t.Fatalf("due order = %v, want oldest delivery date first (%v)", ids(caps), want)
		}
	}
}

func TestGormStoreFailedDue_OnlyFailedAndDue(t *testing.T) {
	db := storeTestDB(t)
	now := time.Now().UTC()

	seedCapsule(t, db, 1, capsule.StatusFailed, now.Add(-2*time.Hour))
	seedCapsule(t, db, 2, capsule.StatusFailed, now.Add(time.Hour)) // not due yet
	seedCapsule(t, db, 3, capsule.StatusScheduled, now.Add(-time.Hour))

	store := &GormStore{DB: db}
	caps, err := store.FailedDue(context.Background(), now)
	if err != nil {
		t.Fatalf("failed due: %v", err)
	}
	if len(caps) != 1 || caps[0].ID != 1 {
		t.Fatalf("failed due = %v, want capsule 1 only", ids(caps))
	}
}

func TestGormStoreClaim_OnlyOnceFromScheduled(t *testing.T) {
	db := storeTestDB(t)
	now := time.Now().UTC()
	seedCapsule(t, db, 1, capsule.StatusScheduled, now.Add(-time.Hour))

	store := &GormStore{DB: db}
	ctx := context.Background()

	ok, err := store.Claim(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v, want true", ok, err)
	}
	if got := capsuleStatus(t, db, 1); got != capsule.StatusDelivering {
		t.Fatalf("status = %q, want delivering", got)
	}

	ok, err = store.Claim(ctx, 1)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Error("second claim succeeded, want rejection")
	}
}

func TestGormStoreRequeueStale(t *testing.T) {
	db := storeTestDB(t)
	now := time.Now().UTC()
	seedCapsule(t, db, 1, capsule.StatusScheduled, now.Add(-time.Hour))
	seedCapsule(t, db, 2, capsule.StatusScheduled, now.Add(-time.Hour))

	store := &GormStore{DB: db}
	ctx := context.Background()

	for _, id := range []uint64{1, 2} {
		if ok, err := store.Claim(ctx, id); err != nil || !ok {
			t.Fatalf("claim %d = %v, %v", id, ok, err)
		}
	}
	// Age capsule 1's claim past the cutoff; UpdateColumn skips the
	// automatic updated_at stamp.
	if err := db.Model(&capsuleRow{}).Where("id = ?", 1).
		UpdateColumn("updated_at", now.Add(-10*time.Minute)).Error; err != nil {
		t.Fatalf("age claim: %v", err)
	}

	n, err := store.RequeueStale(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n != 1 {
		t.Fatalf("requeued = %d, want 1", n)
	}
	if got := capsuleStatus(t, db, 1); got != capsule.StatusScheduled {
		t.Errorf("stale claim status = %q, want scheduled", got)
	}
	if got := capsuleStatus(t, db, 2); got != capsule.StatusDelivering {
		t.Errorf("fresh claim status = %q, want delivering", got)
	}

	// The requeued capsule is due again.
	caps, err := store.Due(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(caps) != 1 || caps[0].ID != 1 {
		t.Fatalf("due after requeue = %v, want capsule 1", ids(caps))
	}
}

func TestGormStoreTransitions(t *testing.T) {
	db := storeTestDB(t)
	now := time.Now().UTC()
	seedCapsule(t, db, 1, capsule.StatusDelivering, now.Add(-time.Hour))

	store := &GormStore{DB: db}
	ctx := context.Background()

	if err := store.MarkDelivered(ctx, 1, now); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	var row capsuleRow
	if err := db.First(&row, "id = ?", 1).Error; err != nil {
		t.Fatal(err)
	}
	if row.Status != capsule.StatusDelivered || row.DeliveredAt == nil {
		t.Fatalf("row = %+v, want delivered with delivered_at set", row)
	}
	// Delivery keeps the user's chosen date.
	if !row.DeliveryDate.Equal(now.Add(-time.Hour)) {
		t.Errorf("delivery date changed to %v", row.DeliveryDate)
	}

	// Reschedule only moves failed capsules.
	if err := store.Reschedule(ctx, 1); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if got := capsuleStatus(t, db, 1); got != capsule.StatusDelivered {
		t.Errorf("status = %q, reschedule must not touch delivered", got)
	}

	if err := store.MarkFailed(ctx, 1); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.Reschedule(ctx, 1); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if got := capsuleStatus(t, db, 1); got != capsule.StatusScheduled {
		t.Errorf("status = %q, want scheduled after reschedule", got)
	}
}

func TestGormStoreAppendLog(t *testing.T) {
	db := storeTestDB(t)
	store := &GormStore{DB: db}

	msg := "smtp unavailable"
	err := store.AppendLog(context.Background(), capsule.DeliveryLog{
		CapsuleID: 1,
		UserID:    2,
		Status:    "failed",
		Method:    "email",
		Error:     &msg,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	var logs []capsule.DeliveryLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != "failed" || logs[0].Error == nil {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestUserIdentityResolve(t *testing.T) {
	db := storeTestDB(t)
	if err := db.Create(&auth.User{ExternalID: "u-1", Email: "one@example.com"}).Error; err != nil {
		t.Fatal(err)
	}

	identity := &UserIdentity{DB: db}
	c, err := identity.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.Email != "one@example.com" {
		t.Errorf("email = %q", c.Email)
	}
	if c.Name != "Friend" {
		t.Errorf("name = %q, want fallback", c.Name)
	}

	if _, err := identity.Resolve(context.Background(), 404); err == nil {
		t.Error("resolving a missing user succeeded")
	}
}

func ids(caps []capsule.Capsule) []uint64 {
	out := make([]uint64, 0, len(caps))
	for _, c := range caps {
		out = append(out, c.ID)
	}
	return out
}

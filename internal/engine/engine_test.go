package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/inventory"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/ledger"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/enums"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:engine_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Item{}, &models.RentalTransaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB, now time.Time) *Engine {
	t.Helper()
	eng, err := New(Params{
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Tx:      gormTxRunner{db: db},
		Items:   inventory.NewRepository(db),
		Rentals: ledger.NewRepository(db),
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func seedItem(t *testing.T, db *gorm.DB, id, name string, total, available int) {
	t.Helper()
	item := models.Item{ID: id, Name: name, TotalQty: total, AvailableQty: available}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item %s: %v", id, err)
	}
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedItem(t, db, "CAB001", "XLR Cable 5m", 10, 3)
	seedItem(t, db, "MIC001", "SM58", 4, 0)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()

	got, err := eng.CheckAvailability(ctx, "cab001")
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if !got.Available || got.Qty != 3 {
		t.Fatalf("unexpected availability: %+v", got)
	}
	if got.Item == nil || got.Item.Name != "XLR Cable 5m" {
		t.Fatalf("expected item details, got %+v", got.Item)
	}

	got, err = eng.CheckAvailability(ctx, "MIC001")
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if got.Available || got.Qty != 0 {
		t.Fatalf("expected zero stock to be unavailable: %+v", got)
	}

	got, err = eng.CheckAvailability(ctx, "NOPE")
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if got.Item != nil || got.Available {
		t.Fatalf("expected absent item, got %+v", got)
	}
}

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedItem(t, db, "CAB001", "XLR Cable 5m", 10, 3)
	start := time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC)
	eng := newTestEngine(t, db, start)
	ctx := context.Background()

	txn, err := eng.Reserve(ctx, ReserveInput{
		ItemID:         "cab001",
		Qty:            2,
		DurationDays:   7,
		UserID:         42,
		BorrowerName:   "Jia Jun",
		ChatHandle:     "@jiajun",
		PickupPhotoRef: "photo-1",
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if txn.Status != enums.RentalStatusActive {
		t.Fatalf("expected active status, got %s", txn.Status)
	}
	if txn.ItemID != "CAB001" || txn.ItemName != "XLR Cable 5m" {
		t.Fatalf("expected canonical item fields, got %+v", txn)
	}
	wantDue := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
	if !txn.DueOn.Equal(wantDue) {
		t.Fatalf("expected due %s, got %s", wantDue, txn.DueOn)
	}

	var item models.Item
	if err := db.First(&item, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 1 {
		t.Fatalf("expected counter 1, got %d", item.AvailableQty)
	}

	var count int64
	if err := db.Model(&models.RentalTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ledger row, got %d", count)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedItem(t, db, "CAB001", "XLR Cable 5m", 10, 1)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := eng.Reserve(ctx, ReserveInput{
		ItemID:         "CAB001",
		Qty:            2,
		DurationDays:   3,
		UserID:         42,
		BorrowerName:   "Jia Jun",
		PickupPhotoRef: "photo-1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNoLongerAvailable) {
		t.Fatalf("expected no-longer-available, got %v", err)
	}

	// The failed attempt must leave neither a ledger row nor a touched counter.
	var count int64
	if err := db.Model(&models.RentalTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty ledger, got %d rows", count)
	}
	var item models.Item
	if err := db.First(&item, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 1 {
		t.Fatalf("counter moved on failed reserve: %d", item.AvailableQty)
	}
}

func TestReserveUnknownItem(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	_, err := eng.Reserve(context.Background(), ReserveInput{
		ItemID:         "GHOST",
		Qty:            1,
		DurationDays:   1,
		UserID:         42,
		BorrowerName:   "Jia Jun",
		PickupPhotoRef: "photo-1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestReserveQuantityCeiling(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedItem(t, db, "CAB001", "XLR Cable 5m", 100, 100)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	_, err := eng.Reserve(context.Background(), ReserveInput{
		ItemID:         "CAB001",
		Qty:            51,
		DurationDays:   1,
		UserID:         42,
		BorrowerName:   "Jia Jun",
		PickupPhotoRef: "photo-1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidInput) {
		t.Fatalf("expected invalid-input, got %v", err)
	}
}

func TestReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedItem(t, db, "CAB001", "XLR Cable 5m", 10, 3)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txn, err := eng.Reserve(ctx, ReserveInput{
		ItemID:         "CAB001",
		Qty:            2,
		DurationDays:   7,
		UserID:         42,
		BorrowerName:   "Jia Jun",
		PickupPhotoRef: "photo-1",
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	returned, err := eng.Release(ctx, txn.ID, "photo-2")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if returned.Status != enums.RentalStatusReturned || returned.ReturnedAt == nil {
		t.Fatalf("expected returned row, got %+v", returned)
	}
	if returned.ReturnPhotoRef != "photo-2" {
		t.Fatalf("expected return photo recorded, got %q", returned.ReturnPhotoRef)
	}

	var item models.Item
	if err := db.First(&item, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 3 {
		t.Fatalf("expected counter restored to 3, got %d", item.AvailableQty)
	}

	// A second release of the same transaction must not restock again.
	_, err = eng.Release(ctx, txn.ID, "photo-3")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state-conflict, got %v", err)
	}
	if err := db.First(&item, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 3 {
		t.Fatalf("double release moved counter: %d", item.AvailableQty)
	}
}

func TestReleaseMissingTransaction(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	_, err := eng.Release(context.Background(), uuid.New(), "photo")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestReleaseVanishedItem(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedItem(t, db, "CAB001", "XLR Cable 5m", 10, 3)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txn, err := eng.Reserve(ctx, ReserveInput{
		ItemID:         "CAB001",
		Qty:            1,
		DurationDays:   1,
		UserID:         42,
		BorrowerName:   "Jia Jun",
		PickupPhotoRef: "photo-1",
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := db.Delete(&models.Item{}, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("delete item: %v", err)
	}

	returned, err := eng.Release(ctx, txn.ID, "photo-2")
	if err != nil {
		t.Fatalf("release after item removal: %v", err)
	}
	if returned.Status != enums.RentalStatusReturned {
		t.Fatalf("expected returned row, got %+v", returned)
	}
}

func TestReleaseRestockClamped(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedItem(t, db, "CAB001", "XLR Cable 5m", 10, 3)
	eng := newTestEngine(t, db, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txn, err := eng.Reserve(ctx, ReserveInput{
		ItemID:         "CAB001",
		Qty:            2,
		DurationDays:   1,
		UserID:         42,
		BorrowerName:   "Jia Jun",
		PickupPhotoRef: "photo-1",
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Counter drifted upward out of band; the restock must clamp at total.
	if err := db.Model(&models.Item{}).Where("id = ?", "CAB001").
		Update("available_qty", 9).Error; err != nil {
		t.Fatalf("drift counter: %v", err)
	}
	if _, err := eng.Release(ctx, txn.ID, "photo-2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	var item models.Item
	if err := db.First(&item, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 10 {
		t.Fatalf("expected clamp at total 10, got %d", item.AvailableQty)
	}
}

func TestComputeOverdue(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		txn      models.RentalTransaction
		overdue  bool
		wantDays int
	}{
		{
			name:    "due today is not overdue",
			txn:     models.RentalTransaction{Status: enums.RentalStatusActive, DueOn: today},
			overdue: false,
		},
		{
			name:    "due tomorrow is not overdue",
			txn:     models.RentalTransaction{Status: enums.RentalStatusActive, DueOn: today.AddDate(0, 0, 1)},
			overdue: false,
		},
		{
			name:     "due yesterday is one day overdue",
			txn:      models.RentalTransaction{Status: enums.RentalStatusActive, DueOn: today.AddDate(0, 0, -1)},
			overdue:  true,
			wantDays: 1,
		},
		{
			name:     "a week past due",
			txn:      models.RentalTransaction{Status: enums.RentalStatusActive, DueOn: today.AddDate(0, 0, -7)},
			overdue:  true,
			wantDays: 7,
		},
		{
			name:    "returned rental is never overdue",
			txn:     models.RentalTransaction{Status: enums.RentalStatusReturned, DueOn: today.AddDate(0, 0, -30)},
			overdue: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			overdue, days := ComputeOverdue(today, tc.txn)
			if overdue != tc.overdue {
				t.Fatalf("expected overdue=%v, got %v", tc.overdue, overdue)
			}
			if overdue && days != tc.wantDays {
				t.Fatalf("expected %d days, got %d", tc.wantDays, days)
			}
		})
	}
}

func TestUserHasOverdue(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, db, now)
	ctx := context.Background()

	rentals := ledger.NewRepository(db)
	rows := []models.RentalTransaction{
		{
			UserID: 42, ItemID: "CAB001", ItemName: "XLR Cable 5m", Qty: 1,
			BorrowerName: "Jia Jun", StartedAt: now.AddDate(0, 0, -10),
			DueOn: DateOnly(now.AddDate(0, 0, -2)), Status: enums.RentalStatusActive,
		},
		{
			UserID: 42, ItemID: "MIC001", ItemName: "SM58", Qty: 1,
			BorrowerName: "Jia Jun", StartedAt: now.AddDate(0, 0, -10),
			DueOn: DateOnly(now.AddDate(0, 0, -5)), Status: enums.RentalStatusActive,
		},
		{
			UserID: 42, ItemID: "SPK001", ItemName: "Speaker", Qty: 1,
			BorrowerName: "Jia Jun", StartedAt: now,
			DueOn: DateOnly(now.AddDate(0, 0, 5)), Status: enums.RentalStatusActive,
		},
	}
	for i := range rows {
		if err := rentals.Create(ctx, &rows[i]); err != nil {
			t.Fatalf("seed ledger: %v", err)
		}
	}

	has, hit, err := eng.UserHasOverdue(ctx, 42)
	if err != nil {
		t.Fatalf("user has overdue: %v", err)
	}
	if !has || hit == nil {
		t.Fatal("expected an overdue rental")
	}
	// Earliest due date wins regardless of insertion order.
	if hit.ItemID != "MIC001" {
		t.Fatalf("expected earliest-due MIC001, got %s", hit.ItemID)
	}

	has, hit, err = eng.UserHasOverdue(ctx, 99)
	if err != nil {
		t.Fatalf("user has overdue: %v", err)
	}
	if has || hit != nil {
		t.Fatal("expected no overdue rentals for unknown user")
	}
}

package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Item{}); err != nil {
		t.Fatalf("migrate items: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB, id string, total, available int) {
	t.Helper()
	if err := db.Create(&models.Item{ID: id, Name: id, TotalQty: total, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestFindByIDCaseInsensitive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seed(t, db, "CAB001", 10, 3)
	repo := NewRepository(db)
	ctx := context.Background()

	for _, id := range []string{"CAB001", "cab001", "Cab001"} {
		item, err := repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find %s: %v", id, err)
		}
		if item == nil || item.ID != "CAB001" {
			t.Fatalf("lookup %s: expected CAB001, got %+v", id, item)
		}
	}

	item, err := repo.FindByID(ctx, "GHOST")
	if err != nil {
		t.Fatalf("find absent: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil for absent item, got %+v", item)
	}
}

func TestDecrementAvailableGuard(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seed(t, db, "CAB001", 10, 3)
	repo := NewRepository(db)
	ctx := context.Background()

	ok, err := repo.DecrementAvailable(ctx, "cab001", 2)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if !ok {
		t.Fatal("expected decrement to succeed")
	}

	// Only 1 left; asking for 2 must refuse instead of going negative.
	ok, err = repo.DecrementAvailable(ctx, "CAB001", 2)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if ok {
		t.Fatal("expected guard to reject over-decrement")
	}

	var item models.Item
	if err := db.First(&item, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 1 {
		t.Fatalf("expected 1 remaining, got %d", item.AvailableQty)
	}
}

func TestDecrementToZeroThenRefuse(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seed(t, db, "CAB001", 10, 1)
	repo := NewRepository(db)
	ctx := context.Background()

	ok, err := repo.DecrementAvailable(ctx, "CAB001", 1)
	if err != nil || !ok {
		t.Fatalf("expected decrement to zero to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = repo.DecrementAvailable(ctx, "CAB001", 1)
	if err != nil {
		t.Fatalf("decrement at zero: %v", err)
	}
	if ok {
		t.Fatal("expected decrement at zero to be refused")
	}
}

func TestIncrementAvailableClamp(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seed(t, db, "CAB001", 10, 9)
	repo := NewRepository(db)
	ctx := context.Background()

	ok, err := repo.IncrementAvailable(ctx, "CAB001", 5)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if !ok {
		t.Fatal("expected increment to match the row")
	}

	var item models.Item
	if err := db.First(&item, "id = ?", "CAB001").Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.AvailableQty != 10 {
		t.Fatalf("expected clamp at total 10, got %d", item.AvailableQty)
	}

	ok, err = repo.IncrementAvailable(ctx, "GHOST", 1)
	if err != nil {
		t.Fatalf("increment absent: %v", err)
	}
	if ok {
		t.Fatal("expected no match for absent item")
	}
}

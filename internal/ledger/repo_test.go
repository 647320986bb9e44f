package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RentalTransaction{}))
	return db
}

func day(offset int) time.Time {
	return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func seedTxn(t *testing.T, repo Repository, userID int64, itemID string, dueOffset int, status enums.RentalStatus) *models.RentalTransaction {
	t.Helper()
	txn := &models.RentalTransaction{
		UserID:       userID,
		ItemID:       itemID,
		ItemName:     itemID,
		Qty:          1,
		BorrowerName: "tester",
		StartedAt:    day(dueOffset - 7),
		DueOn:        day(dueOffset),
		Status:       status,
	}
	require.NoError(t, repo.Create(context.Background(), txn))
	return txn
}

func TestCreateAssignsID(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	txn := seedTxn(t, repo, 42, "CAB001", 3, enums.RentalStatusActive)
	assert.NotEqual(t, uuid.Nil, txn.ID)

	loaded, err := repo.FindByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "CAB001", loaded.ItemID)
}

func TestListActiveByUserOrdersByDueDate(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	// Inserted out of due-date order on purpose.
	seedTxn(t, repo, 42, "LATE", 5, enums.RentalStatusActive)
	seedTxn(t, repo, 42, "FIRST", -3, enums.RentalStatusActive)
	seedTxn(t, repo, 42, "MID", 1, enums.RentalStatusActive)
	seedTxn(t, repo, 42, "DONE", -9, enums.RentalStatusReturned)
	seedTxn(t, repo, 99, "OTHER", -1, enums.RentalStatusActive)

	rows, err := repo.ListActiveByUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "FIRST", rows[0].ItemID)
	assert.Equal(t, "MID", rows[1].ItemID)
	assert.Equal(t, "LATE", rows[2].ItemID)
}

func TestDueDateScans(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	seedTxn(t, repo, 1, "TOMORROW", 1, enums.RentalStatusActive)
	seedTxn(t, repo, 2, "TODAY", 0, enums.RentalStatusActive)
	seedTxn(t, repo, 3, "YESTERDAY", -1, enums.RentalStatusActive)
	// Returned rows never appear in either scan.
	seedTxn(t, repo, 4, "RETURNED", 1, enums.RentalStatusReturned)

	dueTomorrow, err := repo.ListActiveDueOn(ctx, day(1))
	require.NoError(t, err)
	require.Len(t, dueTomorrow, 1)
	assert.Equal(t, "TOMORROW", dueTomorrow[0].ItemID)

	overdue, err := repo.ListActiveDueBefore(ctx, day(0))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "YESTERDAY", overdue[0].ItemID)
}

func TestMarkReturnedExactlyOnce(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	txn := seedTxn(t, repo, 42, "CAB001", 3, enums.RentalStatusActive)

	returnedAt := day(2).Add(15 * time.Hour)
	ok, err := repo.MarkReturned(ctx, txn.ID, returnedAt, "photo-1")
	require.NoError(t, err)
	require.True(t, ok, "first return must match")

	ok, err = repo.MarkReturned(ctx, txn.ID, returnedAt, "photo-2")
	require.NoError(t, err)
	require.False(t, ok, "second return must be a no-op")

	loaded, err := repo.FindByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RentalStatusReturned, loaded.Status)
	assert.Equal(t, "photo-1", loaded.ReturnPhotoRef)
}

func TestActiveQtyByItem(t *testing.T) {
	t.Parallel()

	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	for _, txn := range []*models.RentalTransaction{
		{UserID: 1, ItemID: "CAB001", ItemName: "cable", Qty: 2, BorrowerName: "a", DueOn: day(1), Status: enums.RentalStatusActive},
		{UserID: 2, ItemID: "cab001", ItemName: "cable", Qty: 3, BorrowerName: "b", DueOn: day(2), Status: enums.RentalStatusActive},
		{UserID: 3, ItemID: "MIC001", ItemName: "mic", Qty: 1, BorrowerName: "c", DueOn: day(1), Status: enums.RentalStatusReturned},
	} {
		require.NoError(t, repo.Create(ctx, txn))
	}

	totals, err := repo.ActiveQtyByItem(ctx)
	require.NoError(t, err)
	// Mixed-case IDs fold into one bucket; returned rows are excluded.
	require.Len(t, totals, 1)
	assert.Equal(t, 5, totals["cab001"])
}

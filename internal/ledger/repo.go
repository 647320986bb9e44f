package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/enums"
)

// Repository manages persistence for rental transactions. The log is
// append-only: rows are created once and only the return-related fields
// ever change afterwards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.RentalTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]models.RentalTransaction, error)
	ListActive(ctx context.Context) ([]models.RentalTransaction, error)
	ListActiveDueOn(ctx context.Context, day time.Time) ([]models.RentalTransaction, error)
	ListActiveDueBefore(ctx context.Context, day time.Time) ([]models.RentalTransaction, error)
	ListAll(ctx context.Context) ([]models.RentalTransaction, error)
	MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time, photoRef string) (bool, error)
	ActiveQtyByItem(ctx context.Context) (map[string]int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.RentalTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error) {
	var txn models.RentalTransaction
	err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// ListActiveByUser returns the user's outstanding rentals ordered by due
// date so the earliest-due row comes first. Overdue detection relies on
// this ordering to stay deterministic.
func (r *repository) ListActiveByUser(ctx context.Context, userID int64) ([]models.RentalTransaction, error) {
	var rows []models.RentalTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.RentalStatusActive).
		Order("due_on ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.RentalTransaction, error) {
	var rows []models.RentalTransaction
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.RentalStatusActive).
		Order("due_on ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveDueOn(ctx context.Context, day time.Time) ([]models.RentalTransaction, error) {
	var rows []models.RentalTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_on = ?", enums.RentalStatusActive, day).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveDueBefore(ctx context.Context, day time.Time) ([]models.RentalTransaction, error) {
	var rows []models.RentalTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_on < ?", enums.RentalStatusActive, day).
		Order("due_on ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.RentalTransaction, error) {
	var rows []models.RentalTransaction
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkReturned flips a rental from active to returned exactly once. The
// status guard in the WHERE clause makes a second invocation a no-op, so a
// double-tapped return can never double-count restock upstream.
func (r *repository) MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time, photoRef string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RentalTransaction{}).
		Where("id = ? AND status = ?", id, enums.RentalStatusActive).
		Updates(map[string]any{
			"status":           enums.RentalStatusReturned,
			"returned_at":      returnedAt,
			"return_photo_ref": photoRef,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ActiveQtyByItem sums outstanding quantities per item (lower-cased ID) for
// counter reconciliation.
func (r *repository) ActiveQtyByItem(ctx context.Context) (map[string]int, error) {
	type row struct {
		ItemID string
		Total  int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.RentalTransaction{}).
		Select("LOWER(item_id) AS item_id, SUM(qty) AS total").
		Where("status = ?", enums.RentalStatusActive).
		Group("LOWER(item_id)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[r.ItemID] = r.Total
	}
	return totals, nil
}

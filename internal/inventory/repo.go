package inventory

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db/models"
)

// Repository manages persistence for inventory items. Item IDs compare
// case-insensitively everywhere: CAB001 and cab001 are the same item.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, itemID string) (*models.Item, error)
	ListAll(ctx context.Context) ([]models.Item, error)
	Upsert(ctx context.Context, item *models.Item) error
	DecrementAvailable(ctx context.Context, itemID string, qty int) (bool, error)
	IncrementAvailable(ctx context.Context, itemID string, qty int) (bool, error)
	SetAvailable(ctx context.Context, itemID string, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID loads an item by case-insensitive ID. Returns (nil, nil) when no
// item matches so callers can branch on absence without error inspection.
func (r *repository) FindByID(ctx context.Context, itemID string) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Where("LOWER(id) = LOWER(?)", itemID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Upsert(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DecrementAvailable takes qty units off the available counter only when
// enough stock remains. The WHERE clause is the concurrency guard: a
// concurrent renter who got there first makes RowsAffected zero, and the
// caller must treat that as no-longer-available rather than going negative.
func (r *repository) DecrementAvailable(ctx context.Context, itemID string, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("LOWER(id) = LOWER(?) AND available_qty >= ?", itemID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementAvailable restocks qty units, clamped so the counter never
// exceeds total_qty even if a return is recorded twice upstream.
func (r *repository) IncrementAvailable(ctx context.Context, itemID string, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("LOWER(id) = LOWER(?)", itemID).
		Updates(map[string]any{
			"available_qty": gorm.Expr(
				"CASE WHEN available_qty + ? > total_qty THEN total_qty ELSE available_qty + ? END",
				qty, qty,
			),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetAvailable overwrites the counter. Used by the reconciliation job only.
func (r *repository) SetAvailable(ctx context.Context, itemID string, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("LOWER(id) = LOWER(?)", itemID).
		Updates(map[string]any{"available_qty": qty})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

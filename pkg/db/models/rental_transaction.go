package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/enums"
)

// RentalTransaction is one rental event for one item by one user.
// Rows are append-only: once created the only fields that ever change are
// Status, ReturnedAt and ReturnPhotoRef, and the active -> returned
// transition happens exactly once.
type RentalTransaction struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	BorrowerName   string             `gorm:"column:borrower_name;not null"`
	ChatHandle     string             `gorm:"column:chat_handle"`
	UserID         int64              `gorm:"column:user_id;not null;index"`
	ItemID         string             `gorm:"column:item_id;not null;index"`
	ItemName       string             `gorm:"column:item_name;not null"`
	Qty            int                `gorm:"column:qty;not null"`
	StartedAt      time.Time          `gorm:"column:started_at;not null"`
	DueOn          time.Time          `gorm:"column:due_on;type:date;not null;index"`
	ReturnedAt     *time.Time         `gorm:"column:returned_at"`
	Status         enums.RentalStatus `gorm:"column:status;not null;index"`
	PickupPhotoRef string             `gorm:"column:pickup_photo_ref"`
	ReturnPhotoRef string             `gorm:"column:return_photo_ref"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name regardless of GORM pluralization rules.
func (RentalTransaction) TableName() string { return "rental_transactions" }

package models

import "time"

// Item is one rentable equipment type with a finite owned quantity.
// AvailableQty is the authoritative counter consulted for rent decisions;
// it is only ever moved through conditional updates so that
// 0 <= available_qty <= total_qty holds under concurrent rent/return.
type Item struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Category     string    `gorm:"column:category"`
	Brand        string    `gorm:"column:brand"`
	Model        string    `gorm:"column:model"`
	TotalQty     int       `gorm:"column:total_qty;not null;default:0"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	Location     string    `gorm:"column:location"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name regardless of GORM pluralization rules.
func (Item) TableName() string { return "items" }

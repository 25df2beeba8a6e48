package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Warehouse is a stocking location. Lower Priority values are preferred when
// a reservation does not name a warehouse.
type Warehouse struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;not null;index" json:"store_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Code      string    `gorm:"column:code;not null" json:"code"`
	Priority  int       `gorm:"column:priority;not null" json:"priority"`
	IsActive  bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

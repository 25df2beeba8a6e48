package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is a connected commerce-platform shop. Orders, warehouses, and
// inventory are scoped to it.
type Store struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	ShopifyDomain string    `gorm:"column:shopify_domain;not null;uniqueIndex:ux_stores_shopify_domain" json:"shopify_domain"`
	AccessToken   *string   `gorm:"column:access_token" json:"-"`
	Email         *string   `gorm:"column:email" json:"email,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

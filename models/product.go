package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price is the current price; order items keep
// their own copy taken when the order was placed.
type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	RestaurantID uint            `gorm:"not null;index" json:"restaurant_id"`
	CategoryID   *uint           `gorm:"index" json:"category_id,omitempty"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Available    bool            `gorm:"not null" json:"available"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

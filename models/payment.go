package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const PaymentStatusApproved = "approved"

// Payment records one confirmation received for an order. Amount is the
// server-side subtotal, never the amount claimed by the caller.
type Payment struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	RestaurantID uint            `gorm:"not null;index" json:"restaurant_id"`
	OrderID      uint            `gorm:"not null;index" json:"order_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status       string          `gorm:"type:varchar(20);not null" json:"status"`
	Provider     string          `gorm:"type:varchar(30)" json:"provider"`
	ExternalRef  string          `gorm:"type:varchar(100);index" json:"external_ref"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

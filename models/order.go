package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusServed    = "served"
	OrderStatusPaid      = "paid"
)

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	RestaurantID    uint            `gorm:"not null;index" json:"restaurant_id"`
	SessionID       uint            `gorm:"not null;uniqueIndex:idx_orders_session_request" json:"session_id"`
	Session         *TableSession   `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"session,omitempty"`
	TableID         uint            `gorm:"not null;index" json:"table_id"`
	Table           *Table          `gorm:"foreignKey:TableID;references:ID" json:"table,omitempty"`
	OrderStatus     string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"order_status"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	CustomerNotes   string          `gorm:"type:text" json:"customer_notes"`
	ClientRequestID *string         `gorm:"type:varchar(100);uniqueIndex:idx_orders_session_request" json:"client_request_id,omitempty"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt       time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

// IsTerminal reports whether no further status change is possible.
func (o *Order) IsTerminal() bool {
	return o.OrderStatus == OrderStatusPaid
}

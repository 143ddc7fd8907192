package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// TableSession is one continuous occupancy of a table. It is opened by the
// first order placed at the table and closed once every order in it is paid.
type TableSession struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RestaurantID  uint            `gorm:"not null;index:idx_sessions_lookup" json:"restaurant_id"`
	TableID       uint            `gorm:"not null;index:idx_sessions_lookup" json:"table_id"`
	Table         *Table          `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table,omitempty"`
	Code          string          `gorm:"type:varchar(100);not null;index" json:"code"`
	SessionStatus string          `gorm:"type:varchar(10);not null;default:'open';index:idx_sessions_lookup" json:"session_status"`
	OpenedAt      time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	PaidTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"paid_total"`
	Orders        []Order         `gorm:"foreignKey:SessionID" json:"orders,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

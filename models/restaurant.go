package models

import "time"

// Restaurant is the tenant. Every other entity carries its ID.
type Restaurant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Plan      string    `gorm:"type:varchar(20);not null;default:'basic'" json:"plan"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

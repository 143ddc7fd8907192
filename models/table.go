package models

import "time"

type Table struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;uniqueIndex:idx_tables_restaurant_number" json:"restaurant_id"`
	Number       uint      `gorm:"not null;uniqueIndex:idx_tables_restaurant_number" json:"number"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

package models

import "time"

// Floor is pure grouping metadata for tables.
type Floor struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FloorNumber int       `gorm:"uniqueIndex;not null" json:"floor_number"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

package models

import "time"

// TableStatusLog is the append-only audit trail of table state changes.
// Rows are only ever inserted, never edited.
type TableStatusLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TableID    uint      `gorm:"not null;index" json:"table_id"`
	FromStatus string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   string    `gorm:"type:varchar(20);not null" json:"to_status"`
	Actor      string    `gorm:"type:varchar(100);not null" json:"actor"`
	Note       string    `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

// ReservationStatusLog is the append-only audit trail of reservation state changes.
type ReservationStatusLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ReservationID uint      `gorm:"not null;index" json:"reservation_id"`
	FromStatus    string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus      string    `gorm:"type:varchar(20);not null" json:"to_status"`
	Actor         string    `gorm:"type:varchar(100);not null" json:"actor"`
	Reason        string    `gorm:"type:varchar(255)" json:"reason,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

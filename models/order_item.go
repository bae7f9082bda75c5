package models

import "time"

// Order item statuses
const (
	ItemPending         = "pending"
	ItemInProgress      = "in_progress"
	ItemReady           = "ready"
	ItemCancelRequested = "cancel_requested"
	ItemCancelled       = "cancelled"
)

// OrderItem carries the menu name and category denormalized onto the row;
// menu management itself lives in another service.
type OrderItem struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	OrderID  uint    `gorm:"not null;index" json:"order_id"`
	Name     string  `gorm:"type:varchar(255);not null" json:"name"`
	Category string  `gorm:"type:varchar(100);index" json:"category"`
	Quantity int     `gorm:"not null;default:1" json:"quantity"`
	Price    float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"price"`
	Notes    string  `gorm:"type:text" json:"notes,omitempty"`

	Status string `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	// PrevStatus remembers where a cancel_requested item came from so a
	// rejected cancellation can restore it.
	PrevStatus string `gorm:"type:varchar(20)" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

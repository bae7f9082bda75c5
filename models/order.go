package models

import "time"

// Order statuses (lowercase, matching the kitchen flow wire values)
const (
	OrderPlaced     = "placed"
	OrderInProgress = "in_progress"
	OrderReady      = "ready"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
)

// ActiveOrderStatuses are the orders a kitchen display cares about.
var ActiveOrderStatuses = []string{OrderPlaced, OrderInProgress, OrderReady}

type Order struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	TableID    *uint  `gorm:"index" json:"table_id,omitempty"`
	Table      *Table `gorm:"foreignKey:TableID" json:"table,omitempty"`
	EmployeeID *uint  `gorm:"index" json:"employee_id,omitempty"`
	Employee   *User  `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`

	Status      string  `gorm:"type:varchar(20);not null;default:'placed'" json:"status"`
	TotalAmount float64 `gorm:"type:decimal(10,2);not null;default:0.00" json:"total_amount"`

	// Received is flipped by the KDS acknowledgment; the watchdog nags about
	// active orders that stay unacknowledged.
	Received bool `gorm:"not null;default:false" json:"received"`

	OrderItems []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt  time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"not null" json:"updated_at"`
}

// IsActive reports whether the order still belongs on the kitchen display.
func (o *Order) IsActive() bool {
	switch o.Status {
	case OrderPlaced, OrderInProgress, OrderReady:
		return true
	}
	return false
}

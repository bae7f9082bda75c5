package models

import "time"

// Table statuses
const (
	TableVacant      = "VACANT"
	TableOccupied    = "OCCUPIED"
	TableReserved    = "RESERVED"
	TableCleaning    = "CLEANING"
	TableMaintenance = "MAINTENANCE"
)

type Table struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Number   string  `gorm:"type:varchar(50);uniqueIndex;not null" json:"table_number"`
	Capacity int     `gorm:"not null;default:2" json:"capacity"`
	Section  string  `gorm:"type:varchar(100)" json:"section,omitempty"`
	Shape    string  `gorm:"type:varchar(20);default:'square'" json:"shape,omitempty"`
	FloorID  *uint   `gorm:"index" json:"floor_id,omitempty"`
	Floor    *Floor  `gorm:"foreignKey:FloorID" json:"floor,omitempty"`
	PosX     float64 `gorm:"default:0" json:"pos_x"`
	PosY     float64 `gorm:"default:0" json:"pos_y"`

	Status                  string     `gorm:"type:varchar(20);not null;default:'VACANT'" json:"status"`
	OccupiedSince           *time.Time `json:"occupied_since,omitempty"`
	ReservedUntil           *time.Time `json:"reserved_until,omitempty"`
	UpcomingReservationTime *time.Time `json:"upcoming_reservation_time,omitempty"`
	ReservationID           *uint      `gorm:"index" json:"reservation_id,omitempty"`
	EmployeeID              *uint      `json:"employee_id,omitempty"`
	OrderID                 *uint      `json:"order_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// IsValidTableStatus checks the status against the known table states.
func IsValidTableStatus(s string) bool {
	switch s {
	case TableVacant, TableOccupied, TableReserved, TableCleaning, TableMaintenance:
		return true
	}
	return false
}

// tableTransitions holds the legal edges of the table state machine.
// CLEANING and MAINTENANCE are reachable from every state.
var tableTransitions = map[string][]string{
	TableVacant:      {TableReserved, TableOccupied, TableCleaning, TableMaintenance},
	TableReserved:    {TableOccupied, TableVacant, TableCleaning, TableMaintenance},
	TableOccupied:    {TableVacant, TableCleaning, TableMaintenance},
	TableCleaning:    {TableVacant, TableMaintenance},
	TableMaintenance: {TableVacant, TableCleaning},
}

// CanTransitionTable reports whether from => to is a legal edge.
func CanTransitionTable(from, to string) bool {
	for _, next := range tableTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

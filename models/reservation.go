package models

import "time"

// Reservation statuses
const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationCheckedIn = "CHECKED_IN"
	ReservationCompleted = "COMPLETED"
	ReservationCancelled = "CANCELLED"
	ReservationNoShow    = "NO_SHOW"
)

type Reservation struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Code          string `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	CustomerName  string `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerPhone string `gorm:"type:varchar(30)" json:"customer_phone,omitempty"`
	CustomerEmail string `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	PartySize     int    `gorm:"not null" json:"party_size"`

	ReservationDate  time.Time `gorm:"not null;index" json:"reservation_date"`
	ExpectedDuration int       `gorm:"not null;default:90" json:"expected_duration"` // minutes
	ExpectedEndTime  time.Time `gorm:"not null" json:"expected_end_time"`

	Status string  `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Tables []Table `gorm:"many2many:reservation_tables" json:"tables,omitempty"`
	Notes  string  `gorm:"type:text" json:"notes,omitempty"`

	ReminderSent     bool `gorm:"not null;default:false" json:"reminder_sent"`
	ConfirmationSent bool `gorm:"not null;default:false" json:"confirmation_sent"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// ActiveReservationStatuses are the states that hold tables: their intervals
// must never overlap for any shared table.
var ActiveReservationStatuses = []string{
	ReservationPending,
	ReservationConfirmed,
	ReservationCheckedIn,
}

// IsTerminal reports whether the reservation can no longer change state.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case ReservationCompleted, ReservationCancelled, ReservationNoShow:
		return true
	}
	return false
}

var reservationTransitions = map[string][]string{
	ReservationPending:   {ReservationConfirmed, ReservationCheckedIn, ReservationCancelled, ReservationNoShow},
	ReservationConfirmed: {ReservationCheckedIn, ReservationCancelled, ReservationNoShow},
	ReservationCheckedIn: {ReservationCompleted},
	ReservationCompleted: {},
	ReservationCancelled: {},
	ReservationNoShow:    {},
}

// CanTransitionReservation reports whether from => to is a legal edge.
func CanTransitionReservation(from, to string) bool {
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EndTime computes reservation_date + expected_duration.
func (r *Reservation) EndTime() time.Time {
	return r.ReservationDate.Add(time.Duration(r.ExpectedDuration) * time.Minute)
}

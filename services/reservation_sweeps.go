package services

import (
	"time"

	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/utils"
)

// The three consistency sweeps are pure functions of the clock and store
// state. They are idempotent: re-running a sweep over state it already
// updated transitions nothing and writes no duplicate history. The timer that
// drives them is external; ReservationMonitor below is the in-process option.

// PromoteUpcoming flips every VACANT table whose upcoming reservation starts
// inside the lookahead window to RESERVED. Returns how many tables moved.
func (p *ReservationPlanner) PromoteUpcoming(now time.Time) int {
	horizon := now.Add(p.Lookahead)

	var tables []models.Table
	err := p.DB.
		Where("status = ?", models.TableVacant).
		Where("upcoming_reservation_time IS NOT NULL").
		Where("upcoming_reservation_time <= ?", horizon).
		Where("reserved_until > ?", now).
		Find(&tables).Error
	if err != nil {
		utils.ErrorLogger.Printf("promotion sweep: %v", err)
		return 0
	}

	promoted := 0
	for _, t := range tables {
		if _, err := p.Registry.UpdateStatus(t.ID, models.TableReserved, StatusChange{
			Actor: "auto",
			Note:  "promotion sweep",
		}); err != nil {
			// Skip and continue; the next sweep retries.
			utils.ErrorLogger.Printf("promotion sweep: table %d: %v", t.ID, err)
			continue
		}
		promoted++
	}
	if promoted > 0 {
		utils.InfoLogger.Printf("Promotion sweep reserved %d table(s)", promoted)
	}
	return promoted
}

// ExpireNoShows marks every PENDING/CONFIRMED reservation whose start is more
// than the grace period in the past as NO_SHOW and releases its tables.
// Returns how many reservations were expired.
func (p *ReservationPlanner) ExpireNoShows(now time.Time) int {
	cutoff := now.Add(-p.Grace)

	var stale []models.Reservation
	err := p.DB.
		Where("status IN ?", []string{models.ReservationPending, models.ReservationConfirmed}).
		Where("reservation_date < ?", cutoff).
		Find(&stale).Error
	if err != nil {
		utils.ErrorLogger.Printf("no-show sweep: %v", err)
		return 0
	}

	expired := 0
	for _, res := range stale {
		if _, err := p.MarkNoShow(res.ID, "auto"); err != nil {
			utils.ErrorLogger.Printf("no-show sweep: reservation %s: %v", res.Code, err)
			continue
		}
		expired++
	}
	if expired > 0 {
		utils.InfoLogger.Printf("No-show sweep expired %d reservation(s)", expired)
	}
	return expired
}

// DueReminders returns PENDING/CONFIRMED reservations starting 23-25 hours
// out that have an email address and no reminder yet. The caller owns the
// actual send and must call MarkReminderSent afterwards.
func (p *ReservationPlanner) DueReminders(now time.Time) ([]models.Reservation, error) {
	var due []models.Reservation
	err := p.DB.
		Where("status IN ?", []string{models.ReservationPending, models.ReservationConfirmed}).
		Where("reservation_date >= ? AND reservation_date <= ?", now.Add(23*time.Hour), now.Add(25*time.Hour)).
		Where("customer_email <> ''").
		Where("reminder_sent = ?", false).
		Order("reservation_date asc").
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

// MarkReminderSent records a successful reminder send. Conditional on the
// flag still being clear, so a double send marks only once.
func (p *ReservationPlanner) MarkReminderSent(id uint) error {
	r := p.DB.Model(&models.Reservation{}).
		Where("id = ? AND reminder_sent = ?", id, false).
		Updates(map[string]interface{}{"reminder_sent": true, "updated_at": time.Now()})
	return r.Error
}

// ReservationMonitor runs the promotion and no-show sweeps on a fixed
// interval. Reminder dispatch stays with the external notifier, which polls
// DueReminders itself.
type ReservationMonitor struct {
	Planner  *ReservationPlanner
	Interval time.Duration
	StopChan chan struct{}
}

func NewReservationMonitor(planner *ReservationPlanner, interval time.Duration) *ReservationMonitor {
	return &ReservationMonitor{
		Planner:  planner,
		Interval: interval,
		StopChan: make(chan struct{}),
	}
}

func (rm *ReservationMonitor) Start() {
	go func() {
		ticker := time.NewTicker(rm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				now := time.Now()
				rm.Planner.PromoteUpcoming(now)
				rm.Planner.ExpireNoShows(now)
			case <-rm.StopChan:
				return
			}
		}
	}()
}

func (rm *ReservationMonitor) Stop() {
	close(rm.StopChan)
}

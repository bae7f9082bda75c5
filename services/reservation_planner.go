package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/config"
	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

// ReservationRequest is the input of CreateReservation.
type ReservationRequest struct {
	CustomerName  string    `json:"customer_name" binding:"required"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerEmail string    `json:"customer_email"`
	PartySize     int       `json:"party_size" binding:"required,gt=0"`
	Date          time.Time `json:"reservation_date" binding:"required"`
	Duration      int       `json:"expected_duration"` // minutes, default 90
	TableIDs      []uint    `json:"table_ids"`
	Notes         string    `json:"notes"`
}

// ReservationUpdate carries the mutable fields of UpdateReservation. Nil
// pointers leave the field untouched; a non-nil TableIDs replaces the table
// set wholesale.
type ReservationUpdate struct {
	CustomerName  *string    `json:"customer_name"`
	CustomerPhone *string    `json:"customer_phone"`
	CustomerEmail *string    `json:"customer_email"`
	PartySize     *int       `json:"party_size"`
	Date          *time.Time `json:"reservation_date"`
	Duration      *int       `json:"expected_duration"`
	TableIDs      *[]uint    `json:"table_ids"`
	Notes         *string    `json:"notes"`
}

// ReservationPlanner owns reservation lifecycle and conflict-free table
// search. Table mutations go through the registry so history and broadcast
// stay consistent.
type ReservationPlanner struct {
	DB        *gorm.DB
	Hub       *ws.Hub
	Registry  *TableRegistry
	Lookahead time.Duration
	Grace     time.Duration
}

func NewReservationPlanner(db *gorm.DB, hub *ws.Hub, registry *TableRegistry) *ReservationPlanner {
	return &ReservationPlanner{
		DB:        db,
		Hub:       hub,
		Registry:  registry,
		Lookahead: config.LookaheadWindow(),
		Grace:     config.GracePeriod(),
	}
}

// GetReservation fetches one reservation with its tables.
func (p *ReservationPlanner) GetReservation(id uint) (*models.Reservation, error) {
	var res models.Reservation
	if err := p.DB.Preload("Tables").First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reservation %d", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return &res, nil
}

// GetByCode resolves the human-readable booking code.
func (p *ReservationPlanner) GetByCode(code string) (*models.Reservation, error) {
	var res models.Reservation
	if err := p.DB.Preload("Tables").Where("code = ?", code).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reservation %s", utils.ErrNotFound, code)
		}
		return nil, err
	}
	return &res, nil
}

// ListReservations filters by optional status and date range.
func (p *ReservationPlanner) ListReservations(status string, from, to *time.Time) ([]models.Reservation, error) {
	q := p.DB.Preload("Tables").Order("reservation_date asc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if from != nil {
		q = q.Where("reservation_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("reservation_date < ?", *to)
	}
	var list []models.Reservation
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// FindAvailableTables returns tables free for [start, start+duration), never
// in MAINTENANCE, never smaller than the party, ordered by ascending capacity
// so the smallest workable table comes first.
//
// Two busy-table searches are unioned: the reservation interval query, and a
// direct look at each table's own reservation stamps. The second catches a
// claim whose reservation row is not visible to the first query yet.
func (p *ReservationPlanner) FindAvailableTables(start time.Time, partySize int, duration time.Duration) ([]models.Table, error) {
	end := start.Add(duration)

	var tables []models.Table
	err := p.DB.
		Where("status <> ?", models.TableMaintenance).
		Where("capacity >= ?", partySize).
		Order("capacity asc, number asc").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}

	var busyIDs []uint
	err = p.DB.Table("reservation_tables").
		Joins("JOIN reservations r ON r.id = reservation_tables.reservation_id").
		Where("r.status IN ?", models.ActiveReservationStatuses).
		Where("r.reservation_date < ? AND r.expected_end_time > ?", end, start).
		Pluck("reservation_tables.table_id", &busyIDs).Error
	if err != nil {
		return nil, err
	}
	busy := make(map[uint]bool, len(busyIDs))
	for _, id := range busyIDs {
		busy[id] = true
	}

	available := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		if busy[t.ID] {
			continue
		}
		if t.UpcomingReservationTime != nil && t.ReservedUntil != nil &&
			t.UpcomingReservationTime.Before(end) && t.ReservedUntil.After(start) {
			continue
		}
		available = append(available, t)
	}
	return available, nil
}

// CreateReservation books tables for a party. Without explicit table_ids it
// picks the smallest single table that fits, or accumulates smallest-first
// tables until the party is covered. Claimed tables are stamped with the
// reservation interval; their status flips to RESERVED only when the booking
// starts inside the lookahead window, so far-future bookings don't block
// walk-ins.
func (p *ReservationPlanner) CreateReservation(req ReservationRequest) (*models.Reservation, error) {
	if req.Duration <= 0 {
		req.Duration = 90
	}
	duration := time.Duration(req.Duration) * time.Minute

	res := models.Reservation{
		Code:             generateReservationCode(),
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		PartySize:        req.PartySize,
		ReservationDate:  req.Date,
		ExpectedDuration: req.Duration,
		ExpectedEndTime:  req.Date.Add(duration),
		Status:           models.ReservationPending,
		Notes:            req.Notes,
	}

	err := p.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&res).Error; err != nil {
			return err
		}
		entry := models.ReservationStatusLog{
			ReservationID: res.ID,
			FromStatus:    "",
			ToStatus:      models.ReservationPending,
			Actor:         "booking",
			CreatedAt:     time.Now(),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	claimed, err := p.claimTablesFor(&res, req.TableIDs)
	if err != nil {
		// Roll the booking back; nothing was stamped on a failed claim set.
		p.DB.Delete(&models.ReservationStatusLog{}, "reservation_id = ?", res.ID)
		p.DB.Delete(&res)
		return nil, err
	}

	for _, t := range claimed {
		if err := p.DB.Model(&res).Association("Tables").Append(&models.Table{ID: t.ID}); err != nil {
			utils.ErrorLogger.Printf("reservation %s: linking table %d: %v", res.Code, t.ID, err)
		}
		p.maybeReserve(t.ID, res.ReservationDate)
	}

	utils.InfoLogger.Printf("Reservation %s created for %s (party=%d, tables=%d)",
		res.Code, res.CustomerName, res.PartySize, len(claimed))
	return p.GetReservation(res.ID)
}

// claimTablesFor chooses and optimistically claims tables for the
// reservation. Explicit ids are claimed as given; otherwise the candidate set
// is consumed greedily. A claim lost to a concurrent booking falls through to
// the next candidate.
func (p *ReservationPlanner) claimTablesFor(res *models.Reservation, explicit []uint) ([]models.Table, error) {
	duration := time.Duration(res.ExpectedDuration) * time.Minute

	if len(explicit) > 0 {
		var claimed []models.Table
		for _, id := range explicit {
			table, err := p.Registry.Get(id)
			if err != nil {
				return nil, err
			}
			ok, err := p.claimTable(id, res)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: table %s is not free for the requested time",
					utils.ErrConflict, table.Number)
			}
			claimed = append(claimed, *table)
		}
		return claimed, nil
	}

	// Smallest single table that fits the whole party.
	candidates, err := p.FindAvailableTables(res.ReservationDate, res.PartySize, duration)
	if err != nil {
		return nil, err
	}
	for _, t := range candidates {
		ok, err := p.claimTable(t.ID, res)
		if err != nil {
			return nil, err
		}
		if ok {
			return []models.Table{t}, nil
		}
	}

	// No single table fits; accumulate smallest-first until the party is
	// covered.
	candidates, err = p.FindAvailableTables(res.ReservationDate, 1, duration)
	if err != nil {
		return nil, err
	}
	var claimed []models.Table
	seats := 0
	for _, t := range candidates {
		if seats >= res.PartySize {
			break
		}
		ok, err := p.claimTable(t.ID, res)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		claimed = append(claimed, t)
		seats += t.Capacity
	}
	if seats < res.PartySize {
		// Undo partial claims before reporting the conflict.
		for _, t := range claimed {
			p.releaseTable(t.ID, res.ID, "booking_rollback")
		}
		return nil, fmt.Errorf("%w: no table combination seats a party of %d at %s",
			utils.ErrConflict, res.PartySize, res.ReservationDate.Format(time.RFC3339))
	}
	return claimed, nil
}

// claimTable stamps the reservation interval onto the table with a
// conditional UPDATE. Losing the conditional write to a concurrent
// overlapping booking reports false, not an error.
func (p *ReservationPlanner) claimTable(tableID uint, res *models.Reservation) (bool, error) {
	start, end := res.ReservationDate, res.ExpectedEndTime

	r := p.DB.Model(&models.Table{}).
		Where("id = ?", tableID).
		Where("status <> ?", models.TableMaintenance).
		// stamped interval must not overlap ours
		Where("upcoming_reservation_time IS NULL OR reserved_until <= ? OR upcoming_reservation_time >= ?", start, end).
		// the nearest booking owns the stamp
		Where("upcoming_reservation_time IS NULL OR upcoming_reservation_time > ?", start).
		Updates(map[string]interface{}{
			"upcoming_reservation_time": start,
			"reserved_until":            end,
			"reservation_id":            res.ID,
			"updated_at":                time.Now(),
		})
	if r.Error != nil {
		return false, r.Error
	}
	if r.RowsAffected > 0 {
		return true, nil
	}

	// The stamp is held by another booking. That is fine as long as the held
	// interval does not overlap ours.
	table, err := p.Registry.Get(tableID)
	if err != nil {
		return false, err
	}
	if table.Status == models.TableMaintenance {
		return false, nil
	}
	if table.UpcomingReservationTime != nil && table.ReservedUntil != nil &&
		table.UpcomingReservationTime.Before(end) && table.ReservedUntil.After(start) {
		return false, nil
	}
	return true, nil
}

// maybeReserve flips a vacant claimed table to RESERVED when the booking
// starts inside the lookahead window.
func (p *ReservationPlanner) maybeReserve(tableID uint, start time.Time) {
	if time.Until(start) > p.Lookahead {
		return
	}
	table, err := p.Registry.Get(tableID)
	if err != nil || table.Status != models.TableVacant {
		return
	}
	if _, err := p.Registry.UpdateStatus(tableID, models.TableReserved, StatusChange{
		Actor: "booking",
	}); err != nil {
		utils.ErrorLogger.Printf("reserving table %d: %v", tableID, err)
	}
}

// releaseTable clears this reservation's hold on one table, then hands the
// stamp to the next booking still waiting on it. Tables stamped by a
// different reservation are left alone.
func (p *ReservationPlanner) releaseTable(tableID, reservationID uint, actor string) {
	table, err := p.Registry.Get(tableID)
	if err != nil {
		utils.ErrorLogger.Printf("releasing table %d: %v", tableID, err)
		return
	}
	if table.ReservationID == nil || *table.ReservationID != reservationID {
		return
	}

	switch table.Status {
	case models.TableReserved, models.TableOccupied:
		// UpdateStatus's clearing rule wipes the stamps and linkage.
		if _, err := p.Registry.UpdateStatus(tableID, models.TableVacant, StatusChange{Actor: actor}); err != nil {
			utils.ErrorLogger.Printf("releasing table %d: %v", tableID, err)
		}
	default:
		// Still VACANT (far-future booking) or CLEANING; clear stamps only.
		err := p.DB.Model(&models.Table{}).
			Where("id = ? AND reservation_id = ?", tableID, reservationID).
			Updates(map[string]interface{}{
				"upcoming_reservation_time": nil,
				"reserved_until":            nil,
				"reservation_id":            nil,
				"updated_at":                time.Now(),
			}).Error
		if err != nil {
			utils.ErrorLogger.Printf("releasing table %d: %v", tableID, err)
		}
	}

	p.restampNext(tableID, reservationID)
}

// restampNext stamps the table with the earliest still-active booking that
// holds it, if any. A booking that claimed while an earlier one owned the
// stamp would otherwise stay invisible to the promotion sweep after the
// earlier one releases. The conditional write backs off if a concurrent claim
// already took the freed stamp.
func (p *ReservationPlanner) restampNext(tableID, excludeReservationID uint) {
	var next models.Reservation
	err := p.DB.
		Joins("JOIN reservation_tables rt ON rt.reservation_id = reservations.id").
		Where("rt.table_id = ?", tableID).
		Where("reservations.id <> ?", excludeReservationID).
		Where("reservations.status IN ?", models.ActiveReservationStatuses).
		Where("reservations.expected_end_time > ?", time.Now()).
		Order("reservations.reservation_date asc").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		utils.ErrorLogger.Printf("re-stamping table %d: %v", tableID, err)
		return
	}

	r := p.DB.Model(&models.Table{}).
		Where("id = ? AND reservation_id IS NULL", tableID).
		Updates(map[string]interface{}{
			"upcoming_reservation_time": next.ReservationDate,
			"reserved_until":            next.ExpectedEndTime,
			"reservation_id":            next.ID,
			"updated_at":                time.Now(),
		})
	if r.Error != nil {
		utils.ErrorLogger.Printf("re-stamping table %d: %v", tableID, r.Error)
		return
	}
	if r.RowsAffected > 0 {
		p.maybeReserve(tableID, next.ReservationDate)
	}
}

// transition moves the reservation along a legal edge and appends history.
// Re-issuing the current status is a no-op.
func (p *ReservationPlanner) transition(id uint, to, actor, reason string) (*models.Reservation, error) {
	for attempt := 0; attempt < 3; attempt++ {
		res, err := p.GetReservation(id)
		if err != nil {
			return nil, err
		}
		if res.Status == to {
			return res, nil
		}
		if !models.CanTransitionReservation(res.Status, to) {
			return nil, fmt.Errorf("%w: reservation %s cannot go %s => %s",
				utils.ErrInvalidState, res.Code, res.Status, to)
		}

		err = p.DB.Transaction(func(tx *gorm.DB) error {
			r := tx.Model(&models.Reservation{}).
				Where("id = ? AND status = ?", id, res.Status).
				Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
			if r.Error != nil {
				return r.Error
			}
			if r.RowsAffected == 0 {
				return errRetry
			}
			entry := models.ReservationStatusLog{
				ReservationID: id,
				FromStatus:    res.Status,
				ToStatus:      to,
				Actor:         actor,
				Reason:        reason,
				CreatedAt:     time.Now(),
			}
			return tx.Create(&entry).Error
		})
		if errors.Is(err, errRetry) {
			continue
		}
		if err != nil {
			return nil, err
		}

		utils.InfoLogger.Printf("Reservation %s %s => %s by %s", res.Code, res.Status, to, actor)
		return p.GetReservation(id)
	}
	return nil, fmt.Errorf("%w: concurrent update on reservation %d", utils.ErrConflict, id)
}

// Confirm moves PENDING => CONFIRMED.
func (p *ReservationPlanner) Confirm(id uint, actor string) (*models.Reservation, error) {
	return p.transition(id, models.ReservationConfirmed, actor, "")
}

// CheckIn seats the party: reservation => CHECKED_IN, its tables => OCCUPIED.
func (p *ReservationPlanner) CheckIn(id uint, actor string) (*models.Reservation, error) {
	res, err := p.transition(id, models.ReservationCheckedIn, actor, "")
	if err != nil {
		return nil, err
	}
	for _, t := range res.Tables {
		if t.Status == models.TableOccupied {
			continue
		}
		if _, err := p.Registry.UpdateStatus(t.ID, models.TableOccupied, StatusChange{Actor: actor}); err != nil {
			utils.ErrorLogger.Printf("check-in %s: table %d: %v", res.Code, t.ID, err)
		}
	}
	return p.GetReservation(id)
}

// Complete closes a checked-in reservation and releases its tables.
func (p *ReservationPlanner) Complete(id uint, actor string) (*models.Reservation, error) {
	res, err := p.transition(id, models.ReservationCompleted, actor, "")
	if err != nil {
		return nil, err
	}
	for _, t := range res.Tables {
		p.releaseTable(t.ID, res.ID, actor)
	}
	return p.GetReservation(id)
}

// Cancel aborts a pending/confirmed reservation and releases its tables.
func (p *ReservationPlanner) Cancel(id uint, actor, reason string) (*models.Reservation, error) {
	res, err := p.transition(id, models.ReservationCancelled, actor, reason)
	if err != nil {
		return nil, err
	}
	for _, t := range res.Tables {
		p.releaseTable(t.ID, res.ID, actor)
	}
	return p.GetReservation(id)
}

// MarkNoShow is the watchdog edge: pending/confirmed past grace => NO_SHOW.
func (p *ReservationPlanner) MarkNoShow(id uint, actor string) (*models.Reservation, error) {
	res, err := p.transition(id, models.ReservationNoShow, actor, "grace period elapsed")
	if err != nil {
		return nil, err
	}
	for _, t := range res.Tables {
		p.releaseTable(t.ID, res.ID, actor)
	}
	return p.GetReservation(id)
}

// UpdateReservation edits booking details. A changed table set releases the
// removed tables and claims the added ones as one logical operation; a
// changed date or duration recomputes the expected end and re-stamps the held
// tables.
func (p *ReservationPlanner) UpdateReservation(id uint, upd ReservationUpdate, actor string) (*models.Reservation, error) {
	res, err := p.GetReservation(id)
	if err != nil {
		return nil, err
	}
	if res.IsTerminal() {
		return nil, fmt.Errorf("%w: reservation %s is %s", utils.ErrInvalidState, res.Code, res.Status)
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if upd.CustomerName != nil {
		updates["customer_name"] = *upd.CustomerName
	}
	if upd.CustomerPhone != nil {
		updates["customer_phone"] = *upd.CustomerPhone
	}
	if upd.CustomerEmail != nil {
		updates["customer_email"] = *upd.CustomerEmail
	}
	if upd.PartySize != nil {
		updates["party_size"] = *upd.PartySize
	}
	if upd.Notes != nil {
		updates["notes"] = *upd.Notes
	}

	date := res.ReservationDate
	durationMin := res.ExpectedDuration
	timingChanged := false
	if upd.Date != nil {
		date = *upd.Date
		timingChanged = true
	}
	if upd.Duration != nil && *upd.Duration > 0 {
		durationMin = *upd.Duration
		timingChanged = true
	}
	if timingChanged {
		updates["reservation_date"] = date
		updates["expected_duration"] = durationMin
		updates["expected_end_time"] = date.Add(time.Duration(durationMin) * time.Minute)
	}

	if err := p.DB.Model(res).Updates(updates).Error; err != nil {
		return nil, err
	}
	res, err = p.GetReservation(id)
	if err != nil {
		return nil, err
	}

	if upd.TableIDs != nil {
		wanted := make(map[uint]bool, len(*upd.TableIDs))
		for _, tid := range *upd.TableIDs {
			wanted[tid] = true
		}

		for _, t := range res.Tables {
			if wanted[t.ID] {
				continue
			}
			p.releaseTable(t.ID, res.ID, actor)
			if err := p.DB.Model(res).Association("Tables").Delete(&models.Table{ID: t.ID}); err != nil {
				utils.ErrorLogger.Printf("reservation %s: unlinking table %d: %v", res.Code, t.ID, err)
			}
		}

		held := make(map[uint]bool, len(res.Tables))
		for _, t := range res.Tables {
			held[t.ID] = true
		}
		for _, tid := range *upd.TableIDs {
			if held[tid] {
				continue
			}
			table, err := p.Registry.Get(tid)
			if err != nil {
				return nil, err
			}
			ok, err := p.claimTable(tid, res)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: table %s is not free for the requested time",
					utils.ErrConflict, table.Number)
			}
			if err := p.DB.Model(res).Association("Tables").Append(&models.Table{ID: tid}); err != nil {
				utils.ErrorLogger.Printf("reservation %s: linking table %d: %v", res.Code, tid, err)
			}
			p.maybeReserve(tid, res.ReservationDate)
		}
	} else if timingChanged {
		// Re-stamp the tables this reservation still holds.
		for _, t := range res.Tables {
			err := p.DB.Model(&models.Table{}).
				Where("id = ? AND reservation_id = ?", t.ID, res.ID).
				Updates(map[string]interface{}{
					"upcoming_reservation_time": res.ReservationDate,
					"reserved_until":            res.ExpectedEndTime,
					"updated_at":                time.Now(),
				}).Error
			if err != nil {
				utils.ErrorLogger.Printf("reservation %s: re-stamping table %d: %v", res.Code, t.ID, err)
			}
			p.maybeReserve(t.ID, res.ReservationDate)
		}
	}

	return p.GetReservation(id)
}

// History returns the append-only status log of one reservation.
func (p *ReservationPlanner) History(id uint) ([]models.ReservationStatusLog, error) {
	if _, err := p.GetReservation(id); err != nil {
		return nil, err
	}
	var log []models.ReservationStatusLog
	if err := p.DB.Where("reservation_id = ?", id).Order("created_at asc, id asc").Find(&log).Error; err != nil {
		return nil, err
	}
	return log, nil
}

func generateReservationCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "RSV-" + raw[:8]
}

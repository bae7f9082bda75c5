package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/config"
	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

// errRetry signals a lost optimistic update inside a transaction.
var errRetry = errors.New("retry")

// StatusChange carries the audit context of a table transition.
type StatusChange struct {
	Actor      string
	Note       string
	EmployeeID *uint
	OrderID    *uint
}

// TableRegistry owns the canonical table records and their state machine.
// Every mutation is a single-row conditional UPDATE, so concurrent callers
// targeting the same table never produce lost updates.
type TableRegistry struct {
	DB        *gorm.DB
	Hub       *ws.Hub
	Lookahead time.Duration
}

func NewTableRegistry(db *gorm.DB, hub *ws.Hub) *TableRegistry {
	return &TableRegistry{
		DB:        db,
		Hub:       hub,
		Lookahead: config.LookaheadWindow(),
	}
}

// Get fetches one table.
func (tr *TableRegistry) Get(id uint) (*models.Table, error) {
	var table models.Table
	if err := tr.DB.First(&table, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: table %d", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return &table, nil
}

// ListTables returns all tables, floor preloaded.
func (tr *TableRegistry) ListTables() ([]models.Table, error) {
	var tables []models.Table
	if err := tr.DB.Preload("Floor").Order("number asc").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

// FindByStatus returns all tables in one status.
func (tr *TableRegistry) FindByStatus(status string) ([]models.Table, error) {
	if !models.IsValidTableStatus(status) {
		return nil, fmt.Errorf("%w: unknown table status %q", utils.ErrInvalidState, status)
	}
	var tables []models.Table
	if err := tr.DB.Where("status = ?", status).Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

// UpdateStatus drives the table state machine. Re-issuing the current status
// is a no-op (no duplicate history entry). Moving to VACANT clears occupancy,
// reservation stamps and order/employee linkage per the state machine's
// clearing rule.
func (tr *TableRegistry) UpdateStatus(id uint, newStatus string, change StatusChange) (*models.Table, error) {
	if !models.IsValidTableStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown table status %q", utils.ErrInvalidState, newStatus)
	}
	if change.Actor == "" {
		change.Actor = "system"
	}

	for attempt := 0; attempt < 3; attempt++ {
		table, err := tr.Get(id)
		if err != nil {
			return nil, err
		}
		if table.Status == newStatus {
			// Retry of an already-applied transition.
			return table, nil
		}
		if !models.CanTransitionTable(table.Status, newStatus) {
			return nil, fmt.Errorf("%w: table %d cannot go %s => %s",
				utils.ErrInvalidState, id, table.Status, newStatus)
		}

		updates := map[string]interface{}{
			"status":     newStatus,
			"updated_at": time.Now(),
		}
		switch newStatus {
		case models.TableOccupied:
			now := time.Now()
			updates["occupied_since"] = now
			if change.EmployeeID != nil {
				updates["employee_id"] = *change.EmployeeID
			}
			if change.OrderID != nil {
				updates["order_id"] = *change.OrderID
			}
		case models.TableVacant:
			updates["occupied_since"] = nil
			updates["reserved_until"] = nil
			updates["upcoming_reservation_time"] = nil
			updates["order_id"] = nil
			updates["employee_id"] = nil
			updates["reservation_id"] = nil
		}

		err = tr.DB.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Table{}).
				Where("id = ? AND status = ?", id, table.Status).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errRetry
			}
			entry := models.TableStatusLog{
				TableID:    id,
				FromStatus: table.Status,
				ToStatus:   newStatus,
				Actor:      change.Actor,
				Note:       change.Note,
				CreatedAt:  time.Now(),
			}
			return tx.Create(&entry).Error
		})
		if errors.Is(err, errRetry) {
			continue
		}
		if err != nil {
			return nil, err
		}

		updated, err := tr.Get(id)
		if err != nil {
			return nil, err
		}
		tr.broadcastTable(*updated)
		utils.InfoLogger.Printf("Table %d status changed %s => %s by %s",
			id, table.Status, newStatus, change.Actor)
		return updated, nil
	}
	return nil, fmt.Errorf("%w: concurrent update on table %d", utils.ErrConflict, id)
}

// AssignOrder links an order (and optionally the serving employee) to a table,
// forcing it OCCUPIED.
func (tr *TableRegistry) AssignOrder(id, orderID uint, employeeID *uint) (*models.Table, error) {
	table, err := tr.Get(id)
	if err != nil {
		return nil, err
	}

	if table.Status == models.TableOccupied {
		// Already seated; only refresh the linkage.
		updates := map[string]interface{}{"order_id": orderID, "updated_at": time.Now()}
		if employeeID != nil {
			updates["employee_id"] = *employeeID
		}
		if err := tr.DB.Model(&models.Table{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
		return tr.Get(id)
	}

	return tr.UpdateStatus(id, models.TableOccupied, StatusChange{
		Actor:      "order_assignment",
		Note:       fmt.Sprintf("order #%d", orderID),
		EmployeeID: employeeID,
		OrderID:    &orderID,
	})
}

// CreateTable adds a table. Duplicate numbers are a Conflict.
func (tr *TableRegistry) CreateTable(table *models.Table) error {
	var count int64
	if err := tr.DB.Model(&models.Table{}).Where("number = ?", table.Number).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: table number %q already exists", utils.ErrConflict, table.Number)
	}
	if table.Status == "" {
		table.Status = models.TableVacant
	}
	if !models.IsValidTableStatus(table.Status) {
		return fmt.Errorf("%w: unknown table status %q", utils.ErrInvalidState, table.Status)
	}
	if err := tr.DB.Create(table).Error; err != nil {
		return err
	}
	utils.InfoLogger.Printf("New table created: %s (status=%s)", table.Number, table.Status)
	return nil
}

// UpdateTable changes layout metadata (number, capacity, section, shape,
// floor, position). Status changes go through UpdateStatus only.
func (tr *TableRegistry) UpdateTable(id uint, updates map[string]interface{}) (*models.Table, error) {
	delete(updates, "status")
	if number, ok := updates["number"]; ok {
		var count int64
		if err := tr.DB.Model(&models.Table{}).
			Where("number = ? AND id <> ?", number, id).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: table number %v already exists", utils.ErrConflict, number)
		}
	}

	table, err := tr.Get(id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := tr.DB.Model(table).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return tr.Get(id)
}

// DeleteTable refuses to drop a table still referenced by a non-terminal
// reservation or an open order.
func (tr *TableRegistry) DeleteTable(id uint) error {
	if _, err := tr.Get(id); err != nil {
		return err
	}

	var reserved int64
	err := tr.DB.Table("reservations").
		Joins("JOIN reservation_tables rt ON rt.reservation_id = reservations.id").
		Where("rt.table_id = ?", id).
		Where("reservations.status IN ?", models.ActiveReservationStatuses).
		Count(&reserved).Error
	if err != nil {
		return err
	}
	if reserved > 0 {
		return fmt.Errorf("%w: table %d is held by an active reservation", utils.ErrConflict, id)
	}

	var open int64
	err = tr.DB.Model(&models.Order{}).
		Where("table_id = ? AND status IN ?", id, models.ActiveOrderStatuses).
		Count(&open).Error
	if err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("%w: table %d has an open order", utils.ErrConflict, id)
	}

	if err := tr.DB.Delete(&models.Table{}, id).Error; err != nil {
		return err
	}
	utils.InfoLogger.Printf("Table %d deleted", id)
	return nil
}

// History returns the append-only status log of one table.
func (tr *TableRegistry) History(id uint) ([]models.TableStatusLog, error) {
	if _, err := tr.Get(id); err != nil {
		return nil, err
	}
	var log []models.TableStatusLog
	if err := tr.DB.Where("table_id = ?", id).Order("created_at asc, id asc").Find(&log).Error; err != nil {
		return nil, err
	}
	return log, nil
}

// StatusCounts aggregates the floor dashboard numbers.
func (tr *TableRegistry) StatusCounts() map[string]int64 {
	counts := make(map[string]int64)
	for _, status := range []string{
		models.TableVacant, models.TableOccupied, models.TableReserved,
		models.TableCleaning, models.TableMaintenance,
	} {
		var n int64
		tr.DB.Model(&models.Table{}).Where("status = ?", status).Count(&n)
		counts[status] = n
	}
	return counts
}

func (tr *TableRegistry) broadcastTable(table models.Table) {
	tr.Hub.Broadcast(ws.TableStatusUpdated{
		Table: table,
		Stats: tr.StatusCounts(),
	}, ws.ChannelFloor, ws.ChannelWaiter, ws.ChannelKDS)
}

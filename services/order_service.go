package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

// NewOrderItem is one line of a placed order.
type NewOrderItem struct {
	Name     string  `json:"name" binding:"required"`
	Category string  `json:"category"`
	Quantity int     `json:"quantity" binding:"required,gt=0"`
	Price    float64 `json:"price"`
	Notes    string  `json:"notes"`
}

// OrderItemUpdate patches one existing item.
type OrderItemUpdate struct {
	ID       uint    `json:"id" binding:"required"`
	Status   *string `json:"status"`
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

// OrderService is the order read/write store the channel protocol and the
// REST surface share. Mutations broadcast their events themselves so both
// entry points stay consistent.
type OrderService struct {
	DB       *gorm.DB
	Hub      *ws.Hub
	Registry *TableRegistry
}

func NewOrderService(db *gorm.DB, hub *ws.Hub, registry *TableRegistry) *OrderService {
	return &OrderService{DB: db, Hub: hub, Registry: registry}
}

// GetOrder fetches one order with items.
func (svc *OrderService) GetOrder(id uint) (*models.Order, error) {
	var order models.Order
	if err := svc.DB.Preload("OrderItems").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return &order, nil
}

// ActiveOrders returns the kitchen-display view, oldest first. A non-empty
// category narrows it to orders containing at least one matching item.
func (svc *OrderService) ActiveOrders(category string) ([]models.Order, error) {
	var orders []models.Order
	err := svc.DB.Preload("OrderItems").
		Where("status IN ?", models.ActiveOrderStatuses).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	if category == "" {
		return orders, nil
	}

	filtered := orders[:0]
	for _, o := range orders {
		for _, item := range o.OrderItems {
			if item.Category == category {
				filtered = append(filtered, o)
				break
			}
		}
	}
	return filtered, nil
}

// PlaceOrder creates an order for a table, forces the table OCCUPIED, and
// announces it to the kitchen and waiters.
func (svc *OrderService) PlaceOrder(tableID *uint, employeeID *uint, items []NewOrderItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", utils.ErrInvalidState)
	}

	order := models.Order{
		TableID:    tableID,
		EmployeeID: employeeID,
		Status:     models.OrderPlaced,
	}

	err := svc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		var total float64
		for _, in := range items {
			item := models.OrderItem{
				OrderID:  order.ID,
				Name:     in.Name,
				Category: in.Category,
				Quantity: in.Quantity,
				Price:    in.Price,
				Notes:    in.Notes,
				Status:   models.ItemPending,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			total += float64(in.Quantity) * in.Price
		}
		return tx.Model(&order).Update("total_amount", total).Error
	})
	if err != nil {
		return nil, err
	}

	if tableID != nil {
		if _, err := svc.Registry.AssignOrder(*tableID, order.ID, employeeID); err != nil {
			utils.ErrorLogger.Printf("order %d: assigning table %d: %v", order.ID, *tableID, err)
		}
	}

	placed, err := svc.GetOrder(order.ID)
	if err != nil {
		return nil, err
	}
	svc.Hub.Broadcast(ws.OrderPlaced{Order: *placed}, ws.ChannelKDS, ws.ChannelWaiter)
	utils.InfoLogger.Printf("Order #%d placed (%d item(s))", placed.ID, len(placed.OrderItems))
	return placed, nil
}

// UpdateOrder patches order status and item rows, then notifies the kitchen.
func (svc *OrderService) UpdateOrder(orderID uint, status *string, items []OrderItemUpdate) (*models.Order, error) {
	order, err := svc.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	err = svc.DB.Transaction(func(tx *gorm.DB) error {
		if status != nil {
			if err := tx.Model(order).Updates(map[string]interface{}{
				"status": *status, "updated_at": time.Now(),
			}).Error; err != nil {
				return err
			}
		}
		for _, upd := range items {
			var item models.OrderItem
			if err := tx.Where("id = ? AND order_id = ?", upd.ID, orderID).First(&item).Error; err != nil {
				continue
			}
			changes := map[string]interface{}{"updated_at": time.Now()}
			if upd.Status != nil {
				changes["status"] = *upd.Status
			}
			if upd.Quantity != nil {
				changes["quantity"] = *upd.Quantity
			}
			if upd.Notes != nil {
				changes["notes"] = *upd.Notes
			}
			if err := tx.Model(&item).Updates(changes).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := svc.recomputeTotal(orderID); err != nil {
		return nil, err
	}
	updated, err := svc.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	svc.Hub.Broadcast(ws.OrderUpdated{Order: *updated}, ws.ChannelKDS)
	return updated, nil
}

// AddItems appends items to an active order and tells the kitchen.
func (svc *OrderService) AddItems(orderID uint, items []NewOrderItem) (*models.Order, error) {
	order, err := svc.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsActive() {
		return nil, fmt.Errorf("%w: order #%d is %s", utils.ErrInvalidState, orderID, order.Status)
	}

	var added []models.OrderItem
	err = svc.DB.Transaction(func(tx *gorm.DB) error {
		for _, in := range items {
			item := models.OrderItem{
				OrderID:  orderID,
				Name:     in.Name,
				Category: in.Category,
				Quantity: in.Quantity,
				Price:    in.Price,
				Notes:    in.Notes,
				Status:   models.ItemPending,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			added = append(added, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := svc.recomputeTotal(orderID); err != nil {
		return nil, err
	}
	svc.Hub.Broadcast(ws.ItemsAdded{OrderID: orderID, Items: added}, ws.ChannelKDS)
	return svc.GetOrder(orderID)
}

// RequestCancellation flags one item for the kitchen to approve or reject.
func (svc *OrderService) RequestCancellation(orderID, itemID uint, reason string) error {
	var item models.OrderItem
	if err := svc.DB.Where("id = ? AND order_id = ?", itemID, orderID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: item %d of order %d", utils.ErrNotFound, itemID, orderID)
		}
		return err
	}
	switch item.Status {
	case models.ItemCancelled, models.ItemCancelRequested:
		return fmt.Errorf("%w: item %d is already %s", utils.ErrInvalidState, itemID, item.Status)
	}

	err := svc.DB.Model(&item).Updates(map[string]interface{}{
		"prev_status": item.Status,
		"status":      models.ItemCancelRequested,
		"updated_at":  time.Now(),
	}).Error
	if err != nil {
		return err
	}

	svc.Hub.Broadcast(ws.CancellationRequest{
		OrderID: orderID,
		ItemID:  itemID,
		Reason:  reason,
	}, ws.ChannelKDS)
	return nil
}

// ApproveCancellation cancels the flagged item and notifies the owning
// waiter and the kitchen.
func (svc *OrderService) ApproveCancellation(orderID, itemID uint) error {
	if err := svc.resolveCancellation(orderID, itemID, true); err != nil {
		return err
	}
	svc.notifyCancellation(orderID, itemID, true)
	return nil
}

// RejectCancellation restores the flagged item to its previous status.
func (svc *OrderService) RejectCancellation(orderID, itemID uint) error {
	if err := svc.resolveCancellation(orderID, itemID, false); err != nil {
		return err
	}
	svc.notifyCancellation(orderID, itemID, false)
	return nil
}

func (svc *OrderService) resolveCancellation(orderID, itemID uint, approve bool) error {
	var item models.OrderItem
	if err := svc.DB.Where("id = ? AND order_id = ?", itemID, orderID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: item %d of order %d", utils.ErrNotFound, itemID, orderID)
		}
		return err
	}
	if item.Status != models.ItemCancelRequested {
		return fmt.Errorf("%w: item %d has no pending cancellation", utils.ErrInvalidState, itemID)
	}

	newStatus := models.ItemCancelled
	if !approve {
		newStatus = item.PrevStatus
		if newStatus == "" {
			newStatus = models.ItemPending
		}
	}
	err := svc.DB.Model(&item).Updates(map[string]interface{}{
		"status":      newStatus,
		"prev_status": "",
		"updated_at":  time.Now(),
	}).Error
	if err != nil {
		return err
	}
	return svc.recomputeTotal(orderID)
}

func (svc *OrderService) notifyCancellation(orderID, itemID uint, approved bool) {
	var e ws.Event
	if approved {
		e = ws.CancellationApproved{OrderID: orderID, ItemID: itemID}
	} else {
		e = ws.CancellationRejected{OrderID: orderID, ItemID: itemID}
	}

	keys := []string{ws.ChannelKDS}
	if order, err := svc.GetOrder(orderID); err == nil && order.EmployeeID != nil {
		keys = append(keys, ws.EmployeeKey(*order.EmployeeID))
	}
	svc.Hub.Broadcast(e, keys...)
}

// PrepareItem marks one item ready. When it was the last one, the whole order
// goes ready too.
func (svc *OrderService) PrepareItem(itemID uint) (*models.Order, error) {
	var item models.OrderItem
	if err := svc.DB.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: item %d", utils.ErrNotFound, itemID)
		}
		return nil, err
	}
	switch item.Status {
	case models.ItemCancelled:
		return nil, fmt.Errorf("%w: item %d is cancelled", utils.ErrInvalidState, itemID)
	case models.ItemReady:
		return svc.GetOrder(item.OrderID)
	}

	err := svc.DB.Model(&item).Updates(map[string]interface{}{
		"status": models.ItemReady, "updated_at": time.Now(),
	}).Error
	if err != nil {
		return nil, err
	}

	var notReady int64
	svc.DB.Model(&models.OrderItem{}).
		Where("order_id = ? AND status NOT IN ?", item.OrderID,
			[]string{models.ItemReady, models.ItemCancelled}).
		Count(&notReady)
	if notReady == 0 {
		svc.DB.Model(&models.Order{}).Where("id = ?", item.OrderID).
			Updates(map[string]interface{}{"status": models.OrderReady, "updated_at": time.Now()})
	}

	return svc.broadcastOrderUpdate(item.OrderID)
}

// PrepareOrder marks every open item and the order itself ready.
func (svc *OrderService) PrepareOrder(orderID uint) (*models.Order, error) {
	order, err := svc.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsActive() {
		return nil, fmt.Errorf("%w: order #%d is %s", utils.ErrInvalidState, orderID, order.Status)
	}

	err = svc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND status NOT IN ?", orderID,
				[]string{models.ItemReady, models.ItemCancelled}).
			Updates(map[string]interface{}{"status": models.ItemReady, "updated_at": time.Now()}).
			Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("id = ?", orderID).
			Updates(map[string]interface{}{"status": models.OrderReady, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, err
	}

	return svc.broadcastOrderUpdate(orderID)
}

// Acknowledge flips the received flag the watchdog watches. Idempotent.
func (svc *OrderService) Acknowledge(orderID uint) error {
	r := svc.DB.Model(&models.Order{}).
		Where("id = ? AND received = ?", orderID, false).
		Updates(map[string]interface{}{"received": true, "updated_at": time.Now()})
	if r.Error != nil {
		return r.Error
	}
	if r.RowsAffected == 0 {
		// Already acknowledged or unknown id; both are fine for a retry.
		var count int64
		svc.DB.Model(&models.Order{}).Where("id = ?", orderID).Count(&count)
		if count == 0 {
			return fmt.Errorf("%w: order %d", utils.ErrNotFound, orderID)
		}
	}
	return nil
}

// UnacknowledgedOrderIDs lists active orders older than the given age that
// the kitchen never acknowledged. Feeds the per-connection watchdog.
func (svc *OrderService) UnacknowledgedOrderIDs(olderThan time.Duration) ([]uint, error) {
	cutoff := time.Now().Add(-olderThan)
	var ids []uint
	err := svc.DB.Model(&models.Order{}).
		Where("received = ?", false).
		Where("status IN ?", models.ActiveOrderStatuses).
		Where("created_at <= ?", cutoff).
		Order("created_at asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// EmployeeName resolves an employee id to a display name. Best effort: a
// missing employee is just an empty name, not an error.
func (svc *OrderService) EmployeeName(id uint) string {
	var user models.User
	if err := svc.DB.First(&user, id).Error; err != nil {
		return ""
	}
	return user.Name
}

func (svc *OrderService) broadcastOrderUpdate(orderID uint) (*models.Order, error) {
	order, err := svc.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	keys := []string{ws.ChannelKDS}
	if order.EmployeeID != nil {
		keys = append(keys, ws.EmployeeKey(*order.EmployeeID))
	}
	svc.Hub.Broadcast(ws.OrderUpdated{Order: *order}, keys...)
	return order, nil
}

// recomputeTotal sums the non-cancelled items back onto the order.
func (svc *OrderService) recomputeTotal(orderID uint) error {
	var total float64
	err := svc.DB.Model(&models.OrderItem{}).
		Where("order_id = ? AND status <> ?", orderID, models.ItemCancelled).
		Select("COALESCE(SUM(price * quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return err
	}
	return svc.DB.Model(&models.Order{}).Where("id = ?", orderID).
		Update("total_amount", total).Error
}

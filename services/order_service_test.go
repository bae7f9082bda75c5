package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

func newOrderService(t *testing.T) (*services.OrderService, *services.TableRegistry, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	hub := ws.NewHub()
	registry := services.NewTableRegistry(db, hub)
	return services.NewOrderService(db, hub, registry), registry, db
}

func TestPlaceOrderSeatsTableAndTotals(t *testing.T) {
	orders, registry, db := newOrderService(t)

	waiter := models.User{Name: "Pat", Email: "pat@example.com", Password: "x", Role: models.RoleWaiter}
	require.NoError(t, db.Create(&waiter).Error)

	table := models.Table{Number: "A1", Capacity: 4}
	require.NoError(t, registry.CreateTable(&table))

	order, err := orders.PlaceOrder(&table.ID, &waiter.ID, []services.NewOrderItem{
		{Name: "Ramen", Category: "mains", Quantity: 2, Price: 12.5},
		{Name: "Green Tea", Category: "drinks", Quantity: 1, Price: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderPlaced, order.Status)
	assert.InDelta(t, 28.0, order.TotalAmount, 0.001)
	require.Len(t, order.OrderItems, 2)

	seated, err := registry.Get(table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, seated.Status)
	require.NotNil(t, seated.OrderID)
	assert.Equal(t, order.ID, *seated.OrderID)
}

func TestPlaceOrderNeedsItems(t *testing.T) {
	orders, _, _ := newOrderService(t)

	_, err := orders.PlaceOrder(nil, nil, nil)
	assert.ErrorIs(t, err, utils.ErrInvalidState)
}

func TestActiveOrdersCategoryFilter(t *testing.T) {
	orders, _, _ := newOrderService(t)

	_, err := orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Espresso", Category: "drinks", Quantity: 1, Price: 2.5},
	})
	require.NoError(t, err)
	_, err = orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Burger", Category: "mains", Quantity: 1, Price: 9},
	})
	require.NoError(t, err)

	all, err := orders.ActiveOrders("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drinks, err := orders.ActiveOrders("drinks")
	require.NoError(t, err)
	require.Len(t, drinks, 1)
	assert.Equal(t, "Espresso", drinks[0].OrderItems[0].Name)

	desserts, err := orders.ActiveOrders("desserts")
	require.NoError(t, err)
	assert.Empty(t, desserts)
}

func TestPrepareItemCascadesToOrder(t *testing.T) {
	orders, _, _ := newOrderService(t)

	order, err := orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Soup", Category: "starters", Quantity: 1, Price: 5},
		{Name: "Steak", Category: "mains", Quantity: 1, Price: 20},
	})
	require.NoError(t, err)

	order, err = orders.PrepareItem(order.OrderItems[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPlaced, order.Status, "one ready item is not a ready order")

	order, err = orders.PrepareItem(order.OrderItems[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderReady, order.Status)
}

func TestCancellationRequestRejectRestores(t *testing.T) {
	orders, _, db := newOrderService(t)

	order, err := orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Pasta", Category: "mains", Quantity: 1, Price: 11},
	})
	require.NoError(t, err)
	itemID := order.OrderItems[0].ID

	require.NoError(t, orders.RequestCancellation(order.ID, itemID, "wrong dish"))

	var item models.OrderItem
	require.NoError(t, db.First(&item, itemID).Error)
	assert.Equal(t, models.ItemCancelRequested, item.Status)
	assert.Equal(t, models.ItemPending, item.PrevStatus)

	// A second request on the same item is refused.
	err = orders.RequestCancellation(order.ID, itemID, "again")
	assert.ErrorIs(t, err, utils.ErrInvalidState)

	require.NoError(t, orders.RejectCancellation(order.ID, itemID))
	require.NoError(t, db.First(&item, itemID).Error)
	assert.Equal(t, models.ItemPending, item.Status)
}

func TestCancellationApproveDropsItemFromTotal(t *testing.T) {
	orders, _, db := newOrderService(t)

	order, err := orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Pasta", Category: "mains", Quantity: 1, Price: 11},
		{Name: "Wine", Category: "drinks", Quantity: 1, Price: 7},
	})
	require.NoError(t, err)
	wineID := order.OrderItems[1].ID

	require.NoError(t, orders.RequestCancellation(order.ID, wineID, ""))
	require.NoError(t, orders.ApproveCancellation(order.ID, wineID))

	var item models.OrderItem
	require.NoError(t, db.First(&item, wineID).Error)
	assert.Equal(t, models.ItemCancelled, item.Status)

	updated, err := orders.GetOrder(order.ID)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, updated.TotalAmount, 0.001)

	// Approving without a pending request fails.
	err = orders.ApproveCancellation(order.ID, wineID)
	assert.ErrorIs(t, err, utils.ErrInvalidState)
}

func TestAddItemsOnClosedOrder(t *testing.T) {
	orders, _, db := newOrderService(t)

	order, err := orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Cake", Category: "desserts", Quantity: 1, Price: 6},
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.OrderCompleted).Error)

	_, err = orders.AddItems(order.ID, []services.NewOrderItem{
		{Name: "Coffee", Category: "drinks", Quantity: 1, Price: 3},
	})
	assert.ErrorIs(t, err, utils.ErrInvalidState)
}

func TestAcknowledgeFeedsWatchdogList(t *testing.T) {
	orders, _, _ := newOrderService(t)

	order, err := orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Salad", Category: "starters", Quantity: 1, Price: 8},
	})
	require.NoError(t, err)

	ids, err := orders.UnacknowledgedOrderIDs(0)
	require.NoError(t, err)
	assert.Contains(t, ids, order.ID)

	require.NoError(t, orders.Acknowledge(order.ID))

	ids, err = orders.UnacknowledgedOrderIDs(0)
	require.NoError(t, err)
	assert.NotContains(t, ids, order.ID)

	// Acknowledging twice is a no-op; an unknown order is not.
	assert.NoError(t, orders.Acknowledge(order.ID))
	assert.ErrorIs(t, orders.Acknowledge(9999), utils.ErrNotFound)
}

func TestUnacknowledgedSkipsYoungOrders(t *testing.T) {
	orders, _, _ := newOrderService(t)

	_, err := orders.PlaceOrder(nil, nil, []services.NewOrderItem{
		{Name: "Toast", Category: "starters", Quantity: 1, Price: 4},
	})
	require.NoError(t, err)

	ids, err := orders.UnacknowledgedOrderIDs(5 * time.Minute)
	require.NoError(t, err)
	assert.Empty(t, ids, "a freshly placed order has not aged past the threshold")
}

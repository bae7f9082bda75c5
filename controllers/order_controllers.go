package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// GetActiveOrders shows the kitchen view over REST, honoring the shared
// KDS filter the same way the websocket snapshot does.
func (oc *OrderController) GetActiveOrders(c *gin.Context) {
	category := c.Query("category")
	orders, err := oc.Orders.ActiveOrders(category)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active orders", orders)
}

// GetOrderByID shows one order with items.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	order, err := oc.Orders.GetOrder(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// PlaceOrder creates an order and seats it at a table.
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	var req struct {
		TableID *uint                   `json:"table_id"`
		Items   []services.NewOrderItem `json:"items" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var employeeID *uint
	if raw, exists := c.Get("user_id"); exists {
		id := raw.(uint)
		employeeID = &id
	}

	order, err := oc.Orders.PlaceOrder(req.TableID, employeeID, req.Items)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed", order)
}

// UpdateOrder patches status and items.
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	id, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status *string                    `json:"status"`
		Items  []services.OrderItemUpdate `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.UpdateOrder(id, req.Status, req.Items)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order updated", order)
}

// AddItems appends items to an active order.
func (oc *OrderController) AddItems(c *gin.Context) {
	id, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Items []services.NewOrderItem `json:"items" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.AddItems(id, req.Items)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Items added", order)
}

// PrepareOrder marks the whole order ready (kitchen action).
func (oc *OrderController) PrepareOrder(c *gin.Context) {
	id, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	order, err := oc.Orders.PrepareOrder(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order ready", order)
}

// PrepareItem marks one item ready (kitchen action).
func (oc *OrderController) PrepareItem(c *gin.Context) {
	id, err := paramID(c, "item_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	order, err := oc.Orders.PrepareItem(id)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item ready", order)
}

// AcknowledgeOrder records the kitchen has seen the order.
func (oc *OrderController) AcknowledgeOrder(c *gin.Context) {
	id, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := oc.Orders.Acknowledge(id); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order acknowledged", nil)
}

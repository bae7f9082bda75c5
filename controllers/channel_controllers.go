package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dinehub/pos-backend/config"
	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChannelController owns the websocket endpoints: kitchen display, waiters
// and the floor map. Each connection gets one goroutine for its read loop;
// KDS connections additionally get a watchdog goroutine.
type ChannelController struct {
	Hub              *ws.Hub
	Orders           *services.OrderService
	Registry         *services.TableRegistry
	WatchdogInterval time.Duration
}

func NewChannelController(hub *ws.Hub, orders *services.OrderService, registry *services.TableRegistry) *ChannelController {
	return &ChannelController{
		Hub:              hub,
		Orders:           orders,
		Registry:         registry,
		WatchdogInterval: config.WatchdogInterval(),
	}
}

// admit upgrades the socket and validates the bearer token exactly once. A
// bad token or wrong role closes the socket with a policy-violation code;
// there is no per-message re-authentication afterwards.
func (cc *ChannelController) admit(c *gin.Context, role string) (*websocket.Conn, *ws.Client, *utils.CustomClaims, bool) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return nil, nil, nil, false
	}

	claims, err := utils.ParseToken(c.Query("token"))
	if err != nil || (claims.Role != role && claims.Role != models.RoleAdmin) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			time.Now().Add(time.Second))
		conn.Close()
		return nil, nil, nil, false
	}

	return conn, ws.NewClient(conn), claims, true
}

// KDSChannel serves the kitchen display. The client receives a full active-
// order snapshot before any incremental event (snapshot-then-diff), then the
// read loop dispatches kitchen requests until disconnect.
func (cc *ChannelController) KDSChannel(c *gin.Context) {
	conn, client, _, ok := cc.admit(c, models.RoleKDS)
	if !ok {
		return
	}

	filter := cc.Hub.KDSFilter()
	err := cc.Hub.RegisterWithSnapshot(client, func() (ws.Event, error) {
		orders, err := cc.Orders.ActiveOrders(filter)
		if err != nil {
			return nil, err
		}
		return ws.OrderSnapshot{Orders: orders}, nil
	}, ws.ChannelKDS)
	if err != nil {
		utils.ErrorLogger.Printf("kds snapshot: %v", err)
		return
	}
	defer cc.Hub.Unregister(client)

	watchdog := ws.NewWatchdog(client, cc.Orders, cc.WatchdogInterval)
	watchdog.Start()
	defer watchdog.Stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		req, err := ws.DecodeRequest(raw)
		if err != nil {
			utils.ErrorLogger.Printf("kds request: %v", err)
			continue
		}
		cc.handleKDSRequest(req)
	}
}

func (cc *ChannelController) handleKDSRequest(req ws.Request) {
	switch r := req.(type) {
	case *ws.FilterRequest:
		cc.Hub.SetKDSFilter(r.Category)
		cc.Hub.Broadcast(ws.RefreshKDS{Filter: r.Category}, ws.ChannelKDS)
	case *ws.ApproveCancellationRequest:
		if err := cc.Orders.ApproveCancellation(r.OrderID, r.ItemID); err != nil {
			utils.ErrorLogger.Printf("approve cancellation: %v", err)
		}
	case *ws.RejectCancellationRequest:
		if err := cc.Orders.RejectCancellation(r.OrderID, r.ItemID); err != nil {
			utils.ErrorLogger.Printf("reject cancellation: %v", err)
		}
	case *ws.PrepareItemRequest:
		if _, err := cc.Orders.PrepareItem(r.ItemID); err != nil {
			utils.ErrorLogger.Printf("prepare item: %v", err)
		}
	case *ws.PrepareOrderRequest:
		if _, err := cc.Orders.PrepareOrder(r.OrderID); err != nil {
			utils.ErrorLogger.Printf("prepare order: %v", err)
		}
	case *ws.AcknowledgmentRequest:
		if err := cc.Orders.Acknowledge(r.OrderID); err != nil {
			utils.ErrorLogger.Printf("acknowledge order: %v", err)
		}
	default:
		// Waiter-only request on the kitchen channel; drop it.
		utils.ErrorLogger.Printf("kds channel: ignoring %s request", req.RequestType())
	}
}

// WaiterChannel serves the waiters. Each waiter is registered under the
// shared "waiter" channel and their personal employee channel so the kitchen
// can answer them directly.
func (cc *ChannelController) WaiterChannel(c *gin.Context) {
	conn, client, claims, ok := cc.admit(c, models.RoleWaiter)
	if !ok {
		return
	}

	err := cc.Hub.RegisterWithSnapshot(client, func() (ws.Event, error) {
		orders, err := cc.Orders.ActiveOrders("")
		if err != nil {
			return nil, err
		}
		return ws.OrderSnapshot{Orders: orders}, nil
	}, ws.ChannelWaiter, ws.EmployeeKey(claims.UserID))
	if err != nil {
		utils.ErrorLogger.Printf("waiter snapshot: %v", err)
		return
	}
	defer cc.Hub.Unregister(client)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		req, err := ws.DecodeRequest(raw)
		if err != nil {
			utils.ErrorLogger.Printf("waiter request: %v", err)
			continue
		}
		cc.handleWaiterRequest(req)
	}
}

func (cc *ChannelController) handleWaiterRequest(req ws.Request) {
	switch r := req.(type) {
	case *ws.UpdateOrderRequest:
		items := make([]services.OrderItemUpdate, 0, len(r.Items))
		for _, it := range r.Items {
			items = append(items, services.OrderItemUpdate{
				ID:       it.ID,
				Status:   it.Status,
				Quantity: it.Quantity,
				Notes:    it.Notes,
			})
		}
		if _, err := cc.Orders.UpdateOrder(r.OrderID, r.Status, items); err != nil {
			utils.ErrorLogger.Printf("update order: %v", err)
		}
	case *ws.AddItemsRequest:
		items := make([]services.NewOrderItem, 0, len(r.Items))
		for _, it := range r.Items {
			items = append(items, services.NewOrderItem{
				Name:     it.Name,
				Category: it.Category,
				Quantity: it.Quantity,
				Price:    it.Price,
				Notes:    it.Notes,
			})
		}
		if _, err := cc.Orders.AddItems(r.OrderID, items); err != nil {
			utils.ErrorLogger.Printf("add items: %v", err)
		}
	case *ws.CancelItemRequest:
		if err := cc.Orders.RequestCancellation(r.OrderID, r.ItemID, r.Reason); err != nil {
			utils.ErrorLogger.Printf("cancel item: %v", err)
		}
	default:
		// Kitchen-only request on the waiter channel; drop it.
		utils.ErrorLogger.Printf("waiter channel: ignoring %s request", req.RequestType())
	}
}

// FloorChannel serves the floor-map display. It is read-only: clients get a
// table snapshot and then incremental table_status_updated events.
func (cc *ChannelController) FloorChannel(c *gin.Context) {
	conn, client, _, ok := cc.admit(c, models.RoleFloor)
	if !ok {
		return
	}

	keys := []string{ws.ChannelFloor}
	if clientID := c.Query("client_id"); clientID != "" {
		keys = append(keys, ws.FloorClientKey(clientID))
	}
	err := cc.Hub.RegisterWithSnapshot(client, func() (ws.Event, error) {
		tables, err := cc.Registry.ListTables()
		if err != nil {
			return nil, err
		}
		return ws.TableSnapshot{Tables: tables}, nil
	}, keys...)
	if err != nil {
		utils.ErrorLogger.Printf("floor snapshot: %v", err)
		return
	}
	defer cc.Hub.Unregister(client)

	// Drain until disconnect; the floor map sends nothing the server acts on.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

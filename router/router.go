package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/controllers"
	"github.com/dinehub/pos-backend/middlewares"
	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/ws"
)

// SetupRouter wires the services and mounts the REST and websocket surface.
func SetupRouter(db *gorm.DB, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	registry := services.NewTableRegistry(db, hub)
	planner := services.NewReservationPlanner(db, hub, registry)
	orders := services.NewOrderService(db, hub, registry)

	userCtrl := controllers.NewUserController(db)
	floorCtrl := controllers.NewFloorController(db)
	tableCtrl := controllers.NewTableController(registry)
	reservationCtrl := controllers.NewReservationController(planner)
	orderCtrl := controllers.NewOrderController(orders)
	channelCtrl := controllers.NewChannelController(hub, orders, registry)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Login and register sit behind the strict limiter.
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Websocket channels authenticate in-handler at upgrade time.
	wsGroup := r.Group("/ws")
	{
		wsGroup.GET("/kds", channelCtrl.KDSChannel)
		wsGroup.GET("/waiter", channelCtrl.WaiterChannel)
		wsGroup.GET("/floor", channelCtrl.FloorChannel)
	}

	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	auth.POST("/logout", userCtrl.Logout)
	auth.GET("/profile", userCtrl.GetProfile)

	// FLOORS (admin)
	admin := auth.Group("/")
	admin.Use(middlewares.RequireRole(models.RoleAdmin))
	{
		admin.POST("/floors", floorCtrl.CreateFloor)
		admin.PATCH("/floors/:floor_id", floorCtrl.UpdateFloor)
		admin.DELETE("/floors/:floor_id", floorCtrl.DeleteFloor)

		admin.POST("/tables", tableCtrl.CreateTable)
		admin.PATCH("/tables/:table_id", tableCtrl.UpdateTable)
		admin.DELETE("/tables/:table_id", tableCtrl.DeleteTable)
	}
	auth.GET("/floors", floorCtrl.GetAllFloors)

	// TABLES
	auth.GET("/tables", tableCtrl.GetAllTables)
	auth.GET("/tables/:table_id", tableCtrl.GetTableByID)
	auth.PATCH("/tables/:table_id/status", tableCtrl.UpdateTableStatus)
	auth.POST("/tables/:table_id/order", tableCtrl.AssignOrder)
	auth.GET("/tables/:table_id/history", tableCtrl.GetTableHistory)
	auth.GET("/dashboard/stats", tableCtrl.GetDashboardStats)

	// RESERVATIONS
	auth.GET("/reservations/available", reservationCtrl.FindAvailableTables)
	auth.POST("/reservations", reservationCtrl.CreateReservation)
	auth.GET("/reservations", reservationCtrl.ListReservations)
	auth.GET("/reservations/code/:code", reservationCtrl.GetReservationByCode)
	auth.GET("/reservations/:reservation_id", reservationCtrl.GetReservation)
	auth.PATCH("/reservations/:reservation_id", reservationCtrl.UpdateReservation)
	auth.POST("/reservations/:reservation_id/confirm", reservationCtrl.ConfirmReservation)
	auth.POST("/reservations/:reservation_id/check-in", reservationCtrl.CheckIn)
	auth.POST("/reservations/:reservation_id/complete", reservationCtrl.CompleteReservation)
	auth.POST("/reservations/:reservation_id/cancel", reservationCtrl.CancelReservation)
	auth.POST("/reservations/:reservation_id/no-show", reservationCtrl.MarkNoShow)
	auth.GET("/reservations/:reservation_id/history", reservationCtrl.GetReservationHistory)

	// Sweeps and reminders for an external scheduler or notifier.
	auth.POST("/sweeps/promotions", reservationCtrl.RunPromotionSweep)
	auth.POST("/sweeps/no-shows", reservationCtrl.RunNoShowSweep)
	auth.GET("/reminders/due", reservationCtrl.GetDueReminders)
	auth.POST("/reminders/:reservation_id/sent", reservationCtrl.MarkReminderSent)

	// ORDERS
	auth.GET("/orders", orderCtrl.GetActiveOrders)
	auth.POST("/orders", orderCtrl.PlaceOrder)
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	auth.PATCH("/orders/:order_id", orderCtrl.UpdateOrder)
	auth.POST("/orders/:order_id/items", orderCtrl.AddItems)
	auth.POST("/orders/:order_id/ready", orderCtrl.PrepareOrder)
	auth.POST("/orders/:order_id/ack", orderCtrl.AcknowledgeOrder)
	auth.POST("/order-items/:item_id/ready", orderCtrl.PrepareItem)

	return r
}

package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/dinehub/pos-backend/config"
	"github.com/dinehub/pos-backend/middlewares"
	"github.com/dinehub/pos-backend/models"
	"github.com/dinehub/pos-backend/router"
	"github.com/dinehub/pos-backend/services"
	"github.com/dinehub/pos-backend/utils"
	"github.com/dinehub/pos-backend/ws"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	hub := ws.NewHub()

	registry := services.NewTableRegistry(db, hub)
	planner := services.NewReservationPlanner(db, hub, registry)

	// The in-process monitor drives the promotion and no-show sweeps. Shops
	// that schedule sweeps externally can disable it and hit the sweep
	// endpoints instead.
	if os.Getenv("DISABLE_RESERVATION_MONITOR") == "" {
		monitor := services.NewReservationMonitor(planner, config.SweepInterval())
		monitor.Start()
		defer monitor.Stop()
	}

	rateLimiter := middlewares.NewRateLimiter(50, 1)

	r := router.SetupRouter(db, hub)
	r.Use(rateLimiter.RateLimit())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Floor{},
		&models.Table{},
		&models.Reservation{},
		&models.TableStatusLog{},
		&models.ReservationStatusLog{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitDB opens the database from environment variables. With DB_HOST unset it
// falls back to a local SQLite file so the backend runs without MySQL.
func InitDB() (*gorm.DB, error) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "pos.db"
		}
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "3306"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		host,
		port,
		os.Getenv("DB_NAME"),
	)
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

// LookaheadWindow is how far before a reservation's start a vacant table is
// proactively flipped to RESERVED.
func LookaheadWindow() time.Duration {
	return minutesEnv("RESERVATION_LOOKAHEAD_MINUTES", 30)
}

// GracePeriod is how long past a reservation's start an unconfirmed booking
// survives before the no-show sweep claims it.
func GracePeriod() time.Duration {
	return minutesEnv("RESERVATION_GRACE_MINUTES", 30)
}

// WatchdogInterval drives the per-KDS-connection unacknowledged-order check.
func WatchdogInterval() time.Duration {
	return minutesEnv("KDS_WATCHDOG_MINUTES", 5)
}

// SweepInterval drives the optional in-process reservation monitor.
func SweepInterval() time.Duration {
	return minutesEnv("RESERVATION_SWEEP_MINUTES", 1)
}

func minutesEnv(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Duration(def) * time.Minute
}

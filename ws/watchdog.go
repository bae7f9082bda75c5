package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/dinehub/pos-backend/utils"
)

// OrderAger reports active orders that are older than the given age and still
// unacknowledged by the kitchen.
type OrderAger interface {
	UnacknowledgedOrderIDs(olderThan time.Duration) ([]uint, error)
}

// Watchdog nags one KDS connection about orders the kitchen has not
// acknowledged. One watchdog runs per KDS connection and dies with it.
type Watchdog struct {
	client   *Client
	orders   OrderAger
	Interval time.Duration
	Age      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewWatchdog(client *Client, orders OrderAger, interval time.Duration) *Watchdog {
	return &Watchdog{
		client:   client,
		orders:   orders,
		Interval: interval,
		Age:      interval,
		stop:     make(chan struct{}),
	}
}

func (w *Watchdog) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.check()
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop cancels the watchdog. Called when its connection disconnects.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Watchdog) check() {
	ids, err := w.orders.UnacknowledgedOrderIDs(w.Age)
	if err != nil {
		utils.ErrorLogger.Printf("watchdog: listing unacknowledged orders: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	notif := Notification{
		Message:  fmt.Sprintf("%d order(s) awaiting kitchen acknowledgment", len(ids)),
		OrderIDs: ids,
	}
	if err := w.client.SendEvent(notif); err != nil {
		// The read loop will notice the broken connection and unregister.
		utils.ErrorLogger.Printf("watchdog: notify failed: %v", err)
	}
}

package ws

import (
	"fmt"
	"sync"

	"github.com/dinehub/pos-backend/utils"
)

// Canonical channel keys. Employee and floor-client channels are derived with
// EmployeeKey / FloorClientKey.
const (
	ChannelKDS    = "kds"
	ChannelWaiter = "waiter"
	ChannelFloor  = "floormap"
)

// EmployeeKey is the personal channel of one employee.
func EmployeeKey(employeeID uint) string {
	return fmt.Sprintf("employee:%d", employeeID)
}

// FloorClientKey is the personal channel of one floor-map client.
func FloorClientKey(clientID string) string {
	return "client:" + clientID
}

// Hub maps channel keys to live clients. A single mutex guards registration,
// fanout and the shared KDS filter; broadcast never fails because one client
// went away, dead clients are pruned instead.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*Client]bool

	// kdsFilter narrows the active-order view for every KDS connection until
	// the next filter request replaces it.
	kdsFilter string
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]bool),
	}
}

// Register adds the client under every given key.
func (h *Hub) Register(c *Client, keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(c, keys)
}

func (h *Hub) addLocked(c *Client, keys []string) {
	for _, key := range keys {
		set, ok := h.channels[key]
		if !ok {
			set = make(map[*Client]bool)
			h.channels[key] = set
		}
		set[c] = true
	}
}

// RegisterWithSnapshot adds the client and writes its snapshot while holding
// the fanout lock, so a broadcast racing the connect queues behind the
// snapshot frame: the first message on the socket is the full state and every
// later frame is at least as new. The snapshot callback runs with the lock
// held and must not call back into the hub. On any failure the client is
// removed and closed.
func (h *Hub) RegisterWithSnapshot(c *Client, snapshot func() (Event, error), keys ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(c, keys)

	e, err := snapshot()
	if err != nil {
		h.removeLocked(c)
		return err
	}
	data, err := EncodeEvent(e)
	if err != nil {
		h.removeLocked(c)
		return err
	}
	if err := c.Send(data); err != nil {
		h.removeLocked(c)
		return err
	}
	return nil
}

// Unregister removes the client from every channel and closes it. Safe to call
// more than once, e.g. from both the read loop and an error handler.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	for key, set := range h.channels {
		if set[c] {
			delete(set, c)
		}
		if len(set) == 0 {
			delete(h.channels, key)
		}
	}
	c.Close()
}

// Broadcast sends the event to every client registered under any of the keys.
// Clients reachable through several keys receive the message once. A failed
// send prunes that client; the fanout itself never returns an error.
func (h *Hub) Broadcast(e Event, keys ...string) {
	data, err := EncodeEvent(e)
	if err != nil {
		utils.ErrorLogger.Printf("ws: encoding %s event failed: %v", e.EventType(), err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[*Client]bool)
	var dead []*Client
	for _, key := range keys {
		for c := range h.channels[key] {
			if seen[c] {
				continue
			}
			seen[c] = true
			if err := c.Send(data); err != nil {
				utils.ErrorLogger.Printf("ws: dropping client on %q after send error: %v", key, err)
				dead = append(dead, c)
			}
		}
	}
	for _, c := range dead {
		h.removeLocked(c)
	}
}

// SendPersonal targets exactly one channel, typically an employee or floor
// client key. Delivery is best effort, like Broadcast.
func (h *Hub) SendPersonal(e Event, key string) {
	h.Broadcast(e, key)
}

// SetKDSFilter replaces the shared KDS food-category filter.
func (h *Hub) SetKDSFilter(category string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kdsFilter = category
}

// KDSFilter returns the current shared filter ("" means unfiltered).
func (h *Hub) KDSFilter() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kdsFilter
}

// ClientCount reports how many clients are registered under a key.
func (h *Hub) ClientCount(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[key])
}

package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/kinkeeper/internal/metrics"
)

// Message is a change notification pushed to a household's live views.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Date   string         `json:"date,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// NewDateMessage is a Message about a whole calendar day, such as a milk day.
func NewDateMessage(entity, action, date string) Message {
	m := NewMessage(entity, action, 0, nil)
	m.Date = date
	return m
}

// Hub tracks live subscribers per household. A client only ever receives
// messages for the household it subscribed with.
type Hub struct {
	mu         sync.RWMutex
	households map[int64]map[*Client]struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		households: make(map[int64]map[*Client]struct{}),
		logger:     logger,
	}
}

// Register subscribes a client to its household.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.households[c.householdID]
	if !ok {
		set = make(map[*Client]struct{})
		h.households[c.householdID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	metrics.LiveSubscribers.Inc()
	h.logger.Debug("subscriber joined", "client", c.id, "household_id", c.householdID)
}

// Unregister removes a client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set := h.households[c.householdID]
	_, ok := set[c]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.households, c.householdID)
		}
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		metrics.LiveSubscribers.Dec()
		h.logger.Debug("subscriber left", "client", c.id, "household_id", c.householdID)
	}
}

// Broadcast sends msg to every subscriber of the household.
func (h *Hub) Broadcast(householdID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.households[householdID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("subscriber buffer full, dropping message", "client", c.id, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of subscribers across all households.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.households {
		n += len(set)
	}
	return n
}

// HouseholdCount returns the number of subscribers for one household.
func (h *Hub) HouseholdCount(householdID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.households[householdID])
}

package resolver

import (
	"fmt"
	"sync"
)

// HouseholdCache remembers each user's household id. Entries are a routing
// hint only; membership is always checked against the database before access.
type HouseholdCache struct {
	mu      sync.RWMutex
	entries map[int64]int64
}

func NewHouseholdCache() *HouseholdCache {
	return &HouseholdCache{entries: make(map[int64]int64)}
}

func (c *HouseholdCache) Set(userID, householdID int64) {
	c.mu.Lock()
	c.entries[userID] = householdID
	c.mu.Unlock()
}

// Clear drops the user's entry. Call on sign-out and on leaving a household.
func (c *HouseholdCache) Clear(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func (c *HouseholdCache) Get(userID int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[userID]
	return id, ok
}

// GetOrRefresh returns the cached household id, falling back to the user's
// profile. It reports false when the user has no household.
func (c *HouseholdCache) GetOrRefresh(userID int64, profiles ProfileSource) (int64, bool, error) {
	if id, ok := c.Get(userID); ok {
		return id, true, nil
	}

	p, err := profiles.Get(userID)
	if err != nil {
		return 0, false, fmt.Errorf("refresh household: %w", err)
	}
	if !p.HasHousehold() {
		return 0, false, nil
	}

	c.Set(userID, *p.HouseholdID)
	return *p.HouseholdID, true, nil
}

// Package events fans household changes out to live subscribers and,
// when configured, to an AMQP exchange.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entities that produce events.
const (
	EntityExpense = "expense"
	EntityMilkman = "milkman"
	EntityMilkDay = "milk_day"
)

// Actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionSaved   = "saved"
)

// Event describes one change to a household's data.
type Event struct {
	HouseholdID int64     `json:"household_id"`
	Entity      string    `json:"entity"`
	Action      string    `json:"action"`
	ID          int64     `json:"id,omitempty"`
	Date        string    `json:"date,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func New(householdID int64, entity, action string, id int64, actor string) Event {
	return Event{
		HouseholdID: householdID,
		Entity:      entity,
		Action:      action,
		ID:          id,
		Actor:       actor,
		Timestamp:   time.Now().UTC(),
	}
}

// MilkDay builds the event for a saved milk day.
func MilkDay(householdID int64, date, actor string, removed bool) Event {
	action := ActionSaved
	if removed {
		action = ActionDeleted
	}
	e := New(householdID, EntityMilkDay, action, 0, actor)
	e.Date = date
	return e
}

// Type is "<entity>_<action>".
func (e Event) Type() string {
	return e.Entity + "_" + e.Action
}

// RoutingKey places the event under household.<id>.<entity>.<action> so
// consumers can bind per household or per entity.
func (e Event) RoutingKey() string {
	return fmt.Sprintf("household.%d.%s.%s", e.HouseholdID, e.Entity, e.Action)
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

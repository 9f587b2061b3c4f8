package events

import (
	"context"
	"log/slog"

	"github.com/dukerupert/kinkeeper/internal/websocket"
)

// Broadcaster delivers messages to a household's live subscribers.
type Broadcaster interface {
	Broadcast(householdID int64, msg websocket.Message)
}

// Fanout sends each event to live subscribers and the publisher. Neither
// delivery can fail the write that produced the event.
type Fanout struct {
	hub       Broadcaster
	publisher Publisher
	logger    *slog.Logger
}

func NewFanout(hub Broadcaster, publisher Publisher, logger *slog.Logger) *Fanout {
	if publisher == nil {
		publisher = Nop{}
	}
	return &Fanout{hub: hub, publisher: publisher, logger: logger}
}

func (f *Fanout) Emit(ctx context.Context, e Event) {
	if f.hub != nil {
		msg := websocket.NewMessage(e.Entity, e.Action, e.ID, nil)
		msg.Date = e.Date
		f.hub.Broadcast(e.HouseholdID, msg)
	}

	if err := f.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		f.logger.Warn("publish event", "type", e.Type(), "household_id", e.HouseholdID, "error", err)
	}
}

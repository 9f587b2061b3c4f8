package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukerupert/kinkeeper/internal/websocket"
)

type sentMessage struct {
	householdID int64
	msg         websocket.Message
}

type fakeHub struct{ sent []sentMessage }

func (h *fakeHub) Broadcast(householdID int64, msg websocket.Message) {
	h.sent = append(h.sent, sentMessage{householdID, msg})
}

type fakePublisher struct {
	events []Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func TestEventRoutingKey(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{New(3, EntityExpense, ActionCreated, 10, "a@b.c"), "household.3.expense.created"},
		{MilkDay(3, "2024-03-01", "a@b.c", false), "household.3.milk_day.saved"},
		{MilkDay(3, "2024-03-01", "a@b.c", true), "household.3.milk_day.deleted"},
	}
	for _, tt := range tests {
		if got := tt.event.RoutingKey(); got != tt.want {
			t.Errorf("RoutingKey() = %q, want %q", got, tt.want)
		}
	}
}

func TestEventJSON(t *testing.T) {
	e := MilkDay(5, "2024-03-01", "a@b.c", false)
	data, err := e.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := FromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Date != "2024-03-01" || got.HouseholdID != 5 || got.Type() != "milk_day_saved" {
		t.Errorf("got %+v", got)
	}
}

func TestFanoutEmit(t *testing.T) {
	hub := &fakeHub{}
	pub := &fakePublisher{}
	f := NewFanout(hub, pub, slog.Default())

	f.Emit(context.Background(), MilkDay(2, "2024-03-01", "a@b.c", false))

	if len(hub.sent) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(hub.sent))
	}
	if hub.sent[0].householdID != 2 {
		t.Errorf("household = %d, want 2", hub.sent[0].householdID)
	}
	if hub.sent[0].msg.Type != "milk_day_saved" || hub.sent[0].msg.Date != "2024-03-01" {
		t.Errorf("msg = %+v", hub.sent[0].msg)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.events))
	}
}

func TestFanoutPublishErrorIsSwallowed(t *testing.T) {
	hub := &fakeHub{}
	pub := &fakePublisher{err: errors.New("broker down")}
	f := NewFanout(hub, pub, slog.Default())

	f.Emit(context.Background(), New(1, EntityMilkman, ActionDeleted, 4, "a@b.c"))

	if len(hub.sent) != 1 {
		t.Errorf("live subscribers should still be notified")
	}
}

func TestFanoutDefaultsToNop(t *testing.T) {
	f := NewFanout(nil, nil, slog.Default())
	f.Emit(context.Background(), New(1, EntityExpense, ActionDeleted, 1, ""))
}

func TestMultiPublishesToAll(t *testing.T) {
	ok := &fakePublisher{}
	failing := &fakePublisher{err: errors.New("broker down")}
	m := Multi{failing, ok}

	err := m.Publish(context.Background(), New(1, EntityExpense, ActionCreated, 2, "a@b.c"))
	if err == nil {
		t.Fatal("expected the failing publisher's error")
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Errorf("every publisher should see the event: ok=%d failing=%d", len(ok.events), len(failing.events))
	}
}

package push

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/dukerupert/kinkeeper/internal/events"
	"github.com/dukerupert/kinkeeper/internal/metrics"
	"github.com/dukerupert/kinkeeper/internal/model"
)

const queueSize = 64

type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

type Recipients interface {
	ListRecipients(householdID int64, exceptEmail string) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Notifier turns household events into push notifications for the other
// members. Publish only enqueues; Run does the sending.
type Notifier struct {
	sender Sender
	subs   Recipients
	queue  chan events.Event
	logger *slog.Logger
}

func NewNotifier(sender Sender, subs Recipients, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		subs:   subs,
		queue:  make(chan events.Event, queueSize),
		logger: logger,
	}
}

// PayloadFor reports the notification for e, if it warrants one.
func PayloadFor(e events.Event) (Payload, bool) {
	switch {
	case e.Entity == events.EntityExpense && e.Action == events.ActionCreated:
		return Payload{
			Title: "New expense",
			Body:  e.Actor + " added an expense",
			URL:   "/dashboard",
			Tag:   "expense-" + strconv.FormatInt(e.ID, 10),
		}, true
	case e.Entity == events.EntityMilkDay && e.Action == events.ActionSaved:
		return Payload{
			Title: "Milk log updated",
			Body:  e.Actor + " updated milk for " + e.Date,
			URL:   "/dashboard",
			Tag:   "milk-" + e.Date,
		}, true
	}
	return Payload{}, false
}

// Publish queues e for delivery. A full queue drops the event.
func (n *Notifier) Publish(_ context.Context, e events.Event) error {
	if _, ok := PayloadFor(e); !ok {
		return nil
	}
	select {
	case n.queue <- e:
	default:
		metrics.PushSends.WithLabelValues("dropped").Inc()
		n.logger.Warn("push queue full, dropping event", "type", e.Type(), "household_id", e.HouseholdID)
	}
	return nil
}

func (n *Notifier) Close() error { return nil }

// Run delivers queued events until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-n.queue:
			n.deliver(ctx, e)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, e events.Event) {
	payload, _ := PayloadFor(e)

	subs, err := n.subs.ListRecipients(e.HouseholdID, e.Actor)
	if err != nil {
		n.logger.Error("list push recipients", "household_id", e.HouseholdID, "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			metrics.PushSends.WithLabelValues("sent").Inc()
		case errors.Is(err, ErrExpired):
			metrics.PushSends.WithLabelValues("expired").Inc()
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "id", sub.ID, "error", err)
			}
		default:
			metrics.PushSends.WithLabelValues("failed").Inc()
			n.logger.Warn("push send failed", "id", sub.ID, "user_id", sub.UserID, "error", err)
		}
	}
}

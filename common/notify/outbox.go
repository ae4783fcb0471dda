package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/models"
	"github.com/shopfloor/planner/common/queue"
	"github.com/shopfloor/planner/common/redis"
)

// Stream and topic names for committed planner side effects
const (
	StreamEvents       = "planner:events"
	StreamShortfalls   = "planner:shortfalls"
	TopicNotifications = "shortfall_notifications"
)

// Event is a card state-change record published for dashboards and downstream
// consumers after a transition commits
type Event struct {
	Type    string         `json:"type"`
	OrderID uuid.UUID      `json:"order_id"`
	CardID  uuid.UUID      `json:"card_id"`
	Fields  map[string]any `json:"fields,omitempty"`
	At      time.Time      `json:"at"`
}

// Batch accumulates side effects during a locked graph mutation. Nothing in a
// batch leaves the process until Dispatch runs, after the state mutation has
// committed; an aborted operation simply drops the batch.
type Batch struct {
	notifications []*Notification
	events        []*Event
}

// NewBatch creates an empty side-effect batch
func NewBatch() *Batch {
	return &Batch{}
}

// AddNotification queues a shortfall notification
func (b *Batch) AddNotification(cardID uuid.UUID, shortfall models.MaterialShortfall, kind Kind) {
	b.notifications = append(b.notifications, &Notification{
		JobCardID: cardID,
		Kind:      kind,
		Shortfall: shortfall,
		At:        time.Now(),
	})
}

// AddEvent queues a state-change event
func (b *Batch) AddEvent(eventType string, orderID, cardID uuid.UUID, fields map[string]any) {
	b.events = append(b.events, &Event{
		Type:    eventType,
		OrderID: orderID,
		CardID:  cardID,
		Fields:  fields,
		At:      time.Now(),
	})
}

// Empty reports whether the batch holds no side effects
func (b *Batch) Empty() bool {
	return len(b.notifications) == 0 && len(b.events) == 0
}

// Notifications returns the queued notifications
func (b *Batch) Notifications() []*Notification {
	return b.notifications
}

// Events returns the queued events
func (b *Batch) Events() []*Event {
	return b.events
}

// Outbox dispatches committed side effects to Redis streams, the in-process
// queue and the notifier. Dispatch failures are logged, never propagated: the
// state transition has already committed.
type Outbox struct {
	redis    *redis.Client
	queue    queue.Queue
	notifier Notifier
	log      *logger.Logger
}

// OutboxOpts contains options for creating an Outbox. Redis and Queue may be
// nil; the corresponding sink is skipped.
type OutboxOpts struct {
	Redis    *redis.Client
	Queue    queue.Queue
	Notifier Notifier
	Logger   *logger.Logger
}

// NewOutbox creates an outbox
func NewOutbox(opts *OutboxOpts) *Outbox {
	return &Outbox{
		redis:    opts.Redis,
		queue:    opts.Queue,
		notifier: opts.Notifier,
		log:      opts.Logger,
	}
}

// Dispatch publishes a committed batch
func (o *Outbox) Dispatch(ctx context.Context, batch *Batch) {
	if batch == nil || batch.Empty() {
		return
	}

	for _, event := range batch.events {
		payload, err := json.Marshal(event)
		if err != nil {
			o.log.Error("failed to marshal event", "type", event.Type, "error", err)
			continue
		}
		if o.redis != nil {
			if _, err := o.redis.AddToStream(ctx, StreamEvents, map[string]interface{}{
				"type":    event.Type,
				"payload": string(payload),
			}); err != nil {
				o.log.Error("failed to publish event", "type", event.Type, "error", err)
			}
		}
		if o.queue != nil {
			if err := o.queue.Publish(ctx, StreamEvents, event.CardID.String(), payload); err != nil {
				o.log.Error("failed to queue event", "type", event.Type, "error", err)
			}
		}
	}

	for _, notification := range batch.notifications {
		payload, err := json.Marshal(notification)
		if err != nil {
			o.log.Error("failed to marshal notification", "card_id", notification.JobCardID, "error", err)
			continue
		}
		if o.redis != nil {
			if _, err := o.redis.AddToStream(ctx, StreamShortfalls, map[string]interface{}{
				"kind":    string(notification.Kind),
				"payload": string(payload),
			}); err != nil {
				o.log.Error("failed to publish notification", "card_id", notification.JobCardID, "error", err)
			}
		}
		if o.queue != nil {
			if err := o.queue.Publish(ctx, TopicNotifications, notification.JobCardID.String(), payload); err != nil {
				o.log.Error("failed to queue notification", "card_id", notification.JobCardID, "error", err)
			}
		}
		if o.notifier != nil {
			if err := o.notifier.Notify(ctx, notification); err != nil {
				o.log.Error("notifier failed", "card_id", notification.JobCardID, "error", err)
			}
		}
	}
}

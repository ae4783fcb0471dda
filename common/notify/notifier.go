package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/models"
)

// Kind classifies a shortfall notification
type Kind string

const (
	KindInitial  Kind = "INITIAL"
	KindReminder Kind = "REMINDER"
	KindResolved Kind = "RESOLVED"
)

// Notification is one shortfall message bound for the stores/purchase team.
// Delivery transport (email/SMS) is an external collaborator; the planner
// stops at this boundary.
type Notification struct {
	JobCardID uuid.UUID                `json:"job_card_id"`
	Kind      Kind                     `json:"kind"`
	Shortfall models.MaterialShortfall `json:"shortfall"`
	At        time.Time                `json:"at"`
}

// Notifier emits shortfall notifications. Fire-and-forget: invoked from the
// outbox after a committed transition, never inside the cascade's critical
// section.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// LogNotifier writes notifications to the service log, the development
// stand-in for a real delivery transport
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the notification
func (n *LogNotifier) Notify(ctx context.Context, notification *Notification) error {
	n.log.Info("shortfall notification",
		"card_id", notification.JobCardID,
		"kind", notification.Kind,
		"material_id", notification.Shortfall.MaterialID,
		"shortfall", notification.Shortfall.Shortfall.String(),
		"unit", notification.Shortfall.Unit)
	return nil
}

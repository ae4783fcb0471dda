package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopfloor/planner/common/config"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/models"
)

// ShortfallSource lists unresolved shortfalls and records reminder sends.
// Implemented by the repository layer.
type ShortfallSource interface {
	ListStale(ctx context.Context, olderThan time.Time) ([]*models.MaterialShortfall, error)
	BumpReminder(ctx context.Context, cardID uuid.UUID, at time.Time) error
}

// Reminder re-emits REMINDER notifications for shortfalls that have been
// outstanding past the configured age. The cadence is timer-driven and lives
// entirely outside the cascade's critical section.
type Reminder struct {
	cron        *cron.Cron
	source      ShortfallSource
	outbox      *Outbox
	log         *logger.Logger
	schedule    string
	remindAfter time.Duration
}

// NewReminder creates a reminder scheduler
func NewReminder(source ShortfallSource, outbox *Outbox, cfg config.NotifyConfig, log *logger.Logger) *Reminder {
	return &Reminder{
		cron:        cron.New(),
		source:      source,
		outbox:      outbox,
		log:         log,
		schedule:    cfg.ReminderSchedule,
		remindAfter: cfg.RemindAfter,
	}
}

// Start registers the cron entry and begins scheduling
func (r *Reminder) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		r.run(ctx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info("shortfall reminder scheduler started", "schedule", r.schedule)
	return nil
}

// Stop stops the scheduler, waiting for a running sweep to finish
func (r *Reminder) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("shortfall reminder scheduler stopped")
}

// run performs one reminder sweep
func (r *Reminder) run(ctx context.Context) {
	cutoff := time.Now().Add(-r.remindAfter)

	stale, err := r.source.ListStale(ctx, cutoff)
	if err != nil {
		r.log.Error("failed to list stale shortfalls", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	batch := NewBatch()
	now := time.Now()
	for _, shortfall := range stale {
		if err := r.source.BumpReminder(ctx, shortfall.CardID, now); err != nil {
			r.log.Error("failed to bump reminder count",
				"card_id", shortfall.CardID, "error", err)
			continue
		}
		batch.AddNotification(shortfall.CardID, *shortfall, KindReminder)
	}

	r.outbox.Dispatch(ctx, batch)
	r.log.Info("shortfall reminder sweep complete", "reminded", len(stale))
}

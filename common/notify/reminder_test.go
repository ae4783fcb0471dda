package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfloor/planner/common/config"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/models"
)

type fakeSource struct {
	stale  []*models.MaterialShortfall
	bumped []uuid.UUID
}

func (s *fakeSource) ListStale(ctx context.Context, olderThan time.Time) ([]*models.MaterialShortfall, error) {
	return s.stale, nil
}

func (s *fakeSource) BumpReminder(ctx context.Context, cardID uuid.UUID, at time.Time) error {
	s.bumped = append(s.bumped, cardID)
	return nil
}

type capturingNotifier struct {
	sent []*Notification
}

func (n *capturingNotifier) Notify(ctx context.Context, notification *Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}

func TestReminderSweep(t *testing.T) {
	log := logger.New("error", "json")
	cardID := uuid.New()
	source := &fakeSource{stale: []*models.MaterialShortfall{{
		CardID:     cardID,
		MaterialID: "MAT-3",
		Required:   decimal.NewFromInt(8),
		Shortfall:  decimal.NewFromInt(8),
		Unit:       "kg",
		NotifiedAt: time.Now().Add(-24 * time.Hour),
	}}}
	notifier := &capturingNotifier{}
	outbox := NewOutbox(&OutboxOpts{Notifier: notifier, Logger: log})

	reminder := NewReminder(source, outbox, config.NotifyConfig{
		ReminderSchedule: "@hourly",
		RemindAfter:      6 * time.Hour,
	}, log)

	reminder.run(context.Background())

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, KindReminder, notifier.sent[0].Kind)
	assert.Equal(t, cardID, notifier.sent[0].JobCardID)
	assert.Equal(t, []uuid.UUID{cardID}, source.bumped)
}

func TestReminderSweep_NothingStale(t *testing.T) {
	log := logger.New("error", "json")
	notifier := &capturingNotifier{}
	outbox := NewOutbox(&OutboxOpts{Notifier: notifier, Logger: log})
	reminder := NewReminder(&fakeSource{}, outbox, config.NotifyConfig{
		ReminderSchedule: "@hourly",
		RemindAfter:      time.Hour,
	}, log)

	reminder.run(context.Background())

	assert.Empty(t, notifier.sent)
}

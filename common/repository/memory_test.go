package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfloor/planner/common/models"
)

func storedCard(orderID uuid.UUID, number string) *models.JobCard {
	return &models.JobCard{
		CardID:     uuid.New(),
		CardNumber: number,
		OrderID:    orderID,
		Kind:       models.KindProcess,
		Quantity:   10,
		Status:     models.StatusPending,
	}
}

func TestMemoryStore_CommitValidatesBeforeApplying(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	orderID := uuid.New()
	card := storedCard(orderID, "A")

	// An update for an unknown card fails the whole mutation, including the
	// insert that travels with it
	err := store.Commit(ctx, &Mutation{
		OrderID:      orderID,
		NewCards:     []*models.JobCard{card},
		UpdatedCards: []*models.JobCard{storedCard(orderID, "ghost")},
	})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetCard(ctx, card.CardID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ClonesOnReadAndWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	orderID := uuid.New()
	card := storedCard(orderID, "A")

	require.NoError(t, store.Commit(ctx, &Mutation{
		OrderID:  orderID,
		NewCards: []*models.JobCard{card},
	}))

	// Mutating a loaded card must not leak into the store
	loaded, err := store.GetCard(ctx, card.CardID)
	require.NoError(t, err)
	loaded.Status = models.StatusCompleted

	fresh, err := store.GetCard(ctx, card.CardID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, fresh.Status)
}

func TestMemoryStore_ShortfallLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	orderID := uuid.New()
	card := storedCard(orderID, "A")

	shortfall := &models.MaterialShortfall{
		CardID:     card.CardID,
		MaterialID: "MAT-5",
		Required:   decimal.NewFromInt(4),
		Shortfall:  decimal.NewFromInt(4),
		Unit:       "kg",
		NotifiedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, store.Commit(ctx, &Mutation{
		OrderID:          orderID,
		NewCards:         []*models.JobCard{card},
		UpsertShortfalls: []*models.MaterialShortfall{shortfall},
	}))

	stale, err := store.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, store.BumpReminder(ctx, card.CardID, time.Now()))
	got, ok := store.Shortfall(card.CardID)
	require.True(t, ok)
	assert.Equal(t, 1, got.ReminderCount)

	// A fresh reminder removes it from the stale set
	stale, err = store.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, store.Commit(ctx, &Mutation{
		OrderID:              orderID,
		DeleteShortfallCards: []uuid.UUID{card.CardID},
	}))
	_, ok = store.Shortfall(card.CardID)
	assert.False(t, ok)
}

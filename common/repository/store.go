package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/models"
)

// ErrNotFound is returned when a card or order graph does not exist
var ErrNotFound = errors.New("not found")

// Mutation is one atomic commit of engine state: the cards changed by a
// cascade, any rework cards and edges inserted, the audit patch, and the
// shortfall records touched along the way. Everything in a Mutation commits
// or aborts together.
type Mutation struct {
	OrderID              uuid.UUID
	UpdatedCards         []*models.JobCard
	NewCards             []*models.JobCard
	NewEdges             []models.DependencyEdge
	Patch                *models.GraphPatch
	UpsertShortfalls     []*models.MaterialShortfall
	DeleteShortfallCards []uuid.UUID
}

// Empty reports whether the mutation carries no changes
func (m *Mutation) Empty() bool {
	return len(m.UpdatedCards) == 0 && len(m.NewCards) == 0 && len(m.NewEdges) == 0 &&
		m.Patch == nil && len(m.UpsertShortfalls) == 0 && len(m.DeleteShortfallCards) == 0
}

// Store holds job card records and their dependency edges, providing atomic
// reads of an order's graph and atomic commits of engine mutations
type Store interface {
	// LoadOrderGraph returns all cards and edges of an order
	LoadOrderGraph(ctx context.Context, orderID uuid.UUID) ([]*models.JobCard, []models.DependencyEdge, error)

	// GetCard returns a single card by id
	GetCard(ctx context.Context, cardID uuid.UUID) (*models.JobCard, error)

	// Commit applies a mutation atomically
	Commit(ctx context.Context, m *Mutation) error
}

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/models"
)

// MemoryStore is an in-memory Store used in development and tests. It hands
// out clones so callers can mutate freely and abort without touching the
// stored graph.
type MemoryStore struct {
	mu         sync.RWMutex
	cards      map[uuid.UUID]*models.JobCard
	cardOrder  []uuid.UUID
	edges      map[uuid.UUID][]models.DependencyEdge // keyed by order
	patches    map[uuid.UUID][]*models.GraphPatch
	shortfalls map[uuid.UUID]*models.MaterialShortfall
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cards:      make(map[uuid.UUID]*models.JobCard),
		edges:      make(map[uuid.UUID][]models.DependencyEdge),
		patches:    make(map[uuid.UUID][]*models.GraphPatch),
		shortfalls: make(map[uuid.UUID]*models.MaterialShortfall),
	}
}

// LoadOrderGraph returns clones of all cards and edges of an order
func (s *MemoryStore) LoadOrderGraph(ctx context.Context, orderID uuid.UUID) ([]*models.JobCard, []models.DependencyEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cards []*models.JobCard
	for _, id := range s.cardOrder {
		card := s.cards[id]
		if card.OrderID == orderID {
			cards = append(cards, card.Clone())
		}
	}
	if len(cards) == 0 {
		return nil, nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	edges := append([]models.DependencyEdge(nil), s.edges[orderID]...)
	return cards, edges, nil
}

// GetCard returns a clone of a single card
func (s *MemoryStore) GetCard(ctx context.Context, cardID uuid.UUID) (*models.JobCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, exists := s.cards[cardID]
	if !exists {
		return nil, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	return card.Clone(), nil
}

// Commit applies a mutation atomically
func (s *MemoryStore) Commit(ctx context.Context, m *Mutation) error {
	if m.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate first so a bad mutation leaves nothing applied
	for _, card := range m.NewCards {
		if _, exists := s.cards[card.CardID]; exists {
			return fmt.Errorf("card %s already exists", card.CardID)
		}
	}
	for _, card := range m.UpdatedCards {
		if _, exists := s.cards[card.CardID]; !exists {
			return fmt.Errorf("card %s: %w", card.CardID, ErrNotFound)
		}
	}

	for _, card := range m.NewCards {
		s.cards[card.CardID] = card.Clone()
		s.cardOrder = append(s.cardOrder, card.CardID)
	}
	s.edges[m.OrderID] = append(s.edges[m.OrderID], m.NewEdges...)
	for _, card := range m.UpdatedCards {
		s.cards[card.CardID] = card.Clone()
	}
	if m.Patch != nil {
		s.patches[m.Patch.OrderID] = append(s.patches[m.Patch.OrderID], m.Patch)
	}
	for _, shortfall := range m.UpsertShortfalls {
		existing, ok := s.shortfalls[shortfall.CardID]
		if ok {
			existing.Required = shortfall.Required
			existing.Available = shortfall.Available
			existing.Shortfall = shortfall.Shortfall
		} else {
			s.shortfalls[shortfall.CardID] = shortfall.Clone()
		}
	}
	for _, cardID := range m.DeleteShortfallCards {
		delete(s.shortfalls, cardID)
	}
	return nil
}

// Patches returns the committed graph patches of an order
func (s *MemoryStore) Patches(orderID uuid.UUID) []*models.GraphPatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.GraphPatch(nil), s.patches[orderID]...)
}

// Shortfall returns the stored shortfall for a card, if any
func (s *MemoryStore) Shortfall(cardID uuid.UUID) (*models.MaterialShortfall, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.shortfalls[cardID]
	if !ok {
		return nil, false
	}
	return sf.Clone(), true
}

// ListStale lists shortfalls whose last notification is older than the cutoff
func (s *MemoryStore) ListStale(ctx context.Context, olderThan time.Time) ([]*models.MaterialShortfall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*models.MaterialShortfall
	for _, sf := range s.shortfalls {
		last := sf.NotifiedAt
		if sf.LastReminderAt != nil {
			last = *sf.LastReminderAt
		}
		if last.Before(olderThan) {
			stale = append(stale, sf.Clone())
		}
	}
	return stale, nil
}

// BumpReminder records a reminder send
func (s *MemoryStore) BumpReminder(ctx context.Context, cardID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, ok := s.shortfalls[cardID]
	if !ok {
		return fmt.Errorf("shortfall for card %s: %w", cardID, ErrNotFound)
	}
	sf.ReminderCount++
	t := at
	sf.LastReminderAt = &t
	return nil
}

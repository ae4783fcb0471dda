package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/models"
	"github.com/shopfloor/planner/common/notify"
)

// cascadeFrom walks the dependents of a card breadth-first after its
// terminal-ness or material state changed, re-evaluating each visited guard
// exactly once per walk. The graph is acyclic, so the walk terminates in at
// most |V| visits.
func (s *ExecutionService) cascadeFrom(ctx context.Context, ss *session, startID uuid.UUID) (int, error) {
	visited := map[uuid.UUID]bool{startID: true}
	var queue []uuid.UUID
	for _, dep := range ss.g.Dependents(startID) {
		visited[dep] = true
		queue = append(queue, dep)
	}

	visits := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		card, ok := ss.g.Card(id)
		if !ok {
			continue
		}
		visits++

		changed, err := s.evaluateReadiness(ctx, ss, card)
		if err != nil {
			return visits, err
		}
		if !changed {
			continue
		}
		for _, dep := range ss.g.Dependents(id) {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return visits, nil
}

// reevaluateAll re-runs every non-terminal guard in topological order. Used
// after order planning and after graph edits, where a single upstream-first
// pass reaches the fixpoint directly.
func (s *ExecutionService) reevaluateAll(ctx context.Context, ss *session) error {
	for _, id := range ss.g.TopologicalOrder() {
		card, ok := ss.g.Card(id)
		if !ok {
			continue
		}
		if _, err := s.evaluateReadiness(ctx, ss, card); err != nil {
			return err
		}
	}
	return nil
}

// evaluateReadiness re-derives one card's eligibility from its prerequisite
// states and material availability. Terminal, in-progress and paused cards
// are left alone: COMPLETED never regresses, and started work is not pulled
// back by upstream edits.
func (s *ExecutionService) evaluateReadiness(ctx context.Context, ss *session, card *models.JobCard) (bool, error) {
	switch card.Status {
	case models.StatusPending, models.StatusBlocked, models.StatusPendingMaterial, models.StatusReady:
	default:
		return false, nil
	}

	if prereqID, unsatisfiable := ss.g.UnsatisfiablePrerequisite(card.CardID); unsatisfiable {
		if card.Status == models.StatusBlocked && card.Unsatisfiable {
			return false, nil
		}
		from := card.Status
		card.Status = models.StatusBlocked
		card.Unsatisfiable = true
		ss.touch(card)
		ss.markChanged(card.CardID)
		ss.batch.AddEvent("card_blocked_unsatisfiable", ss.orderID, card.CardID, map[string]any{
			"from":         string(from),
			"prerequisite": prereqID.String(),
		})
		return true, nil
	}

	// A rework edge upstream may have cleared a previously unsatisfiable gate
	wasUnsatisfiable := card.Unsatisfiable
	card.Unsatisfiable = false

	satisfied, err := ss.g.IsPrerequisiteSatisfied(card.CardID, s.eval)
	if err != nil {
		card.Unsatisfiable = wasUnsatisfiable
		return false, err
	}

	var target models.CardStatus
	if !satisfied {
		target = models.StatusBlocked
	} else {
		target, err = s.materialGate(ctx, ss, card)
		if err != nil {
			// Oracle failure: the card keeps its last known state and the
			// operation surfaces the error instead of a silent partial result
			card.Unsatisfiable = wasUnsatisfiable
			return false, err
		}
	}

	if card.Status == target && wasUnsatisfiable == card.Unsatisfiable {
		return false, nil
	}

	from := card.Status
	card.Status = target
	ss.touch(card)
	ss.markChanged(card.CardID)
	ss.batch.AddEvent("card_status_changed", ss.orderID, card.CardID, map[string]any{
		"from": string(from),
		"to":   string(target),
	})
	return true, nil
}

// materialGate resolves the card's material requirement and returns READY or
// PENDING_MATERIAL, maintaining the shortfall record and its notifications
func (s *ExecutionService) materialGate(ctx context.Context, ss *session, card *models.JobCard) (models.CardStatus, error) {
	if card.Material == nil {
		card.MaterialStatus = models.MaterialAvailable
		return models.StatusReady, nil
	}

	result, err := s.oracle.Check(ctx, *card.Material)
	if err != nil {
		return "", err
	}

	card.MaterialStatus = result.Status

	if result.Status == models.MaterialAvailable {
		if card.Shortfall != nil {
			// Shortfalls are deleted on resolution, not archived
			resolved := *card.Shortfall
			card.Shortfall = nil
			ss.mut.DeleteShortfallCards = append(ss.mut.DeleteShortfallCards, card.CardID)
			ss.batch.AddNotification(card.CardID, resolved, notify.KindResolved)
		}
		return models.StatusReady, nil
	}

	if card.Shortfall == nil {
		card.Shortfall = &models.MaterialShortfall{
			CardID:     card.CardID,
			MaterialID: card.Material.MaterialID,
			Required:   card.Material.RequiredQty,
			Available:  result.Available,
			Shortfall:  result.Shortfall,
			Unit:       card.Material.Unit,
			NotifiedAt: ss.now,
		}
		ss.batch.AddNotification(card.CardID, *card.Shortfall, notify.KindInitial)
	} else {
		card.Shortfall.Available = result.Available
		card.Shortfall.Shortfall = result.Shortfall
	}
	ss.mut.UpsertShortfalls = append(ss.mut.UpsertShortfalls, card.Shortfall.Clone())

	return models.StatusPendingMaterial, nil
}

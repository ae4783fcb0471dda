package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopfloor/planner/common/graph"
	"github.com/shopfloor/planner/common/models"
	"github.com/shopfloor/planner/common/repository"
)

// SpawnRework injects a rework card for a card that already settled. Two
// situations call for it: a REJECTED card without rework whose pieces a
// supervisor decides are worth redoing, and a COMPLETED card with a defect
// found late, where finished pieces are reclassified as rejected and sent
// back through the chain. The graph edit is committed as an audited patch
// and every downstream guard is re-evaluated, so a released assembly gate
// re-blocks on the new chain terminal and unsatisfiable flags clear.
func (s *ExecutionService) SpawnRework(ctx context.Context, cardID uuid.UUID, reworkQty int64, restartFromStep *int, actor string) (uuid.UUID, error) {
	orderID, err := s.orderOf(ctx, cardID)
	if err != nil {
		return uuid.Nil, err
	}

	var reworkID uuid.UUID
	err = s.withOrder(ctx, orderID, actor, func(ss *session) error {
		card, ok := ss.g.Card(cardID)
		if !ok {
			return fmt.Errorf("card %s: %w", cardID, repository.ErrNotFound)
		}
		switch card.Status {
		case models.StatusRejected:
			if reworkQty <= 0 || reworkQty > card.RejectedQty {
				return fmt.Errorf("card %s: rework quantity %d must be within the rejected quantity %d",
					cardID, reworkQty, card.RejectedQty)
			}
		case models.StatusCompleted:
			if reworkQty <= 0 || reworkQty > card.CompletedQty {
				return fmt.Errorf("card %s: rework quantity %d must be within the completed quantity %d",
					cardID, reworkQty, card.CompletedQty)
			}
			// Reclassify the defective pieces so the transfer into the rework
			// bucket below keeps the quantity ledger balanced
			card.CompletedQty -= reworkQty
			card.RejectedQty += reworkQty
		default:
			return &InvalidTransitionError{CardID: cardID, From: card.Status, Event: "spawn_rework"}
		}

		restartFrom := card.StepIndex
		if restartFromStep != nil {
			restartFrom = *restartFromStep
		}
		rework, err := s.spawnRework(ss, card, reworkQty, restartFrom)
		if err != nil {
			return err
		}
		reworkID = rework.CardID

		return s.reevaluateAll(ctx, ss)
	})
	return reworkID, err
}

// spawnRework builds the rework card and its edges as an RFC 6902 patch,
// applies it to a copy of the session graph, and swaps the session over to
// the patched graph only if the result is still acyclic. It must run inside
// withOrder.
//
// The rework card restarts at restartFrom and redoes every step up to the
// rejected one. It is wired between the preceding chain step and everything
// the rejected card fed, so dependents wait on the reworked pieces while the
// rejected card's own edges count as delegated.
func (s *ExecutionService) spawnRework(ss *session, parent *models.JobCard, qty int64, restartFrom int) (*models.JobCard, error) {
	if parent.ReworkCardID != nil {
		return nil, fmt.Errorf("card %s already has rework card %s", parent.CardID, *parent.ReworkCardID)
	}
	if restartFrom > parent.StepIndex || restartFrom < 0 {
		return nil, fmt.Errorf("card %s: rework cannot restart at step %d for a rejection at step %d",
			parent.CardID, restartFrom, parent.StepIndex)
	}

	// The restart step's card is the template for routing and material needs
	template := parent
	if restartFrom != parent.StepIndex {
		if step := chainStep(ss.g, parent, restartFrom); step != nil {
			template = step
		}
	}

	rework := &models.JobCard{
		CardID:         uuid.New(),
		CardNumber:     parent.CardNumber + "-RW",
		OrderID:        parent.OrderID,
		ChildPartID:    parent.ChildPartID,
		Kind:           models.KindProcess,
		StepID:         template.StepID,
		StepIndex:      restartFrom,
		Quantity:       qty,
		Status:         models.StatusPending,
		Priority:       parent.Priority + 1,
		MaterialStatus: models.MaterialPending,
		Material:       scaledMaterial(template, qty),
		ReworkOfCardID: &parent.CardID,
		UpdatedBy:      ss.actor,
		CreatedAt:      ss.now,
		UpdatedAt:      ss.now,
	}

	var newEdges []models.DependencyEdge
	if pred := chainStep(ss.g, parent, restartFrom-1); pred != nil {
		newEdges = append(newEdges, models.DependencyEdge{FromCardID: pred.CardID, ToCardID: rework.CardID})
	}
	// The rework output feeds everything the rejected card fed
	for _, depID := range ss.g.Dependents(parent.CardID) {
		newEdges = append(newEdges, models.DependencyEdge{FromCardID: rework.CardID, ToCardID: depID})
	}

	// Move the rejected pieces into the rework bucket before the graph is
	// serialized so the patched document already carries the adjustment
	parent.RejectedQty -= qty
	parent.ReworkQty += qty
	parent.ReworkCardID = &rework.CardID
	ss.touch(parent)
	ss.markChanged(parent.CardID)

	builder := graph.NewPatchBuilder().AddCard(rework)
	for _, e := range newEdges {
		builder.AddEdge(e)
	}
	ops, err := builder.Ops()
	if err != nil {
		return nil, err
	}
	patched, err := ss.g.ApplyPatch(ops)
	if err != nil {
		return nil, err
	}

	// Appending after a chain's last step splits the chain terminal in two;
	// re-derive the terminals and wire any the assembly gate does not yet
	// wait on
	if missing := missingAssemblyEdges(patched); len(missing) > 0 {
		for _, e := range missing {
			builder.AddEdge(e)
		}
		newEdges = append(newEdges, missing...)
		if ops, err = builder.Ops(); err != nil {
			return nil, err
		}
		if patched, err = ss.g.ApplyPatch(ops); err != nil {
			return nil, err
		}
	}

	ss.g = patched
	ss.created[rework.CardID] = true
	ss.mut.NewEdges = append(ss.mut.NewEdges, newEdges...)
	ss.mut.Patch = &models.GraphPatch{
		PatchID:   uuid.New(),
		OrderID:   ss.orderID,
		Ops:       ops,
		Reason:    fmt.Sprintf("rework of %d rejected pieces from card %s", qty, parent.CardNumber),
		CreatedBy: ss.actor,
		CreatedAt: ss.now,
	}

	// The patched graph holds fresh instances; hand back and persist the live one
	live, ok := ss.g.Card(rework.CardID)
	if !ok {
		return nil, fmt.Errorf("rework card %s missing from patched graph", rework.CardID)
	}
	ss.mut.NewCards = append(ss.mut.NewCards, live)

	ss.batch.AddEvent("rework_spawned", ss.orderID, live.CardID, map[string]any{
		"rework_of":    parent.CardID.String(),
		"quantity":     qty,
		"restart_step": restartFrom,
	})

	s.log.WithOrderID(ss.orderID.String()).WithCardID(live.CardID.String()).Info("rework card spawned",
		"rework_of", parent.CardID.String(), "quantity", qty, "restart_step", restartFrom)
	return live, nil
}

// chainStep finds the original process card at the given step index in the
// same child-part chain. Rework cards share step indices with the cards they
// redo and are skipped.
func chainStep(g *graph.Graph, ref *models.JobCard, stepIndex int) *models.JobCard {
	if ref.ChildPartID == nil || stepIndex < 0 {
		return nil
	}
	for _, card := range g.Cards() {
		if card.Kind != models.KindProcess || card.ChildPartID == nil || card.ReworkOfCardID != nil {
			continue
		}
		if *card.ChildPartID == *ref.ChildPartID && card.StepIndex == stepIndex {
			return card
		}
	}
	return nil
}

// scaledMaterial prorates the template card's material requirement to the
// rework quantity
func scaledMaterial(template *models.JobCard, qty int64) *models.MaterialRequirement {
	if template.Material == nil || template.Quantity <= 0 {
		return nil
	}
	perPiece := template.Material.RequiredQty.Div(decimal.NewFromInt(template.Quantity))
	return &models.MaterialRequirement{
		MaterialID:  template.Material.MaterialID,
		RequiredQty: perPiece.Mul(decimal.NewFromInt(qty)),
		Unit:        template.Material.Unit,
	}
}

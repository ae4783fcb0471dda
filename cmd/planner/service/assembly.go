package service

import (
	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/graph"
	"github.com/shopfloor/planner/common/models"
)

// assemblyCard returns the order's assembly gate card, if the order has one
func assemblyCard(g *graph.Graph) *models.JobCard {
	for _, card := range g.Cards() {
		if card.Kind == models.KindAssembly {
			return card
		}
	}
	return nil
}

// missingAssemblyEdges derives the assembly gate's prerequisite set from the
// chain terminals and returns the edges the gate does not yet carry. The gate
// waits on every terminal of every child-part chain, so a rework card appended
// after a chain's last step must be wired in before the gate can release.
func missingAssemblyEdges(g *graph.Graph) []models.DependencyEdge {
	gate := assemblyCard(g)
	if gate == nil {
		return nil
	}

	wired := make(map[uuid.UUID]bool)
	for _, edge := range g.Prerequisites(gate.CardID) {
		wired[edge.FromCardID] = true
	}

	var missing []models.DependencyEdge
	for _, terminals := range g.ChainTerminals() {
		for _, id := range terminals {
			if id == gate.CardID || wired[id] {
				continue
			}
			missing = append(missing, models.DependencyEdge{FromCardID: id, ToCardID: gate.CardID})
		}
	}
	return missing
}

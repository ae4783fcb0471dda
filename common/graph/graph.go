package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/models"
)

// CycleError reports that an edge set cannot be topologically ordered.
// Graph integrity is fatal: the mutating operation is rejected, never
// auto-repaired.
type CycleError struct {
	InvolvedIDs []uuid.UUID
}

func (e *CycleError) Error() string {
	ids := make([]string, len(e.InvolvedIDs))
	for i, id := range e.InvolvedIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("dependency cycle involving cards: %s", strings.Join(ids, ", "))
}

// ReleaseEvaluator evaluates a CEL release expression against a prerequisite
// card. Implemented by common/condition.
type ReleaseEvaluator interface {
	EvaluateRelease(expression string, card *models.JobCard) (bool, error)
}

// Graph is the validated dependency graph of one order's job cards.
// Adjacency and inverse adjacency are built once at load so prerequisite and
// dependent lookups are O(1).
type Graph struct {
	cards      map[uuid.UUID]*models.JobCard
	inbound    map[uuid.UUID][]models.DependencyEdge
	dependents map[uuid.UUID][]uuid.UUID
	edges      []models.DependencyEdge
	order      []uuid.UUID
}

// ValidateAcyclic runs Kahn's algorithm over the edge set and returns a
// topological order, or a *CycleError naming the cards that cannot be
// ordered. It must run on every edge-set mutation, not only at load.
func ValidateAcyclic(cards []*models.JobCard, edges []models.DependencyEdge) ([]uuid.UUID, error) {
	known := make(map[uuid.UUID]bool, len(cards))
	for _, c := range cards {
		if known[c.CardID] {
			return nil, fmt.Errorf("duplicate card id %s", c.CardID)
		}
		known[c.CardID] = true
	}

	indegree := make(map[uuid.UUID]int, len(cards))
	adjacency := make(map[uuid.UUID][]uuid.UUID, len(cards))
	for _, e := range edges {
		if !known[e.FromCardID] {
			return nil, fmt.Errorf("edge references unknown card %s", e.FromCardID)
		}
		if !known[e.ToCardID] {
			return nil, fmt.Errorf("edge references unknown card %s", e.ToCardID)
		}
		if e.FromCardID == e.ToCardID {
			return nil, &CycleError{InvolvedIDs: []uuid.UUID{e.FromCardID}}
		}
		adjacency[e.FromCardID] = append(adjacency[e.FromCardID], e.ToCardID)
		indegree[e.ToCardID]++
	}

	// Seed the frontier in input order for a stable result
	queue := make([]uuid.UUID, 0, len(cards))
	for _, c := range cards {
		if indegree[c.CardID] == 0 {
			queue = append(queue, c.CardID)
		}
	}

	order := make([]uuid.UUID, 0, len(cards))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(cards) {
		var involved []uuid.UUID
		for _, c := range cards {
			if indegree[c.CardID] > 0 {
				involved = append(involved, c.CardID)
			}
		}
		return nil, &CycleError{InvolvedIDs: involved}
	}

	return order, nil
}

// New validates the edge set and builds the adjacency maps
func New(cards []*models.JobCard, edges []models.DependencyEdge) (*Graph, error) {
	order, err := ValidateAcyclic(cards, edges)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		cards:      make(map[uuid.UUID]*models.JobCard, len(cards)),
		inbound:    make(map[uuid.UUID][]models.DependencyEdge),
		dependents: make(map[uuid.UUID][]uuid.UUID),
		edges:      append([]models.DependencyEdge(nil), edges...),
		order:      order,
	}
	for _, c := range cards {
		g.cards[c.CardID] = c
	}
	for _, e := range edges {
		g.inbound[e.ToCardID] = append(g.inbound[e.ToCardID], e)
		g.dependents[e.FromCardID] = append(g.dependents[e.FromCardID], e.ToCardID)
	}
	return g, nil
}

// Card returns the card with the given id
func (g *Graph) Card(id uuid.UUID) (*models.JobCard, bool) {
	c, ok := g.cards[id]
	return c, ok
}

// Cards returns all cards in topological order
func (g *Graph) Cards() []*models.JobCard {
	out := make([]*models.JobCard, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.cards[id])
	}
	return out
}

// Edges returns a copy of the edge list
func (g *Graph) Edges() []models.DependencyEdge {
	return append([]models.DependencyEdge(nil), g.edges...)
}

// Len returns the number of cards in the graph
func (g *Graph) Len() int {
	return len(g.cards)
}

// TopologicalOrder returns the card ids in dependency order
func (g *Graph) TopologicalOrder() []uuid.UUID {
	return append([]uuid.UUID(nil), g.order...)
}

// Prerequisites returns the inbound edges of a card
func (g *Graph) Prerequisites(id uuid.UUID) []models.DependencyEdge {
	return g.inbound[id]
}

// PrerequisiteIDs returns the direct prerequisite card ids of a card
func (g *Graph) PrerequisiteIDs(id uuid.UUID) []uuid.UUID {
	edges := g.inbound[id]
	out := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.FromCardID)
	}
	return out
}

// Dependents returns the card ids that directly depend on the given card
func (g *Graph) Dependents(id uuid.UUID) []uuid.UUID {
	return g.dependents[id]
}

// IsPrerequisiteSatisfied reports whether every inbound edge of the card
// satisfies its release policy. The default policy requires the prerequisite
// to be COMPLETED; min_qty and CEL policies allow explicit partial hand-off.
func (g *Graph) IsPrerequisiteSatisfied(id uuid.UUID, eval ReleaseEvaluator) (bool, error) {
	for _, edge := range g.inbound[id] {
		from, ok := g.cards[edge.FromCardID]
		if !ok {
			return false, fmt.Errorf("edge references unknown card %s", edge.FromCardID)
		}
		ok, err := edgeSatisfied(edge, from, eval)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func edgeSatisfied(edge models.DependencyEdge, from *models.JobCard, eval ReleaseEvaluator) (bool, error) {
	policy := edge.Release
	if policy == nil {
		return fullReleaseSatisfied(from), nil
	}
	switch policy.Type {
	case models.ReleaseFull, "":
		return fullReleaseSatisfied(from), nil
	case models.ReleaseMinQty:
		return from.CompletedQty >= policy.MinQty, nil
	case models.ReleaseCondition:
		if eval == nil {
			return false, fmt.Errorf("edge %s->%s has a CEL release policy but no evaluator is configured",
				edge.FromCardID, edge.ToCardID)
		}
		return eval.EvaluateRelease(policy.Expression, from)
	default:
		return false, fmt.Errorf("unknown release policy type %q", policy.Type)
	}
}

// fullReleaseSatisfied reports whether a prerequisite hands off under the
// default policy. A REJECTED card hands off once its gate is delegated: either
// a rework card carries the replacement edges, or the loss was explicitly
// written off as scrap.
func fullReleaseSatisfied(from *models.JobCard) bool {
	if from.Status == models.StatusCompleted {
		return true
	}
	return from.Status == models.StatusRejected && (from.ReworkCardID != nil || from.ScrapAccepted)
}

// UnsatisfiablePrerequisite returns the id of a direct prerequisite that
// failed terminally with no compensating rework edge and no accepted scrap.
// Such a dependent must be flagged BLOCKED and surfaced, never silently READY.
func (g *Graph) UnsatisfiablePrerequisite(id uuid.UUID) (uuid.UUID, bool) {
	for _, edge := range g.inbound[id] {
		from, ok := g.cards[edge.FromCardID]
		if !ok {
			continue
		}
		if from.Unsatisfiable {
			return from.CardID, true
		}
		if from.Status == models.StatusRejected && from.ReworkCardID == nil && !from.ScrapAccepted {
			return from.CardID, true
		}
	}
	return uuid.Nil, false
}

// ChainTerminals groups the order's process cards into child-part chains and
/// returns each chain's terminal cards: those with no dependent inside the
// same chain. A chain normally has one terminal, but a rework card appended
// after the last step yields two, and the assembly gate must wait on both.
func (g *Graph) ChainTerminals() map[uuid.UUID][]uuid.UUID {
	terminals := make(map[uuid.UUID][]uuid.UUID)
	for _, id := range g.order {
		card := g.cards[id]
		if card.ChildPartID == nil || card.Kind != models.KindProcess {
			continue
		}
		isTerminal := true
		for _, depID := range g.dependents[id] {
			dep, ok := g.cards[depID]
			if !ok || dep.ChildPartID == nil {
				continue
			}
			if *dep.ChildPartID == *card.ChildPartID {
				isTerminal = false
				break
			}
		}
		if isTerminal {
			terminals[*card.ChildPartID] = append(terminals[*card.ChildPartID], id)
		}
	}
	return terminals
}

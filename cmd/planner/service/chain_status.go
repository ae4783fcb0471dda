package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/graph"
	"github.com/shopfloor/planner/common/models"
)

// CardBrief is the per-card slice of the order status view
type CardBrief struct {
	CardID         uuid.UUID             `json:"card_id"`
	CardNumber     string                `json:"card_number"`
	StepIndex      int                   `json:"step_index"`
	Status         models.CardStatus     `json:"status"`
	Quantity       int64                 `json:"quantity"`
	CompletedQty   int64                 `json:"completed_qty"`
	RejectedQty    int64                 `json:"rejected_qty"`
	ReworkQty      int64                 `json:"rework_qty"`
	InProgressQty  int64                 `json:"in_progress_qty"`
	MaterialStatus models.MaterialStatus `json:"material_status"`
	IsRework       bool                  `json:"is_rework"`
	Unsatisfiable  bool                  `json:"unsatisfiable"`
}

// BlockingItem names one reason a card cannot run right now
type BlockingItem struct {
	CardID     uuid.UUID `json:"card_id"`
	CardNumber string    `json:"card_number"`
	Reason     string    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
}

// ChainSummary aggregates one child part's process chain
type ChainSummary struct {
	ChildPartID   uuid.UUID      `json:"child_part_id"`
	Cards         []CardBrief    `json:"cards"`
	CompletionPct float64        `json:"completion_pct"`
	Blocking      []BlockingItem `json:"blocking,omitempty"`
}

// OrderStatus is the order-level progress view: per-chain summaries, the
// assembly gate, and status tallies
type OrderStatus struct {
	OrderID       uuid.UUID                   `json:"order_id"`
	Chains        []ChainSummary              `json:"chains"`
	Assembly      *CardBrief                  `json:"assembly,omitempty"`
	CompletionPct float64                     `json:"completion_pct"`
	StatusCounts  map[models.CardStatus]int64 `json:"status_counts"`
	Blocking      []BlockingItem              `json:"blocking,omitempty"`
}

const (
	blockReasonUnsatisfiable = "unsatisfiable_prerequisite"
	blockReasonMaterial      = "material_shortfall"
	blockReasonPrerequisite  = "waiting_on_prerequisite"
)

// GetOrderStatus builds the order progress view from a consistent graph
// snapshot. It is read-only but takes the order lock so a concurrent cascade
// cannot be observed half-applied.
func (s *ExecutionService) GetOrderStatus(ctx context.Context, orderID uuid.UUID) (*OrderStatus, error) {
	unlock := s.locks.lock(orderID)
	defer unlock()

	cards, edges, err := s.store.LoadOrderGraph(ctx, orderID)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(cards, edges)
	if err != nil {
		return nil, fmt.Errorf("order %s graph is invalid: %w", orderID, err)
	}

	status := &OrderStatus{
		OrderID:      orderID,
		StatusCounts: make(map[models.CardStatus]int64),
	}

	chains := make(map[uuid.UUID]*ChainSummary)
	var chainIDs []uuid.UUID
	var totalQty, totalDone int64

	for _, card := range g.Cards() {
		brief := briefOf(card)
		status.StatusCounts[card.Status]++
		totalQty += card.Quantity
		totalDone += card.CompletedQty

		if item, blocked := blockingItem(g, card); blocked {
			status.Blocking = append(status.Blocking, item)
		}

		if card.Kind == models.KindAssembly {
			status.Assembly = &brief
			continue
		}
		if card.ChildPartID == nil {
			continue
		}

		chain, ok := chains[*card.ChildPartID]
		if !ok {
			chain = &ChainSummary{ChildPartID: *card.ChildPartID}
			chains[*card.ChildPartID] = chain
			chainIDs = append(chainIDs, *card.ChildPartID)
		}
		chain.Cards = append(chain.Cards, brief)
	}

	for _, id := range chainIDs {
		chain := chains[id]
		var qty, done int64
		for _, brief := range chain.Cards {
			qty += brief.Quantity
			done += brief.CompletedQty
		}
		chain.CompletionPct = pct(done, qty)
		for _, item := range status.Blocking {
			for _, brief := range chain.Cards {
				if brief.CardID == item.CardID {
					chain.Blocking = append(chain.Blocking, item)
				}
			}
		}
		status.Chains = append(status.Chains, *chain)
	}
	sort.Slice(status.Chains, func(i, j int) bool {
		return status.Chains[i].ChildPartID.String() < status.Chains[j].ChildPartID.String()
	})

	status.CompletionPct = pct(totalDone, totalQty)
	return status, nil
}

func briefOf(card *models.JobCard) CardBrief {
	return CardBrief{
		CardID:         card.CardID,
		CardNumber:     card.CardNumber,
		StepIndex:      card.StepIndex,
		Status:         card.Status,
		Quantity:       card.Quantity,
		CompletedQty:   card.CompletedQty,
		RejectedQty:    card.RejectedQty,
		ReworkQty:      card.ReworkQty,
		InProgressQty:  card.InProgressQty,
		MaterialStatus: card.MaterialStatus,
		IsRework:       card.ReworkOfCardID != nil,
		Unsatisfiable:  card.Unsatisfiable,
	}
}

func blockingItem(g *graph.Graph, card *models.JobCard) (BlockingItem, bool) {
	item := BlockingItem{CardID: card.CardID, CardNumber: card.CardNumber}

	switch {
	case card.Unsatisfiable:
		item.Reason = blockReasonUnsatisfiable
		if prereqID, ok := g.UnsatisfiablePrerequisite(card.CardID); ok {
			if prereq, found := g.Card(prereqID); found {
				item.Detail = fmt.Sprintf("prerequisite %s rejected with no rework", prereq.CardNumber)
			}
		}
		return item, true
	case card.Status == models.StatusPendingMaterial:
		item.Reason = blockReasonMaterial
		if card.Shortfall != nil {
			item.Detail = fmt.Sprintf("material %s short by %s %s",
				card.Shortfall.MaterialID, card.Shortfall.Shortfall.String(), card.Shortfall.Unit)
		}
		return item, true
	case card.Status == models.StatusBlocked:
		item.Reason = blockReasonPrerequisite
		for _, prereqID := range g.PrerequisiteIDs(card.CardID) {
			if prereq, ok := g.Card(prereqID); ok && !prereq.Status.Terminal() {
				item.Detail = fmt.Sprintf("waiting on %s", prereq.CardNumber)
				break
			}
		}
		return item, true
	}
	return BlockingItem{}, false
}

func pct(done, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

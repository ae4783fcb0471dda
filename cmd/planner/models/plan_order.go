package models

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	common "github.com/shopfloor/planner/common/models"
)

// PlanOrderRequest is the exploded card and edge set of a production order,
// produced upstream by routing explosion
type PlanOrderRequest struct {
	Cards []JobCardInput `json:"cards"`
	Edges []EdgeInput    `json:"edges"`
	Actor string         `json:"actor"`
}

// JobCardInput is one job card in a plan request
type JobCardInput struct {
	CardID      uuid.UUID  `json:"card_id"`
	CardNumber  string     `json:"card_number"`
	ChildPartID *uuid.UUID `json:"child_part_id,omitempty"`
	Kind        string     `json:"kind"`
	StepID      string     `json:"step_id"`
	StepIndex   int        `json:"step_index"`
	Quantity    int64      `json:"quantity"`
	Priority    int        `json:"priority"`

	Material *MaterialInput `json:"material,omitempty"`
}

// MaterialInput is a card's material requirement
type MaterialInput struct {
	MaterialID  string          `json:"material_id"`
	RequiredQty decimal.Decimal `json:"required_qty"`
	Unit        string          `json:"unit"`
}

// EdgeInput is one dependency edge in a plan request
type EdgeInput struct {
	FromCardID uuid.UUID     `json:"from_card_id"`
	ToCardID   uuid.UUID     `json:"to_card_id"`
	Release    *ReleaseInput `json:"release,omitempty"`
}

// ReleaseInput is an edge's release policy; absent means full completion
type ReleaseInput struct {
	Type       string `json:"type"`
	MinQty     int64  `json:"min_qty,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// ToCards converts the request cards to domain job cards bound to the order
func (r *PlanOrderRequest) ToCards(orderID uuid.UUID) ([]*common.JobCard, error) {
	cards := make([]*common.JobCard, 0, len(r.Cards))
	for _, in := range r.Cards {
		kind := common.CardKind(in.Kind)
		switch kind {
		case common.KindProcess, common.KindAssembly:
		case "":
			kind = common.KindProcess
		default:
			return nil, fmt.Errorf("card %s: unknown kind %q", in.CardID, in.Kind)
		}

		card := &common.JobCard{
			CardID:      in.CardID,
			CardNumber:  in.CardNumber,
			OrderID:     orderID,
			ChildPartID: in.ChildPartID,
			Kind:        kind,
			StepID:      in.StepID,
			StepIndex:   in.StepIndex,
			Quantity:    in.Quantity,
			Priority:    in.Priority,
		}
		if in.Material != nil {
			card.Material = &common.MaterialRequirement{
				MaterialID:  in.Material.MaterialID,
				RequiredQty: in.Material.RequiredQty,
				Unit:        in.Material.Unit,
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// ToEdges converts the request edges to domain dependency edges
func (r *PlanOrderRequest) ToEdges() ([]common.DependencyEdge, error) {
	edges := make([]common.DependencyEdge, 0, len(r.Edges))
	for _, in := range r.Edges {
		edge := common.DependencyEdge{
			FromCardID: in.FromCardID,
			ToCardID:   in.ToCardID,
		}
		if in.Release != nil {
			releaseType := common.ReleaseType(in.Release.Type)
			switch releaseType {
			case common.ReleaseFull, common.ReleaseMinQty, common.ReleaseCondition:
			default:
				return nil, fmt.Errorf("edge %s->%s: unknown release type %q",
					in.FromCardID, in.ToCardID, in.Release.Type)
			}
			if releaseType == common.ReleaseMinQty && in.Release.MinQty <= 0 {
				return nil, fmt.Errorf("edge %s->%s: min_qty release requires a positive quantity",
					in.FromCardID, in.ToCardID)
			}
			if releaseType == common.ReleaseCondition && in.Release.Expression == "" {
				return nil, fmt.Errorf("edge %s->%s: cel release requires an expression",
					in.FromCardID, in.ToCardID)
			}
			edge.Release = &common.ReleasePolicy{
				Type:       releaseType,
				MinQty:     in.Release.MinQty,
				Expression: in.Release.Expression,
			}
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

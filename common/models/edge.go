package models

import "github.com/google/uuid"

// ReleaseType selects how a prerequisite edge is considered satisfied
type ReleaseType string

const (
	// ReleaseFull requires the prerequisite card to be COMPLETED
	ReleaseFull ReleaseType = "full"
	// ReleaseMinQty allows partial hand-off once completed_qty reaches MinQty
	ReleaseMinQty ReleaseType = "min_qty"
	// ReleaseCondition evaluates a CEL expression over the prerequisite card
	ReleaseCondition ReleaseType = "cel"
)

// ReleasePolicy is the explicit per-edge hand-off rule. A nil policy on an
// edge means full completion is required.
type ReleasePolicy struct {
	Type       ReleaseType `json:"type"`
	MinQty     int64       `json:"min_qty,omitempty"`
	Expression string      `json:"expression,omitempty"`
}

// DependencyEdge is a directed edge "To depends on From": From must satisfy
// the edge's release policy before To may become READY. Edges are immutable
// once the graph is validated; only rework insertion adds new ones.
// Maps to: dependency_edge table
type DependencyEdge struct {
	FromCardID uuid.UUID      `db:"from_card_id" json:"from_card_id"`
	ToCardID   uuid.UUID      `db:"to_card_id" json:"to_card_id"`
	Release    *ReleasePolicy `db:"release" json:"release,omitempty"`
}

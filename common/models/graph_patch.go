package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GraphPatch is the audit record of one committed mutation of an order's
// dependency graph (currently only rework insertion). Ops is the RFC 6902
// patch that was applied to the serialized graph document.
// Maps to: graph_patch table
type GraphPatch struct {
	PatchID   uuid.UUID       `db:"patch_id" json:"patch_id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	Ops       json.RawMessage `db:"ops" json:"ops"`
	Reason    string          `db:"reason" json:"reason"`
	CreatedBy string          `db:"created_by" json:"created_by"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

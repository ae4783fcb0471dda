package graph

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/shopfloor/planner/common/models"
)

// Document is the serialized form of a graph, the target of RFC 6902
// mutations and the shape persisted for audit
type Document struct {
	Cards []*models.JobCard       `json:"cards"`
	Edges []models.DependencyEdge `json:"edges"`
}

// Document serializes the graph with cards in topological order
func (g *Graph) Document() *Document {
	return &Document{
		Cards: g.Cards(),
		Edges: g.Edges(),
	}
}

// ApplyPatch applies an RFC 6902 patch to the graph document, re-validates
// acyclicity and returns the resulting graph. The receiver is never modified:
// a patch that introduces a cycle fails with *CycleError and leaves the
// original graph byte-for-byte unchanged.
func (g *Graph) ApplyPatch(ops json.RawMessage) (*Graph, error) {
	docBytes, err := json.Marshal(g.Document())
	if err != nil {
		return nil, fmt.Errorf("marshal graph document: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return nil, fmt.Errorf("decode graph patch: %w", err)
	}

	patched, err := patch.Apply(docBytes)
	if err != nil {
		return nil, fmt.Errorf("apply graph patch: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(patched, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal patched graph document: %w", err)
	}

	return New(doc.Cards, doc.Edges)
}

// PatchBuilder accumulates RFC 6902 operations against a graph Document.
// Rework insertion only ever appends cards and edges; removals would rewrite
// history, which the planner never does.
type PatchBuilder struct {
	ops []patchOp
}

type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// NewPatchBuilder creates an empty patch builder
func NewPatchBuilder() *PatchBuilder {
	return &PatchBuilder{}
}

// AddCard appends a card to the document
func (b *PatchBuilder) AddCard(card *models.JobCard) *PatchBuilder {
	b.ops = append(b.ops, patchOp{Op: "add", Path: "/cards/-", Value: card})
	return b
}

// AddEdge appends a dependency edge to the document
func (b *PatchBuilder) AddEdge(edge models.DependencyEdge) *PatchBuilder {
	b.ops = append(b.ops, patchOp{Op: "add", Path: "/edges/-", Value: edge})
	return b
}

// Empty reports whether the builder holds no operations
func (b *PatchBuilder) Empty() bool {
	return len(b.ops) == 0
}

// Ops marshals the accumulated operations as an RFC 6902 patch
func (b *PatchBuilder) Ops() (json.RawMessage, error) {
	if len(b.ops) == 0 {
		return nil, fmt.Errorf("empty graph patch")
	}
	raw, err := json.Marshal(b.ops)
	if err != nil {
		return nil, fmt.Errorf("marshal graph patch: %w", err)
	}
	return raw, nil
}

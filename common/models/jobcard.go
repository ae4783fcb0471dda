package models

import (
	"time"

	"github.com/google/uuid"
)

// CardStatus represents the lifecycle state of a job card
type CardStatus string

const (
	StatusPending         CardStatus = "PENDING"
	StatusBlocked         CardStatus = "BLOCKED"
	StatusPendingMaterial CardStatus = "PENDING_MATERIAL"
	StatusReady           CardStatus = "READY"
	StatusInProgress      CardStatus = "IN_PROGRESS"
	StatusPaused          CardStatus = "PAUSED"
	StatusCompleted       CardStatus = "COMPLETED"
	StatusRejected        CardStatus = "REJECTED"
)

// Terminal reports whether the status is a terminal state
func (s CardStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CardKind distinguishes ordinary process-step cards from the derived
// assembly card of an order
type CardKind string

const (
	KindProcess  CardKind = "process"
	KindAssembly CardKind = "assembly"
)

// JobCard represents one schedulable unit of work: one process step for one
// child part of one production order
// Maps to: job_card table
type JobCard struct {
	// Unique card ID
	CardID uuid.UUID `db:"card_id" json:"card_id"`

	// Human-readable card number (e.g. "JC-2031/04-2")
	CardNumber string `db:"card_number" json:"card_number"`

	// Owning production order
	OrderID uuid.UUID `db:"order_id" json:"order_id"`

	// Owning child part; nil for assembly-level cards
	ChildPartID *uuid.UUID `db:"child_part_id" json:"child_part_id,omitempty"`

	Kind CardKind `db:"kind" json:"kind"`

	// Process step identifier and its sequence index within the child part
	StepID    string `db:"step_id" json:"step_id"`
	StepIndex int    `db:"step_index" json:"step_index"`

	// Piece counts. Invariant: completed + rejected + rework + in_progress <= quantity
	Quantity      int64 `db:"quantity" json:"quantity"`
	CompletedQty  int64 `db:"completed_qty" json:"completed_qty"`
	RejectedQty   int64 `db:"rejected_qty" json:"rejected_qty"`
	ReworkQty     int64 `db:"rework_qty" json:"rework_qty"`
	InProgressQty int64 `db:"in_progress_qty" json:"in_progress_qty"`

	Status   CardStatus `db:"status" json:"status"`
	Priority int        `db:"priority" json:"priority"`

	// Material gating
	MaterialStatus MaterialStatus       `db:"material_status" json:"material_status"`
	Material       *MaterialRequirement `db:"material" json:"material,omitempty"`
	Shortfall      *MaterialShortfall   `db:"shortfall" json:"shortfall,omitempty"`

	// Set when an upstream card failed terminally with no compensating rework.
	// Cards carrying this flag are planning exceptions and never become READY
	// without operator intervention.
	Unsatisfiable bool `db:"unsatisfiable" json:"unsatisfiable"`

	// Set when the order accepts the rejected quantity as scrap instead of
	// spawning a rework card
	ScrapAccepted bool `db:"scrap_accepted" json:"scrap_accepted"`

	// Rework linkage: a spawned rework card points back at its parent, and the
	// parent records its compensating card
	ReworkOfCardID *uuid.UUID `db:"rework_of_card_id" json:"rework_of_card_id,omitempty"`
	ReworkCardID   *uuid.UUID `db:"rework_card_id" json:"rework_card_id,omitempty"`

	// Opaque assignment annotations
	MachineID  *string `db:"machine_id" json:"machine_id,omitempty"`
	OperatorID *string `db:"operator_id" json:"operator_id,omitempty"`

	// Audit fields
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Accounted returns the total quantity already attributed to an outcome bucket
func (c *JobCard) Accounted() int64 {
	return c.CompletedQty + c.RejectedQty + c.ReworkQty + c.InProgressQty
}

// Remaining returns the quantity not yet attributed to any bucket
func (c *JobCard) Remaining() int64 {
	return c.Quantity - c.Accounted()
}

// Settled reports whether every piece has reached a final bucket
// (completed, rejected or rework), with nothing in progress
func (c *JobCard) Settled() bool {
	return c.InProgressQty == 0 && c.CompletedQty+c.RejectedQty+c.ReworkQty == c.Quantity
}

// Clone returns a deep copy of the card. The engine mutates copies and only
// persists them after a cascade commits, so aborted operations leave the
// stored graph untouched.
func (c *JobCard) Clone() *JobCard {
	clone := *c
	if c.ChildPartID != nil {
		id := *c.ChildPartID
		clone.ChildPartID = &id
	}
	if c.Material != nil {
		m := *c.Material
		clone.Material = &m
	}
	if c.Shortfall != nil {
		s := c.Shortfall.Clone()
		clone.Shortfall = s
	}
	if c.ReworkOfCardID != nil {
		id := *c.ReworkOfCardID
		clone.ReworkOfCardID = &id
	}
	if c.ReworkCardID != nil {
		id := *c.ReworkCardID
		clone.ReworkCardID = &id
	}
	if c.MachineID != nil {
		v := *c.MachineID
		clone.MachineID = &v
	}
	if c.OperatorID != nil {
		v := *c.OperatorID
		clone.OperatorID = &v
	}
	return &clone
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaterialStatus is the availability answer for a card's material requirement
type MaterialStatus string

const (
	MaterialAvailable MaterialStatus = "AVAILABLE"
	MaterialPartial   MaterialStatus = "PARTIAL"
	MaterialPending   MaterialStatus = "PENDING"
)

// MaterialRequirement is the physical stock a job card consumes. Quantities
// are decimal because raw material is issued by weight or length, not pieces.
type MaterialRequirement struct {
	MaterialID  string          `db:"material_id" json:"material_id"`
	RequiredQty decimal.Decimal `db:"required_qty" json:"required_qty"`
	Unit        string          `db:"unit" json:"unit"`
}

// MaterialShortfall exists only while a card's material status is not
// AVAILABLE. It is deleted, not archived, once the shortfall resolves.
// Maps to: material_shortfall table
type MaterialShortfall struct {
	CardID         uuid.UUID       `db:"card_id" json:"card_id"`
	MaterialID     string          `db:"material_id" json:"material_id"`
	Required       decimal.Decimal `db:"required" json:"required"`
	Available      decimal.Decimal `db:"available" json:"available"`
	Shortfall      decimal.Decimal `db:"shortfall" json:"shortfall"`
	Unit           string          `db:"unit" json:"unit"`
	NotifiedAt     time.Time       `db:"notified_at" json:"notified_at"`
	LastReminderAt *time.Time      `db:"last_reminder_at" json:"last_reminder_at,omitempty"`
	ReminderCount  int             `db:"reminder_count" json:"reminder_count"`
}

// Clone returns a deep copy of the shortfall
func (s *MaterialShortfall) Clone() *MaterialShortfall {
	clone := *s
	if s.LastReminderAt != nil {
		t := *s.LastReminderAt
		clone.LastReminderAt = &t
	}
	return &clone
}

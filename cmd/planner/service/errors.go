package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/models"
)

// QuantityOverflowError reports a progress delta that would violate the
// card's quantity invariant. The operation is rejected at the boundary and
// the stored state is untouched; the engine never clamps values.
type QuantityOverflowError struct {
	CardID         uuid.UUID
	Quantity       int64
	Accounted      int64
	CompletedDelta int64
	RejectedDelta  int64
}

func (e *QuantityOverflowError) Error() string {
	return fmt.Sprintf(
		"card %s: reported deltas (completed %d, rejected %d) exceed quantity %d with %d already accounted",
		e.CardID, e.CompletedDelta, e.RejectedDelta, e.Quantity, e.Accounted)
}

// InvalidTransitionError reports an event that is not legal in the card's
// current state
type InvalidTransitionError struct {
	CardID uuid.UUID
	From   models.CardStatus
	Event  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("card %s: event %q is not allowed in state %s", e.CardID, e.Event, e.From)
}

// UnsatisfiablePrerequisiteError reports that a card is gated on an upstream
// card that failed terminally with no compensating rework. Surfaced as a
// planning exception, never retried automatically.
type UnsatisfiablePrerequisiteError struct {
	CardID         uuid.UUID
	PrerequisiteID uuid.UUID
}

func (e *UnsatisfiablePrerequisiteError) Error() string {
	return fmt.Sprintf("card %s: prerequisite %s is unsatisfiable (rejected with no rework)",
		e.CardID, e.PrerequisiteID)
}

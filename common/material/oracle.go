package material

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopfloor/planner/common/models"
	"github.com/shopspring/decimal"
)

// CheckResult is the oracle's answer for one material requirement
type CheckResult struct {
	Status    models.MaterialStatus `json:"status"`
	Available decimal.Decimal       `json:"available"`
	Shortfall decimal.Decimal       `json:"shortfall"`
}

// Oracle answers whether sufficient allocatable stock exists now for a
// material requirement. Read-only; queries may run concurrently.
type Oracle interface {
	Check(ctx context.Context, req models.MaterialRequirement) (*CheckResult, error)
}

// QueryError is a transient oracle failure after retries were exhausted. The
// caller must keep the card in its last known material state and surface the
// error; availability is never optimistically assumed.
type QueryError struct {
	MaterialID string
	Attempts   int
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("material availability query for %s failed after %d attempts: %v",
		e.MaterialID, e.Attempts, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// resultFor derives the availability status from stock on hand
func resultFor(req models.MaterialRequirement, available decimal.Decimal) *CheckResult {
	res := &CheckResult{Available: available}
	switch {
	case available.GreaterThanOrEqual(req.RequiredQty):
		res.Status = models.MaterialAvailable
		res.Shortfall = decimal.Zero
	case available.IsPositive():
		res.Status = models.MaterialPartial
		res.Shortfall = req.RequiredQty.Sub(available)
	default:
		res.Status = models.MaterialPending
		res.Shortfall = req.RequiredQty
	}
	return res
}

// StaticOracle is an in-memory oracle backed by a stock table, used in
// development and tests
type StaticOracle struct {
	mu    sync.RWMutex
	stock map[string]decimal.Decimal
	err   error
	delay time.Duration
}

// NewStaticOracle creates an empty static oracle
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		stock: make(map[string]decimal.Decimal),
	}
}

// SetStock sets the allocatable quantity for a material
func (o *StaticOracle) SetStock(materialID string, qty decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stock[materialID] = qty
}

// Fail makes every subsequent Check return err; pass nil to recover
func (o *StaticOracle) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Check answers from the in-memory stock table
func (o *StaticOracle) Check(ctx context.Context, req models.MaterialRequirement) (*CheckResult, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.err != nil {
		return nil, o.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resultFor(req, o.stock[req.MaterialID]), nil
}

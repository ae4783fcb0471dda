package condition

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/shopfloor/planner/common/models"
)

// Evaluator evaluates per-edge release policies using CEL
// (Common Expression Language). Expressions see the prerequisite card as
// `card`, e.g. `card.completed_qty >= 5 && card.status != "REJECTED"`.
type Evaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new release evaluator with compiled-program caching
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]cel.Program),
	}
}

// EvaluateRelease evaluates a release expression against a prerequisite card
func (e *Evaluator) EvaluateRelease(expression string, card *models.JobCard) (bool, error) {
	if expression == "" {
		return false, fmt.Errorf("empty release expression")
	}

	e.mu.RLock()
	prg, exists := e.cache[expression]
	e.mu.RUnlock()

	if !exists {
		var err error
		prg, err = e.compile(expression)
		if err != nil {
			return false, err
		}

		e.mu.Lock()
		e.cache[expression] = prg
		e.mu.Unlock()
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"card": cardActivation(card),
	})
	if err != nil {
		return false, fmt.Errorf("release expression evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("release expression did not return boolean, got %T", out.Value())
	}

	return result, nil
}

func (e *Evaluator) compile(expression string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("card", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("release expression compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return prg, nil
}

// cardActivation maps the fields an expression may reference
func cardActivation(card *models.JobCard) map[string]interface{} {
	return map[string]interface{}{
		"card_number":     card.CardNumber,
		"step_index":      card.StepIndex,
		"quantity":        card.Quantity,
		"completed_qty":   card.CompletedQty,
		"rejected_qty":    card.RejectedQty,
		"rework_qty":      card.ReworkQty,
		"in_progress_qty": card.InProgressQty,
		"status":          string(card.Status),
		"material_status": string(card.MaterialStatus),
	}
}

// ClearCache clears the compiled expression cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// CacheSize returns the number of cached expressions
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

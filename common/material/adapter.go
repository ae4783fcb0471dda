package material

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopfloor/planner/common/cache"
	"github.com/shopfloor/planner/common/config"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/models"
)

// Adapter wraps an Oracle with retry, backoff and short-lived answer caching.
// Transient failures are retried here, not by the state machine; once retries
// are exhausted the caller receives a *QueryError and the card keeps its last
// known material state.
type Adapter struct {
	inner       Oracle
	cache       cache.Cache
	log         *logger.Logger
	maxAttempts int
	baseDelay   time.Duration
	answerTTL   time.Duration
}

// NewAdapter creates a retrying, caching oracle adapter. Cache may be nil to
// disable answer caching.
func NewAdapter(inner Oracle, answerCache cache.Cache, cfg config.MaterialConfig, log *logger.Logger) *Adapter {
	return &Adapter{
		inner:       inner,
		cache:       answerCache,
		log:         log,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.RetryBaseDelay,
		answerTTL:   cfg.AnswerTTL,
	}
}

// Check resolves a material requirement, consulting the answer cache first
func (a *Adapter) Check(ctx context.Context, req models.MaterialRequirement) (*CheckResult, error) {
	key := a.cacheKey(req)

	if a.cache != nil {
		if raw, ok, err := a.cache.Get(ctx, key); err == nil && ok {
			var res CheckResult
			if err := json.Unmarshal(raw, &res); err == nil {
				a.log.Debug("material answer cache hit", "material_id", req.MaterialID)
				return &res, nil
			}
		}
	}

	res, err := a.checkWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if raw, err := json.Marshal(res); err == nil {
			_ = a.cache.Set(ctx, key, raw, a.answerTTL)
		}
	}

	return res, nil
}

// Invalidate drops the cached answer for a material, forcing the next Check
// to hit the oracle. Called on material-arrived pokes.
func (a *Adapter) Invalidate(ctx context.Context, materialID string) {
	if a.cache == nil {
		return
	}
	_ = a.cache.Delete(ctx, "material:"+materialID)
}

func (a *Adapter) cacheKey(req models.MaterialRequirement) string {
	return "material:" + req.MaterialID
}

func (a *Adapter) checkWithRetry(ctx context.Context, req models.MaterialRequirement) (*CheckResult, error) {
	var lastErr error

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		res, err := a.inner.Check(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		a.log.Warn("material availability query failed",
			"material_id", req.MaterialID,
			"attempt", attempt,
			"error", err)

		if attempt < a.maxAttempts {
			// Exponential backoff: base, 2*base, 4*base, ...
			delay := a.baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}

	return nil, &QueryError{
		MaterialID: req.MaterialID,
		Attempts:   a.maxAttempts,
		Err:        fmt.Errorf("oracle check: %w", lastErr),
	}
}

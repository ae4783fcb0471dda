package material

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shopfloor/planner/common/cache"
	"github.com/shopfloor/planner/common/config"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/models"
)

// countingOracle fails the first failures calls, then answers from stock
type countingOracle struct {
	calls    int
	failures int
	stock    decimal.Decimal
}

func (o *countingOracle) Check(ctx context.Context, req models.MaterialRequirement) (*CheckResult, error) {
	o.calls++
	if o.calls <= o.failures {
		return nil, errors.New("inventory unreachable")
	}
	return resultFor(req, o.stock), nil
}

func testAdapterConfig(attempts int) config.MaterialConfig {
	return config.MaterialConfig{
		MaxAttempts:    attempts,
		RetryBaseDelay: time.Millisecond,
		AnswerTTL:      time.Minute,
	}
}

func testLogger() *logger.Logger {
	return logger.New("error", "json")
}

func requirement(qty int64) models.MaterialRequirement {
	return models.MaterialRequirement{
		MaterialID:  "MAT-42",
		RequiredQty: decimal.NewFromInt(qty),
		Unit:        "kg",
	}
}

func TestAdapter_RetriesTransientFailures(t *testing.T) {
	oracle := &countingOracle{failures: 2, stock: decimal.NewFromInt(100)}
	adapter := NewAdapter(oracle, nil, testAdapterConfig(3), testLogger())

	res, err := adapter.Check(context.Background(), requirement(10))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Status != models.MaterialAvailable {
		t.Errorf("expected AVAILABLE, got %s", res.Status)
	}
	if oracle.calls != 3 {
		t.Errorf("expected 3 oracle calls, got %d", oracle.calls)
	}
}

func TestAdapter_ExhaustedRetriesReturnQueryError(t *testing.T) {
	oracle := &countingOracle{failures: 100}
	adapter := NewAdapter(oracle, nil, testAdapterConfig(2), testLogger())

	_, err := adapter.Check(context.Background(), requirement(10))

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected *QueryError, got %v", err)
	}
	if queryErr.MaterialID != "MAT-42" || queryErr.Attempts != 2 {
		t.Errorf("unexpected QueryError contents: %+v", queryErr)
	}
	if oracle.calls != 2 {
		t.Errorf("expected 2 oracle calls, got %d", oracle.calls)
	}
}

func TestAdapter_CachesAnswers(t *testing.T) {
	oracle := &countingOracle{stock: decimal.NewFromInt(100)}
	answerCache := cache.NewMemoryCache(testLogger())
	defer answerCache.Close()
	adapter := NewAdapter(oracle, answerCache, testAdapterConfig(1), testLogger())

	ctx := context.Background()
	req := requirement(10)

	for i := 0; i < 3; i++ {
		if _, err := adapter.Check(ctx, req); err != nil {
			t.Fatalf("Check failed: %v", err)
		}
	}
	if oracle.calls != 1 {
		t.Errorf("expected 1 oracle call with a warm cache, got %d", oracle.calls)
	}

	adapter.Invalidate(ctx, req.MaterialID)
	if _, err := adapter.Check(ctx, req); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if oracle.calls != 2 {
		t.Errorf("invalidate must force a fresh oracle query, got %d calls", oracle.calls)
	}
}

func TestResultFor_StatusDerivation(t *testing.T) {
	req := requirement(10)

	full := resultFor(req, decimal.NewFromInt(10))
	if full.Status != models.MaterialAvailable || !full.Shortfall.IsZero() {
		t.Errorf("exact stock must be AVAILABLE with zero shortfall, got %+v", full)
	}

	partial := resultFor(req, decimal.NewFromInt(4))
	if partial.Status != models.MaterialPartial || !partial.Shortfall.Equal(decimal.NewFromInt(6)) {
		t.Errorf("partial stock must report the gap, got %+v", partial)
	}

	none := resultFor(req, decimal.Zero)
	if none.Status != models.MaterialPending || !none.Shortfall.Equal(decimal.NewFromInt(10)) {
		t.Errorf("no stock must be PENDING with the full requirement short, got %+v", none)
	}
}

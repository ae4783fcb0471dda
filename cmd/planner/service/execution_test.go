package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfloor/planner/common/condition"
	"github.com/shopfloor/planner/common/config"
	"github.com/shopfloor/planner/common/graph"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/material"
	"github.com/shopfloor/planner/common/models"
	"github.com/shopfloor/planner/common/notify"
	"github.com/shopfloor/planner/common/repository"
)

type fixture struct {
	store   *repository.MemoryStore
	oracle  *material.StaticOracle
	svc     *ExecutionService
	orderID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New("error", "json")
	store := repository.NewMemoryStore()
	oracle := material.NewStaticOracle()
	adapter := material.NewAdapter(oracle, nil, config.MaterialConfig{
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
		AnswerTTL:      time.Minute,
	}, log)
	outbox := notify.NewOutbox(&notify.OutboxOpts{Logger: log})

	svc := NewExecutionService(&ExecutionServiceOpts{
		Store:     store,
		Oracle:    adapter,
		Outbox:    outbox,
		Evaluator: condition.NewEvaluator(),
		Logger:    log,
	})
	return &fixture{
		store:   store,
		oracle:  oracle,
		svc:     svc,
		orderID: uuid.New(),
	}
}

func (f *fixture) card(part *uuid.UUID, number string, step int, qty int64) *models.JobCard {
	return &models.JobCard{
		CardID:      uuid.New(),
		CardNumber:  number,
		OrderID:     f.orderID,
		ChildPartID: part,
		Kind:        models.KindProcess,
		StepID:      number,
		StepIndex:   step,
		Quantity:    qty,
	}
}

func (f *fixture) assembly(number string) *models.JobCard {
	return &models.JobCard{
		CardID:     uuid.New(),
		CardNumber: number,
		OrderID:    f.orderID,
		Kind:       models.KindAssembly,
		StepID:     number,
		Quantity:   1,
	}
}

func dep(from, to *models.JobCard) models.DependencyEdge {
	return models.DependencyEdge{FromCardID: from.CardID, ToCardID: to.CardID}
}

func (f *fixture) plan(t *testing.T, cards []*models.JobCard, edges []models.DependencyEdge) {
	t.Helper()
	require.NoError(t, f.svc.PlanOrder(context.Background(), f.orderID, cards, edges, "planner"))
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *models.JobCard {
	t.Helper()
	card, err := f.svc.GetCard(context.Background(), id)
	require.NoError(t, err)
	return card
}

func (f *fixture) start(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := f.svc.StartCard(context.Background(), id, nil, nil, "operator")
	require.NoError(t, err)
}

func (f *fixture) complete(t *testing.T, id uuid.UUID, qty int64) {
	t.Helper()
	_, err := f.svc.ReportProgress(context.Background(), id, ProgressReport{
		CompletedDelta: qty,
		Actor:          "operator",
	})
	require.NoError(t, err)
}

func TestPlanOrder_DerivesInitialReadiness(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)

	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	assert.Equal(t, models.StatusReady, f.get(t, a.CardID).Status)
	assert.Equal(t, models.MaterialAvailable, f.get(t, a.CardID).MaterialStatus)
	assert.Equal(t, models.StatusBlocked, f.get(t, b.CardID).Status)
}

func TestPlanOrder_RejectsCycleAtomically(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)

	err := f.svc.PlanOrder(context.Background(), f.orderID,
		[]*models.JobCard{a, b},
		[]models.DependencyEdge{dep(a, b), dep(b, a)},
		"planner")

	var cycleErr *graph.CycleError
	require.ErrorAs(t, err, &cycleErr)

	_, _, err = f.store.LoadOrderGraph(context.Background(), f.orderID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPlanOrder_RejectsInvalidCards(t *testing.T) {
	f := newFixture(t)
	bad := f.card(nil, "A", 0, 0)

	err := f.svc.PlanOrder(context.Background(), f.orderID, []*models.JobCard{bad}, nil, "planner")
	assert.Error(t, err)
}

func TestPlanOrder_WiresAssemblyGateToChainTerminals(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	x0 := f.card(&part, "X0", 0, 10)
	x1 := f.card(&part, "X1", 1, 10)
	asm := f.assembly("ASM")

	// The exploded set carries only the chain edge; the gate's prerequisite
	// on the chain terminal must be derived at load
	f.plan(t, []*models.JobCard{x0, x1, asm}, []models.DependencyEdge{dep(x0, x1)})

	assert.Equal(t, models.StatusBlocked, f.get(t, asm.CardID).Status,
		"assembly must not release before the chain terminal completes")

	f.start(t, x0.CardID)
	f.complete(t, x0.CardID, 10)
	f.start(t, x1.CardID)
	f.complete(t, x1.CardID, 10)

	assert.Equal(t, models.StatusReady, f.get(t, asm.CardID).Status)
}

func TestStartCard(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	machine := "M-7"
	status, err := f.svc.StartCard(context.Background(), a.CardID, &machine, nil, "operator")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, status)

	got := f.get(t, a.CardID)
	assert.Equal(t, int64(10), got.InProgressQty)
	require.NotNil(t, got.MachineID)
	assert.Equal(t, "M-7", *got.MachineID)

	// A blocked card cannot start
	_, err = f.svc.StartCard(context.Background(), b.CardID, nil, nil, "operator")
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestReportProgress_CompletionCascades(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	f.start(t, a.CardID)
	f.complete(t, a.CardID, 10)

	assert.Equal(t, models.StatusCompleted, f.get(t, a.CardID).Status)
	assert.Equal(t, models.StatusReady, f.get(t, b.CardID).Status)
}

func TestReportProgress_PartialStaysInProgress(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	f.start(t, a.CardID)
	f.complete(t, a.CardID, 4)

	got := f.get(t, a.CardID)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, int64(4), got.CompletedQty)
	assert.Equal(t, int64(6), got.InProgressQty)
	assert.Equal(t, models.StatusBlocked, f.get(t, b.CardID).Status)
}

func TestMinQtyRelease_PartialHandoff(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	edges := []models.DependencyEdge{{
		FromCardID: a.CardID,
		ToCardID:   b.CardID,
		Release:    &models.ReleasePolicy{Type: models.ReleaseMinQty, MinQty: 5},
	}}
	f.plan(t, []*models.JobCard{a, b}, edges)

	f.start(t, a.CardID)
	f.complete(t, a.CardID, 4)
	assert.Equal(t, models.StatusBlocked, f.get(t, b.CardID).Status)

	f.complete(t, a.CardID, 1)
	assert.Equal(t, models.StatusInProgress, f.get(t, a.CardID).Status)
	assert.Equal(t, models.StatusReady, f.get(t, b.CardID).Status)
}

func TestCELRelease(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	edges := []models.DependencyEdge{{
		FromCardID: a.CardID,
		ToCardID:   b.CardID,
		Release: &models.ReleasePolicy{
			Type:       models.ReleaseCondition,
			Expression: `card.completed_qty >= 3`,
		},
	}}
	f.plan(t, []*models.JobCard{a, b}, edges)

	f.start(t, a.CardID)
	f.complete(t, a.CardID, 2)
	assert.Equal(t, models.StatusBlocked, f.get(t, b.CardID).Status)

	f.complete(t, a.CardID, 1)
	assert.Equal(t, models.StatusReady, f.get(t, b.CardID).Status)
}

func TestReportProgress_OverflowRejected(t *testing.T) {
	f := newFixture(t)
	a := f.card(nil, "A", 0, 10)
	f.plan(t, []*models.JobCard{a}, nil)

	f.start(t, a.CardID)
	f.complete(t, a.CardID, 7)

	_, err := f.svc.ReportProgress(context.Background(), a.CardID, ProgressReport{
		CompletedDelta: 4,
		Actor:          "operator",
	})
	var overflow *QuantityOverflowError
	require.ErrorAs(t, err, &overflow)

	// The rejected report leaves the stored state untouched
	got := f.get(t, a.CardID)
	assert.Equal(t, int64(7), got.CompletedQty)
	assert.Equal(t, int64(3), got.InProgressQty)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestRejectionSpawnsRework(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	s0 := f.card(&part, "S0", 0, 10)
	s1 := f.card(&part, "S1", 1, 10)
	s2 := f.card(&part, "S2", 2, 10)
	f.plan(t, []*models.JobCard{s0, s1, s2},
		[]models.DependencyEdge{dep(s0, s1), dep(s1, s2)})

	f.start(t, s0.CardID)
	f.complete(t, s0.CardID, 10)
	f.start(t, s1.CardID)

	// 7 good, 3 rejected: the rejected pieces move to a rework card
	_, err := f.svc.ReportProgress(context.Background(), s1.CardID, ProgressReport{
		CompletedDelta: 7,
		RejectedDelta:  3,
		Actor:          "operator",
	})
	require.NoError(t, err)

	parent := f.get(t, s1.CardID)
	assert.Equal(t, models.StatusCompleted, parent.Status)
	assert.Equal(t, int64(7), parent.CompletedQty)
	assert.Equal(t, int64(0), parent.RejectedQty)
	assert.Equal(t, int64(3), parent.ReworkQty)
	require.NotNil(t, parent.ReworkCardID)

	rework := f.get(t, *parent.ReworkCardID)
	assert.Equal(t, int64(3), rework.Quantity)
	assert.Equal(t, 1, rework.StepIndex)
	require.NotNil(t, rework.ReworkOfCardID)
	assert.Equal(t, s1.CardID, *rework.ReworkOfCardID)
	// Prerequisite S0 is complete, so the rework card is immediately eligible
	assert.Equal(t, models.StatusReady, rework.Status)

	// Downstream waits on both the surviving pieces and the rework
	assert.Equal(t, models.StatusBlocked, f.get(t, s2.CardID).Status)
	assert.False(t, f.get(t, s2.CardID).Unsatisfiable)

	// The graph edit is recorded as an audited patch
	assert.Len(t, f.store.Patches(f.orderID), 1)

	// Completed upstream work never regresses
	assert.Equal(t, models.StatusCompleted, f.get(t, s0.CardID).Status)

	f.start(t, rework.CardID)
	f.complete(t, rework.CardID, 3)
	assert.Equal(t, models.StatusReady, f.get(t, s2.CardID).Status)
}

func TestFullRejectionWithAcceptedScrap(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	f.start(t, a.CardID)
	_, err := f.svc.ReportProgress(context.Background(), a.CardID, ProgressReport{
		RejectedDelta: 10,
		AcceptScrap:   true,
		Actor:         "supervisor",
	})
	require.NoError(t, err)

	got := f.get(t, a.CardID)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.True(t, got.ScrapAccepted)
	assert.Nil(t, got.ReworkCardID)

	// Accepted scrap delegates the gate instead of wedging the chain
	down := f.get(t, b.CardID)
	assert.Equal(t, models.StatusReady, down.Status)
	assert.False(t, down.Unsatisfiable)
}

// seedRejected stores a graph whose first card failed terminally with no
// compensating rework, the state a restarted service might load
func (f *fixture) seedRejected(t *testing.T) (rejected, dependent *models.JobCard) {
	t.Helper()
	part := uuid.New()
	rejected = f.card(&part, "A", 0, 10)
	rejected.Status = models.StatusRejected
	rejected.RejectedQty = 10
	dependent = f.card(&part, "B", 1, 10)
	dependent.Status = models.StatusBlocked
	dependent.Unsatisfiable = true

	require.NoError(t, f.store.Commit(context.Background(), &repository.Mutation{
		OrderID:  f.orderID,
		NewCards: []*models.JobCard{rejected, dependent},
		NewEdges: []models.DependencyEdge{dep(rejected, dependent)},
	}))
	return rejected, dependent
}

func TestStartCard_UnsatisfiablePrerequisite(t *testing.T) {
	f := newFixture(t)
	rejected, dependent := f.seedRejected(t)

	_, err := f.svc.StartCard(context.Background(), dependent.CardID, nil, nil, "operator")

	var unsat *UnsatisfiablePrerequisiteError
	require.ErrorAs(t, err, &unsat)
	assert.Equal(t, rejected.CardID, unsat.PrerequisiteID)
}

func TestSpawnRework_ClearsUnsatisfiable(t *testing.T) {
	f := newFixture(t)
	rejected, dependent := f.seedRejected(t)

	reworkID, err := f.svc.SpawnRework(context.Background(), rejected.CardID, 10, nil, "supervisor")
	require.NoError(t, err)

	parent := f.get(t, rejected.CardID)
	assert.Equal(t, int64(0), parent.RejectedQty)
	assert.Equal(t, int64(10), parent.ReworkQty)
	require.NotNil(t, parent.ReworkCardID)
	assert.Equal(t, reworkID, *parent.ReworkCardID)

	// The rework card restarts the chain head with no prerequisites
	assert.Equal(t, models.StatusReady, f.get(t, reworkID).Status)

	// The dependent is no longer a planning exception, just waiting
	down := f.get(t, dependent.CardID)
	assert.Equal(t, models.StatusBlocked, down.Status)
	assert.False(t, down.Unsatisfiable)

	f.start(t, reworkID)
	f.complete(t, reworkID, 10)
	assert.Equal(t, models.StatusReady, f.get(t, dependent.CardID).Status)
}

func TestSpawnRework_GuardsInput(t *testing.T) {
	f := newFixture(t)
	rejected, _ := f.seedRejected(t)

	_, err := f.svc.SpawnRework(context.Background(), rejected.CardID, 11, nil, "supervisor")
	assert.Error(t, err)

	_, err = f.svc.SpawnRework(context.Background(), rejected.CardID, 0, nil, "supervisor")
	assert.Error(t, err)
}

func TestSpawnRework_OnCompletedTerminalReblocksAssembly(t *testing.T) {
	f := newFixture(t)
	partX := uuid.New()
	partY := uuid.New()
	x0 := f.card(&partX, "X0", 0, 10)
	x1 := f.card(&partX, "X1", 1, 10)
	y0 := f.card(&partY, "Y0", 0, 10)
	asm := f.assembly("ASM")
	f.plan(t, []*models.JobCard{x0, x1, y0, asm},
		[]models.DependencyEdge{dep(x0, x1), dep(x1, asm), dep(y0, asm)})

	for _, id := range []uuid.UUID{x0.CardID, x1.CardID, y0.CardID} {
		f.start(t, id)
		f.complete(t, id, 10)
	}
	require.Equal(t, models.StatusReady, f.get(t, asm.CardID).Status)

	// A defect surfaces after x1 settled: part of its output goes back
	// through the chain, and the released gate must wait again
	reworkID, err := f.svc.SpawnRework(context.Background(), x1.CardID, 4, nil, "supervisor")
	require.NoError(t, err)

	parent := f.get(t, x1.CardID)
	assert.Equal(t, models.StatusCompleted, parent.Status)
	assert.Equal(t, int64(6), parent.CompletedQty)
	assert.Equal(t, int64(0), parent.RejectedQty)
	assert.Equal(t, int64(4), parent.ReworkQty)

	assert.Equal(t, models.StatusBlocked, f.get(t, asm.CardID).Status,
		"a fresh chain terminal re-blocks the assembly gate")

	f.start(t, reworkID)
	f.complete(t, reworkID, 4)
	assert.Equal(t, models.StatusReady, f.get(t, asm.CardID).Status)

	// The reclassified pieces bound any further late rework
	_, err = f.svc.SpawnRework(context.Background(), x1.CardID, 7, nil, "supervisor")
	assert.Error(t, err)
}

func TestCascade_VisitBoundOnDenseGraph(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	cards := make([]*models.JobCard, 8)
	var edges []models.DependencyEdge
	for i := range cards {
		cards[i] = f.card(&part, fmt.Sprintf("S%d", i), i, 10)
		for j := 0; j < i; j++ {
			edges = append(edges, dep(cards[j], cards[i]))
		}
	}
	f.plan(t, cards, edges)

	loaded, loadedEdges, err := f.store.LoadOrderGraph(context.Background(), f.orderID)
	require.NoError(t, err)
	g, err := graph.New(loaded, loadedEdges)
	require.NoError(t, err)
	ss := &session{
		g:       g,
		orderID: f.orderID,
		mut:     &repository.Mutation{OrderID: f.orderID},
		batch:   notify.NewBatch(),
		changed: make(map[uuid.UUID]bool),
		created: make(map[uuid.UUID]bool),
		now:     time.Now(),
	}

	// 28 edges reach every card from the head, yet each guard runs once
	visits, err := f.svc.cascadeFrom(context.Background(), ss, cards[0].CardID)
	require.NoError(t, err)
	assert.Equal(t, len(cards)-1, visits)
}

func TestMaterialGating(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	b.Material = &models.MaterialRequirement{
		MaterialID:  "MAT-9",
		RequiredQty: decimal.NewFromInt(5),
		Unit:        "kg",
	}
	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	f.start(t, a.CardID)
	f.complete(t, a.CardID, 10)

	// Prerequisites done but no stock: gated on material, shortfall recorded
	got := f.get(t, b.CardID)
	assert.Equal(t, models.StatusPendingMaterial, got.Status)
	assert.Equal(t, models.MaterialPending, got.MaterialStatus)
	shortfall, ok := f.store.Shortfall(b.CardID)
	require.True(t, ok)
	assert.True(t, shortfall.Shortfall.Equal(decimal.NewFromInt(5)))

	// Stock arrives
	f.oracle.SetStock("MAT-9", decimal.NewFromInt(5))
	status, err := f.svc.MaterialResolved(context.Background(), b.CardID, "stores")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, status)

	got = f.get(t, b.CardID)
	assert.Equal(t, models.MaterialAvailable, got.MaterialStatus)
	_, ok = f.store.Shortfall(b.CardID)
	assert.False(t, ok, "resolved shortfalls are deleted, not archived")
}

func TestMaterialOracleFailureAbortsOperation(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	b.Material = &models.MaterialRequirement{
		MaterialID:  "MAT-9",
		RequiredQty: decimal.NewFromInt(5),
		Unit:        "kg",
	}
	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	f.start(t, a.CardID)
	f.oracle.Fail(errors.New("inventory down"))

	_, err := f.svc.ReportProgress(context.Background(), a.CardID, ProgressReport{
		CompletedDelta: 10,
		Actor:          "operator",
	})
	var queryErr *material.QueryError
	require.ErrorAs(t, err, &queryErr)

	// Nothing committed: the completion itself was rolled back with the cascade
	got := f.get(t, a.CardID)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, int64(0), got.CompletedQty)

	// The oracle recovers and the same report goes through
	f.oracle.Fail(nil)
	f.oracle.SetStock("MAT-9", decimal.NewFromInt(5))
	f.complete(t, a.CardID, 10)
	assert.Equal(t, models.StatusReady, f.get(t, b.CardID).Status)
}

func TestAssemblyGate(t *testing.T) {
	f := newFixture(t)
	partX := uuid.New()
	partY := uuid.New()
	x0 := f.card(&partX, "X0", 0, 10)
	x1 := f.card(&partX, "X1", 1, 10)
	y0 := f.card(&partY, "Y0", 0, 10)
	asm := f.assembly("ASM")
	f.plan(t, []*models.JobCard{x0, x1, y0, asm},
		[]models.DependencyEdge{dep(x0, x1), dep(x1, asm), dep(y0, asm)})

	f.start(t, x0.CardID)
	f.complete(t, x0.CardID, 10)
	f.start(t, x1.CardID)

	// Rejection at the chain terminal: the rework card becomes a second
	// terminal the assembly gate must wait on
	_, err := f.svc.ReportProgress(context.Background(), x1.CardID, ProgressReport{
		CompletedDelta: 7,
		RejectedDelta:  3,
		Actor:          "operator",
	})
	require.NoError(t, err)

	parent := f.get(t, x1.CardID)
	require.NotNil(t, parent.ReworkCardID)
	reworkID := *parent.ReworkCardID

	f.start(t, y0.CardID)
	f.complete(t, y0.CardID, 10)
	assert.Equal(t, models.StatusBlocked, f.get(t, asm.CardID).Status,
		"assembly must wait for the rework terminal")

	f.start(t, reworkID)
	f.complete(t, reworkID, 3)
	assert.Equal(t, models.StatusReady, f.get(t, asm.CardID).Status)
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)
	a := f.card(nil, "A", 0, 10)
	f.plan(t, []*models.JobCard{a}, nil)

	f.start(t, a.CardID)

	status, err := f.svc.PauseCard(context.Background(), a.CardID, "operator")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, status)

	_, err = f.svc.ReportProgress(context.Background(), a.CardID, ProgressReport{
		CompletedDelta: 1,
		Actor:          "operator",
	})
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)

	status, err = f.svc.ResumeCard(context.Background(), a.CardID, "operator")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, status)
}

func TestGetOrderStatus(t *testing.T) {
	f := newFixture(t)
	part := uuid.New()
	a := f.card(&part, "A", 0, 10)
	b := f.card(&part, "B", 1, 10)
	b.Material = &models.MaterialRequirement{
		MaterialID:  "MAT-1",
		RequiredQty: decimal.NewFromInt(2),
		Unit:        "pcs",
	}
	f.plan(t, []*models.JobCard{a, b}, []models.DependencyEdge{dep(a, b)})

	f.start(t, a.CardID)
	f.complete(t, a.CardID, 10)

	status, err := f.svc.GetOrderStatus(context.Background(), f.orderID)
	require.NoError(t, err)

	assert.Equal(t, f.orderID, status.OrderID)
	require.Len(t, status.Chains, 1)
	assert.InDelta(t, 50.0, status.CompletionPct, 0.01)
	assert.Equal(t, int64(1), status.StatusCounts[models.StatusCompleted])
	assert.Equal(t, int64(1), status.StatusCounts[models.StatusPendingMaterial])

	require.Len(t, status.Blocking, 1)
	assert.Equal(t, b.CardID, status.Blocking[0].CardID)
	assert.Equal(t, blockReasonMaterial, status.Blocking[0].Reason)
}

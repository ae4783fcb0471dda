package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopfloor/planner/common/condition"
	"github.com/shopfloor/planner/common/graph"
	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/material"
	"github.com/shopfloor/planner/common/models"
	"github.com/shopfloor/planner/common/notify"
	"github.com/shopfloor/planner/common/repository"
)

// ExecutionService owns the job card lifecycle. It consumes production
// events (start, progress, rejection) and material events, re-evaluates the
// affected order's dependency graph, and commits the resulting transitions
// atomically before dispatching side effects through the outbox.
type ExecutionService struct {
	store  repository.Store
	oracle *material.Adapter
	outbox *notify.Outbox
	eval   *condition.Evaluator
	locks  *orderLocks
	log    *logger.Logger
}

// ExecutionServiceOpts contains options for creating an ExecutionService
type ExecutionServiceOpts struct {
	Store     repository.Store
	Oracle    *material.Adapter
	Outbox    *notify.Outbox
	Evaluator *condition.Evaluator
	Logger    *logger.Logger
}

// NewExecutionService creates an execution service
func NewExecutionService(opts *ExecutionServiceOpts) *ExecutionService {
	return &ExecutionService{
		store:  opts.Store,
		oracle: opts.Oracle,
		outbox: opts.Outbox,
		eval:   opts.Evaluator,
		locks:  newOrderLocks(),
		log:    opts.Logger,
	}
}

// session is the unit of work for one locked engine event: the order's graph
// snapshot, the accumulated mutation, and the side-effect batch that is
// dispatched only after the mutation commits.
type session struct {
	g       *graph.Graph
	orderID uuid.UUID
	mut     *repository.Mutation
	batch   *notify.Batch
	changed map[uuid.UUID]bool
	created map[uuid.UUID]bool
	actor   string
	now     time.Time
}

func (ss *session) markChanged(cardID uuid.UUID) {
	if !ss.created[cardID] {
		ss.changed[cardID] = true
	}
}

func (ss *session) touch(card *models.JobCard) {
	card.UpdatedAt = ss.now
	if ss.actor != "" {
		card.UpdatedBy = ss.actor
	}
}

// withOrder runs fn under the order's lock against a freshly loaded graph,
// then commits the mutation and dispatches the batch. If fn or the commit
// fails, nothing is persisted and the batch is dropped.
func (s *ExecutionService) withOrder(ctx context.Context, orderID uuid.UUID, actor string, fn func(ss *session) error) error {
	unlock := s.locks.lock(orderID)
	defer unlock()

	cards, edges, err := s.store.LoadOrderGraph(ctx, orderID)
	if err != nil {
		return err
	}
	g, err := graph.New(cards, edges)
	if err != nil {
		return fmt.Errorf("order %s graph is invalid: %w", orderID, err)
	}

	ss := &session{
		g:       g,
		orderID: orderID,
		mut:     &repository.Mutation{OrderID: orderID},
		batch:   notify.NewBatch(),
		changed: make(map[uuid.UUID]bool),
		created: make(map[uuid.UUID]bool),
		actor:   actor,
		now:     time.Now(),
	}

	if err := fn(ss); err != nil {
		return err
	}

	for cardID := range ss.changed {
		card, ok := ss.g.Card(cardID)
		if !ok {
			return fmt.Errorf("changed card %s missing from graph", cardID)
		}
		ss.mut.UpdatedCards = append(ss.mut.UpdatedCards, card)
	}

	if err := s.store.Commit(ctx, ss.mut); err != nil {
		return err
	}

	// Side effects leave the process only after the state mutation commits
	s.outbox.Dispatch(ctx, ss.batch)
	return nil
}

// PlanOrder loads the exploded card and edge set of a freshly planned order.
// The edge set is validated for acyclicity before anything is stored, and
// every card's initial eligibility is derived in one sweep.
func (s *ExecutionService) PlanOrder(ctx context.Context, orderID uuid.UUID, cards []*models.JobCard, edges []models.DependencyEdge, actor string) error {
	if len(cards) == 0 {
		return fmt.Errorf("order %s: no job cards to plan", orderID)
	}
	for _, card := range cards {
		if card.OrderID != orderID {
			return fmt.Errorf("card %s belongs to order %s, not %s", card.CardID, card.OrderID, orderID)
		}
		if card.Quantity <= 0 {
			return fmt.Errorf("card %s: quantity must be positive", card.CardID)
		}
		if card.Accounted() != 0 {
			return fmt.Errorf("card %s: planned cards must start with zero reported quantities", card.CardID)
		}
	}

	unlock := s.locks.lock(orderID)
	defer unlock()

	for _, card := range cards {
		card.Status = models.StatusPending
		if card.MaterialStatus == "" {
			card.MaterialStatus = models.MaterialPending
		}
		card.CreatedAt = time.Now()
		card.UpdatedAt = card.CreatedAt
		card.UpdatedBy = actor
	}

	g, err := graph.New(cards, edges)
	if err != nil {
		return err
	}

	// The assembly gate waits on the terminal card of every child-part chain.
	// The exploded set is not trusted to carry those edges; derive the ones it
	// misses and revalidate before the first sweep
	if missing := missingAssemblyEdges(g); len(missing) > 0 {
		edges = append(edges, missing...)
		if g, err = graph.New(cards, edges); err != nil {
			return err
		}
	}

	ss := &session{
		g:       g,
		orderID: orderID,
		mut:     &repository.Mutation{OrderID: orderID, NewCards: cards, NewEdges: edges},
		batch:   notify.NewBatch(),
		changed: make(map[uuid.UUID]bool),
		created: make(map[uuid.UUID]bool),
		actor:   actor,
		now:     time.Now(),
	}
	for _, card := range cards {
		ss.created[card.CardID] = true
	}

	if err := s.reevaluateAll(ctx, ss); err != nil {
		return err
	}

	ss.batch.AddEvent("order_planned", orderID, uuid.Nil, map[string]any{
		"cards": len(cards),
		"edges": len(edges),
	})

	if err := s.store.Commit(ctx, ss.mut); err != nil {
		return err
	}
	s.outbox.Dispatch(ctx, ss.batch)

	s.log.WithOrderID(orderID.String()).Info("order planned",
		"cards", len(cards), "edges", len(edges))
	return nil
}

// StartCard moves a READY card to IN_PROGRESS and records the assignment
func (s *ExecutionService) StartCard(ctx context.Context, cardID uuid.UUID, machineID, operatorID *string, actor string) (models.CardStatus, error) {
	orderID, err := s.orderOf(ctx, cardID)
	if err != nil {
		return "", err
	}

	var status models.CardStatus
	err = s.withOrder(ctx, orderID, actor, func(ss *session) error {
		card, ok := ss.g.Card(cardID)
		if !ok {
			return fmt.Errorf("card %s: %w", cardID, repository.ErrNotFound)
		}

		if prereqID, unsatisfiable := ss.g.UnsatisfiablePrerequisite(cardID); unsatisfiable {
			return &UnsatisfiablePrerequisiteError{CardID: cardID, PrerequisiteID: prereqID}
		}
		if card.Status != models.StatusReady {
			return &InvalidTransitionError{CardID: cardID, From: card.Status, Event: "start"}
		}

		card.Status = models.StatusInProgress
		card.InProgressQty = card.Remaining()
		if machineID != nil {
			card.MachineID = machineID
		}
		if operatorID != nil {
			card.OperatorID = operatorID
		}
		ss.touch(card)
		ss.markChanged(cardID)

		ss.batch.AddEvent("card_started", ss.orderID, cardID, map[string]any{
			"in_progress_qty": card.InProgressQty,
		})
		status = card.Status
		return nil
	})
	return status, err
}

// PauseCard pauses an IN_PROGRESS card
func (s *ExecutionService) PauseCard(ctx context.Context, cardID uuid.UUID, actor string) (models.CardStatus, error) {
	return s.flipPause(ctx, cardID, actor, models.StatusInProgress, models.StatusPaused, "pause")
}

// ResumeCard resumes a PAUSED card
func (s *ExecutionService) ResumeCard(ctx context.Context, cardID uuid.UUID, actor string) (models.CardStatus, error) {
	return s.flipPause(ctx, cardID, actor, models.StatusPaused, models.StatusInProgress, "resume")
}

func (s *ExecutionService) flipPause(ctx context.Context, cardID uuid.UUID, actor string, from, to models.CardStatus, event string) (models.CardStatus, error) {
	orderID, err := s.orderOf(ctx, cardID)
	if err != nil {
		return "", err
	}

	var status models.CardStatus
	err = s.withOrder(ctx, orderID, actor, func(ss *session) error {
		card, ok := ss.g.Card(cardID)
		if !ok {
			return fmt.Errorf("card %s: %w", cardID, repository.ErrNotFound)
		}
		if card.Status != from {
			return &InvalidTransitionError{CardID: cardID, From: card.Status, Event: event}
		}
		card.Status = to
		ss.touch(card)
		ss.markChanged(cardID)
		ss.batch.AddEvent("card_"+event+"d", ss.orderID, cardID, nil)
		status = card.Status
		return nil
	})
	return status, err
}

// ProgressReport is one production-floor report against an IN_PROGRESS card
type ProgressReport struct {
	CompletedDelta int64
	RejectedDelta  int64

	// AcceptScrap records the rejected delta as scrap instead of spawning a
	// rework card. Requires explicit intent from the caller.
	AcceptScrap bool

	// RestartFromStep positions the rework card; defaults to redoing the
	// rejected card's own step.
	RestartFromStep *int

	Actor string
}

// ReportProgress applies a completion/rejection report, spawns rework for
// rejected pieces, and cascades any terminal transition to dependents
func (s *ExecutionService) ReportProgress(ctx context.Context, cardID uuid.UUID, report ProgressReport) (models.CardStatus, error) {
	if report.CompletedDelta < 0 || report.RejectedDelta < 0 {
		return "", fmt.Errorf("card %s: negative deltas are not allowed", cardID)
	}
	if report.CompletedDelta == 0 && report.RejectedDelta == 0 {
		return "", fmt.Errorf("card %s: empty progress report", cardID)
	}

	orderID, err := s.orderOf(ctx, cardID)
	if err != nil {
		return "", err
	}

	var status models.CardStatus
	err = s.withOrder(ctx, orderID, report.Actor, func(ss *session) error {
		card, ok := ss.g.Card(cardID)
		if !ok {
			return fmt.Errorf("card %s: %w", cardID, repository.ErrNotFound)
		}
		if card.Status != models.StatusInProgress {
			return &InvalidTransitionError{CardID: cardID, From: card.Status, Event: "report_progress"}
		}

		delta := report.CompletedDelta + report.RejectedDelta
		if delta > card.InProgressQty {
			return &QuantityOverflowError{
				CardID:         cardID,
				Quantity:       card.Quantity,
				Accounted:      card.Accounted() - card.InProgressQty,
				CompletedDelta: report.CompletedDelta,
				RejectedDelta:  report.RejectedDelta,
			}
		}

		card.CompletedQty += report.CompletedDelta
		card.RejectedQty += report.RejectedDelta
		card.InProgressQty -= delta
		ss.touch(card)
		ss.markChanged(cardID)

		var rework *models.JobCard
		if report.RejectedDelta > 0 {
			if report.AcceptScrap {
				card.ScrapAccepted = true
			} else {
				restartFrom := card.StepIndex
				if report.RestartFromStep != nil {
					restartFrom = *report.RestartFromStep
				}
				var err error
				rework, err = s.spawnRework(ss, card, report.RejectedDelta, restartFrom)
				if err != nil {
					return err
				}
				// The patch replaced the graph; re-fetch the live instance
				card, _ = ss.g.Card(cardID)
			}
		}

		settleStatus(card)
		ss.batch.AddEvent("progress_reported", ss.orderID, cardID, map[string]any{
			"completed_delta": report.CompletedDelta,
			"rejected_delta":  report.RejectedDelta,
			"status":          string(card.Status),
		})

		if rework != nil {
			// A graph edit re-runs every non-terminal guard
			if err := s.reevaluateAll(ctx, ss); err != nil {
				return err
			}
		} else {
			// Partial completion can release min_qty and CEL edges, so the
			// walk runs on every report, not only on terminal transitions
			if _, err := s.cascadeFrom(ctx, ss, cardID); err != nil {
				return err
			}
		}

		status = card.Status
		return nil
	})
	return status, err
}

// settleStatus finalizes a card whose pieces are all accounted for
func settleStatus(card *models.JobCard) {
	if !card.Settled() || card.Status.Terminal() {
		return
	}
	if card.CompletedQty == 0 && card.RejectedQty+card.ReworkQty > 0 {
		card.Status = models.StatusRejected
	} else {
		card.Status = models.StatusCompleted
	}
}

// MaterialResolved handles a "material arrived" poke from the inventory
// subsystem: the cached answer is invalidated, the oracle re-queried, and the
// card released if stock now covers the requirement
func (s *ExecutionService) MaterialResolved(ctx context.Context, cardID uuid.UUID, actor string) (models.CardStatus, error) {
	orderID, err := s.orderOf(ctx, cardID)
	if err != nil {
		return "", err
	}

	var status models.CardStatus
	err = s.withOrder(ctx, orderID, actor, func(ss *session) error {
		card, ok := ss.g.Card(cardID)
		if !ok {
			return fmt.Errorf("card %s: %w", cardID, repository.ErrNotFound)
		}
		if card.Material == nil {
			status = card.Status
			return nil
		}

		s.oracle.Invalidate(ctx, card.Material.MaterialID)

		if card.Status == models.StatusPendingMaterial {
			changed, err := s.evaluateReadiness(ctx, ss, card)
			if err != nil {
				return err
			}
			if changed {
				if _, err := s.cascadeFrom(ctx, ss, cardID); err != nil {
					return err
				}
			}
		}

		status = card.Status
		return nil
	})
	return status, err
}

// GetCard returns a card by id
func (s *ExecutionService) GetCard(ctx context.Context, cardID uuid.UUID) (*models.JobCard, error) {
	return s.store.GetCard(ctx, cardID)
}

func (s *ExecutionService) orderOf(ctx context.Context, cardID uuid.UUID) (uuid.UUID, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return uuid.Nil, err
	}
	return card.OrderID, nil
}

package container

import (
	"github.com/shopfloor/planner/cmd/planner/service"
	"github.com/shopfloor/planner/common/bootstrap"
	"github.com/shopfloor/planner/common/condition"
	"github.com/shopfloor/planner/common/material"
	"github.com/shopfloor/planner/common/notify"
	"github.com/shopfloor/planner/common/repository"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	Store     *repository.PgStore
	Oracle    *material.Adapter
	Outbox    *notify.Outbox
	Evaluator *condition.Evaluator
	Execution *service.ExecutionService
	Reminder  *notify.Reminder
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	store := repository.NewPgStore(components.DB)

	inventory := material.NewInventoryClient(
		components.Config.Material.InventoryBaseURL,
		components.Logger,
	)
	oracle := material.NewAdapter(
		inventory,
		components.Cache,
		components.Config.Material,
		components.Logger,
	)

	outbox := notify.NewOutbox(&notify.OutboxOpts{
		Redis:    components.Redis,
		Queue:    components.Queue,
		Notifier: notify.NewLogNotifier(components.Logger),
		Logger:   components.Logger,
	})

	evaluator := condition.NewEvaluator()

	execution := service.NewExecutionService(&service.ExecutionServiceOpts{
		Store:     store,
		Oracle:    oracle,
		Outbox:    outbox,
		Evaluator: evaluator,
		Logger:    components.Logger,
	})

	reminder := notify.NewReminder(store, outbox, components.Config.Notify, components.Logger)

	return &Container{
		Components: components,
		Store:      store,
		Oracle:     oracle,
		Outbox:     outbox,
		Evaluator:  evaluator,
		Execution:  execution,
		Reminder:   reminder,
	}, nil
}

package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/shopfloor/planner/cmd/planner/container"
	"github.com/shopfloor/planner/cmd/planner/handlers"
)

// RegisterOrderRoutes registers order planning and progress routes
func RegisterOrderRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewOrderHandler(c.Execution, c.Components.Logger)

	orders := e.Group("/api/v1/orders")
	{
		orders.POST("/:id/plan", h.PlanOrder)
		orders.GET("/:id/chain-status", h.ChainStatus)
	}
}

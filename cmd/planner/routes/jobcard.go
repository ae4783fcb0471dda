package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/shopfloor/planner/cmd/planner/container"
	"github.com/shopfloor/planner/cmd/planner/handlers"
)

// RegisterJobCardRoutes registers job card lifecycle routes
func RegisterJobCardRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewJobCardHandler(c.Execution, c.Components.Logger)

	cards := e.Group("/api/v1/jobcards")
	{
		cards.GET("/:id", h.GetCard)
		cards.POST("/:id/start", h.StartCard)
		cards.POST("/:id/progress", h.ReportProgress)
		cards.POST("/:id/pause", h.PauseCard)
		cards.POST("/:id/resume", h.ResumeCard)
		cards.POST("/:id/rework", h.SpawnRework)
		cards.POST("/:id/material-resolved", h.MaterialResolved)
	}
}

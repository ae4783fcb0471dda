package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopfloor/planner/cmd/planner/container"
	"github.com/shopfloor/planner/cmd/planner/routes"
	"github.com/shopfloor/planner/common/bootstrap"
	"github.com/shopfloor/planner/common/repository"
	"github.com/shopfloor/planner/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, redis, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "planner",
		bootstrap.WithDBInitHook(repository.InitSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap planner: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Start the shortfall reminder scheduler
	if err := serviceContainer.Reminder.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start shortfall reminder: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Reminder.Stop()

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e, components)

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server
	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "planner",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterOrderRoutes(e, serviceContainer)
	routes.RegisterJobCardRoutes(e, serviceContainer)
}

// startServer runs the HTTP server with graceful shutdown on SIGINT/SIGTERM
func startServer(e *echo.Echo, components *bootstrap.Components) {
	srv := server.New("planner", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

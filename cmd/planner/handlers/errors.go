package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopfloor/planner/cmd/planner/service"
	"github.com/shopfloor/planner/common/graph"
	"github.com/shopfloor/planner/common/material"
	"github.com/shopfloor/planner/common/repository"
)

// writeError maps domain errors onto HTTP status codes. Integrity and
// quantity violations are client errors; an exhausted material oracle is the
// one upstream failure surfaced as unavailability.
func writeError(c echo.Context, err error) error {
	var (
		cycleErr    *graph.CycleError
		overflowErr *service.QuantityOverflowError
		invalidErr  *service.InvalidTransitionError
		unsatErr    *service.UnsatisfiablePrerequisiteError
		queryErr    *material.QueryError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &cycleErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &overflowErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &invalidErr):
		status = http.StatusConflict
	case errors.As(err, &unsatErr):
		status = http.StatusConflict
	case errors.As(err, &queryErr):
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, map[string]string{"error": err.Error()})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopfloor/planner/cmd/planner/models"
	"github.com/shopfloor/planner/cmd/planner/service"
	"github.com/shopfloor/planner/common/logger"
	common "github.com/shopfloor/planner/common/models"
)

// JobCardHandler handles job card lifecycle requests
type JobCardHandler struct {
	execution *service.ExecutionService
	log       *logger.Logger
}

// NewJobCardHandler creates a new job card handler
func NewJobCardHandler(execution *service.ExecutionService, log *logger.Logger) *JobCardHandler {
	return &JobCardHandler{
		execution: execution,
		log:       log,
	}
}

// GetCard returns one job card
// GET /api/v1/jobcards/:id
func (h *JobCardHandler) GetCard(c echo.Context) error {
	cardID, err := parseCardID(c)
	if err != nil {
		return err
	}

	card, err := h.execution.GetCard(c.Request().Context(), cardID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

// StartCard moves a READY card to IN_PROGRESS
// POST /api/v1/jobcards/:id/start
func (h *JobCardHandler) StartCard(c echo.Context) error {
	cardID, err := parseCardID(c)
	if err != nil {
		return err
	}

	var req models.StartCardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	status, err := h.execution.StartCard(c.Request().Context(), cardID, req.MachineID, req.OperatorID, req.Actor)
	if err != nil {
		return writeError(c, err)
	}
	return statusResponse(c, cardID, status)
}

// ReportProgress applies a completion/rejection report
// POST /api/v1/jobcards/:id/progress
func (h *JobCardHandler) ReportProgress(c echo.Context) error {
	cardID, err := parseCardID(c)
	if err != nil {
		return err
	}

	var req models.ProgressRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	status, err := h.execution.ReportProgress(c.Request().Context(), cardID, service.ProgressReport{
		CompletedDelta:  req.CompletedDelta,
		RejectedDelta:   req.RejectedDelta,
		AcceptScrap:     req.AcceptScrap,
		RestartFromStep: req.RestartFromStep,
		Actor:           req.Actor,
	})
	if err != nil {
		return writeError(c, err)
	}
	return statusResponse(c, cardID, status)
}

// PauseCard pauses an IN_PROGRESS card
// POST /api/v1/jobcards/:id/pause
func (h *JobCardHandler) PauseCard(c echo.Context) error {
	return h.actorEvent(c, h.execution.PauseCard)
}

// ResumeCard resumes a PAUSED card
// POST /api/v1/jobcards/:id/resume
func (h *JobCardHandler) ResumeCard(c echo.Context) error {
	return h.actorEvent(c, h.execution.ResumeCard)
}

// MaterialResolved handles a material-arrived poke from inventory
// POST /api/v1/jobcards/:id/material-resolved
func (h *JobCardHandler) MaterialResolved(c echo.Context) error {
	return h.actorEvent(c, h.execution.MaterialResolved)
}

// SpawnRework injects a rework card for a rejected card
// POST /api/v1/jobcards/:id/rework
func (h *JobCardHandler) SpawnRework(c echo.Context) error {
	cardID, err := parseCardID(c)
	if err != nil {
		return err
	}

	var req models.ReworkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	reworkID, err := h.execution.SpawnRework(c.Request().Context(), cardID, req.Quantity, req.RestartFromStep, req.Actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"card_id":        cardID.String(),
		"rework_card_id": reworkID.String(),
	})
}

func (h *JobCardHandler) actorEvent(c echo.Context, fn func(ctx context.Context, cardID uuid.UUID, actor string) (common.CardStatus, error)) error {
	cardID, err := parseCardID(c)
	if err != nil {
		return err
	}

	var req models.ActorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	status, err := fn(c.Request().Context(), cardID, req.Actor)
	if err != nil {
		return writeError(c, err)
	}
	return statusResponse(c, cardID, status)
}

func parseCardID(c echo.Context) (uuid.UUID, error) {
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid card id")
	}
	return cardID, nil
}

func statusResponse(c echo.Context, cardID uuid.UUID, status common.CardStatus) error {
	return c.JSON(http.StatusOK, models.StatusResponse{
		CardID: cardID.String(),
		Status: string(status),
	})
}

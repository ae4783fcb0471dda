package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopfloor/planner/cmd/planner/models"
	"github.com/shopfloor/planner/cmd/planner/service"
	"github.com/shopfloor/planner/common/logger"
)

// OrderHandler handles order-level requests
type OrderHandler struct {
	execution *service.ExecutionService
	log       *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(execution *service.ExecutionService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		execution: execution,
		log:       log,
	}
}

// PlanOrder loads an exploded card and edge set for an order
// POST /api/v1/orders/:id/plan
func (h *OrderHandler) PlanOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid order id"})
	}

	var req models.PlanOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	cards, err := req.ToCards(orderID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	edges, err := req.ToEdges()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.execution.PlanOrder(c.Request().Context(), orderID, cards, edges, req.Actor); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"order_id": orderID,
		"cards":    len(cards),
		"edges":    len(edges),
	})
}

// ChainStatus returns the order progress view
// GET /api/v1/orders/:id/chain-status
func (h *OrderHandler) ChainStatus(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid order id"})
	}

	status, err := h.execution.GetOrderStatus(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

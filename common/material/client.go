package material

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopfloor/planner/common/logger"
	"github.com/shopfloor/planner/common/models"
	"github.com/shopspring/decimal"
)

// InventoryClient queries the external piece-level inventory service for
// allocatable stock. It implements Oracle; retries belong to the Adapter.
type InventoryClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewInventoryClient creates a client for the inventory subsystem
func NewInventoryClient(baseURL string, log *logger.Logger) *InventoryClient {
	return &InventoryClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type stockResponse struct {
	MaterialID  string          `json:"material_id"`
	Allocatable decimal.Decimal `json:"allocatable"`
	Unit        string          `json:"unit"`
}

// Check asks the inventory service for allocatable stock and derives the
// availability status
func (c *InventoryClient) Check(ctx context.Context, req models.MaterialRequirement) (*CheckResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/stock/%s?unit=%s",
		c.baseURL, url.PathEscape(req.MaterialID), url.QueryEscape(req.Unit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build stock request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stock request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inventory service returned status %d for %s",
			resp.StatusCode, req.MaterialID)
	}

	var stock stockResponse
	if err := json.NewDecoder(resp.Body).Decode(&stock); err != nil {
		return nil, fmt.Errorf("decode stock response: %w", err)
	}

	c.log.Debug("stock answer",
		"material_id", req.MaterialID,
		"allocatable", stock.Allocatable.String(),
		"required", req.RequiredQty.String())

	return resultFor(req, stock.Allocatable), nil
}

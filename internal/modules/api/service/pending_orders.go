package service

import (
	"context"

	"trade_terminal/internal/models"
)

func (c *Client) AddPendingOrder(ctx context.Context, req AddPendingOrderRequest) (models.ResultCode, error) {
	var resp operationResponse
	if err := c.post(ctx, "add_pending_order", addPendingOrderPath, req, &resp, true); err != nil {
		return models.ResultTechnicalError, err
	}
	return resp.Result, nil
}

func (c *Client) RemovePendingOrder(ctx context.Context, req RemovePendingOrderRequest) (models.ResultCode, error) {
	var resp operationResponse
	if err := c.post(ctx, "remove_pending_order", removePendingOrderPath, req, &resp, true); err != nil {
		return models.ResultTechnicalError, err
	}
	return resp.Result, nil
}

package service

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"trade_terminal/internal/models"
)

func (c *Client) OpenPosition(ctx context.Context, req OpenPositionRequest) (models.ResultCode, error) {
	var resp operationResponse
	if err := c.post(ctx, "open_position", openPositionPath, req, &resp, true); err != nil {
		return models.ResultTechnicalError, err
	}
	return resp.Result, nil
}

func (c *Client) ClosePosition(ctx context.Context, req ClosePositionRequest) (models.ResultCode, error) {
	var resp operationResponse
	if err := c.post(ctx, "close_position", closePositionPath, req, &resp, true); err != nil {
		return models.ResultTechnicalError, err
	}
	return resp.Result, nil
}

func (c *Client) UpdateSLTP(ctx context.Context, req UpdateSLTPRequest) (models.ResultCode, error) {
	var resp operationResponse
	if err := c.post(ctx, "update_sltp", updateSLTPPath, req, &resp, true); err != nil {
		return models.ResultTechnicalError, err
	}
	return resp.Result, nil
}

// PositionsHistory: страница закрытых позиций счёта. page с нуля.
func (c *Client) PositionsHistory(ctx context.Context, accountID string, page, pageSize int) (models.HistoryPage, error) {
	if accountID == "" {
		return models.HistoryPage{}, errors.New("positions history: empty account id")
	}
	if page < 0 || pageSize <= 0 {
		return models.HistoryPage{}, errors.Errorf("positions history: bad page %d/%d", page, pageSize)
	}

	var resp historyResponse
	err := c.get(ctx, "positions_history", positionsHistoryPath, map[string]string{
		"accountId": accountID,
		"page":      strconv.Itoa(page),
		"pageSize":  strconv.Itoa(pageSize),
	}, &resp)
	if err != nil {
		return models.HistoryPage{}, err
	}
	if resp.Result != models.ResultOk {
		return models.HistoryPage{}, errors.Errorf("positions history: %s", resp.Result.Message())
	}

	out := models.HistoryPage{
		AccountID:  accountID,
		Page:       resp.Data.Page,
		PageSize:   resp.Data.PageSize,
		TotalItems: resp.Data.TotalItems,
		Items:      make([]models.ClosedPosition, 0, len(resp.Data.PositionsHistory)),
	}
	for _, p := range resp.Data.PositionsHistory {
		out.Items = append(out.Items, p.toModel())
	}
	return out, nil
}

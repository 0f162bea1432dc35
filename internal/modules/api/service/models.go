package service

import (
	"time"

	"trade_terminal/internal/models"
)

const (
	authenticatePath       = "/api/v1/Trader/Authenticate"
	refreshTokenPath       = "/api/v1/Trader/RefreshToken"
	openPositionPath       = "/api/v1/Positions/Open"
	closePositionPath      = "/api/v1/Positions/Close"
	updateSLTPPath         = "/api/v1/Positions/UpdateSLTP"
	positionsHistoryPath   = "/api/v1/Positions/History"
	addPendingOrderPath    = "/api/v1/PendingOrders/Add"
	removePendingOrderPath = "/api/v1/PendingOrders/Remove"
	keyValuePath           = "/api/v1/KeyValue"
)

type errorResponse struct {
	Message string `json:"message"`
}

// operationResponse: общий ответ торговых команд.
type operationResponse struct {
	Result models.ResultCode `json:"result"`
}

type authResponse struct {
	Result models.ResultCode `json:"result"`
	Data   struct {
		Token             string `json:"token"`
		RefreshToken      string `json:"refreshToken"`
		ReconnectTimeOut  int64  `json:"reconnectTimeOut"`  // ms
		ConnectionTimeOut int64  `json:"connectionTimeOut"` // ms
	} `json:"data"`
}

func (r authResponse) toModel() models.AuthResult {
	return models.AuthResult{
		Tokens: models.Tokens{
			Token:        r.Data.Token,
			RefreshToken: r.Data.RefreshToken,
		},
		ReconnectTimeout:  time.Duration(r.Data.ReconnectTimeOut) * time.Millisecond,
		ConnectionTimeout: time.Duration(r.Data.ConnectionTimeOut) * time.Millisecond,
	}
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// OpenPositionRequest: открытие позиции по рынку.
type OpenPositionRequest struct {
	ProcessID         string              `json:"processId"`
	AccountID         string              `json:"accountId"`
	InstrumentID      string              `json:"instrumentId"`
	Operation         models.Side         `json:"operation"`
	Multiplier        float64             `json:"multiplier"`
	InvestmentAmount  float64             `json:"investmentAmount"`
	TP                *float64            `json:"tp,omitempty"`
	TPType            *models.TriggerKind `json:"tpType,omitempty"`
	SL                *float64            `json:"sl,omitempty"`
	SLType            *models.TriggerKind `json:"slType,omitempty"`
	IsToppingUpActive bool                `json:"isToppingUpActive"`
}

type ClosePositionRequest struct {
	ProcessID  string `json:"processId"`
	AccountID  string `json:"accountId"`
	PositionID int64  `json:"positionId"`
}

// UpdateSLTPRequest: новые TP/SL целиком. nil-поле снимает уровень.
type UpdateSLTPRequest struct {
	ProcessID         string              `json:"processId"`
	AccountID         string              `json:"accountId"`
	PositionID        int64               `json:"positionId"`
	TP                *float64            `json:"tp"`
	TPType            *models.TriggerKind `json:"tpType"`
	SL                *float64            `json:"sl"`
	SLType            *models.TriggerKind `json:"slType"`
	IsToppingUpActive bool                `json:"isToppingUpActive"`
}

type AddPendingOrderRequest struct {
	ProcessID         string              `json:"processId"`
	AccountID         string              `json:"accountId"`
	InstrumentID      string              `json:"instrumentId"`
	Operation         models.Side         `json:"operation"`
	Multiplier        float64             `json:"multiplier"`
	InvestmentAmount  float64             `json:"investmentAmount"`
	OpenPrice         float64             `json:"openPrice"`
	TP                *float64            `json:"tp,omitempty"`
	TPType            *models.TriggerKind `json:"tpType,omitempty"`
	SL                *float64            `json:"sl,omitempty"`
	SLType            *models.TriggerKind `json:"slType,omitempty"`
	IsToppingUpActive bool                `json:"isToppingUpActive"`
}

type RemovePendingOrderRequest struct {
	ProcessID string `json:"processId"`
	AccountID string `json:"accountId"`
	OrderID   int64  `json:"orderId"`
}

type keyValueResponse struct {
	Result models.ResultCode `json:"result"`
	Data   *string           `json:"data"`
}

type keyValueRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type historyResponse struct {
	Result models.ResultCode `json:"result"`
	Data   struct {
		Page             int                `json:"page"`
		PageSize         int                `json:"pageSize"`
		TotalItems       int                `json:"totalItems"`
		PositionsHistory []closedPositionWS `json:"positionsHistory"`
	} `json:"data"`
}

type closedPositionWS struct {
	ID               int64       `json:"id"`
	AccountID        string      `json:"accountId"`
	Instrument       string      `json:"instrument"`
	Operation        models.Side `json:"operation"`
	InvestmentAmount float64     `json:"investmentAmount"`
	Multiplier       float64     `json:"multiplier"`
	OpenPrice        float64     `json:"openPrice"`
	ClosePrice       float64     `json:"closePrice"`
	OpenDate         int64       `json:"openDate"`
	CloseDate        int64       `json:"closeDate"`
	ProfitLoss       float64     `json:"profit"`
	Swap             float64     `json:"swap"`
	Commission       float64     `json:"commission"`
}

func (p closedPositionWS) toModel() models.ClosedPosition {
	return models.ClosedPosition{
		ID:               p.ID,
		AccountID:        p.AccountID,
		Instrument:       p.Instrument,
		Operation:        p.Operation,
		InvestmentAmount: p.InvestmentAmount,
		Multiplier:       p.Multiplier,
		OpenPrice:        p.OpenPrice,
		ClosePrice:       p.ClosePrice,
		OpenDate:         time.UnixMilli(p.OpenDate),
		CloseDate:        time.UnixMilli(p.CloseDate),
		ProfitLoss:       p.ProfitLoss,
		Swap:             p.Swap,
		Commission:       p.Commission,
	}
}

package models

import "time"

// Topic: имя канала стриминговой сессии.
type Topic string

const (
	TopicInit             Topic = "init"
	TopicPing             Topic = "ping"
	TopicPong             Topic = "pong"
	TopicAccounts         Topic = "accounts"
	TopicUpdateAccount    Topic = "update-account"
	TopicInstruments      Topic = "instruments"
	TopicBidAsk           Topic = "bid-ask"
	TopicPositions        Topic = "positions"
	TopicPendingOrders    Topic = "pending-orders"
	TopicSetActiveAccount Topic = "set-active-account"
	TopicUnauthorized     Topic = "unauthorized"
	TopicServerError      Topic = "server-error"
)

// Envelope оборачивает пуш: данные + счёт, к которому они относятся.
type Envelope[T any] struct {
	AccountID string `json:"accountId,omitempty"`
	Data      T      `json:"data"`
}

type ServerError struct {
	Reason string `json:"reason"`
}

// InitCommand: первый кадр после подключения, авторизует сессию.
type InitCommand struct {
	Token string `json:"token"`
}

// SetActiveAccountCommand: тело команды set-active-account.
type SetActiveAccountCommand struct {
	AccountID string `json:"accountId"`
}

// PositionWS: позиция в формате пуша.
type PositionWS struct {
	ID                        int64        `json:"id"`
	AccountID                 string       `json:"accountId"`
	Instrument                string       `json:"instrument"`
	Operation                 Side         `json:"operation"`
	InvestmentAmount          float64      `json:"investmentAmount"`
	Multiplier                float64      `json:"multiplier"`
	OpenPrice                 float64      `json:"openPrice"`
	OpenDate                  int64        `json:"openDate"`
	Swap                      float64      `json:"swap"`
	Commission                float64      `json:"commission"`
	TP                        *float64     `json:"tp,omitempty"`
	TPType                    *TriggerKind `json:"tpType,omitempty"`
	SL                        *float64     `json:"sl,omitempty"`
	SLType                    *TriggerKind `json:"slType,omitempty"`
	IsToppingUpActive         bool         `json:"isToppingUpActive"`
	ReservedFundsForToppingUp float64      `json:"reservedFundsForToppingUp"`
}

func (p PositionWS) ToModel() Position {
	return Position{
		ID:                        p.ID,
		AccountID:                 p.AccountID,
		Instrument:                p.Instrument,
		Operation:                 p.Operation,
		InvestmentAmount:          p.InvestmentAmount,
		Multiplier:                p.Multiplier,
		OpenPrice:                 p.OpenPrice,
		OpenDate:                  time.UnixMilli(p.OpenDate),
		Swap:                      p.Swap,
		Commission:                p.Commission,
		TP:                        TriggerFromWire(p.TP, p.TPType),
		SL:                        TriggerFromWire(p.SL, p.SLType),
		IsToppingUpActive:         p.IsToppingUpActive,
		ReservedFundsForToppingUp: p.ReservedFundsForToppingUp,
	}
}

// PendingOrderWS: отложенный ордер в формате пуша.
type PendingOrderWS struct {
	ID                int64        `json:"id"`
	AccountID         string       `json:"accountId"`
	Instrument        string       `json:"instrument"`
	Operation         Side         `json:"operation"`
	InvestmentAmount  float64      `json:"investmentAmount"`
	Multiplier        float64      `json:"multiplier"`
	OpenPrice         float64      `json:"openPrice"`
	Created           int64        `json:"created"`
	TP                *float64     `json:"tp,omitempty"`
	TPType            *TriggerKind `json:"tpType,omitempty"`
	SL                *float64     `json:"sl,omitempty"`
	SLType            *TriggerKind `json:"slType,omitempty"`
	IsToppingUpActive bool         `json:"isToppingUpActive"`
}

func (o PendingOrderWS) ToModel() PendingOrder {
	return PendingOrder{
		ID:                o.ID,
		AccountID:         o.AccountID,
		Instrument:        o.Instrument,
		Operation:         o.Operation,
		InvestmentAmount:  o.InvestmentAmount,
		Multiplier:        o.Multiplier,
		OpenPrice:         o.OpenPrice,
		Created:           time.UnixMilli(o.Created),
		TP:                TriggerFromWire(o.TP, o.TPType),
		SL:                TriggerFromWire(o.SL, o.SLType),
		IsToppingUpActive: o.IsToppingUpActive,
	}
}

package models

import "time"

// Side: направление сделки, как его шлёт сервер (0 = buy, 1 = sell).
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// Direction: +1 для buy, -1 для sell.
func (s Side) Direction() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Position: открытая позиция.
// Swap и Commission: знаковый вклад в P&L, как присылает сервер (списание < 0).
type Position struct {
	ID               int64
	AccountID        string
	Instrument       string
	Operation        Side
	InvestmentAmount float64
	Multiplier       float64
	OpenPrice        float64
	OpenDate         time.Time
	Swap             float64
	Commission       float64

	TP *Trigger
	SL *Trigger

	IsToppingUpActive         bool
	ReservedFundsForToppingUp float64
}

// Costs: издержки в знаке "положительные уменьшают P&L".
func (p Position) Costs() float64 { return -(p.Swap + p.Commission) }

// PendingOrder: отложенный ордер на открытие по цене OpenPrice.
type PendingOrder struct {
	ID               int64
	AccountID        string
	Instrument       string
	Operation        Side
	InvestmentAmount float64
	Multiplier       float64
	OpenPrice        float64
	Created          time.Time

	TP *Trigger
	SL *Trigger

	IsToppingUpActive bool
}

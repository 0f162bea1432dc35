package models

import "time"

// ClosedPosition: запись истории сделок. Источник правды, сервер.
type ClosedPosition struct {
	ID               int64
	AccountID        string
	Instrument       string
	Operation        Side
	InvestmentAmount float64
	Multiplier       float64
	OpenPrice        float64
	ClosePrice       float64
	OpenDate         time.Time
	CloseDate        time.Time
	ProfitLoss       float64
	Swap             float64
	Commission       float64
}

// HistoryPage: страница истории и курсор для следующей.
type HistoryPage struct {
	AccountID  string
	Page       int
	PageSize   int
	TotalItems int
	Items      []ClosedPosition
}

// HasMore: есть ли ещё страницы после этой.
func (p HistoryPage) HasMore() bool {
	return (p.Page+1)*p.PageSize < p.TotalItems
}

package models

// Candle: OHLC одной стороны котировки.
type Candle struct {
	C float64 `json:"c"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	O float64 `json:"o"`
}

// Quote: последняя котировка инструмента. Истории нет.
type Quote struct {
	ID  string `json:"id"`
	Bid Candle `json:"bid"`
	Ask Candle `json:"ask"`
	Dir Side   `json:"dir"`
	Dt  int64  `json:"dt"` // unix ms
}

// ClosePrice: цена, по которой закрылась бы позиция стороны s:
// buy закрывается по bid, sell по ask.
func (q Quote) ClosePrice(s Side) float64 {
	if s == SideSell {
		return q.Ask.C
	}
	return q.Bid.C
}

// OpenPrice: цена входа для нового ордера стороны s.
func (q Quote) OpenPrice(s Side) float64 {
	if s == SideSell {
		return q.Bid.C
	}
	return q.Ask.C
}

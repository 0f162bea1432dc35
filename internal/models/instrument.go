package models

// Instrument: метаданные инструмента. После получения не меняется,
// при переподключении приходит целиком заново.
type Instrument struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Digits             int       `json:"digits"`
	Multipliers        []float64 `json:"multiplier"`
	StopOutPercent     float64   `json:"stopOutPercent"`
	Group              string    `json:"groupId"`
	Base               string    `json:"base"`
	Quote              string    `json:"quote"`
	MinOperationVolume float64   `json:"minOperationVolume"`
	MaxOperationVolume float64   `json:"maxOperationVolume"`

	// bid/ask иногда приходят прямо в списке инструментов
	Bid *float64 `json:"bid,omitempty"`
	Ask *float64 `json:"ask,omitempty"`
}

func (i Instrument) HasMultiplier(m float64) bool {
	for _, v := range i.Multipliers {
		if v == m {
			return true
		}
	}
	return false
}

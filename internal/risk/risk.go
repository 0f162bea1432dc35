// Package risk: чистые функции расчёта P&L, стоп-аута и цен срабатывания TP/SL.
// Внутри считаем в полной точности float64, округление только для показа.
package risk

import (
	"math"

	"github.com/pkg/errors"

	"trade_terminal/internal/models"
)

// DefaultStopOutPercent: если инструмент неизвестен или сервер не прислал процент.
const DefaultStopOutPercent = 95.0

var (
	ErrNoTrigger    = errors.New("trigger is not set")
	ErrZeroExposure = errors.New("investment * multiplier must be positive")
	ErrNoPrice      = errors.New("no reference price")
)

// PriceLookup: источник текущих bid/ask (Quote Store). 0 = котировки нет.
type PriceLookup interface {
	Bid(instrumentID string) float64
	Ask(instrumentID string) float64
}

type FloatingPnLParams struct {
	Investment   float64
	Multiplier   float64
	Costs        float64 // swap + commission, положительные уменьшают P&L
	Side         models.Side
	CurrentPrice float64
	OpenPrice    float64
}

// FloatingPnL = (current/open - 1) * investment * multiplier * side - costs. Без округления.
func FloatingPnL(p FloatingPnLParams) float64 {
	if p.OpenPrice == 0 {
		return -p.Costs
	}
	return (p.CurrentPrice/p.OpenPrice-1)*p.Investment*p.Multiplier*p.Side.Direction() - p.Costs
}

// PositionPnL: плавающий P&L позиции по текущей котировке.
// buy закрывается по bid, sell по ask. false: котировки нет, показываем плейсхолдер.
func PositionPnL(pos models.Position, prices PriceLookup) (float64, bool) {
	if prices == nil {
		return 0, false
	}
	current := closePrice(prices, pos.Instrument, pos.Operation)
	if current <= 0 {
		return 0, false
	}
	return FloatingPnL(FloatingPnLParams{
		Investment:   pos.InvestmentAmount,
		Multiplier:   pos.Multiplier,
		Costs:        pos.Costs(),
		Side:         pos.Operation,
		CurrentPrice: current,
		OpenPrice:    pos.OpenPrice,
	}), true
}

// StopOutLevel: максимальный убыток в валюте счёта до принудительного закрытия.
// Только для предупреждений в интерфейсе, сами ничего не закрываем.
func StopOutLevel(investment float64, instrument *models.Instrument) float64 {
	percent := DefaultStopOutPercent
	if instrument != nil && instrument.StopOutPercent > 0 {
		percent = instrument.StopOutPercent
	}
	return RoundMoney(investment * percent / 100)
}

// StopOutBreached: убыток по SL больше, чем сервер позволит до стоп-аута.
func StopOutBreached(slCurrency, stopOut float64) bool {
	return math.Abs(slCurrency) > stopOut
}

// TargetParams: вход для пересчёта между ценой и P&L.
type TargetParams struct {
	TargetValue      float64
	TargetIsPrice    bool
	InvestmentAmount float64
	Multiplier       float64
	Side             models.Side
	InstrumentID     string
	// Commission: знаковый вклад в P&L, как у позиции (списание < 0)
	Commission float64
	Prices     PriceLookup
	IsNewOrder bool
	OpenPrice  float64
}

// PriceForTargetPnL переводит денежную цель TP/SL в цену срабатывания:
//
//	price = base * (1 + dir * (target - commission) / (investment * multiplier))
//
// base: живой ask/bid для нового ордера или цена открытия для позиции.
func PriceForTargetPnL(p TargetParams) (float64, error) {
	if p.TargetValue == 0 {
		return 0, ErrNoTrigger
	}
	if p.TargetIsPrice {
		return p.TargetValue, nil
	}
	exposure := p.InvestmentAmount * p.Multiplier
	if exposure <= 0 {
		return 0, errors.Wrapf(ErrZeroExposure, "investment=%v multiplier=%v", p.InvestmentAmount, p.Multiplier)
	}
	base, err := basePrice(p)
	if err != nil {
		return 0, err
	}
	return base * (1 + p.Side.Direction()*(p.TargetValue-p.Commission)/exposure), nil
}

// PercentToCurrency: процент от инвестиции в деньги.
func PercentToCurrency(percent, investment float64) float64 {
	return percent / 100 * investment
}

// TriggerPrice: цена срабатывания для TP/SL любого вида.
// Значение читаем строго под его тегом.
func TriggerPrice(t *models.Trigger, p TargetParams) (float64, error) {
	if !t.IsSet() {
		return 0, ErrNoTrigger
	}
	switch t.Kind() {
	case models.TriggerPrice:
		p.TargetValue, p.TargetIsPrice = t.Value(), true
	case models.TriggerCurrency:
		p.TargetValue, p.TargetIsPrice = t.Value(), false
	case models.TriggerPercent:
		p.TargetValue, p.TargetIsPrice = PercentToCurrency(t.Value(), p.InvestmentAmount), false
	default:
		return 0, errors.Wrapf(models.ErrInvalidTrigger, "kind %s", t.Kind())
	}
	return PriceForTargetPnL(p)
}

// CurrencyForPrice считает обратное, P&L в валюте счёта, если цена дойдёт до
// p.TargetValue. Округляем до центов, как показываем пользователю.
func CurrencyForPrice(p TargetParams) (float64, error) {
	if p.TargetValue == 0 {
		return 0, ErrNoTrigger
	}
	base, err := basePrice(p)
	if err != nil {
		return 0, err
	}
	pnl := (p.TargetValue/base-1)*p.InvestmentAmount*p.Multiplier*p.Side.Direction() + p.Commission
	return RoundMoney(pnl), nil
}

func basePrice(p TargetParams) (float64, error) {
	var base float64
	if p.IsNewOrder {
		if p.Prices != nil {
			if p.Side == models.SideSell {
				base = p.Prices.Bid(p.InstrumentID)
			} else {
				base = p.Prices.Ask(p.InstrumentID)
			}
		}
	} else {
		base = p.OpenPrice
	}
	if base <= 0 {
		return 0, errors.Wrapf(ErrNoPrice, "instrument %s", p.InstrumentID)
	}
	return base, nil
}

func closePrice(prices PriceLookup, instrumentID string, side models.Side) float64 {
	if side == models.SideSell {
		return prices.Ask(instrumentID)
	}
	return prices.Bid(instrumentID)
}

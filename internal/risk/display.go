package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"trade_terminal/internal/models"
)

// RoundMoney: до 2 знаков, только для показа и уровня стоп-аута.
func RoundMoney(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func FormatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// RoundPrice: до точности инструмента. digits < 0 (инструмент неизвестен), без округления.
func RoundPrice(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(int32(digits)).Float64()
	return f
}

func FormatPrice(v float64, digits int) string {
	if digits < 0 {
		return decimal.NewFromFloat(v).String()
	}
	return decimal.NewFromFloat(v).StringFixed(int32(digits))
}

// TickSize: шаг цены по числу знаков.
func TickSize(digits int) float64 {
	if digits < 0 {
		return 0
	}
	return math.Pow10(-digits)
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	return math.Floor(px/tick+1e-12) * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	return math.Ceil(px/tick-1e-12) * tick
}

// SnapTriggerPrice округляет цену срабатывания к шагу инструмента так,
// чтобы уровень сработал не позже расчётного.
func SnapTriggerPrice(px float64, digits int, side models.Side, isTP bool) float64 {
	tick := TickSize(digits)
	if (side == models.SideBuy) != isTP {
		return RoundUpToTick(px, tick)
	}
	return RoundDownToTick(px, tick)
}

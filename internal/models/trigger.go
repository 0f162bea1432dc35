package models

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// TriggerKind: как трактовать значение TP/SL.
type TriggerKind int

const (
	TriggerCurrency TriggerKind = iota
	TriggerPercent
	TriggerPrice
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerCurrency:
		return "currency"
	case TriggerPercent:
		return "percent"
	case TriggerPrice:
		return "price"
	default:
		return fmt.Sprintf("TriggerKind(%d)", int(k))
	}
}

func (k TriggerKind) Valid() bool {
	return k == TriggerCurrency || k == TriggerPercent || k == TriggerPrice
}

var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger задаёт уровень TP или SL как тег + значение.
// Поля закрыты: значение нельзя прочитать под другим тегом.
type Trigger struct {
	kind  TriggerKind
	value float64
}

// NewTrigger возвращает nil без ошибки, если value == 0: ноль значит "не задан".
func NewTrigger(kind TriggerKind, value float64) (*Trigger, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrInvalidTrigger, "unknown kind %d", int(kind))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, errors.Wrapf(ErrInvalidTrigger, "%s value is not finite", kind)
	}
	if value == 0 {
		return nil, nil
	}
	if kind == TriggerPrice && value < 0 {
		return nil, errors.Wrapf(ErrInvalidTrigger, "negative price %v", value)
	}
	return &Trigger{kind: kind, value: value}, nil
}

func (t *Trigger) Kind() TriggerKind { return t.kind }
func (t *Trigger) Value() float64    { return t.value }

// IsSet: nil-safe проверка, задан ли уровень.
func (t *Trigger) IsSet() bool { return t != nil && t.value != 0 }

func (t *Trigger) String() string {
	if !t.IsSet() {
		return "none"
	}
	return fmt.Sprintf("%v %s", t.value, t.kind)
}

// TriggerFromWire собирает Trigger из пары полей DTO. Битые данные дают nil.
func TriggerFromWire(value *float64, kind *TriggerKind) *Trigger {
	if value == nil {
		return nil
	}
	k := TriggerCurrency
	if kind != nil {
		k = *kind
	}
	t, err := NewTrigger(k, *value)
	if err != nil {
		return nil
	}
	return t
}

// Wire раскладывает Trigger обратно в пару полей запроса.
func (t *Trigger) Wire() (*float64, *TriggerKind) {
	if !t.IsSet() {
		return nil, nil
	}
	v, k := t.value, t.kind
	return &v, &k
}

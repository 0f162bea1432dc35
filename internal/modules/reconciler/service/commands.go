package service

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trade_terminal/internal/models"
	apisvc "trade_terminal/internal/modules/api/service"
	"trade_terminal/internal/risk"
)

// OpenPositionCommand: открыть позицию по рынку.
type OpenPositionCommand struct {
	Instrument        string
	Side              models.Side
	InvestmentAmount  float64
	Multiplier        float64
	TP                *models.Trigger
	SL                *models.Trigger
	IsToppingUpActive bool
}

// PendingOrderCommand: отложенный ордер на открытие по OpenPrice.
type PendingOrderCommand struct {
	OpenPositionCommand
	OpenPrice float64
}

func (s *Store) OpenPosition(ctx context.Context, cmd OpenPositionCommand) (models.CommandResult, error) {
	accountID, err := s.validateOrder(cmd, 0)
	if err != nil {
		return models.CommandResult{}, err
	}

	req := apisvc.OpenPositionRequest{
		ProcessID:         uuid.NewString(),
		AccountID:         accountID,
		InstrumentID:      cmd.Instrument,
		Operation:         cmd.Side,
		Multiplier:        cmd.Multiplier,
		InvestmentAmount:  cmd.InvestmentAmount,
		IsToppingUpActive: cmd.IsToppingUpActive,
	}
	req.TP, req.TPType = cmd.TP.Wire()
	req.SL, req.SLType = cmd.SL.Wire()

	code, err := s.api.OpenPosition(ctx, req)
	return s.result("open_position", req.ProcessID, code, err)
}

func (s *Store) AddPendingOrder(ctx context.Context, cmd PendingOrderCommand) (models.CommandResult, error) {
	if !(cmd.OpenPrice > 0) || math.IsInf(cmd.OpenPrice, 0) {
		return models.CommandResult{}, errors.Wrapf(ErrValidation, "open price %v", cmd.OpenPrice)
	}
	accountID, err := s.validateOrder(cmd.OpenPositionCommand, cmd.OpenPrice)
	if err != nil {
		return models.CommandResult{}, err
	}

	req := apisvc.AddPendingOrderRequest{
		ProcessID:         uuid.NewString(),
		AccountID:         accountID,
		InstrumentID:      cmd.Instrument,
		Operation:         cmd.Side,
		Multiplier:        cmd.Multiplier,
		InvestmentAmount:  cmd.InvestmentAmount,
		OpenPrice:         cmd.OpenPrice,
		IsToppingUpActive: cmd.IsToppingUpActive,
	}
	req.TP, req.TPType = cmd.TP.Wire()
	req.SL, req.SLType = cmd.SL.Wire()

	code, err := s.api.AddPendingOrder(ctx, req)
	return s.result("add_pending_order", req.ProcessID, code, err)
}

func (s *Store) ClosePosition(ctx context.Context, positionID int64) (models.CommandResult, error) {
	accountID, err := s.requireActive()
	if err != nil {
		return models.CommandResult{}, err
	}
	if positionID <= 0 {
		return models.CommandResult{}, errors.Wrapf(ErrValidation, "position id %d", positionID)
	}

	req := apisvc.ClosePositionRequest{
		ProcessID:  uuid.NewString(),
		AccountID:  accountID,
		PositionID: positionID,
	}
	code, err := s.api.ClosePosition(ctx, req)
	return s.result("close_position", req.ProcessID, code, err)
}

func (s *Store) RemovePendingOrder(ctx context.Context, orderID int64) (models.CommandResult, error) {
	accountID, err := s.requireActive()
	if err != nil {
		return models.CommandResult{}, err
	}
	if orderID <= 0 {
		return models.CommandResult{}, errors.Wrapf(ErrValidation, "order id %d", orderID)
	}

	req := apisvc.RemovePendingOrderRequest{
		ProcessID: uuid.NewString(),
		AccountID: accountID,
		OrderID:   orderID,
	}
	code, err := s.api.RemovePendingOrder(ctx, req)
	return s.result("remove_pending_order", req.ProcessID, code, err)
}

// UpdateSLTP задаёт TP/SL позиции целиком; nil снимает уровень.
func (s *Store) UpdateSLTP(ctx context.Context, positionID int64, tp, sl *models.Trigger) (models.CommandResult, error) {
	accountID, err := s.requireActive()
	if err != nil {
		return models.CommandResult{}, err
	}
	pos, ok := s.Position(positionID)
	if !ok {
		return models.CommandResult{}, errors.Wrapf(ErrUnknownPosition, "id %d", positionID)
	}

	params := risk.TargetParams{
		InvestmentAmount: pos.InvestmentAmount,
		Multiplier:       pos.Multiplier,
		Side:             pos.Operation,
		InstrumentID:     pos.Instrument,
		Commission:       pos.Commission,
		OpenPrice:        pos.OpenPrice,
	}
	if err := s.validateTriggers(params, tp, sl); err != nil {
		return models.CommandResult{}, err
	}

	req := apisvc.UpdateSLTPRequest{
		ProcessID:         uuid.NewString(),
		AccountID:         accountID,
		PositionID:        positionID,
		IsToppingUpActive: pos.IsToppingUpActive,
	}
	req.TP, req.TPType = tp.Wire()
	req.SL, req.SLType = sl.Wire()

	code, err := s.api.UpdateSLTP(ctx, req)
	return s.result("update_sltp", req.ProcessID, code, err)
}

func (s *Store) result(op, processID string, code models.ResultCode, err error) (models.CommandResult, error) {
	res := models.NewCommandResult(code, processID)
	if err != nil {
		s.log.Error("command failed", zap.String("op", op), zap.String("process_id", processID), zap.Error(err))
		return res, err
	}
	if !res.OK() {
		s.log.Info("command rejected",
			zap.String("op", op),
			zap.String("process_id", processID),
			zap.Int("code", int(code)),
			zap.String("message", res.Message),
		)
	}
	return res, nil
}

func (s *Store) requireActive() (string, error) {
	s.mu.RLock()
	id := s.effectiveAccountID()
	s.mu.RUnlock()
	if id == "" {
		return "", ErrNoActiveAccount
	}
	return id, nil
}

// validateOrder проверяет сумму, плечо и TP/SL до отправки.
// openPrice > 0: отложенный ордер, база для TP/SL его цена.
func (s *Store) validateOrder(cmd OpenPositionCommand, openPrice float64) (string, error) {
	accountID, err := s.requireActive()
	if err != nil {
		return "", err
	}
	if cmd.Instrument == "" {
		return "", errors.Wrap(ErrValidation, "empty instrument")
	}
	if !cmd.Side.Valid() {
		return "", errors.Wrapf(ErrValidation, "side %d", int(cmd.Side))
	}
	if !(cmd.InvestmentAmount > 0) || math.IsInf(cmd.InvestmentAmount, 0) {
		return "", errors.Wrapf(ErrValidation, "investment amount %v", cmd.InvestmentAmount)
	}
	if !(cmd.Multiplier > 0) || math.IsInf(cmd.Multiplier, 0) {
		return "", errors.Wrapf(ErrValidation, "multiplier %v", cmd.Multiplier)
	}

	if inst, ok := s.instruments.Instrument(cmd.Instrument); ok {
		if len(inst.Multipliers) > 0 && !inst.HasMultiplier(cmd.Multiplier) {
			return "", errors.Wrapf(ErrValidation, "multiplier %v not offered for %s", cmd.Multiplier, cmd.Instrument)
		}
		if inst.MinOperationVolume > 0 && cmd.InvestmentAmount*cmd.Multiplier < inst.MinOperationVolume {
			return "", errors.Wrapf(ErrValidation, "volume below minimum %v", inst.MinOperationVolume)
		}
		if inst.MaxOperationVolume > 0 && cmd.InvestmentAmount*cmd.Multiplier > inst.MaxOperationVolume {
			return "", errors.Wrapf(ErrValidation, "volume above maximum %v", inst.MaxOperationVolume)
		}
	}
	if acc, ok := s.ActiveAccount(); ok && !acc.AllowsMultiplier(cmd.Multiplier) {
		return "", errors.Wrapf(ErrValidation, "multiplier %v outside account limits", cmd.Multiplier)
	}

	params := risk.TargetParams{
		InvestmentAmount: cmd.InvestmentAmount,
		Multiplier:       cmd.Multiplier,
		Side:             cmd.Side,
		InstrumentID:     cmd.Instrument,
		Prices:           s.quotes,
		IsNewOrder:       openPrice == 0,
		OpenPrice:        openPrice,
	}
	if err := s.validateTriggers(params, cmd.TP, cmd.SL); err != nil {
		return "", err
	}
	return accountID, nil
}

// validateTriggers: TP должен быть в прибыльную сторону от базовой цены, SL в
// убыточную и не дальше стоп-аута. Без котировки для нового ордера проверяем
// только то, что можно проверить без цены.
func (s *Store) validateTriggers(p risk.TargetParams, tp, sl *models.Trigger) error {
	var inst *models.Instrument
	if it, ok := s.instruments.Instrument(p.InstrumentID); ok {
		inst = &it
	}
	stopOut := risk.StopOutLevel(p.InvestmentAmount, inst)

	check := func(name string, t *models.Trigger, wantProfit bool) error {
		if !t.IsSet() {
			return nil
		}
		q := p
		if t.Kind() != models.TriggerPrice {
			v := t.Value()
			if wantProfit && v < 0 {
				return errors.Wrapf(ErrValidation, "%s %v %s is not a profit", name, v, t.Kind())
			}
			// SL в деньгах/процентах задаётся величиной убытка
			v = math.Abs(v)
			if t.Kind() == models.TriggerPercent {
				v = risk.PercentToCurrency(v, p.InvestmentAmount)
			}
			if !wantProfit {
				if risk.StopOutBreached(v, stopOut) {
					return errors.Wrapf(ErrValidation, "%s %v beyond stop out %v", name, v, stopOut)
				}
				v = -v
			}
			q.TargetValue, q.TargetIsPrice = v, false
		} else {
			q.TargetValue, q.TargetIsPrice = t.Value(), true
		}

		price, err := risk.PriceForTargetPnL(q)
		if errors.Is(err, risk.ErrNoPrice) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(ErrValidation, "%s: %v", name, err)
		}
		if !(price > 0) {
			return errors.Wrapf(ErrValidation, "%s trigger price %v", name, price)
		}
		if t.Kind() != models.TriggerPrice {
			return nil
		}

		// ценовой уровень: сверяем сторону с базой, если база известна
		base := q
		base.TargetValue = price
		pnl, err := risk.CurrencyForPrice(base)
		if errors.Is(err, risk.ErrNoPrice) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(ErrValidation, "%s: %v", name, err)
		}
		move := pnl - p.Commission
		if wantProfit && move <= 0 {
			return errors.Wrapf(ErrValidation, "%s %v is on the losing side", name, price)
		}
		if !wantProfit {
			if move >= 0 {
				return errors.Wrapf(ErrValidation, "%s %v is on the winning side", name, price)
			}
			if risk.StopOutBreached(move, stopOut) {
				return errors.Wrapf(ErrValidation, "%s %v beyond stop out %v", name, price, stopOut)
			}
		}
		return nil
	}

	if err := check("tp", tp, true); err != nil {
		return err
	}
	return check("sl", sl, false)
}

package models

import "fmt"

// ResultCode: код результата операции request API.
type ResultCode int

const (
	ResultOk ResultCode = iota
	ResultTechnicalError
	ResultInvalidUserNameOrPassword
	ResultAccountNotFound
	ResultInstrumentNotFound
	ResultInsufficientBalance
	ResultInvalidInvestmentAmount
	ResultInvalidMultiplier
	ResultInvalidTakeProfit
	ResultInvalidStopLoss
	ResultPositionNotFound
	ResultPendingOrderNotFound
	ResultMarketClosed
	ResultTooManyRequests
	ResultInvalidRefreshToken
)

var resultMessages = map[ResultCode]string{
	ResultOk:                        "ok",
	ResultTechnicalError:            "technical error, try again later",
	ResultInvalidUserNameOrPassword: "invalid user name or password",
	ResultAccountNotFound:           "account not found",
	ResultInstrumentNotFound:        "instrument not found",
	ResultInsufficientBalance:       "insufficient balance",
	ResultInvalidInvestmentAmount:   "invalid investment amount",
	ResultInvalidMultiplier:         "invalid multiplier",
	ResultInvalidTakeProfit:         "invalid take profit",
	ResultInvalidStopLoss:           "invalid stop loss",
	ResultPositionNotFound:          "position not found",
	ResultPendingOrderNotFound:      "pending order not found",
	ResultMarketClosed:              "market is closed",
	ResultTooManyRequests:           "too many requests",
	ResultInvalidRefreshToken:       "invalid refresh token",
}

// Message: текст для пользователя. Неизвестный код не теряем.
func (c ResultCode) Message() string {
	if m, ok := resultMessages[c]; ok {
		return m
	}
	return fmt.Sprintf("unexpected result code %d", int(c))
}

func (c ResultCode) String() string { return c.Message() }

// CommandResult: итог пользовательской команды. Локальные коллекции
// команда не трогает: подтверждение придёт пушем.
type CommandResult struct {
	Code      ResultCode
	Message   string
	ProcessID string
}

func (r CommandResult) OK() bool { return r.Code == ResultOk }

func NewCommandResult(code ResultCode, processID string) CommandResult {
	return CommandResult{Code: code, Message: code.Message(), ProcessID: processID}
}

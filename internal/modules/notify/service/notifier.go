package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trade_terminal/internal/models"
	reconsvc "trade_terminal/internal/modules/reconciler/service"
	"trade_terminal/internal/risk"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Source: откуда нотифайер берёт данные для ответов на команды.
type Source interface {
	Snapshot() reconsvc.Snapshot
	Positions() []models.Position
	PositionsPnL() []reconsvc.PositionPnL
}

// Log пишет уведомления в лог, когда Telegram не настроен.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log.Named("notify")} }

func (l *Log) Send(msg string)                  { l.log.Info(msg) }
func (l *Log) Sendf(format string, args ...any) { l.log.Info(fmt.Sprintf(format, args...)) }

func formatAlert(a models.Alert) string {
	emoji := "ℹ️"
	switch a.Level {
	case models.AlertWarning:
		emoji = "⚠️"
	case models.AlertError:
		emoji = "❗️"
	}
	if a.Message == "" {
		return fmt.Sprintf("%s %s", emoji, a.Title)
	}
	return fmt.Sprintf("%s %s: %s", emoji, a.Title, a.Message)
}

func formatPositions(src Source) string {
	positions := src.Positions()
	if len(positions) == 0 {
		return "📭 Открытых позиций нет"
	}
	pnl := make(map[int64]reconsvc.PositionPnL, len(positions))
	for _, p := range src.PositionsPnL() {
		pnl[p.PositionID] = p
	}

	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range positions {
		side := "BUY"
		if p.Operation == models.SideSell {
			side = "SELL"
		}
		cur := "n/a"
		if v, ok := pnl[p.ID]; ok && v.OK {
			cur = risk.FormatMoney(v.PnL)
		}
		fmt.Fprintf(&b, "- #%d %s [%s] inv=%s x%g pnl=%s\n",
			p.ID, p.Instrument, side, risk.FormatMoney(p.InvestmentAmount), p.Multiplier, cur)
	}
	return b.String()
}

func formatState(src Source) string {
	s := src.Snapshot()
	account := s.ActiveAccountID
	if account == "" {
		account = "не выбран"
	} else if !s.Confirmed {
		account += " (ожидает подтверждения)"
	}
	return fmt.Sprintf("Счёт: %s\nСчетов: %d\nПозиций: %d\nОтложенных: %d\nИнструментов: %d\nПереподключение: %t",
		account, s.Accounts, s.Positions, s.PendingOrders, s.Instruments, s.Restarting)
}

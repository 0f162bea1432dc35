package service

import (
	"context"

	"go.uber.org/zap"

	"trade_terminal/internal/bus"
	"trade_terminal/internal/models"
)

// Forwarder пересылает алерты из шины в нотифайер.
type Forwarder struct {
	bus *bus.Bus
	n   Notifier
	log *zap.Logger
}

func NewForwarder(b *bus.Bus, n Notifier, log *zap.Logger) *Forwarder {
	return &Forwarder{bus: b, n: n, log: log.Named("notify")}
}

// Run блокирует до отмены ctx. Пересылает алерты и разрыв/восстановление сессии.
func (f *Forwarder) Run(ctx context.Context) {
	ch := f.bus.Subscribe()
	defer f.bus.Unsubscribe(ch)

	// о разрыве сообщаем один раз, о восстановлении только после разрыва
	dropped := false
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			switch evt.Type {
			case bus.EventAlert:
				a, ok := evt.Data.(models.Alert)
				if !ok {
					f.log.Warn("unexpected alert payload", zap.Any("data", evt.Data))
					continue
				}
				f.n.Send(formatAlert(a))
			case bus.EventSession:
				kind, _ := evt.Data.(string)
				switch {
				case kind == "closed" && !dropped:
					dropped = true
					f.n.Sendf("🔄 Сессия %s, переподключаемся", kind)
				case kind == "connected" && dropped:
					dropped = false
					f.n.Sendf("✅ Сессия %s", kind)
				}
			}
		}
	}
}

package service

import "context"

// Ключи локальных настроек. Отсутствие ключа = настройки нет.
const (
	KeyActiveAccountID    = "activeAccountId"
	KeySidebarTab         = "sidebarTab"
	KeyPendingOrderAnchor = "pendingOrderAnchor"
	KeyHistoryAnchor      = "historyAnchor"
)

// UIKeys: что чистим при выходе.
var UIKeys = []string{KeyActiveAccountID, KeySidebarTab, KeyPendingOrderAnchor, KeyHistoryAnchor}

// Store: локальное key-value хранилище настроек терминала.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"trade_terminal/pkg/db"
)

const (
	createPrefsTable = `CREATE TABLE IF NOT EXISTS terminal_prefs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectPref = `SELECT value FROM terminal_prefs WHERE key = $1`
	upsertPref = `INSERT INTO terminal_prefs (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deletePrefs = `DELETE FROM terminal_prefs WHERE key = ANY($1)`
)

// PgStore: настройки в postgres, для терминала на сервере без диска.
type PgStore struct {
	tx db.TxManager
}

func NewPgStore(ctx context.Context, tx db.TxManager) (*PgStore, error) {
	if _, err := tx.Conn().Exec(ctx, createPrefsTable); err != nil {
		return nil, errors.Wrap(err, "create terminal_prefs")
	}
	return &PgStore{tx: tx}, nil
}

func (s *PgStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.tx.Conn().QueryRow(ctx, selectPref, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get pref %s", key)
	}
	return v, v != "", nil
}

func (s *PgStore) Set(ctx context.Context, key, value string) error {
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx, upsertPref, key, value)
		return errors.Wrapf(err, "set pref %s", key)
	})
}

func (s *PgStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx, deletePrefs, keys)
		return errors.Wrap(err, "delete prefs")
	})
}

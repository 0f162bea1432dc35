package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"trade_terminal/pkg/db"
)

// memTx: postgres в памяти ровно под запросы PgStore.
type memTx struct {
	rows map[string]string
	ddl  int
}

func (m *memTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch sql {
	case createPrefsTable:
		m.ddl++
	case upsertPref:
		m.rows[args[0].(string)] = args[1].(string)
	case deletePrefs:
		for _, k := range args[0].([]string) {
			delete(m.rows, k)
		}
	}
	return pgconn.CommandTag{}, nil
}

func (m *memTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (m *memTx) QueryRow(_ context.Context, _ string, args ...interface{}) pgx.Row {
	v, ok := m.rows[args[0].(string)]
	return memRow{v: v, ok: ok}
}

func (m *memTx) RunMaster(ctx context.Context, fn func(context.Context, db.Transaction) error) error {
	return fn(ctx, m)
}

func (m *memTx) Conn() db.Transaction { return m }

type memRow struct {
	v  string
	ok bool
}

func (r memRow) Scan(dest ...any) error {
	if !r.ok {
		return pgx.ErrNoRows
	}
	*(dest[0].(*string)) = r.v
	return nil
}

func TestPgStore(t *testing.T) {
	ctx := context.Background()
	tx := &memTx{rows: map[string]string{}}

	s, err := NewPgStore(ctx, tx)
	if err != nil {
		t.Fatalf("NewPgStore: %v", err)
	}
	if tx.ddl != 1 {
		t.Error("table not created")
	}

	if _, ok, err := s.Get(ctx, KeyHistoryAnchor); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, KeyHistoryAnchor, "3"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Get(ctx, KeyHistoryAnchor); !ok || v != "3" {
		t.Errorf("get = %q %v", v, ok)
	}
	if err := s.Delete(ctx, KeyHistoryAnchor); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, KeyHistoryAnchor); ok {
		t.Error("deleted key still present")
	}
}

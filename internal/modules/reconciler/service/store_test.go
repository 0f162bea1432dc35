package service

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"trade_terminal/internal/models"
	sessionsvc "trade_terminal/internal/modules/session/service"
)

func TestAccountsPushWithoutPersistedAccount(t *testing.T) {
	f := newFixture(t)
	f.api.kv["activeAccountId"] = "gone"

	f.pushAccounts(t)

	if _, ok := f.store.ActiveAccount(); ok {
		t.Error("active account must stay undefined")
	}
	if !f.store.NeedsAccountSelection() {
		t.Error("needs account selection not flagged")
	}
	if n := len(f.session.sentTo(models.TopicSetActiveAccount)); n != 0 {
		t.Errorf("set-active-account sent %d times", n)
	}
	if len(f.store.Accounts()) != 2 {
		t.Errorf("accounts = %v", f.store.Accounts())
	}
}

func TestAccountsPushResolvesPersistedAccount(t *testing.T) {
	f := newFixture(t)
	f.api.kv["activeAccountId"] = "live"

	f.pushAccounts(t)

	acc, ok := f.store.ActiveAccount()
	if !ok || acc.ID != "live" {
		t.Fatalf("active = %+v %v", acc, ok)
	}
	if f.store.ActiveAccountConfirmed() {
		t.Error("must stay pending until the server pushes account data")
	}
	sent := f.session.sentTo(models.TopicSetActiveAccount)
	if len(sent) != 1 || sent[0].payload.(models.SetActiveAccountCommand).AccountID != "live" {
		t.Fatalf("sent = %+v", sent)
	}

	f.session.push(t, models.TopicPositions, models.Envelope[[]models.PositionWS]{
		AccountID: "live",
		Data:      []models.PositionWS{{ID: 1, AccountID: "live", Instrument: "EURUSD", InvestmentAmount: 10, Multiplier: 5, OpenPrice: 1.1}},
	})
	if !f.store.ActiveAccountConfirmed() {
		t.Error("scoped push did not confirm the pending account")
	}
	if len(f.store.Positions()) != 1 {
		t.Errorf("positions = %v", f.store.Positions())
	}
	if got := f.store.SortedAccounts(); got[0].ID != "live" {
		t.Errorf("active account must be first, got %v", got)
	}
}

func TestAccountsPushFallsBackToLocalPref(t *testing.T) {
	f := newFixture(t)
	f.api.kvErr = errors.New("503")
	f.prefs.m["activeAccountId"] = "demo"

	f.pushAccounts(t)

	if acc, ok := f.store.ActiveAccount(); !ok || acc.ID != "demo" {
		t.Errorf("active = %+v %v", acc, ok)
	}
}

func TestPushesForInactiveAccountIgnored(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")

	f.session.push(t, models.TopicInstruments, models.Envelope[[]models.Instrument]{
		AccountID: "live",
		Data:      []models.Instrument{{ID: "EURUSD", Name: "EUR/USD"}},
	})
	f.session.push(t, models.TopicPositions, models.Envelope[[]models.PositionWS]{
		AccountID: "live",
		Data:      []models.PositionWS{{ID: 9}},
	})
	f.session.push(t, models.TopicPendingOrders, models.Envelope[[]models.PendingOrderWS]{
		AccountID: "live",
		Data:      []models.PendingOrderWS{{ID: 4}},
	})

	if f.instruments.Len() != 0 {
		t.Error("instruments from inactive account applied")
	}
	if len(f.store.Positions()) != 0 || len(f.store.PendingOrders()) != 0 {
		t.Error("collections from inactive account applied")
	}
}

func TestInstrumentsPushSynthesizesQuotes(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")

	f.session.push(t, models.TopicInstruments, models.Envelope[[]models.Instrument]{
		AccountID: "demo",
		Data: []models.Instrument{
			{ID: "EURUSD", Name: "EUR/USD", Digits: 5, Bid: ptr(1.1), Ask: ptr(1.1002)},
			{ID: "BTCUSD", Name: "Bitcoin", Digits: 2},
		},
	})

	if f.instruments.Len() != 2 {
		t.Fatalf("instruments = %d", f.instruments.Len())
	}
	q, ok := f.quotes.Quote("EURUSD")
	if !ok || q.Bid.C != 1.1 || q.Ask.C != 1.1002 || q.Dir != models.SideBuy || q.Dt == 0 {
		t.Errorf("synthesized quote = %+v %v", q, ok)
	}
	if _, ok := f.quotes.Quote("BTCUSD"); ok {
		t.Error("quote synthesized without inline prices")
	}

	f.session.push(t, models.TopicBidAsk, models.Envelope[[]models.Quote]{
		Data: []models.Quote{{ID: "XAUUSD", Bid: models.Candle{C: 2000}, Ask: models.Candle{C: 2001}}},
	})
	if _, ok := f.instruments.Instrument("XAUUSD"); ok {
		t.Error("quote push created a phantom instrument")
	}
	if f.instruments.DisplayName("XAUUSD") != "XAUUSD" {
		t.Error("unknown instrument must display its raw id")
	}
}

func TestAccountUpdatePush(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")

	f.session.push(t, models.TopicUpdateAccount, models.Envelope[models.Account]{
		AccountID: "demo",
		Data:      models.Account{ID: "demo", Currency: "USD", Balance: 12345},
	})
	if acc, _ := f.store.ActiveAccount(); acc.Balance != 12345 {
		t.Errorf("active balance = %v", acc.Balance)
	}
	if len(f.store.Accounts()) != 2 {
		t.Error("update must replace, not append")
	}

	ch := f.bus.Subscribe()
	defer f.bus.Unsubscribe(ch)
	f.session.push(t, models.TopicUpdateAccount, models.Envelope[models.Account]{
		AccountID: "ghost",
		Data:      models.Account{ID: "ghost", Currency: "USD", Balance: 1},
	})
	if n := len(f.store.Accounts()); n != 2 {
		t.Fatalf("update for unknown account changed the list: %d accounts", n)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %s", evt.Type)
	default:
	}
	if err := f.store.SwitchActiveAccount(context.Background(), "ghost"); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("switch to unknown account: %v", err)
	}
}

func TestSwitchActiveAccount(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")
	f.session.push(t, models.TopicPositions, models.Envelope[[]models.PositionWS]{
		AccountID: "demo", Data: []models.PositionWS{{ID: 1}},
	})
	f.api.history = func(id string, page, size int) models.HistoryPage {
		return models.HistoryPage{AccountID: id, Page: page, PageSize: size, TotalItems: 1}
	}
	if _, err := f.store.PositionsHistory(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	if err := f.store.SwitchActiveAccount(context.Background(), "nope"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("unknown account: %v", err)
	}
	if err := f.store.SwitchActiveAccount(context.Background(), "live"); err != nil {
		t.Fatalf("SwitchActiveAccount: %v", err)
	}

	if acc, _ := f.store.ActiveAccount(); acc.ID != "live" {
		t.Errorf("active = %s", acc.ID)
	}
	if f.store.ActiveAccountConfirmed() {
		t.Error("switch must be pending until confirmed")
	}
	if len(f.store.Positions()) != 0 || f.store.History().AccountID != "" {
		t.Error("account-scoped state not cleared")
	}
	sent := f.session.sentTo(models.TopicSetActiveAccount)
	if last := sent[len(sent)-1].payload.(models.SetActiveAccountCommand); last.AccountID != "live" {
		t.Errorf("last command = %+v", last)
	}
	if f.api.kv["activeAccountId"] != "live" || f.prefs.m["activeAccountId"] != "live" {
		t.Error("selection not persisted")
	}

	// последний выбор выигрывает, пуш по старому pending ничего не подтверждает
	_ = f.store.SwitchActiveAccount(context.Background(), "demo")
	f.session.push(t, models.TopicPositions, models.Envelope[[]models.PositionWS]{AccountID: "live"})
	if f.store.ActiveAccountConfirmed() {
		t.Error("stale account push confirmed the selection")
	}
}

func TestSwitchWhileDisconnectedIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")
	f.session.sendErr = sessionsvc.ErrNotConnected

	if err := f.store.SwitchActiveAccount(context.Background(), "live"); err != nil {
		t.Fatalf("switch must not fail on send: %v", err)
	}
	if acc, _ := f.store.ActiveAccount(); acc.ID != "live" {
		t.Error("pending selection not applied")
	}
}

func TestOpenPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cmd := OpenPositionCommand{Instrument: "EURUSD", Side: models.SideBuy, InvestmentAmount: 100, Multiplier: 10}
	if _, err := f.store.OpenPosition(ctx, cmd); !errors.Is(err, ErrNoActiveAccount) {
		t.Fatalf("expected ErrNoActiveAccount, got %v", err)
	}

	f.activate(t, "live")
	f.session.push(t, models.TopicInstruments, models.Envelope[[]models.Instrument]{
		AccountID: "live",
		Data:      []models.Instrument{{ID: "EURUSD", Multipliers: []float64{10, 50}, StopOutPercent: 90, Bid: ptr(100), Ask: ptr(100)}},
	})

	bad := cmd
	bad.Multiplier = 20
	if _, err := f.store.OpenPosition(ctx, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("multiplier outside set: %v", err)
	}
	bad = cmd
	bad.InvestmentAmount = math.NaN()
	if _, err := f.store.OpenPosition(ctx, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("NaN investment: %v", err)
	}
	bad = cmd
	bad.TP = trigger(t, models.TriggerPrice, 95)
	if _, err := f.store.OpenPosition(ctx, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("buy tp below price: %v", err)
	}
	bad = cmd
	bad.SL = trigger(t, models.TriggerCurrency, 91)
	if _, err := f.store.OpenPosition(ctx, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("sl beyond stop out: %v", err)
	}
	for _, kind := range []models.TriggerKind{models.TriggerCurrency, models.TriggerPercent} {
		bad = cmd
		bad.TP = trigger(t, kind, -10)
		if _, err := f.store.OpenPosition(ctx, bad); !errors.Is(err, ErrValidation) {
			t.Errorf("negative %s tp: %v", kind, err)
		}
	}
	if len(f.api.opened) != 0 {
		t.Fatal("invalid command reached the api")
	}

	good := cmd
	good.TP = trigger(t, models.TriggerPercent, 50)
	good.SL = trigger(t, models.TriggerPrice, 99)
	res, err := f.store.OpenPosition(ctx, good)
	if err != nil || !res.OK() {
		t.Fatalf("OpenPosition = %+v, %v", res, err)
	}
	if _, err := uuid.Parse(res.ProcessID); err != nil {
		t.Errorf("process id %q: %v", res.ProcessID, err)
	}
	req := f.api.opened[0]
	if req.AccountID != "live" || *req.TPType != models.TriggerPercent || *req.SL != 99 {
		t.Errorf("request = %+v", req)
	}
	if len(f.store.Positions()) != 0 {
		t.Error("command mutated positions locally")
	}

	f.api.code = models.ResultInsufficientBalance
	res, err = f.store.OpenPosition(ctx, cmd)
	if err != nil || res.OK() || res.Message != "insufficient balance" {
		t.Errorf("rejected = %+v, %v", res, err)
	}
}

func TestPendingOrderCommands(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")
	ctx := context.Background()

	cmd := PendingOrderCommand{
		OpenPositionCommand: OpenPositionCommand{Instrument: "EURUSD", Side: models.SideSell, InvestmentAmount: 50, Multiplier: 5},
	}
	if _, err := f.store.AddPendingOrder(ctx, cmd); !errors.Is(err, ErrValidation) {
		t.Errorf("zero open price: %v", err)
	}
	cmd.OpenPrice = 1.2
	cmd.TP = trigger(t, models.TriggerPrice, 1.1)
	if res, err := f.store.AddPendingOrder(ctx, cmd); err != nil || !res.OK() {
		t.Fatalf("AddPendingOrder = %+v, %v", res, err)
	}
	if f.api.added[0].OpenPrice != 1.2 {
		t.Errorf("request = %+v", f.api.added[0])
	}

	if _, err := f.store.RemovePendingOrder(ctx, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("zero order id: %v", err)
	}
	if res, err := f.store.RemovePendingOrder(ctx, 77); err != nil || !res.OK() || f.api.removed[0].OrderID != 77 {
		t.Errorf("RemovePendingOrder = %+v, %v", res, err)
	}
	if res, err := f.store.ClosePosition(ctx, 5); err != nil || !res.OK() || f.api.closed[0].PositionID != 5 {
		t.Errorf("ClosePosition = %+v, %v", res, err)
	}
}

func TestUpdateSLTP(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")
	f.session.push(t, models.TopicPositions, models.Envelope[[]models.PositionWS]{
		AccountID: "demo",
		Data: []models.PositionWS{{
			ID: 3, AccountID: "demo", Instrument: "EURUSD", Operation: models.SideBuy,
			InvestmentAmount: 100, Multiplier: 10, OpenPrice: 100, Commission: -1,
		}},
	})
	ctx := context.Background()

	if _, err := f.store.UpdateSLTP(ctx, 99, nil, nil); !errors.Is(err, ErrUnknownPosition) {
		t.Errorf("unknown position: %v", err)
	}
	if _, err := f.store.UpdateSLTP(ctx, 3, trigger(t, models.TriggerPrice, 90), nil); !errors.Is(err, ErrValidation) {
		t.Errorf("tp on losing side: %v", err)
	}
	if _, err := f.store.UpdateSLTP(ctx, 3, nil, trigger(t, models.TriggerPrice, 105)); !errors.Is(err, ErrValidation) {
		t.Errorf("sl on winning side: %v", err)
	}
	if _, err := f.store.UpdateSLTP(ctx, 3, nil, trigger(t, models.TriggerPercent, 96)); !errors.Is(err, ErrValidation) {
		t.Errorf("sl beyond default stop out: %v", err)
	}
	if _, err := f.store.UpdateSLTP(ctx, 3, trigger(t, models.TriggerCurrency, -20), nil); !errors.Is(err, ErrValidation) {
		t.Errorf("negative currency tp: %v", err)
	}
	if len(f.api.updated) != 0 {
		t.Fatal("invalid update reached the api")
	}

	res, err := f.store.UpdateSLTP(ctx, 3, trigger(t, models.TriggerCurrency, 20), trigger(t, models.TriggerCurrency, 30))
	if err != nil || !res.OK() {
		t.Fatalf("UpdateSLTP = %+v, %v", res, err)
	}
	req := f.api.updated[0]
	if req.PositionID != 3 || *req.TP != 20 || *req.SLType != models.TriggerCurrency {
		t.Errorf("request = %+v", req)
	}

	tp, sl, ok := f.store.TriggerPrices(3)
	if !ok {
		t.Fatal("TriggerPrices not ok")
	}
	if tp != 0 || sl != 0 {
		t.Errorf("position has no triggers yet, got tp=%v sl=%v", tp, sl)
	}
}

func TestDerivedViews(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")
	tp, tpKind := 10.0, models.TriggerCurrency
	sl, slKind := 5.0, models.TriggerCurrency
	f.session.push(t, models.TopicPositions, models.Envelope[[]models.PositionWS]{
		AccountID: "demo",
		Data: []models.PositionWS{
			{ID: 1, Instrument: "EURUSD", Operation: models.SideBuy, InvestmentAmount: 100, Multiplier: 10, OpenPrice: 100,
				TP: &tp, TPType: &tpKind, SL: &sl, SLType: &slKind},
			{ID: 2, Instrument: "ETHUSD", Operation: models.SideSell, InvestmentAmount: 10, Multiplier: 2, OpenPrice: 3000},
		},
	})
	f.quotes.SetQuote(models.Quote{ID: "EURUSD", Bid: models.Candle{C: 110}, Ask: models.Candle{C: 110.1}})

	pnl := f.store.PositionsPnL()
	if len(pnl) != 2 || !pnl[0].OK || math.Abs(pnl[0].PnL-100) > 1e-9 || pnl[1].OK {
		t.Errorf("pnl = %+v", pnl)
	}
	if pnl[0].StopOut != 95 {
		t.Errorf("default stop out = %v", pnl[0].StopOut)
	}

	eq, complete := f.store.Equity()
	if complete || math.Abs(eq-10100) > 1e-9 {
		t.Errorf("equity = %v complete=%v", eq, complete)
	}

	tpPrice, slPrice, ok := f.store.TriggerPrices(1)
	if !ok || math.Abs(tpPrice-101) > 1e-9 || math.Abs(slPrice-99.5) > 1e-9 {
		t.Errorf("trigger prices tp=%v sl=%v", tpPrice, slPrice)
	}

	snap := f.store.Snapshot()
	if snap.ActiveAccountID != "demo" || !snap.Confirmed || snap.Positions != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPositionsHistoryPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.PositionsHistory(ctx, 0); !errors.Is(err, ErrNoActiveAccount) {
		t.Fatalf("no account: %v", err)
	}

	f.activate(t, "demo")
	f.api.history = func(id string, page, size int) models.HistoryPage {
		return models.HistoryPage{AccountID: id, Page: page, PageSize: size, TotalItems: size + 1}
	}

	first, more, err := f.store.NextHistoryPage(ctx)
	if err != nil || !more || first.Page != 0 {
		t.Fatalf("first page = %+v %v %v", first, more, err)
	}
	second, more, err := f.store.NextHistoryPage(ctx)
	if err != nil || !more || second.Page != 1 {
		t.Fatalf("second page = %+v %v %v", second, more, err)
	}
	_, more, err = f.store.NextHistoryPage(ctx)
	if err != nil || more {
		t.Errorf("expected end of history, more=%v err=%v", more, err)
	}
	if len(f.api.historyReqs) != 2 {
		t.Errorf("history requests = %v", f.api.historyReqs)
	}
}

func TestSessionLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	f.activate(t, "demo")
	f.prefs.m["sidebarTab"] = "markets"

	f.session.emit(sessionsvc.Event{Kind: sessionsvc.EventServerError, Reason: "maintenance"})
	if a, ok := f.store.Alert(); !ok || a.Message != "maintenance" || a.Level != models.AlertError {
		t.Errorf("alert = %+v %v", a, ok)
	}
	f.store.DismissAlert()

	f.session.emit(sessionsvc.Event{Kind: sessionsvc.EventClosed})
	if !f.store.Restarting() {
		t.Error("closed must flag restarting")
	}
	f.session.emit(sessionsvc.Event{Kind: sessionsvc.EventConnected})
	if f.store.Restarting() {
		t.Error("connected must clear restarting")
	}

	f.api.tokens = models.Tokens{Token: "t"}
	f.session.emit(sessionsvc.Event{Kind: sessionsvc.EventSignOut, Reason: "refresh rejected"})
	if _, ok := f.store.ActiveAccount(); ok || len(f.store.Accounts()) != 0 {
		t.Error("sign out must clear accounts")
	}
	if f.api.tokens != (models.Tokens{}) {
		t.Error("api tokens not cleared")
	}
	if len(f.prefs.m) != 0 {
		t.Errorf("prefs not cleared: %v", f.prefs.m)
	}
}

func TestSignInAndSignOut(t *testing.T) {
	f := newFixture(t)
	f.api.auth = models.AuthResult{
		Tokens:           models.Tokens{Token: "a", RefreshToken: "r"},
		ReconnectTimeout: 3e9,
	}

	if _, err := f.store.SignIn(context.Background(), models.Credentials{Email: "e", Password: "p"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if len(f.session.connected) != 1 || f.session.connected[0].Token != "a" {
		t.Errorf("connected = %+v", f.session.connected)
	}
	if f.session.delay.Seconds() != 3 {
		t.Errorf("reconnect delay = %s", f.session.delay)
	}

	f.activate(t, "demo")
	if err := f.store.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.session.signOuts != 1 || len(f.store.Accounts()) != 0 {
		t.Error("sign out incomplete")
	}

	f.api.authErr = errors.New("invalid user name or password")
	if _, err := f.store.SignIn(context.Background(), models.Credentials{Email: "e", Password: "bad"}); err == nil {
		t.Error("failed auth must return error")
	}
}

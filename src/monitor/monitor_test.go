package monitor

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cuanbot/src/ledger"
	"cuanbot/src/model"
	"cuanbot/src/regime"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeExchange struct {
	tickers map[string]model.Ticker
	series  map[string][]model.Candle
	balance model.Balance
	balErr  error
}

func (f *fakeExchange) FetchMarkets(context.Context) (map[string]model.Market, error) {
	return map[string]model.Market{}, nil
}

func (f *fakeExchange) FetchTicker(_ context.Context, pair string) (model.Ticker, error) {
	tick, ok := f.tickers[pair]
	if !ok {
		return model.Ticker{}, errors.New("unknown pair")
	}
	return tick, nil
}

func (f *fakeExchange) FetchOHLCV(_ context.Context, pair, timeframe string, _ int) ([]model.Candle, error) {
	candles, ok := f.series[pair+"|"+timeframe]
	if !ok {
		return nil, errors.New("no series")
	}
	return candles, nil
}

func (f *fakeExchange) CreateLimitBuy(context.Context, string, decimal.Decimal, decimal.Decimal, string) error {
	return nil
}

func (f *fakeExchange) CreateMarketSell(context.Context, string, decimal.Decimal, string) error {
	return nil
}

func (f *fakeExchange) FetchBalance(context.Context) (model.Balance, error) {
	return f.balance, f.balErr
}

func trendCandles(n int, start, step float64) []model.Candle {
	out := make([]model.Candle, n)
	price := start
	for i := range out {
		out[i] = model.Candle{
			Datetime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			Open:     decimal.NewFromFloat(price),
			High:     decimal.NewFromFloat(price + 1),
			Low:      decimal.NewFromFloat(price - 1),
			Close:    decimal.NewFromFloat(price),
			Volume:   decimal.NewFromInt(100),
		}
		price += step
	}
	return out
}

func testMonitor(t *testing.T, exch *fakeExchange, reg *regime.Filter) (*Monitor, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Refresh:   time.Second,
		TopAssets: 5,
		PIDFile:   filepath.Join(dir, "engine.pid"),
		LogFile:   filepath.Join(dir, "engine.log"),
	}
	store := ledger.NewStore(filepath.Join(dir, "positions.json"))
	m := New(cfg, []string{"DOGE/IDR"}, exch, store, reg, "IDR")
	buf := &bytes.Buffer{}
	m.out = buf
	return m, buf
}

func TestRender_ShowsRegimeAndAccount(t *testing.T) {
	exch := &fakeExchange{
		tickers: map[string]model.Ticker{
			"DOGE/IDR": {Pair: "DOGE/IDR", Last: d("150"), ChangePct24h: d("4")},
		},
		series: map[string][]model.Candle{
			"BTC/IDR|4h": trendCandles(80, 100, 10),
		},
		balance: model.Balance{
			Free:  map[string]decimal.Decimal{"IDR": d("500000")},
			Total: map[string]decimal.Decimal{"IDR": d("750000")},
		},
	}
	reg := regime.NewFilter(exch, "BTC/IDR", "4h", 50)
	m, buf := testMonitor(t, exch, reg)

	m.render(context.Background())

	out := buf.String()
	if !strings.Contains(out, "Market regime: HEALTHY") {
		t.Fatalf("expected healthy regime line, got:\n%s", out)
	}
	if !strings.Contains(out, "Account: 500000 IDR free / 750000 IDR total") {
		t.Fatalf("expected account line, got:\n%s", out)
	}
}

func TestRender_UnhealthyRegimeAndBalanceFailure(t *testing.T) {
	exch := &fakeExchange{
		tickers: map[string]model.Ticker{},
		series: map[string][]model.Candle{
			"BTC/IDR|4h": trendCandles(80, 2000, -10),
		},
		balErr: errors.New("venue down"),
	}
	reg := regime.NewFilter(exch, "BTC/IDR", "4h", 50)
	m, buf := testMonitor(t, exch, reg)

	m.render(context.Background())

	out := buf.String()
	if !strings.Contains(out, "Market regime: UNHEALTHY") {
		t.Fatalf("expected unhealthy regime line, got:\n%s", out)
	}
	if !strings.Contains(out, "Account: unavailable") {
		t.Fatalf("expected unavailable account line, got:\n%s", out)
	}
}

func TestRender_NilRegimeFilterOmitsLine(t *testing.T) {
	exch := &fakeExchange{
		tickers: map[string]model.Ticker{},
		balance: model.Balance{},
	}
	m, buf := testMonitor(t, exch, nil)

	m.render(context.Background())

	if strings.Contains(buf.String(), "Market regime") {
		t.Fatalf("expected no regime line when the filter is disabled, got:\n%s", buf.String())
	}
}

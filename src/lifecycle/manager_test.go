package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cuanbot/src/execution"
	"cuanbot/src/model"
	"cuanbot/src/notify"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeData struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (f *fakeData) FetchMarkets(context.Context) (map[string]model.Market, error) {
	return map[string]model.Market{}, nil
}

func (f *fakeData) FetchTicker(_ context.Context, pair string) (model.Ticker, error) {
	if err, ok := f.errs[pair]; ok {
		return model.Ticker{}, err
	}
	price, ok := f.prices[pair]
	if !ok {
		return model.Ticker{}, errors.New("unknown pair")
	}
	return model.Ticker{Pair: pair, Last: price}, nil
}

func (f *fakeData) FetchOHLCV(context.Context, string, string, int) ([]model.Candle, error) {
	return nil, errors.New("not used")
}

type sellCall struct {
	pair   string
	amount decimal.Decimal
}

type fakeGateway struct {
	failSells bool
	sells     []sellCall
}

func (g *fakeGateway) Buy(context.Context, string, decimal.Decimal, decimal.Decimal) execution.Outcome {
	return execution.Failed("not used")
}

func (g *fakeGateway) SellMarket(_ context.Context, pair string, amount, _ decimal.Decimal) execution.Outcome {
	if g.failSells {
		return execution.Failed("venue rejected order")
	}
	g.sells = append(g.sells, sellCall{pair: pair, amount: amount})
	return execution.Executed("ref-1")
}

func (g *fakeGateway) Balance(context.Context) (model.Balance, error) {
	return model.Balance{}, nil
}

// identitySizer applies no venue rounding.
type identitySizer struct{}

func (identitySizer) ClampAmount(_ string, amount decimal.Decimal) decimal.Decimal { return amount }

func position(t *testing.T, pair string, entry, amount, stop, tp1 string) model.Position {
	t.Helper()
	pos, err := model.NewPosition(pair, d(entry), d(amount), d(stop), d(tp1), "momentum",
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	return pos
}

func newTestManager(data *fakeData, gateway *fakeGateway, persisted *[][]model.Position) *Manager {
	persist := func(positions []model.Position) error {
		snapshot := make([]model.Position, len(positions))
		copy(snapshot, positions)
		*persisted = append(*persisted, snapshot)
		return nil
	}
	return NewManager(data, gateway, identitySizer{}, notify.NopNotifier{}, nil, d("0.05"), persist)
}

func TestManageAll_TakeProfitScaleOut(t *testing.T) {
	data := &fakeData{prices: map[string]decimal.Decimal{"DOGE/IDR": d("108")}}
	gateway := &fakeGateway{}
	var persisted [][]model.Position
	mgr := newTestManager(data, gateway, &persisted)

	pos := position(t, "DOGE/IDR", "100", "10", "95", "107.5")
	kept, results := mgr.ManageAll(context.Background(), []model.Position{pos})

	if len(gateway.sells) != 1 || !gateway.sells[0].amount.Equal(d("5")) {
		t.Fatalf("expected one sell of half (5), got %+v", gateway.sells)
	}
	if len(kept) != 1 {
		t.Fatalf("expected position kept, got %d", len(kept))
	}
	got := kept[0]
	if !got.Amount.Equal(d("5")) {
		t.Fatalf("expected remaining amount 5, got %s", got.Amount)
	}
	if !got.StopPrice.Equal(d("100")) {
		t.Fatalf("expected breakeven stop 100, got %s", got.StopPrice)
	}
	if !got.TP1Hit {
		t.Fatalf("expected tp1_hit set")
	}
	if len(persisted) != 1 {
		t.Fatalf("expected one persist after scale-out, got %d", len(persisted))
	}
	if results[0].Action != ActionScaleOut || results[0].Status != execution.StatusExecuted {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

// After a scale-out the trailing and stop checks wait for the next cycle,
// even if the price would already trigger them.
func TestManageAll_ScaleOutSkipsRestOfCycle(t *testing.T) {
	data := &fakeData{prices: map[string]decimal.Decimal{"DOGE/IDR": d("200")}}
	gateway := &fakeGateway{}
	var persisted [][]model.Position
	mgr := newTestManager(data, gateway, &persisted)

	pos := position(t, "DOGE/IDR", "100", "10", "95", "107.5")
	kept, _ := mgr.ManageAll(context.Background(), []model.Position{pos})

	if len(gateway.sells) != 1 {
		t.Fatalf("expected only the scale-out sell this cycle, got %d", len(gateway.sells))
	}
	if !kept[0].HighestPrice.Equal(d("100")) {
		t.Fatalf("watermark must not move in the scale-out cycle, got %s", kept[0].HighestPrice)
	}
}

func TestManageAll_TrailingRatchetRaisesStop(t *testing.T) {
	data := &fakeData{prices: map[string]decimal.Decimal{"DOGE/IDR": d("210")}}
	gateway := &fakeGateway{}
	var persisted [][]model.Position
	mgr := newTestManager(data, gateway, &persisted)

	pos := position(t, "DOGE/IDR", "100", "5", "95", "107.5")
	pos.TP1Hit = true
	pos.StopPrice = d("100")

	kept, results := mgr.ManageAll(context.Background(), []model.Position{pos})

	if !kept[0].StopPrice.Equal(d("199.5")) {
		t.Fatalf("expected trailing stop 199.5, got %s", kept[0].StopPrice)
	}
	if !kept[0].HighestPrice.Equal(d("210")) {
		t.Fatalf("expected watermark 210, got %s", kept[0].HighestPrice)
	}
	if len(persisted) != 1 {
		t.Fatalf("expected persist after stop raise, got %d", len(persisted))
	}
	if results[0].Action != ActionStopRaise {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestManageAll_TrailingStopCloses(t *testing.T) {
	data := &fakeData{prices: map[string]decimal.Decimal{"DOGE/IDR": d("199")}}
	gateway := &fakeGateway{}
	var persisted [][]model.Position
	mgr := newTestManager(data, gateway, &persisted)

	pos := position(t, "DOGE/IDR", "100", "5", "95", "107.5")
	pos.TP1Hit = true
	pos.StopPrice = d("199.5")
	pos.HighestPrice = d("210")

	kept, results := mgr.ManageAll(context.Background(), []model.Position{pos})

	if len(kept) != 0 {
		t.Fatalf("expected position removed, got %d", len(kept))
	}
	if len(gateway.sells) != 1 || !gateway.sells[0].amount.Equal(d("5")) {
		t.Fatalf("expected full close sell of 5, got %+v", gateway.sells)
	}
	if results[0].Action != ActionClose || results[0].Reason != ReasonTrailingStop || !results[0].Closed {
		t.Fatalf("expected trailing-stop close, got %+v", results[0])
	}
	if len(persisted) != 1 || len(persisted[0]) != 0 {
		t.Fatalf("expected empty ledger persisted, got %+v", persisted)
	}
}

func TestManageAll_StopLossBeforeTP1(t *testing.T) {
	data := &fakeData{prices: map[string]decimal.Decimal{"DOGE/IDR": d("94")}}
	gateway := &fakeGateway{}
	var persisted [][]model.Position
	mgr := newTestManager(data, gateway, &persisted)

	pos := position(t, "DOGE/IDR", "100", "10", "95", "107.5")
	kept, results := mgr.ManageAll(context.Background(), []model.Position{pos})

	if len(kept) != 0 {
		t.Fatalf("expected position removed")
	}
	if results[0].Reason != ReasonStopLoss {
		t.Fatalf("expected stop-loss reason, got %q", results[0].Reason)
	}
}

func TestManageAll_FailedSellLeavesStateUntouched(t *testing.T) {
	data := &fakeData{prices: map[string]decimal.Decimal{"DOGE/IDR": d("108")}}
	gateway := &fakeGateway{failSells: true}
	var persisted [][]model.Position
	mgr := newTestManager(data, gateway, &persisted)

	pos := position(t, "DOGE/IDR", "100", "10", "95", "107.5")
	kept, results := mgr.ManageAll(context.Background(), []model.Position{pos})

	if len(kept) != 1 {
		t.Fatalf("expected position kept after failed sell")
	}
	got := kept[0]
	if !got.Amount.Equal(d("10")) || got.TP1Hit || !got.StopPrice.Equal(d("95")) {
		t.Fatalf("failed sell must leave state untouched, got %+v", got)
	}
	if len(persisted) != 0 {
		t.Fatalf("nothing should persist after a failed sell, got %d writes", len(persisted))
	}
	if results[0].Status != execution.StatusFailed {
		t.Fatalf("expected failed result, got %+v", results[0])
	}
}

func TestManageAll_PriceFetchFailureSkipsOnlyThatPosition(t *testing.T) {
	data := &fakeData{
		prices: map[string]decimal.Decimal{"SOL/IDR": d("94")},
		errs:   map[string]error{"DOGE/IDR": errors.New("timeout")},
	}
	gateway := &fakeGateway{}
	var persisted [][]model.Position
	mgr := newTestManager(data, gateway, &persisted)

	positions := []model.Position{
		position(t, "DOGE/IDR", "100", "10", "95", "107.5"),
		position(t, "SOL/IDR", "100", "10", "95", "107.5"),
	}
	kept, results := mgr.ManageAll(context.Background(), positions)

	if len(kept) != 1 || kept[0].Pair != "DOGE/IDR" {
		t.Fatalf("expected DOGE kept and SOL stopped out, got %+v", kept)
	}
	if results[0].Status != execution.StatusSkipped || results[0].Reason != "price fetch failed" {
		t.Fatalf("expected skip result for DOGE, got %+v", results[0])
	}
	if results[1].Action != ActionClose {
		t.Fatalf("expected SOL closed, got %+v", results[1])
	}
}

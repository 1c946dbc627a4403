package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/connectors"
	"cuanbot/src/execution"
	"cuanbot/src/ledger"
	"cuanbot/src/lifecycle"
	"cuanbot/src/model"
	"cuanbot/src/notify"
	"cuanbot/src/portfolio"
	"cuanbot/src/regime"
	"cuanbot/src/signal"
	"cuanbot/src/utils"
)

// Engine owns the single-threaded trade cycle: manage open positions every
// cycle, scan for entries on the scan interval, report on the status
// interval. All ledger mutation happens on the cycle goroutine; the only
// concurrent readers go through Snapshot.
type Engine struct {
	cfg       Config
	data      connectors.MarketData
	gateway   execution.Gateway
	signals   *signal.Engine
	allocator *portfolio.Allocator
	manager   *lifecycle.Manager
	regime    *regime.Filter
	store     *ledger.Store
	journal   lifecycle.Journal
	notifier  notify.Notifier
	sim       *execution.SimGateway
	now       func() time.Time

	mu            sync.RWMutex
	positions     []model.Position
	cycle         int
	regimeHealthy bool
}

func New(
	cfg Config,
	data connectors.MarketData,
	gateway execution.Gateway,
	sizing *execution.Sizing,
	store *ledger.Store,
	journal lifecycle.Journal,
	notifier notify.Notifier,
) *Engine {
	e := &Engine{
		cfg:      cfg,
		data:     data,
		gateway:  gateway,
		store:    store,
		journal:  journal,
		notifier: notifier,
		now:      time.Now,
	}
	if sim, ok := gateway.(*execution.SimGateway); ok {
		e.sim = sim
	}

	e.signals = signal.NewEngine(data, signal.Params{
		SlowTimeframe:     cfg.SlowTimeframe,
		FastTimeframe:     cfg.FastTimeframe,
		TrendEMAPeriod:    cfg.TrendEMAPeriod,
		FastEMAPeriod:     cfg.FastEMAPeriod,
		SlowEMAPeriod:     cfg.SlowEMAPeriod,
		VolumeAvgPeriod:   cfg.VolumeAvgPeriod,
		ATRPeriod:         cfg.ATRPeriod,
		StochRSIPeriod:    cfg.StochRSIPeriod,
		ATRMultiplier:     cfg.ATRMultiplier,
		TakeProfitRR:      cfg.TakeProfitRR,
		CapitalPerTrade:   cfg.CapitalPerTrade,
		MomentumThreshold: cfg.MomentumThreshold,
	})
	e.allocator = portfolio.NewAllocator(cfg.MaxOpenPositions, portfolio.DefaultSectorMap(), sizing)
	e.manager = lifecycle.NewManager(data, gateway, sizing, notifier, journal, cfg.TrailingStopPct, store.Save)
	if cfg.EnableBTCFilter {
		e.regime = regime.NewFilter(data, cfg.RegimePair, cfg.RegimeTimeframe, cfg.RegimeEMAPeriod)
	}
	return e
}

// Bootstrap wires a production engine: venue connector per TARGET_EXCHANGE,
// sim or live gateway, Telegram notifier and the trade journal.
func Bootstrap(ctx context.Context, cfg Config, journal lifecycle.Journal) (*Engine, error) {
	if !cfg.SimulationMode {
		if err := connectors.RequireCredentials(cfg.TargetExchange); err != nil {
			return nil, fmt.Errorf("live mode startup: %w", err)
		}
	}

	exch, err := connectors.ForExchange(cfg.TargetExchange, cfg.Universe)
	if err != nil {
		return nil, err
	}

	markets, err := exch.FetchMarkets(ctx)
	if err != nil {
		logger.WithError(err).Warn("market metadata fetch failed, sizing will be permissive")
		markets = map[string]model.Market{}
	}

	var gateway execution.Gateway
	if cfg.SimulationMode {
		gateway = execution.NewSimGateway(cfg.QuoteAsset, cfg.VirtualInitialIDR)
	} else {
		gateway = execution.NewLiveGateway(exch)
	}

	notifier := notify.FromConfig(notify.GetConfig())
	store := ledger.NewStore(cfg.StateFile)

	return New(cfg, exch, gateway, execution.NewSizing(markets), store, journal, notifier), nil
}

// Start loads the ledger, announces startup and, in live mode, checks the
// loaded positions against the venue balance. It never auto-corrects the
// ledger; a shortfall is reported and left to the operator.
func (e *Engine) Start(ctx context.Context) error {
	positions, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	e.mu.Lock()
	e.positions = positions
	e.mu.Unlock()

	mode := "LIVE"
	if e.cfg.SimulationMode {
		mode = "SIMULATION"
	}
	logger.WithFields(logger.Fields{
		"mode":      mode,
		"exchange":  e.cfg.TargetExchange,
		"universe":  len(e.cfg.Universe),
		"positions": len(positions),
	}).Info("engine starting")
	e.notifier.Send(ctx, fmt.Sprintf(
		"🤖 *CuanBot v1 started*\n\nMode: `%s`\nExchange: `%s`\nCapital per trade: `%s %s`\nMax positions: `%d`\nRestored positions: `%d`",
		mode, e.cfg.TargetExchange, e.cfg.CapitalPerTrade.String(), e.cfg.QuoteAsset,
		e.cfg.MaxOpenPositions, len(positions),
	))
	e.notifier.Send(ctx, e.accountLine(ctx, positions))

	if !e.cfg.SimulationMode {
		e.reconcile(ctx, positions)
		e.manualPortfolio(ctx, positions)
	}
	return nil
}

// accountLine renders the account status sent at startup and with every
// digest: virtual balance and mark-to-market equity in simulation, the
// venue quote balance in live mode.
func (e *Engine) accountLine(ctx context.Context, positions []model.Position) string {
	if e.sim != nil {
		balance := e.sim.VirtualBalance()
		return fmt.Sprintf("💼 Balance: `%s %s` | Equity: `%s %s`",
			balance.StringFixed(0), e.cfg.QuoteAsset,
			e.virtualEquity(ctx, balance, positions).StringFixed(0), e.cfg.QuoteAsset)
	}
	balance, err := e.gateway.Balance(ctx)
	if err != nil {
		logger.WithError(err).Warn("balance fetch failed for account status line")
		return "💼 Balance: `unavailable`"
	}
	return fmt.Sprintf("💼 Balance: `%s %s` free / `%s %s` total",
		balance.FreeOf(e.cfg.QuoteAsset).StringFixed(0), e.cfg.QuoteAsset,
		balance.TotalOf(e.cfg.QuoteAsset).StringFixed(0), e.cfg.QuoteAsset)
}

// virtualEquity is the uncommitted virtual balance plus the mark-to-market
// value of the open positions. A position without a fresh price is valued
// at its entry.
func (e *Engine) virtualEquity(ctx context.Context, balance decimal.Decimal, positions []model.Position) decimal.Decimal {
	equity := balance
	for _, pos := range positions {
		price := pos.EntryPrice
		if tick, err := e.data.FetchTicker(ctx, pos.Pair); err == nil {
			price = tick.Last
		}
		equity = equity.Add(pos.Amount.Mul(price))
	}
	return equity
}

// manualPortfolio reports venue holdings the ledger does not track, valued
// in the quote currency, so manually bought assets stay visible to the
// operator. Live mode only; the ledger is never touched.
func (e *Engine) manualPortfolio(ctx context.Context, positions []model.Position) {
	balance, err := e.gateway.Balance(ctx)
	if err != nil {
		logger.WithError(err).Warn("balance fetch failed, skipping manual portfolio report")
		return
	}
	ledgered := make(map[string]bool, len(positions))
	for _, pos := range positions {
		ledgered[pos.BaseAsset()] = true
	}

	var b strings.Builder
	lines := 0
	for asset, total := range balance.Total {
		if asset == e.cfg.QuoteAsset || ledgered[asset] || !total.IsPositive() {
			continue
		}
		tick, err := e.data.FetchTicker(ctx, asset+"/"+e.cfg.QuoteAsset)
		if err != nil {
			continue
		}
		value := total.Mul(tick.Last)
		if !value.IsPositive() {
			continue
		}
		fmt.Fprintf(&b, "• `%s` %s ≈ `%s %s`\n", asset, total.String(), value.StringFixed(0), e.cfg.QuoteAsset)
		lines++
	}
	if lines == 0 {
		return
	}
	e.notifier.Send(ctx, "📦 *Manual holdings (outside the ledger)*\n\n"+b.String())
}

// reconcile warns when the venue holds less of an asset than the ledger
// says we own. The ledger stays authoritative.
func (e *Engine) reconcile(ctx context.Context, positions []model.Position) {
	balance, err := e.gateway.Balance(ctx)
	if err != nil {
		logger.WithError(err).Warn("balance fetch failed, skipping ledger reconciliation")
		return
	}
	for _, pos := range positions {
		held := balance.TotalOf(pos.BaseAsset())
		if held.GreaterThanOrEqual(pos.Amount) {
			continue
		}
		logger.WithFields(logger.Fields{
			"pair":     pos.Pair,
			"ledger":   pos.Amount.String(),
			"exchange": held.String(),
		}).Warn("venue balance below ledgered position size")
		e.notifier.Send(ctx, fmt.Sprintf(
			"⚠️ *Reconciliation warning*\n\nPair: `%s`\nLedger amount: `%s`\nExchange balance: `%s`\nLedger left untouched.",
			pos.Pair, pos.Amount.String(), held.String(),
		))
		e.record(ctx, &model.TradeEvent{
			Pair:   pos.Pair,
			Event:  model.TradeEventReconcNG,
			Reason: fmt.Sprintf("exchange holds %s, ledger says %s", held.String(), pos.Amount.String()),
			Amount: pos.Amount,
		})
	}
}

// Run starts the engine and blocks in the cycle loop until ctx is done.
// A panicking cycle is recovered, reported and followed by a backoff; the
// loop itself never dies.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(e.cfg.LoopPeriod)
	defer ticker.Stop()

	for {
		e.safeCycle(ctx)
		select {
		case <-ctx.Done():
			logger.Info("engine stopping")
			e.notifier.Send(context.Background(), "🛑 *CuanBot v1 stopped*")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("cycle panicked, backing off")
			e.notifier.Send(ctx, fmt.Sprintf("🚨 *Cycle crashed*\n\n`%v`\nBacking off %s.", r, e.cfg.CrashBackoff))
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.CrashBackoff):
			}
		}
	}()
	e.RunCycle(ctx)
}

// RunCycle executes one full cycle: scan for new entries on the scan
// interval (regime permitting), then manage every open position including
// any opened moments earlier in this same cycle, then emit the status
// digest on the status interval. Exported so tests can drive cycles
// without the ticker.
func (e *Engine) RunCycle(ctx context.Context) {
	e.mu.Lock()
	e.cycle++
	cycle := e.cycle
	positions := clonePositions(e.positions)
	e.mu.Unlock()

	logger.WithFields(logger.Fields{"cycle": cycle, "open": len(positions)}).Debug("cycle start")

	if cycle%e.cfg.ScanOpportunitiesInterval == 0 && len(positions) < e.cfg.MaxOpenPositions {
		healthy := e.regime == nil || e.regime.Healthy(ctx)
		e.mu.Lock()
		e.regimeHealthy = healthy
		e.mu.Unlock()
		if healthy {
			e.scan(ctx, positions)
			positions = e.Positions()
		} else {
			logger.Info("market regime unhealthy, skipping opportunity scan")
		}
	}

	positions, _ = e.manager.ManageAll(ctx, positions)
	e.setPositions(positions)

	if cycle%e.cfg.StatusUpdateInterval == 0 {
		e.sendStatus(ctx)
	}
}

// scan runs the two-stage signal pipeline over the universe and opens every
// admitted candidate. The working set grows as buys land so the allocator
// sees positions admitted earlier in the same batch.
func (e *Engine) scan(ctx context.Context, working []model.Position) {
	open := make(map[string]bool, len(working))
	for _, p := range working {
		open[p.Pair] = true
	}
	universe := make([]string, 0, len(e.cfg.Universe))
	for _, pair := range e.cfg.Universe {
		if !open[pair] {
			universe = append(universe, pair)
		}
	}

	for _, pair := range e.signals.CoarseScan(ctx, universe) {
		if len(working) >= e.cfg.MaxOpenPositions {
			break
		}

		cand, err := e.signals.Evaluate(ctx, pair)
		if err != nil {
			logger.WithError(err).WithField("pair", pair).Warn("signal evaluation failed, skipping pair")
			continue
		}
		if cand == nil {
			continue
		}

		decision := e.allocator.Admit(*cand, working)
		if !decision.Accepted {
			logger.WithFields(logger.Fields{"pair": pair, "reason": decision.Reason}).Info("candidate rejected")
			e.record(ctx, &model.TradeEvent{
				Pair:   pair,
				Event:  model.TradeEventSkip,
				Reason: decision.Reason,
				Price:  cand.EntryPrice,
			})
			continue
		}

		outcome := e.gateway.Buy(ctx, pair, decision.Amount, cand.EntryPrice)
		if !outcome.IsExecuted() {
			logger.WithFields(logger.Fields{
				"pair":   pair,
				"status": outcome.Status,
				"reason": outcome.Reason,
			}).Warn("entry order not executed")
			e.record(ctx, &model.TradeEvent{
				Pair:   pair,
				Event:  model.TradeEventSkip,
				Reason: outcome.Reason,
				Price:  cand.EntryPrice,
				Amount: decision.Amount,
			})
			continue
		}

		pos, err := model.NewPosition(pair, cand.EntryPrice, decision.Amount, cand.StopPrice, cand.TakeProfit1, cand.StrategyTag, e.now().UTC())
		if err != nil {
			logger.WithError(err).WithField("pair", pair).Error("executed entry produced invalid position")
			continue
		}

		working = append(working, pos)
		e.setPositions(working)
		if err := e.store.Save(working); err != nil {
			logger.WithError(err).Error("ledger persist failed after entry")
		}
		e.record(ctx, &model.TradeEvent{
			Pair:     pair,
			Event:    model.TradeEventOpen,
			Price:    cand.EntryPrice,
			Amount:   decision.Amount,
			OrderRef: outcome.OrderRef,
		})
		e.notifier.Send(ctx, fmt.Sprintf(
			"✅ *Position opened*\n\nPair: `%s`\nEntry: `%s`\nAmount: `%s`\nStop: `%s`\nTP 1: `%s`",
			pair, cand.EntryPrice.String(), decision.Amount.String(),
			cand.StopPrice.String(), cand.TakeProfit1.String(),
		))
	}
}

// sendStatus emits the periodic digest with a best-effort floating PnL per
// position. Price fetch failures degrade the line, never block the digest.
func (e *Engine) sendStatus(ctx context.Context) {
	snap := e.Snapshot(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *CuanBot Status* — %s\n\n", snap.Timestamp)
	fmt.Fprintf(&b, "Mode: `%s`\n", snap.Mode)
	if e.regime != nil {
		state := "healthy"
		if !snap.RegimeHealthy {
			state = "unhealthy"
		}
		fmt.Fprintf(&b, "Market regime: `%s`\n", state)
	}
	fmt.Fprintf(&b, "Open positions: `%d/%d`\n", len(snap.Positions), e.cfg.MaxOpenPositions)
	totalPnl := decimal.Zero
	for _, p := range snap.Positions {
		state := "toward TP1"
		if p.TP1Hit {
			state = "trailing"
		}
		if p.LastPrice.IsPositive() {
			totalPnl = totalPnl.Add(p.PnlIDR)
			fmt.Fprintf(&b, "• `%s` %s%% (%s %s) — %s\n",
				p.Pair, p.PnlPercent.StringFixed(2), p.PnlIDR.StringFixed(0), e.cfg.QuoteAsset, state)
		} else {
			fmt.Fprintf(&b, "• `%s` price unavailable — %s\n", p.Pair, state)
		}
	}
	if len(snap.Positions) > 0 {
		fmt.Fprintf(&b, "Total floating PnL: `%s %s`\n", totalPnl.StringFixed(0), e.cfg.QuoteAsset)
	}
	if snap.VirtualBalance != nil && snap.VirtualEquity != nil {
		fmt.Fprintf(&b, "Virtual balance: `%s %s` | Equity: `%s %s`\n",
			snap.VirtualBalance.StringFixed(0), e.cfg.QuoteAsset,
			snap.VirtualEquity.StringFixed(0), e.cfg.QuoteAsset)
	}
	if !e.cfg.SimulationMode {
		fmt.Fprintf(&b, "%s\n", e.accountLine(ctx, nil))
	}
	e.notifier.Send(ctx, b.String())
}

// PositionStatus is one open position enriched with the latest price for
// the status surfaces.
type PositionStatus struct {
	Pair        string          `json:"pair"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	Amount      decimal.Decimal `json:"amount"`
	StopPrice   decimal.Decimal `json:"sl_price"`
	TakeProfit1 decimal.Decimal `json:"tp1_price"`
	TP1Hit      bool            `json:"tp1_hit"`
	LastPrice   decimal.Decimal `json:"last_price"`
	PnlPercent  decimal.Decimal `json:"pnl_percent"`
	PnlIDR      decimal.Decimal `json:"pnl_idr"`
}

// Snapshot is the engine state exposed over the status server and to the
// terminal monitor.
type Snapshot struct {
	Timestamp      string           `json:"timestamp"`
	Cycle          int              `json:"cycle"`
	Mode           string           `json:"mode"`
	RegimeHealthy  bool             `json:"regime_healthy"`
	VirtualBalance *decimal.Decimal `json:"virtual_balance,omitempty"`
	VirtualEquity  *decimal.Decimal `json:"virtual_equity,omitempty"`
	Positions      []PositionStatus `json:"positions"`
}

func (e *Engine) Snapshot(ctx context.Context) Snapshot {
	e.mu.RLock()
	positions := clonePositions(e.positions)
	cycle := e.cycle
	regimeHealthy := e.regimeHealthy
	e.mu.RUnlock()

	snap := Snapshot{
		Timestamp:     utils.WIBTimestamp(e.now()),
		Cycle:         cycle,
		Mode:          "LIVE",
		RegimeHealthy: regimeHealthy,
		Positions:     make([]PositionStatus, 0, len(positions)),
	}
	if e.cfg.SimulationMode {
		snap.Mode = "SIMULATION"
	}
	if e.sim != nil {
		balance := e.sim.VirtualBalance()
		snap.VirtualBalance = &balance
	}

	markToMarket := decimal.Zero
	for _, pos := range positions {
		status := PositionStatus{
			Pair:        pos.Pair,
			EntryPrice:  pos.EntryPrice,
			Amount:      pos.Amount,
			StopPrice:   pos.StopPrice,
			TakeProfit1: pos.TakeProfit1,
			TP1Hit:      pos.TP1Hit,
		}
		price := pos.EntryPrice
		if tick, err := e.data.FetchTicker(ctx, pos.Pair); err == nil {
			price = tick.Last
			status.LastPrice = tick.Last
			status.PnlPercent = pos.PnLPercent(tick.Last)
			status.PnlIDR = tick.Last.Sub(pos.EntryPrice).Mul(pos.Amount)
		}
		markToMarket = markToMarket.Add(pos.Amount.Mul(price))
		snap.Positions = append(snap.Positions, status)
	}
	if snap.VirtualBalance != nil {
		equity := snap.VirtualBalance.Add(markToMarket)
		snap.VirtualEquity = &equity
	}
	return snap
}

// Positions returns a copy of the current ledger.
func (e *Engine) Positions() []model.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return clonePositions(e.positions)
}

func (e *Engine) setPositions(positions []model.Position) {
	e.mu.Lock()
	e.positions = positions
	e.mu.Unlock()
}

func (e *Engine) record(ctx context.Context, event *model.TradeEvent) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(ctx, event); err != nil {
		logger.WithError(err).Warn("journal record failed")
	}
}

func clonePositions(positions []model.Position) []model.Position {
	out := make([]model.Position, len(positions))
	copy(out, positions)
	return out
}

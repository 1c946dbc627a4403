package signal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/connectors"
	"cuanbot/src/indicators"
	"cuanbot/src/model"
)

const StrategyTag = "momentum"

// Params are the immutable strategy parameters the engine evaluates with.
// They are injected at construction so tests can run with deterministic
// values instead of ambient process state.
type Params struct {
	SlowTimeframe string // trend confirmation, e.g. "1h"
	FastTimeframe string // entry timing, e.g. "15m"

	TrendEMAPeriod  int
	FastEMAPeriod   int
	SlowEMAPeriod   int
	VolumeAvgPeriod int
	ATRPeriod       int
	StochRSIPeriod  int

	ATRMultiplier     decimal.Decimal
	TakeProfitRR      decimal.Decimal
	CapitalPerTrade   decimal.Decimal
	MomentumThreshold decimal.Decimal

	HistoryLimit int
}

// Engine is the stateless two-stage entry evaluator: a cheap 24h momentum
// screen over the whole universe, then the expensive four-way confirmation
// on survivors. Its only side effects are idempotent market-data reads.
type Engine struct {
	data connectors.MarketData
	p    Params
}

func NewEngine(data connectors.MarketData, p Params) *Engine {
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = 100
	}
	return &Engine{data: data, p: p}
}

// CoarseScan returns the pairs whose 24h change clears the momentum
// threshold. Fetch failures skip the pair; the stage exists purely to bound
// the cost of confirmation.
func (e *Engine) CoarseScan(ctx context.Context, universe []string) []string {
	survivors := make([]string, 0, len(universe))
	for _, pair := range universe {
		tick, err := e.data.FetchTicker(ctx, pair)
		if err != nil {
			logger.WithError(err).WithField("pair", pair).Debug("coarse scan ticker fetch failed, skipping pair")
			continue
		}
		if tick.ChangePct24h.GreaterThan(e.p.MomentumThreshold) {
			survivors = append(survivors, pair)
		}
	}
	logger.WithFields(logger.Fields{
		"scanned":   len(universe),
		"survivors": len(survivors),
	}).Info("coarse momentum scan complete")
	return survivors
}

// Evaluate runs the confirmation filter on one pair. A nil candidate with a
// nil error means "no signal"; an error means the pair could not be
// evaluated this cycle (transient data failure). The in-progress candle is
// never used for a condition, only for the entry price.
func (e *Engine) Evaluate(ctx context.Context, pair string) (*model.Candidate, error) {
	confirmed, err := e.trendConfirmed(ctx, pair)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, nil
	}

	candles, err := e.data.FetchOHLCV(ctx, pair, e.p.FastTimeframe, e.p.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fast timeframe fetch %s: %w", pair, err)
	}
	if len(candles) < e.minFastHistory() {
		logger.WithFields(logger.Fields{
			"pair": pair,
			"have": len(candles),
			"need": e.minFastHistory(),
		}).Debug("insufficient fast-timeframe history, no signal")
		return nil, nil
	}

	last := len(candles) - 2 // last fully closed candle
	prev := last - 1
	closes := indicators.Closes(candles)

	fastEMA := indicators.EMA(closes, e.p.FastEMAPeriod)
	slowEMA := indicators.EMA(closes, e.p.SlowEMAPeriod)
	crossedOver := fastEMA[prev].LessThan(slowEMA[prev]) &&
		fastEMA[last].GreaterThan(slowEMA[last])
	if !crossedOver {
		return nil, nil
	}

	volumes := indicators.Volumes(candles)
	volSMA := indicators.SMA(volumes, e.p.VolumeAvgPeriod)
	if !volumes[last].GreaterThan(volSMA[last]) {
		return nil, nil
	}

	k, d := indicators.StochRSI(closes, e.p.StochRSIPeriod, e.p.StochRSIPeriod, 3, 3)
	stochCrossed := k[prev].LessThan(d[prev]) && k[last].GreaterThan(d[last])
	if !stochCrossed {
		return nil, nil
	}

	atr := indicators.ATR(candles, e.p.ATRPeriod)
	return e.buildCandidate(pair, closes[len(closes)-1], atr[last])
}

// trendConfirmed checks the higher-timeframe regime for the pair itself:
// the last closed candle must close above the trend EMA.
func (e *Engine) trendConfirmed(ctx context.Context, pair string) (bool, error) {
	candles, err := e.data.FetchOHLCV(ctx, pair, e.p.SlowTimeframe, e.p.HistoryLimit)
	if err != nil {
		return false, fmt.Errorf("slow timeframe fetch %s: %w", pair, err)
	}
	if len(candles) < e.p.TrendEMAPeriod+2 {
		return false, nil
	}
	ema := indicators.EMA(indicators.Closes(candles), e.p.TrendEMAPeriod)
	last := len(candles) - 2
	return candles[last].Close.GreaterThan(ema[last]), nil
}

// buildCandidate sizes the proposal: ATR-based stop distance, risk-multiple
// first take-profit, fixed capital sizing.
func (e *Engine) buildCandidate(pair string, entry, atr decimal.Decimal) (*model.Candidate, error) {
	if !entry.IsPositive() || !atr.IsPositive() {
		return nil, nil
	}
	stopDistance := atr.Mul(e.p.ATRMultiplier)
	stop := entry.Sub(stopDistance)
	if !stop.IsPositive() {
		logger.WithFields(logger.Fields{
			"pair":  pair,
			"entry": entry.String(),
			"atr":   atr.String(),
		}).Debug("stop distance exceeds entry price, no signal")
		return nil, nil
	}

	return &model.Candidate{
		Pair:        pair,
		EntryPrice:  entry,
		StopPrice:   stop,
		TakeProfit1: entry.Add(e.p.TakeProfitRR.Mul(stopDistance)),
		Amount:      e.p.CapitalPerTrade.Div(entry),
		StrategyTag: StrategyTag,
	}, nil
}

func (e *Engine) minFastHistory() int {
	need := e.p.SlowEMAPeriod
	if e.p.VolumeAvgPeriod > need {
		need = e.p.VolumeAvgPeriod
	}
	if e.p.ATRPeriod > need {
		need = e.p.ATRPeriod
	}
	// StochRSI warm-up: RSI window, stochastic window, %K and %D smoothing.
	if stoch := e.p.StochRSIPeriod*2 + 6; stoch > need {
		need = stoch
	}
	return need + 3
}

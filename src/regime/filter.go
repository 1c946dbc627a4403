package regime

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"cuanbot/src/connectors"
	"cuanbot/src/indicators"
)

// Filter gates new-entry scanning on the broad market trend: the reference
// pair's close on a coarse timeframe must sit above its trend EMA. It never
// gates position management; existing risk is managed in any regime.
type Filter struct {
	data      connectors.MarketData
	refPair   string
	timeframe string
	emaPeriod int
	history   int
}

func NewFilter(data connectors.MarketData, refPair, timeframe string, emaPeriod int) *Filter {
	return &Filter{
		data:      data,
		refPair:   refPair,
		timeframe: timeframe,
		emaPeriod: emaPeriod,
		history:   100,
	}
}

// Healthy reports whether scanning should run this cycle. Any data failure
// reads as unhealthy: when in doubt, stop opening risk.
func (f *Filter) Healthy(ctx context.Context) bool {
	candles, err := f.data.FetchOHLCV(ctx, f.refPair, f.timeframe, f.history)
	if err != nil {
		logger.WithError(err).WithField("pair", f.refPair).Warn("regime filter data fetch failed, reporting unhealthy")
		return false
	}
	if len(candles) <= f.emaPeriod {
		logger.WithFields(logger.Fields{
			"pair": f.refPair,
			"have": len(candles),
			"need": f.emaPeriod + 1,
		}).Warn("regime filter has insufficient history, reporting unhealthy")
		return false
	}

	ema := indicators.EMA(indicators.Closes(candles), f.emaPeriod)
	last := len(candles) - 1
	return candles[last].Close.GreaterThan(ema[last])
}

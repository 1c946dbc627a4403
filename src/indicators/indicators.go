package indicators

import (
	"cuanbot/src/model"

	"github.com/shopspring/decimal"
)

// All series functions return a slice aligned index-for-index with the
// input. Entries before an indicator's warm-up window hold decimal.Zero;
// callers are expected to feed enough history that the tail indices they
// read are past warm-up (the signal engine enforces a minimum series
// length before evaluating).

var hundred = decimal.NewFromInt(100)

func Closes(candles []model.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func Volumes(candles []model.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// SMA is a simple moving average over the trailing period.
func SMA(values []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	window := decimal.Zero
	for i, v := range values {
		window = window.Add(v)
		if i >= period {
			window = window.Sub(values[i-period])
		}
		if i >= period-1 {
			out[i] = window.Div(decimal.NewFromInt(int64(period)))
		}
	}
	return out
}

// EMA seeds with the SMA of the first period values, then applies the
// standard recursive smoothing with k = 2/(period+1).
func EMA(values []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	seed := decimal.Zero
	for i := 0; i < period; i++ {
		seed = seed.Add(values[i])
	}
	prev := seed.Div(decimal.NewFromInt(int64(period)))
	out[period-1] = prev
	for i := period; i < len(values); i++ {
		prev = prev.Add(k.Mul(values[i].Sub(prev)))
		out[i] = prev
	}
	return out
}

// TrueRange for candle i, using the previous close when available.
func trueRange(candles []model.Candle, i int) decimal.Decimal {
	hl := candles[i].High.Sub(candles[i].Low)
	if i == 0 {
		return hl
	}
	hc := candles[i].High.Sub(candles[i-1].Close).Abs()
	lc := candles[i].Low.Sub(candles[i-1].Close).Abs()
	tr := hl
	if hc.GreaterThan(tr) {
		tr = hc
	}
	if lc.GreaterThan(tr) {
		tr = lc
	}
	return tr
}

// ATR is Wilder's average true range: SMA of the first period true ranges,
// then rma = (prev*(period-1) + tr) / period.
func ATR(candles []model.Candle, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}
	n := decimal.NewFromInt(int64(period))
	seed := decimal.Zero
	for i := 0; i < period; i++ {
		seed = seed.Add(trueRange(candles, i))
	}
	prev := seed.Div(n)
	out[period-1] = prev
	for i := period; i < len(candles); i++ {
		prev = prev.Mul(n.Sub(decimal.NewFromInt(1))).Add(trueRange(candles, i)).Div(n)
		out[i] = prev
	}
	return out
}

// RSI is Wilder's relative strength index over closes.
func RSI(closes []decimal.Decimal, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}
	n := decimal.NewFromInt(int64(period))
	avgGain := decimal.Zero
	avgLoss := decimal.Zero
	for i := 1; i <= period; i++ {
		diff := closes[i].Sub(closes[i-1])
		if diff.IsPositive() {
			avgGain = avgGain.Add(diff)
		} else {
			avgLoss = avgLoss.Add(diff.Neg())
		}
	}
	avgGain = avgGain.Div(n)
	avgLoss = avgLoss.Div(n)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		diff := closes[i].Sub(closes[i-1])
		gain := decimal.Zero
		loss := decimal.Zero
		if diff.IsPositive() {
			gain = diff
		} else {
			loss = diff.Neg()
		}
		avgGain = avgGain.Mul(n.Sub(decimal.NewFromInt(1))).Add(gain).Div(n)
		avgLoss = avgLoss.Mul(n.Sub(decimal.NewFromInt(1))).Add(loss).Div(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	total := avgGain.Add(avgLoss)
	if total.IsZero() {
		return decimal.NewFromInt(50)
	}
	return hundred.Mul(avgGain).Div(total)
}

// StochRSI returns the %K and %D lines of the stochastic oscillator applied
// to RSI: raw stochastic of RSI over stochPeriod, %K = SMA(raw, kSmooth),
// %D = SMA(%K, dSmooth). Values are bounded to [0, 100]. When the RSI
// window is flat the raw value is 0.
func StochRSI(closes []decimal.Decimal, rsiPeriod, stochPeriod, kSmooth, dSmooth int) (k, d []decimal.Decimal) {
	rsi := RSI(closes, rsiPeriod)
	raw := make([]decimal.Decimal, len(rsi))
	warmup := rsiPeriod + stochPeriod - 1
	for i := warmup; i < len(rsi); i++ {
		lo := rsi[i]
		hi := rsi[i]
		for j := i - stochPeriod + 1; j <= i; j++ {
			if rsi[j].LessThan(lo) {
				lo = rsi[j]
			}
			if rsi[j].GreaterThan(hi) {
				hi = rsi[j]
			}
		}
		span := hi.Sub(lo)
		if span.IsZero() {
			raw[i] = decimal.Zero
			continue
		}
		raw[i] = hundred.Mul(rsi[i].Sub(lo)).Div(span)
	}
	k = smoothTail(raw, warmup, kSmooth)
	d = smoothTail(k, warmup+kSmooth-1, dSmooth)
	return k, d
}

// smoothTail applies an SMA of length period starting at index from,
// leaving the warm-up prefix zeroed.
func smoothTail(values []decimal.Decimal, from, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	if period <= 1 {
		copy(out, values)
		return out
	}
	n := decimal.NewFromInt(int64(period))
	for i := from + period - 1; i < len(values); i++ {
		sum := decimal.Zero
		for j := i - period + 1; j <= i; j++ {
			sum = sum.Add(values[j])
		}
		out[i] = sum.Div(n)
	}
	return out
}

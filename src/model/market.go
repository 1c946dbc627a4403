package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV row as returned by a market-data connector, oldest
// first in a series. The last element of a fetched series is the candle
// still in progress.
type Candle struct {
	Datetime time.Time       `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// Ticker is the current state of a pair. ChangePct24h is the 24-hour
// percentage change used by the coarse momentum filter.
type Ticker struct {
	Pair         string
	Last         decimal.Decimal
	ChangePct24h decimal.Decimal
}

// Market is static venue metadata for one pair. MinAmount and MinNotional
// are zero when the venue does not publish them.
type Market struct {
	Pair            string
	BaseAsset       string
	QuoteAsset      string
	Active          bool
	AmountPrecision int32
	MinAmount       decimal.Decimal
	MinNotional     decimal.Decimal
}

// Balance is an account snapshot keyed by asset.
type Balance struct {
	Free  map[string]decimal.Decimal
	Total map[string]decimal.Decimal
}

func (b Balance) FreeOf(asset string) decimal.Decimal {
	if v, ok := b.Free[asset]; ok {
		return v
	}
	return decimal.Zero
}

func (b Balance) TotalOf(asset string) decimal.Decimal {
	if v, ok := b.Total[asset]; ok {
		return v
	}
	return decimal.Zero
}

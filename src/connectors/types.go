package connectors

import (
	"context"

	"github.com/shopspring/decimal"

	"cuanbot/src/model"
)

// MarketData is the read side of a venue: candles, tickers and static pair
// metadata. Calls are synchronous, idempotent reads; the engine treats any
// error as "skip this pair for this cycle".
type MarketData interface {
	// FetchMarkets returns the venue's pair metadata keyed by pair.
	FetchMarkets(ctx context.Context) (map[string]model.Market, error)
	// FetchTicker returns the last traded price and 24h change for a pair.
	FetchTicker(ctx context.Context, pair string) (model.Ticker, error)
	// FetchOHLCV returns up to limit candles, oldest first. The final
	// candle is the one still in progress.
	FetchOHLCV(ctx context.Context, pair, timeframe string, limit int) ([]model.Candle, error)
}

// Trader is the write side of a venue plus the account snapshot. clientRef
// is an idempotency reference recorded with the order for audit.
type Trader interface {
	CreateLimitBuy(ctx context.Context, pair string, amount, price decimal.Decimal, clientRef string) error
	CreateMarketSell(ctx context.Context, pair string, amount decimal.Decimal, clientRef string) error
	FetchBalance(ctx context.Context) (model.Balance, error)
}

// Exchange is a full venue connector.
type Exchange interface {
	MarketData
	Trader
}

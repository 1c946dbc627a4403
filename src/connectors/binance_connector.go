package connectors

// Market data and trading backed by goex's Binance implementation. Used
// when TARGET_EXCHANGE=binance; the engine wiring is identical to the
// Indodax connector since both satisfy the Exchange interface.

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/model"
	"cuanbot/src/utils"
)

var goexKlinePeriods = map[string]goex.KlinePeriod{
	"1m":  goex.KLINE_PERIOD_1MIN,
	"15m": goex.KLINE_PERIOD_15MIN,
	"1h":  goex.KLINE_PERIOD_1H,
	"4h":  goex.KLINE_PERIOD_4H,
	"1d":  goex.KLINE_PERIOD_1DAY,
}

type BinanceClient struct {
	exchange goex.API
	universe []string
	quote    string
}

func NewBinanceClient(apiKey, apiSecret, endpoint, quote string, universe []string) *BinanceClient {
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}
	apiConfig := &goex.APIConfig{
		HttpClient:   http.DefaultClient,
		Endpoint:     endpoint,
		ApiKey:       apiKey,
		ApiSecretKey: apiSecret,
	}
	return &BinanceClient{
		exchange: binance.NewWithConfig(apiConfig),
		universe: universe,
		quote:    strings.ToUpper(quote),
	}
}

func goexPair(pair string) goex.CurrencyPair {
	base := baseAsset(pair)
	quote := quoteAsset(pair)
	return goex.NewCurrencyPair(goex.Currency{Symbol: strings.ToUpper(base)}, goex.Currency{Symbol: strings.ToUpper(quote)})
}

// FetchMarkets returns permissive static metadata for the configured
// universe: goex does not surface Binance exchange-info filters, so the
// minimum-notional veto falls back to the venue rejecting the order.
func (c *BinanceClient) FetchMarkets(_ context.Context) (map[string]model.Market, error) {
	markets := make(map[string]model.Market, len(c.universe))
	for _, pair := range c.universe {
		markets[pair] = model.Market{
			Pair:            pair,
			BaseAsset:       strings.ToUpper(baseAsset(pair)),
			QuoteAsset:      strings.ToUpper(quoteAsset(pair)),
			Active:          true,
			AmountPrecision: 8,
		}
	}
	return markets, nil
}

func (c *BinanceClient) FetchTicker(_ context.Context, pair string) (model.Ticker, error) {
	tick, err := c.exchange.GetTicker(goexPair(pair))
	if err != nil {
		return model.Ticker{}, fmt.Errorf("binance ticker %s: %w", pair, err)
	}
	last := decimal.NewFromFloat(tick.Last)

	// goex tickers carry no 24h change, so derive it from hourly candles.
	klines, err := c.exchange.GetKlineRecords(goexPair(pair), goex.KLINE_PERIOD_1H, 25)
	if err != nil {
		return model.Ticker{}, fmt.Errorf("binance 24h change %s: %w", pair, err)
	}
	change := decimal.Zero
	if len(klines) > 0 {
		open := decimal.NewFromFloat(klines[0].Open)
		if open.IsPositive() {
			change = last.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
		}
	}
	return model.Ticker{Pair: pair, Last: last, ChangePct24h: change}, nil
}

func (c *BinanceClient) FetchOHLCV(_ context.Context, pair, timeframe string, limit int) ([]model.Candle, error) {
	period, ok := goexKlinePeriods[timeframe]
	if !ok {
		return nil, fmt.Errorf("binance ohlcv: unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 100
	}
	klines, err := c.exchange.GetKlineRecords(goexPair(pair), period, limit)
	if err != nil {
		return nil, fmt.Errorf("binance ohlcv %s %s: %w", pair, timeframe, err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, model.Candle{
			Datetime: utils.ResetTime(time.Unix(k.Timestamp, 0).UTC(), "minute"),
			Open:     decimal.NewFromFloat(k.Open),
			High:     decimal.NewFromFloat(k.High),
			Low:      decimal.NewFromFloat(k.Low),
			Close:    decimal.NewFromFloat(k.Close),
			Volume:   decimal.NewFromFloat(k.Vol),
		})
	}
	return candles, nil
}

func (c *BinanceClient) CreateLimitBuy(_ context.Context, pair string, amount, price decimal.Decimal, clientRef string) error {
	order, err := c.exchange.LimitBuy(amount.String(), price.String(), goexPair(pair))
	if err != nil {
		return fmt.Errorf("binance limit buy %s: %w", pair, err)
	}
	logger.WithFields(logger.Fields{
		"pair":       pair,
		"order_id":   order.OrderID2,
		"client_ref": clientRef,
	}).Info("binance limit buy placed")
	return nil
}

func (c *BinanceClient) CreateMarketSell(ctx context.Context, pair string, amount decimal.Decimal, clientRef string) error {
	// Binance ignores the price on market orders but goex requires one;
	// use the current last price as the hint.
	tick, err := c.FetchTicker(ctx, pair)
	if err != nil {
		return err
	}
	order, err := c.exchange.MarketSell(amount.String(), tick.Last.String(), goexPair(pair))
	if err != nil {
		return fmt.Errorf("binance market sell %s: %w", pair, err)
	}
	logger.WithFields(logger.Fields{
		"pair":       pair,
		"order_id":   order.OrderID2,
		"client_ref": clientRef,
	}).Info("binance market sell placed")
	return nil
}

func (c *BinanceClient) FetchBalance(_ context.Context) (model.Balance, error) {
	account, err := c.exchange.GetAccount()
	if err != nil {
		return model.Balance{}, fmt.Errorf("binance account: %w", err)
	}
	balance := model.Balance{
		Free:  make(map[string]decimal.Decimal, len(account.SubAccounts)),
		Total: make(map[string]decimal.Decimal, len(account.SubAccounts)),
	}
	for currency, sub := range account.SubAccounts {
		asset := strings.ToUpper(currency.Symbol)
		free := decimal.NewFromFloat(sub.Amount)
		balance.Free[asset] = free
		balance.Total[asset] = free.Add(decimal.NewFromFloat(sub.ForzenAmount))
	}
	return balance, nil
}

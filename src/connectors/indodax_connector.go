package connectors

// REST client for Indodax: public market data endpoints plus the signed
// trade API (TAPI). RESTY ONLY + INTERNAL RETRY.

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	defaultIndodaxBaseURL = "https://indodax.com"
	tapiPath              = "/tapi"
)

type IndodaxClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *resty.Client
	now       func() time.Time
}

func NewIndodaxClient(apiKey, apiSecret, baseURL string) *IndodaxClient {
	retryCount := defaultRetryAttempts - 1

	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultIndodaxBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &IndodaxClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      httpClient,
		now:       time.Now,
	}
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// -----------------------------
// PAIR NAMING
// -----------------------------
//
// Canonical pairs look like "DOGE/IDR". Indodax wants "doge_idr" on REST
// paths and TAPI params, and "DOGEIDR" on the chart-history endpoint.

func indodaxPairID(pair string) string {
	return strings.ToLower(strings.ReplaceAll(pair, "/", "_"))
}

func indodaxChartSymbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}

func canonicalPair(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// -----------------------------
// PUBLIC ENDPOINTS
// -----------------------------

type indodaxPairInfo struct {
	ID                     string          `json:"id"`
	Symbol                 string          `json:"symbol"`
	BaseCurrency           string          `json:"base_currency"`
	TradedCurrency         string          `json:"traded_currency"`
	TradeMinTradedCurrency decimal.Decimal `json:"trade_min_traded_currency"`
	TradeMinBaseCurrency   decimal.Decimal `json:"trade_min_base_currency"`
	VolumePrecision        int32           `json:"volume_precision"`
	IsMaintenance          int             `json:"is_maintenance"`
}

func (c *IndodaxClient) FetchMarkets(ctx context.Context) (map[string]model.Market, error) {
	var pairs []indodaxPairInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&pairs).
		Get("/api/pairs")
	if err != nil {
		return nil, fmt.Errorf("indodax pairs: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("indodax pairs: http %d", resp.StatusCode())
	}

	markets := make(map[string]model.Market, len(pairs))
	for _, p := range pairs {
		pair := canonicalPair(p.TradedCurrency, p.BaseCurrency)
		markets[pair] = model.Market{
			Pair:            pair,
			BaseAsset:       strings.ToUpper(p.TradedCurrency),
			QuoteAsset:      strings.ToUpper(p.BaseCurrency),
			Active:          p.IsMaintenance == 0,
			AmountPrecision: p.VolumePrecision,
			MinAmount:       p.TradeMinTradedCurrency,
			MinNotional:     p.TradeMinBaseCurrency,
		}
	}
	return markets, nil
}

type indodaxSummaries struct {
	Tickers   map[string]indodaxTicker   `json:"tickers"`
	Prices24h map[string]decimal.Decimal `json:"prices_24h"`
}

type indodaxTicker struct {
	Last decimal.Decimal `json:"last"`
}

func (c *IndodaxClient) FetchTicker(ctx context.Context, pair string) (model.Ticker, error) {
	var summaries indodaxSummaries
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&summaries).
		Get("/api/summaries")
	if err != nil {
		return model.Ticker{}, fmt.Errorf("indodax summaries: %w", err)
	}
	if resp.IsError() {
		return model.Ticker{}, fmt.Errorf("indodax summaries: http %d", resp.StatusCode())
	}

	id := indodaxPairID(pair)
	tick, ok := summaries.Tickers[id]
	if !ok {
		return model.Ticker{}, fmt.Errorf("indodax summaries: pair %s not listed", pair)
	}

	change := decimal.Zero
	if open, ok := summaries.Prices24h[id]; ok && open.IsPositive() {
		change = tick.Last.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}

	return model.Ticker{Pair: pair, Last: tick.Last, ChangePct24h: change}, nil
}

var chartTimeframes = map[string]struct {
	code string
	span time.Duration
}{
	"1m":  {"1", time.Minute},
	"15m": {"15", 15 * time.Minute},
	"1h":  {"60", time.Hour},
	"4h":  {"240", 4 * time.Hour},
	"1d":  {"1D", 24 * time.Hour},
}

type indodaxChartRow struct {
	Time   int64           `json:"Time"`
	Open   decimal.Decimal `json:"Open"`
	High   decimal.Decimal `json:"High"`
	Low    decimal.Decimal `json:"Low"`
	Close  decimal.Decimal `json:"Close"`
	Volume decimal.Decimal `json:"Volume"`
}

func (c *IndodaxClient) FetchOHLCV(ctx context.Context, pair, timeframe string, limit int) ([]model.Candle, error) {
	tf, ok := chartTimeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("indodax ohlcv: unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 100
	}

	to := c.now()
	from := to.Add(-time.Duration(limit) * tf.span)

	var rows []indodaxChartRow
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": indodaxChartSymbol(pair),
			"tf":     tf.code,
			"from":   strconv.FormatInt(from.Unix(), 10),
			"to":     strconv.FormatInt(to.Unix(), 10),
		}).
		SetResult(&rows).
		Get("/tradingview/history_v2")
	if err != nil {
		return nil, fmt.Errorf("indodax ohlcv %s %s: %w", pair, timeframe, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("indodax ohlcv %s %s: http %d", pair, timeframe, resp.StatusCode())
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, model.Candle{
			Datetime: time.Unix(r.Time, 0).UTC(),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Datetime.Before(candles[j].Datetime) })
	return candles, nil
}

// -----------------------------
// TAPI (signed)
// -----------------------------
//
// Every private call is a form POST to /tapi with:
//   Key:  api key header
//   Sign: hex(hmac-sha512(postBody, apiSecret)) header
// and a strictly increasing nonce in the body.

type tapiResponse struct {
	Success int             `json:"success"`
	Error   string          `json:"error"`
	Return  json.RawMessage `json:"return"`
}

func (c *IndodaxClient) tapiCall(ctx context.Context, method string, params map[string]string, out interface{}) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return fmt.Errorf("indodax tapi %s: missing API credentials", method)
	}

	form := url.Values{}
	form.Set("method", method)
	form.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	for k, v := range params {
		form.Set(k, v)
	}
	body := form.Encode()

	mac := hmac.New(sha512.New, []byte(c.apiSecret))
	mac.Write([]byte(body))
	sign := hex.EncodeToString(mac.Sum(nil))

	var parsed tapiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Key", c.apiKey).
		SetHeader("Sign", sign).
		SetBody(body).
		SetResult(&parsed).
		Post(tapiPath)
	if err != nil {
		return fmt.Errorf("indodax tapi %s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("indodax tapi %s: http %d", method, resp.StatusCode())
	}
	if parsed.Success != 1 {
		return fmt.Errorf("indodax tapi %s: %s", method, parsed.Error)
	}
	if out != nil && len(parsed.Return) > 0 {
		if err := json.Unmarshal(parsed.Return, out); err != nil {
			return fmt.Errorf("indodax tapi %s: decode return: %w", method, err)
		}
	}
	return nil
}

// CreateLimitBuy places a limit buy spending amount*price of the quote
// currency, which is how Indodax expresses buy size.
func (c *IndodaxClient) CreateLimitBuy(ctx context.Context, pair string, amount, price decimal.Decimal, clientRef string) error {
	quote := strings.ToLower(quoteAsset(pair))
	params := map[string]string{
		"pair":           indodaxPairID(pair),
		"type":           "buy",
		"price":          price.String(),
		quote:            amount.Mul(price).String(),
		"client_order_id": clientRef,
	}
	if err := c.tapiCall(ctx, "trade", params, nil); err != nil {
		return err
	}
	logger.WithFields(logger.Fields{
		"pair":       pair,
		"amount":     amount.String(),
		"price":      price.String(),
		"client_ref": clientRef,
	}).Info("indodax limit buy placed")
	return nil
}

// CreateMarketSell sells amount of the base currency at market.
func (c *IndodaxClient) CreateMarketSell(ctx context.Context, pair string, amount decimal.Decimal, clientRef string) error {
	base := strings.ToLower(baseAsset(pair))
	params := map[string]string{
		"pair":           indodaxPairID(pair),
		"type":           "sell",
		"order_type":     "market",
		base:             amount.String(),
		"client_order_id": clientRef,
	}
	if err := c.tapiCall(ctx, "trade", params, nil); err != nil {
		return err
	}
	logger.WithFields(logger.Fields{
		"pair":       pair,
		"amount":     amount.String(),
		"client_ref": clientRef,
	}).Info("indodax market sell placed")
	return nil
}

type indodaxAccountInfo struct {
	Balance     map[string]decimal.Decimal `json:"balance"`
	BalanceHold map[string]decimal.Decimal `json:"balance_hold"`
}

func (c *IndodaxClient) FetchBalance(ctx context.Context) (model.Balance, error) {
	var info indodaxAccountInfo
	if err := c.tapiCall(ctx, "getInfo", nil, &info); err != nil {
		return model.Balance{}, err
	}

	balance := model.Balance{
		Free:  make(map[string]decimal.Decimal, len(info.Balance)),
		Total: make(map[string]decimal.Decimal, len(info.Balance)),
	}
	for asset, free := range info.Balance {
		upper := strings.ToUpper(asset)
		balance.Free[upper] = free
		balance.Total[upper] = free.Add(info.BalanceHold[asset])
	}
	return balance, nil
}

func baseAsset(pair string) string {
	if i := strings.IndexByte(pair, '/'); i >= 0 {
		return pair[:i]
	}
	return pair
}

func quoteAsset(pair string) string {
	if i := strings.IndexByte(pair, '/'); i >= 0 {
		return pair[i+1:]
	}
	return ""
}

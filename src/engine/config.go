package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	LoopPeriod   time.Duration `envconfig:"LOOP_PERIOD" default:"60s"`
	CrashBackoff time.Duration `envconfig:"CRASH_BACKOFF" default:"60s"`

	TargetExchange string   `envconfig:"TARGET_EXCHANGE" default:"indodax"`
	QuoteAsset     string   `envconfig:"QUOTE_ASSET" default:"IDR"`
	Universe       []string `envconfig:"TRADE_UNIVERSE" default:"DOGE/IDR,SHIB/IDR,PEPE/IDR,SOL/IDR,ETH/IDR,ADA/IDR,POL/IDR,OP/IDR,FET/IDR"`

	CapitalPerTrade  decimal.Decimal `envconfig:"CAPITAL_PER_TRADE" default:"10500"`
	MaxOpenPositions int             `envconfig:"MAX_OPEN_POSITIONS" default:"5"`

	SlowTimeframe     string          `envconfig:"SLOW_TIMEFRAME" default:"1h"`
	FastTimeframe     string          `envconfig:"FAST_TIMEFRAME" default:"15m"`
	TrendEMAPeriod    int             `envconfig:"TREND_EMA_PERIOD" default:"50"`
	FastEMAPeriod     int             `envconfig:"FAST_EMA_PERIOD" default:"13"`
	SlowEMAPeriod     int             `envconfig:"SLOW_EMA_PERIOD" default:"21"`
	VolumeAvgPeriod   int             `envconfig:"VOLUME_AVG_PERIOD" default:"20"`
	ATRPeriod         int             `envconfig:"ATR_PERIOD" default:"14"`
	StochRSIPeriod    int             `envconfig:"STOCHRSI_PERIOD" default:"14"`
	ATRMultiplier     decimal.Decimal `envconfig:"ATR_MULTIPLIER" default:"2.0"`
	TakeProfitRR      decimal.Decimal `envconfig:"TP1_RR_RATIO" default:"1.5"`
	TrailingStopPct   decimal.Decimal `envconfig:"TRAILING_STOP_PCT" default:"0.05"`
	MomentumThreshold decimal.Decimal `envconfig:"MOMENTUM_THRESHOLD" default:"3"`

	EnableBTCFilter bool   `envconfig:"ENABLE_BTC_FILTER" default:"true"`
	RegimePair      string `envconfig:"REGIME_PAIR" default:"BTC/IDR"`
	RegimeTimeframe string `envconfig:"REGIME_TIMEFRAME" default:"4h"`
	RegimeEMAPeriod int    `envconfig:"REGIME_EMA_PERIOD" default:"50"`

	SimulationMode    bool            `envconfig:"SIMULATION_MODE" default:"true"`
	VirtualInitialIDR decimal.Decimal `envconfig:"VIRTUAL_INITIAL_IDR" default:"1000000"`

	StateFile                 string `envconfig:"STATE_FILE" default:"active_positions.json"`
	StatusUpdateInterval      int    `envconfig:"STATUS_UPDATE_INTERVAL" default:"3"`
	ScanOpportunitiesInterval int    `envconfig:"SCAN_OPPORTUNITIES_INTERVAL" default:"5"`

	// StatusPort enables the embedded status HTTP server when set,
	// e.g. ":8087". Empty disables it.
	StatusPort string `envconfig:"STATUS_PORT"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	IndodaxAPIKey    string `envconfig:"INDODAX_API_KEY"`
	IndodaxAPISecret string `envconfig:"INDODAX_API_SECRET"`
	IndodaxBaseURL   string `envconfig:"INDODAX_BASE_URL" default:"https://indodax.com"`

	BinanceAPIKey    string `envconfig:"BINANCE_API_KEY"`
	BinanceAPISecret string `envconfig:"BINANCE_API_SECRET"`
	BinanceBaseURL   string `envconfig:"BINANCE_BASE_URL"`
	BinanceQuote     string `envconfig:"BINANCE_QUOTE" default:"USDT"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

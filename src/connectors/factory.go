package connectors

import (
	"errors"
	"fmt"
	"strings"
)

// ForExchange builds the connector for a venue by name using the ambient
// credentials. universe is only needed by venues without a pair-metadata
// endpoint.
func ForExchange(name string, universe []string) (Exchange, error) {
	config := GetConfig()
	switch strings.ToLower(name) {
	case "indodax":
		return NewIndodaxClient(config.IndodaxAPIKey, config.IndodaxAPISecret, config.IndodaxBaseURL), nil
	case "binance":
		return NewBinanceClient(
			config.BinanceAPIKey, config.BinanceAPISecret,
			config.BinanceBaseURL, config.BinanceQuote, universe,
		), nil
	default:
		return nil, fmt.Errorf("unsupported target exchange %q", name)
	}
}

// RequireCredentials fails fast when live trading is requested without the
// venue's API credentials in the environment. Callers check this before any
// trading logic runs.
func RequireCredentials(name string) error {
	config := GetConfig()
	switch strings.ToLower(name) {
	case "indodax":
		if config.IndodaxAPIKey == "" || config.IndodaxAPISecret == "" {
			return errors.New("INDODAX_API_KEY and INDODAX_API_SECRET must be set")
		}
	case "binance":
		if config.BinanceAPIKey == "" || config.BinanceAPISecret == "" {
			return errors.New("BINANCE_API_KEY and BINANCE_API_SECRET must be set")
		}
	default:
		return fmt.Errorf("unsupported target exchange %q", name)
	}
	return nil
}

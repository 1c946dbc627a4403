package monitor

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Refresh   time.Duration `envconfig:"UI_REFRESH" default:"5s"`
	TopAssets int           `envconfig:"UI_TOP_ASSETS" default:"5"`
	PIDFile   string        `envconfig:"BOT_PID_FILE" default:"cuanbot_engine.pid"`
	LogFile   string        `envconfig:"BOT_LOG_FILE" default:"cuanbot_engine.log"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

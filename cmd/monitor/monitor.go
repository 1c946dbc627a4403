package monitor

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"cuanbot/src/connectors"
	core "cuanbot/src/engine"
	"cuanbot/src/ledger"
	ui "cuanbot/src/monitor"
	"cuanbot/src/regime"
)

type Runner struct{}

func (t *Runner) Start() error {
	engineConfig := core.GetConfig()
	config := ui.GetConfig()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	data, err := connectors.ForExchange(engineConfig.TargetExchange, engineConfig.Universe)
	if err != nil {
		logrus.WithError(err).Error("Failed to build exchange connector")
		return err
	}

	var reg *regime.Filter
	if engineConfig.EnableBTCFilter {
		reg = regime.NewFilter(data, engineConfig.RegimePair, engineConfig.RegimeTimeframe, engineConfig.RegimeEMAPeriod)
	}

	mon := ui.New(config, engineConfig.Universe, data, ledger.NewStore(engineConfig.StateFile), reg, engineConfig.QuoteAsset)
	if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("Monitor exited")
		return err
	}
	return nil
}

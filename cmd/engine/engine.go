package engine

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"cuanbot/src/database"
	core "cuanbot/src/engine"
	"cuanbot/src/journal"
	"cuanbot/src/server"
)

type Runner struct{}

func (t *Runner) Start() error {
	config := core.GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	logrus.WithField("targetExchange", config.TargetExchange).Info("Starting trade engine for exchange")

	repo := journal.NewRepository()
	eng, err := core.Bootstrap(ctx, config, repo)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to bootstrap engine")
		return err
	}

	if config.StatusPort != "" {
		server.Start(ctx, config.StatusPort, eng, repo)
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("Engine loop exited")
		return err
	}
	return nil
}

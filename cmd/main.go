package main

import (
	"fmt"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	enginecmd "cuanbot/cmd/engine"
	monitorcmd "cuanbot/cmd/monitor"
)

var Version string

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()

	app := cli.NewApp()
	app.Name = "CuanBot CMD"
	app.Usage = "The CuanBot command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		engineCMD,
		monitorCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	engineCMD = cli.Command{
		Name:        "engine",
		Usage:       "run the trade engine",
		Action:      engineAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the unattended trade engine loop`,
	}
	monitorCMD = cli.Command{
		Name:        "monitor",
		Usage:       "run the terminal monitor",
		Action:      monitorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the interactive terminal dashboard`,
	}
)

func engineAction(_ *cli.Context) error {

	logger.Info("Starting engine CMD")

	runner := &enginecmd.Runner{}
	if err := runner.Start(); err != nil {
		logger.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func monitorAction(_ *cli.Context) error {

	logger.Info("Starting monitor CMD")

	runner := &monitorcmd.Runner{}
	if err := runner.Start(); err != nil {
		logger.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/connectors"
	"cuanbot/src/ledger"
	"cuanbot/src/model"
	"cuanbot/src/regime"
	"cuanbot/src/utils"
)

// Monitor is the interactive terminal dashboard and process supervisor for
// the engine. It owns the PID file: the engine runs as a detached child
// started from this binary, stopped with SIGTERM so the engine's own
// shutdown path runs.
type Monitor struct {
	cfg      Config
	universe []string
	exch     connectors.Exchange
	store    *ledger.Store
	regime   *regime.Filter
	quote    string
	out      io.Writer
}

func New(cfg Config, universe []string, exch connectors.Exchange, store *ledger.Store, reg *regime.Filter, quoteAsset string) *Monitor {
	return &Monitor{
		cfg:      cfg,
		universe: universe,
		exch:     exch,
		store:    store,
		regime:   reg,
		quote:    quoteAsset,
		out:      os.Stdout,
	}
}

// Run drives the refresh/command loop until the user quits or ctx is done.
// Quitting the monitor never stops the engine; only the stop command does.
func (m *Monitor) Run(ctx context.Context) error {
	commands := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case commands <- strings.TrimSpace(strings.ToLower(scanner.Text())):
			case <-ctx.Done():
				return
			}
		}
	}()

	refresh := time.NewTicker(m.cfg.Refresh)
	defer refresh.Stop()

	m.render(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			m.render(ctx)
		case cmd := <-commands:
			switch cmd {
			case "q", "quit":
				return nil
			case "s", "start":
				if err := m.StartEngine(); err != nil {
					fmt.Fprintf(m.out, "start failed: %v\n", err)
				}
				m.render(ctx)
			case "x", "stop":
				if err := m.StopEngine(); err != nil {
					fmt.Fprintf(m.out, "stop failed: %v\n", err)
				}
				m.render(ctx)
			case "r", "":
				m.render(ctx)
			default:
				fmt.Fprintf(m.out, "commands: [s]tart  [x] stop  [r]efresh  [q]uit\n")
			}
		}
	}
}

// StartEngine launches this same binary with the engine command as a
// detached child and records its PID.
func (m *Monitor) StartEngine() error {
	if pid, running := m.enginePID(); running {
		return fmt.Errorf("engine already running (pid %d)", pid)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	logFile, err := os.OpenFile(m.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open engine log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(self, "engine")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(m.cfg.PIDFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		logger.WithError(err).Warn("engine process release failed")
	}
	logger.WithField("pid", pid).Info("engine started")
	return nil
}

// StopEngine sends SIGTERM so the engine shuts down through its own signal
// handling, then clears the PID file.
func (m *Monitor) StopEngine() error {
	pid, running := m.enginePID()
	if !running {
		return fmt.Errorf("engine not running")
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal engine (pid %d): %w", pid, err)
	}
	if err := os.Remove(m.cfg.PIDFile); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("pid file removal failed")
	}
	logger.WithField("pid", pid).Info("engine stop requested")
	return nil
}

// enginePID reads the PID file and probes the process with signal 0.
// A stale file for a dead process reads as not running.
func (m *Monitor) enginePID() (int, bool) {
	raw, err := os.ReadFile(m.cfg.PIDFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if err := syscall.Kill(pid, syscall.Signal(0)); err != nil {
		return pid, false
	}
	return pid, true
}

func (m *Monitor) render(ctx context.Context) {
	fmt.Fprint(m.out, "\033[2J\033[H")
	fmt.Fprintln(m.out, "==========================================")
	fmt.Fprintln(m.out, "            CuanBot v.1")
	fmt.Fprintln(m.out, "==========================================")
	fmt.Fprintf(m.out, "%s\n\n", utils.WIBTimestamp(time.Now()))

	if pid, running := m.enginePID(); running {
		fmt.Fprintf(m.out, "Engine: RUNNING (pid %d)\n\n", pid)
	} else {
		fmt.Fprintf(m.out, "Engine: STOPPED\n\n")
	}

	m.renderRegime(ctx)
	m.renderAccount(ctx)
	m.renderPositions(ctx)
	m.renderTopAssets(ctx)

	fmt.Fprintln(m.out, "commands: [s]tart  [x] stop  [r]efresh  [q]uit")
}

func (m *Monitor) renderRegime(ctx context.Context) {
	if m.regime == nil {
		return
	}
	state := "UNHEALTHY"
	if m.regime.Healthy(ctx) {
		state = "HEALTHY"
	}
	fmt.Fprintf(m.out, "Market regime: %s\n\n", state)
}

func (m *Monitor) renderAccount(ctx context.Context) {
	balance, err := m.exch.FetchBalance(ctx)
	if err != nil {
		fmt.Fprintf(m.out, "Account: unavailable (%v)\n\n", err)
		return
	}
	fmt.Fprintf(m.out, "Account: %s %s free / %s %s total\n\n",
		balance.FreeOf(m.quote).String(), m.quote,
		balance.TotalOf(m.quote).String(), m.quote)
}

func (m *Monitor) renderPositions(ctx context.Context) {
	positions, err := m.store.Load()
	if err != nil {
		fmt.Fprintf(m.out, "positions unavailable: %v\n\n", err)
		return
	}
	if len(positions) == 0 {
		fmt.Fprintln(m.out, "No open positions.")
		fmt.Fprintln(m.out)
		return
	}

	fmt.Fprintf(m.out, "%-12s %14s %14s %14s %10s %6s\n",
		"PAIR", "ENTRY", "LAST", "STOP", "PNL%", "TP1")
	for _, pos := range positions {
		last, pnl := m.priceAndPnL(ctx, pos)
		tp1 := "-"
		if pos.TP1Hit {
			tp1 = "hit"
		}
		fmt.Fprintf(m.out, "%-12s %14s %14s %14s %10s %6s\n",
			pos.Pair, pos.EntryPrice.String(), last, pos.StopPrice.String(), pnl, tp1)
	}
	fmt.Fprintln(m.out)
}

func (m *Monitor) priceAndPnL(ctx context.Context, pos model.Position) (string, string) {
	tick, err := m.exch.FetchTicker(ctx, pos.Pair)
	if err != nil {
		return "n/a", "n/a"
	}
	return tick.Last.String(), pos.PnLPercent(tick.Last).StringFixed(2)
}

// renderTopAssets lists the best 24h movers of the watched universe.
func (m *Monitor) renderTopAssets(ctx context.Context) {
	type mover struct {
		pair   string
		change decimal.Decimal
	}
	movers := make([]mover, 0, len(m.universe))
	for _, pair := range m.universe {
		tick, err := m.exch.FetchTicker(ctx, pair)
		if err != nil {
			continue
		}
		movers = append(movers, mover{pair: pair, change: tick.ChangePct24h})
	}
	if len(movers) == 0 {
		return
	}

	sort.Slice(movers, func(i, j int) bool {
		return movers[i].change.GreaterThan(movers[j].change)
	})
	limit := m.cfg.TopAssets
	if limit > len(movers) {
		limit = len(movers)
	}

	fmt.Fprintf(m.out, "Top movers (24h):\n")
	for _, mv := range movers[:limit] {
		fmt.Fprintf(m.out, "  %-12s %8s%%\n", mv.pair, mv.change.StringFixed(2))
	}
	fmt.Fprintln(m.out)
}

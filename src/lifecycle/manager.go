package lifecycle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/connectors"
	"cuanbot/src/execution"
	"cuanbot/src/model"
	"cuanbot/src/notify"
)

// Action is what the manager decided to do with a position this cycle.
type Action string

const (
	ActionNone      Action = "none"
	ActionScaleOut  Action = "scale_out"
	ActionStopRaise Action = "stop_raise"
	ActionClose     Action = "close"
)

const (
	ReasonStopLoss     = "stop-loss"
	ReasonTrailingStop = "trailing-stop"
)

// Result is the explicit per-position outcome of one management pass, so
// callers and tests can see skip-vs-abort decisions instead of inferring
// them from side effects.
type Result struct {
	Pair   string
	Action Action
	Status execution.Status
	Reason string
	Closed bool
}

// Journal is the audit sink. Recording failures are logged, never
// escalated; the ledger file is the source of truth.
type Journal interface {
	Record(ctx context.Context, event *model.TradeEvent) error
}

// Manager drives the per-position state machine: take-profit scale-out,
// trailing-stop ratchet, stop close. It is the only mutator of ledgered
// positions, and persists via the injected save function after every
// mutation.
type Manager struct {
	data        connectors.MarketData
	gateway     execution.Gateway
	sizer       portfolioSizer
	notifier    notify.Notifier
	journal     Journal
	trailingPct decimal.Decimal
	persist     func([]model.Position) error
}

// portfolioSizer is the clamping slice of execution.Sizing the manager
// needs for scale-out halves.
type portfolioSizer interface {
	ClampAmount(pair string, amount decimal.Decimal) decimal.Decimal
}

func NewManager(
	data connectors.MarketData,
	gateway execution.Gateway,
	sizer portfolioSizer,
	notifier notify.Notifier,
	journal Journal,
	trailingPct decimal.Decimal,
	persist func([]model.Position) error,
) *Manager {
	return &Manager{
		data:        data,
		gateway:     gateway,
		sizer:       sizer,
		notifier:    notifier,
		journal:     journal,
		trailingPct: trailingPct,
		persist:     persist,
	}
}

// ManageAll evaluates every open position in ledger order against a fresh
// price and returns the surviving positions plus one Result per input
// position. A price-fetch failure skips that position only; a failed sell
// leaves the position untouched so the same trigger retries next cycle.
func (m *Manager) ManageAll(ctx context.Context, positions []model.Position) ([]model.Position, []Result) {
	kept := make([]model.Position, 0, len(positions))
	results := make([]Result, 0, len(positions))

	for i := range positions {
		pos := positions[i]

		tick, err := m.data.FetchTicker(ctx, pos.Pair)
		if err != nil {
			logger.WithError(err).WithField("pair", pos.Pair).Warn("price fetch failed, skipping position this cycle")
			kept = append(kept, pos)
			results = append(results, Result{Pair: pos.Pair, Action: ActionNone, Status: execution.StatusSkipped, Reason: "price fetch failed"})
			continue
		}
		price := tick.Last

		// The take-profit check strictly precedes trailing/stop checks;
		// after a scale-out the trailing logic starts next cycle.
		if !pos.TP1Hit && price.GreaterThanOrEqual(pos.TakeProfit1) {
			res := m.scaleOut(ctx, &pos, price, kept, positions[i+1:])
			kept = append(kept, pos)
			results = append(results, res)
			continue
		}

		if raised := m.trail(&pos, price); raised {
			m.save(append(append(kept[:len(kept):len(kept)], pos), positions[i+1:]...))
			results = append(results, Result{Pair: pos.Pair, Action: ActionStopRaise, Status: execution.StatusExecuted})
		} else {
			results = append(results, Result{Pair: pos.Pair, Action: ActionNone, Status: execution.StatusSkipped})
		}

		if price.LessThanOrEqual(pos.StopPrice) {
			res := m.close(ctx, &pos, price, kept, positions[i+1:])
			results[len(results)-1] = res
			if !res.Closed {
				kept = append(kept, pos)
			}
			continue
		}

		kept = append(kept, pos)
	}

	return kept, results
}

// scaleOut sells half the position at market, moves the stop to breakeven
// and flips the TP1 flag. Any execution failure aborts before mutation.
func (m *Manager) scaleOut(ctx context.Context, pos *model.Position, price decimal.Decimal, before, after []model.Position) Result {
	half := m.sizer.ClampAmount(pos.Pair, pos.Amount.Div(decimal.NewFromInt(2)))
	if !half.IsPositive() || half.GreaterThanOrEqual(pos.Amount) {
		m.record(ctx, &model.TradeEvent{
			Pair:   pos.Pair,
			Event:  model.TradeEventSkip,
			Reason: "scale-out half below venue minimum",
			Price:  price,
		})
		return Result{Pair: pos.Pair, Action: ActionScaleOut, Status: execution.StatusSkipped, Reason: "half below venue minimum"}
	}

	outcome := m.gateway.SellMarket(ctx, pos.Pair, half, price)
	if !outcome.IsExecuted() {
		logger.WithFields(logger.Fields{
			"pair":   pos.Pair,
			"reason": outcome.Reason,
		}).Error("scale-out sell failed, will retry next cycle")
		return Result{Pair: pos.Pair, Action: ActionScaleOut, Status: execution.StatusFailed, Reason: outcome.Reason}
	}

	if err := pos.ScaleOut(half); err != nil {
		// Unreachable given the TP1Hit guard, but never leave the state
		// machine inconsistent on a double flip.
		logger.WithError(err).WithField("pair", pos.Pair).Error("scale-out state update rejected")
		return Result{Pair: pos.Pair, Action: ActionScaleOut, Status: execution.StatusFailed, Reason: err.Error()}
	}

	m.save(append(append(before[:len(before):len(before)], *pos), after...))
	m.record(ctx, &model.TradeEvent{
		Pair:     pos.Pair,
		Event:    model.TradeEventTP1,
		Price:    price,
		Amount:   half,
		OrderRef: outcome.OrderRef,
	})
	m.notifier.Send(ctx, fmt.Sprintf(
		"💰 *TP 1 reached*\n\nPair: `%s`\nSold half at `%s`. Stop moved to breakeven.",
		pos.Pair, price.String(),
	))
	return Result{Pair: pos.Pair, Action: ActionScaleOut, Status: execution.StatusExecuted}
}

// trail ratchets the high-water mark and the trailing stop. Returns true
// when the stop actually moved.
func (m *Manager) trail(pos *model.Position, price decimal.Decimal) bool {
	if !pos.MarkHigh(price) {
		return false
	}
	candidate := price.Mul(decimal.NewFromInt(1).Sub(m.trailingPct))
	return pos.RaiseStop(candidate)
}

// close sells the full remaining size at market and removes the position.
func (m *Manager) close(ctx context.Context, pos *model.Position, price decimal.Decimal, before, after []model.Position) Result {
	reason := ReasonStopLoss
	if pos.TP1Hit {
		reason = ReasonTrailingStop
	}

	amount := m.sizer.ClampAmount(pos.Pair, pos.Amount)
	if !amount.IsPositive() {
		amount = pos.Amount
	}

	outcome := m.gateway.SellMarket(ctx, pos.Pair, amount, price)
	if !outcome.IsExecuted() {
		logger.WithFields(logger.Fields{
			"pair":   pos.Pair,
			"reason": outcome.Reason,
		}).Error("close sell failed, will retry next cycle")
		return Result{Pair: pos.Pair, Action: ActionClose, Status: execution.StatusFailed, Reason: outcome.Reason}
	}

	pnl := pos.PnLPercent(price)
	m.save(append(before[:len(before):len(before)], after...))
	m.record(ctx, &model.TradeEvent{
		Pair:       pos.Pair,
		Event:      model.TradeEventClose,
		Reason:     reason,
		Price:      price,
		Amount:     amount,
		PnlPercent: pnl,
		OrderRef:   outcome.OrderRef,
	})

	icon := "🟢"
	if pnl.IsNegative() {
		icon = "🔴"
	}
	m.notifier.Send(ctx, fmt.Sprintf(
		"%s *Position closed (%s)*\n\nPair: `%s`\nExit price: `%s`\nProfit/Loss: `%s%%`",
		icon, reason, pos.Pair, price.String(), pnl.StringFixed(2),
	))
	return Result{Pair: pos.Pair, Action: ActionClose, Status: execution.StatusExecuted, Reason: reason, Closed: true}
}

func (m *Manager) save(positions []model.Position) {
	if m.persist == nil {
		return
	}
	if err := m.persist(positions); err != nil {
		logger.WithError(err).Error("ledger persist failed")
	}
}

func (m *Manager) record(ctx context.Context, event *model.TradeEvent) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(ctx, event); err != nil {
		logger.WithError(err).Warn("journal record failed")
	}
}

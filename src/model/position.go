package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is derived from the TP1 flag: a position is opened full,
// becomes partial exactly once after the first scale-out, and is removed
// from the ledger when fully closed.
type PositionState string

const (
	PositionOpenFull    PositionState = "open_full"
	PositionOpenPartial PositionState = "open_partial"
)

var (
	ErrTP1AlreadyHit = errors.New("take-profit 1 already hit")
	ErrStopLowered   = errors.New("stop price may not decrease")
)

// Position is the unit of managed risk. At most one open position exists per
// pair. All mutations go through methods so the stop-monotonicity and
// one-way TP1 invariants hold at every write site.
//
// The JSON keys match the ledger file layout ("sl_price", "tp1_price",
// "highest_price", "type") so a ledger written by earlier deployments of the
// bot loads unchanged.
type Position struct {
	Pair         string          `json:"pair"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	Amount       decimal.Decimal `json:"amount"`
	StopPrice    decimal.Decimal `json:"sl_price"`
	TakeProfit1  decimal.Decimal `json:"tp1_price"`
	HighestPrice decimal.Decimal `json:"highest_price"`
	TP1Hit       bool            `json:"tp1_hit"`
	StrategyTag  string          `json:"type"`
	OpenedAt     time.Time       `json:"opened_at"`
}

// NewPosition validates the construction-time invariants. HighestPrice
// starts at the entry price.
func NewPosition(pair string, entry, amount, stop, tp1 decimal.Decimal, tag string, openedAt time.Time) (Position, error) {
	if pair == "" {
		return Position{}, errors.New("position pair is empty")
	}
	if !amount.IsPositive() {
		return Position{}, fmt.Errorf("position amount must be positive, got %s", amount)
	}
	if !entry.IsPositive() {
		return Position{}, fmt.Errorf("position entry price must be positive, got %s", entry)
	}
	if stop.GreaterThanOrEqual(entry) {
		return Position{}, fmt.Errorf("stop %s must be below entry %s", stop, entry)
	}
	if tp1.LessThanOrEqual(entry) {
		return Position{}, fmt.Errorf("take-profit %s must be above entry %s", tp1, entry)
	}
	return Position{
		Pair:         pair,
		EntryPrice:   entry,
		Amount:       amount,
		StopPrice:    stop,
		TakeProfit1:  tp1,
		HighestPrice: entry,
		StrategyTag:  tag,
		OpenedAt:     openedAt,
	}, nil
}

func (p *Position) State() PositionState {
	if p.TP1Hit {
		return PositionOpenPartial
	}
	return PositionOpenFull
}

// MarkHigh ratchets the highest traded price seen. Returns true when the
// watermark moved.
func (p *Position) MarkHigh(price decimal.Decimal) bool {
	if price.GreaterThan(p.HighestPrice) {
		p.HighestPrice = price
		return true
	}
	return false
}

// RaiseStop moves the stop up to candidate. The stop never moves down;
// a candidate at or below the current stop is a no-op.
func (p *Position) RaiseStop(candidate decimal.Decimal) bool {
	if candidate.GreaterThan(p.StopPrice) {
		p.StopPrice = candidate
		return true
	}
	return false
}

// ScaleOut records the TP1 event: half the remaining amount is gone, the
// stop moves to breakeven and the TP1 flag flips. soldAmount is what the
// venue actually sold (the clamped half). The flip happens at most once.
func (p *Position) ScaleOut(soldAmount decimal.Decimal) error {
	if p.TP1Hit {
		return ErrTP1AlreadyHit
	}
	if !soldAmount.IsPositive() || soldAmount.GreaterThanOrEqual(p.Amount) {
		return fmt.Errorf("scale-out amount %s out of range for position size %s", soldAmount, p.Amount)
	}
	p.Amount = p.Amount.Sub(soldAmount)
	// Breakeven can only raise the stop: entry is always above the
	// ATR-based initial stop, so this respects monotonicity.
	p.RaiseStop(p.EntryPrice)
	p.TP1Hit = true
	return nil
}

// PnLPercent is the unrealized return of the remaining size at price,
// relative to entry.
func (p *Position) PnLPercent(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}

// BaseAsset returns the traded asset of the pair ("DOGE" for "DOGE/IDR").
func (p *Position) BaseAsset() string {
	for i := 0; i < len(p.Pair); i++ {
		if p.Pair[i] == '/' {
			return p.Pair[:i]
		}
	}
	return p.Pair
}

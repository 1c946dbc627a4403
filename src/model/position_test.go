package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openPosition(t *testing.T) Position {
	t.Helper()
	pos, err := NewPosition("DOGE/IDR", d("100"), d("10"), d("95"), d("107.5"), "momentum",
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	return pos
}

func TestNewPosition_Validation(t *testing.T) {
	now := time.Now()

	if _, err := NewPosition("", d("100"), d("10"), d("95"), d("110"), "momentum", now); err == nil {
		t.Fatalf("expected error for empty pair")
	}
	if _, err := NewPosition("DOGE/IDR", d("100"), d("0"), d("95"), d("110"), "momentum", now); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if _, err := NewPosition("DOGE/IDR", d("100"), d("-1"), d("95"), d("110"), "momentum", now); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if _, err := NewPosition("DOGE/IDR", d("100"), d("10"), d("100"), d("110"), "momentum", now); err == nil {
		t.Fatalf("expected error for stop at entry")
	}
	if _, err := NewPosition("DOGE/IDR", d("100"), d("10"), d("95"), d("100"), "momentum", now); err == nil {
		t.Fatalf("expected error for take-profit at entry")
	}
}

func TestNewPosition_HighWaterStartsAtEntry(t *testing.T) {
	pos := openPosition(t)
	if !pos.HighestPrice.Equal(d("100")) {
		t.Fatalf("expected highest=entry, got %s", pos.HighestPrice)
	}
	if pos.State() != PositionOpenFull {
		t.Fatalf("expected open_full, got %s", pos.State())
	}
}

func TestRaiseStop_NeverLowers(t *testing.T) {
	pos := openPosition(t)

	if raised := pos.RaiseStop(d("97")); !raised {
		t.Fatalf("expected stop raise to 97")
	}
	if raised := pos.RaiseStop(d("96")); raised {
		t.Fatalf("stop must not move down")
	}
	if raised := pos.RaiseStop(d("97")); raised {
		t.Fatalf("equal candidate must be a no-op")
	}
	if !pos.StopPrice.Equal(d("97")) {
		t.Fatalf("expected stop 97, got %s", pos.StopPrice)
	}
}

func TestMarkHigh_Ratchet(t *testing.T) {
	pos := openPosition(t)

	if moved := pos.MarkHigh(d("105")); !moved {
		t.Fatalf("expected watermark move to 105")
	}
	if moved := pos.MarkHigh(d("103")); moved {
		t.Fatalf("lower price must not move the watermark")
	}
	if !pos.HighestPrice.Equal(d("105")) {
		t.Fatalf("expected highest 105, got %s", pos.HighestPrice)
	}
}

func TestScaleOut_MovesStopToBreakevenOnce(t *testing.T) {
	pos := openPosition(t)

	if err := pos.ScaleOut(d("5")); err != nil {
		t.Fatalf("ScaleOut: %v", err)
	}
	if !pos.Amount.Equal(d("5")) {
		t.Fatalf("expected amount 5 after scale-out, got %s", pos.Amount)
	}
	if !pos.StopPrice.Equal(d("100")) {
		t.Fatalf("expected breakeven stop 100, got %s", pos.StopPrice)
	}
	if !pos.TP1Hit {
		t.Fatalf("expected tp1_hit set")
	}
	if pos.State() != PositionOpenPartial {
		t.Fatalf("expected open_partial, got %s", pos.State())
	}

	if err := pos.ScaleOut(d("2")); err != ErrTP1AlreadyHit {
		t.Fatalf("expected ErrTP1AlreadyHit, got %v", err)
	}
}

func TestScaleOut_RejectsFullSize(t *testing.T) {
	pos := openPosition(t)
	if err := pos.ScaleOut(d("10")); err == nil {
		t.Fatalf("expected error selling the full size through scale-out")
	}
	if err := pos.ScaleOut(d("0")); err == nil {
		t.Fatalf("expected error for zero scale-out")
	}
}

func TestScaleOut_BreakevenRespectsRaisedStop(t *testing.T) {
	pos := openPosition(t)
	pos.RaiseStop(d("102"))

	if err := pos.ScaleOut(d("5")); err != nil {
		t.Fatalf("ScaleOut: %v", err)
	}
	if !pos.StopPrice.Equal(d("102")) {
		t.Fatalf("breakeven must not lower a raised stop, got %s", pos.StopPrice)
	}
}

func TestPnLPercent(t *testing.T) {
	pos := openPosition(t)
	if got := pos.PnLPercent(d("110")); !got.Equal(d("10")) {
		t.Fatalf("expected 10%%, got %s", got)
	}
	if got := pos.PnLPercent(d("95")); !got.Equal(d("-5")) {
		t.Fatalf("expected -5%%, got %s", got)
	}
}

func TestBaseAsset(t *testing.T) {
	pos := openPosition(t)
	if got := pos.BaseAsset(); got != "DOGE" {
		t.Fatalf("expected DOGE, got %s", got)
	}
}

func TestPosition_JSONKeysRoundTrip(t *testing.T) {
	pos := openPosition(t)
	pos.MarkHigh(d("105"))

	raw, err := json.Marshal(&pos)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal keys: %v", err)
	}
	for _, key := range []string{"pair", "entry_price", "amount", "sl_price", "tp1_price", "highest_price", "tp1_hit", "type"} {
		if _, ok := keys[key]; !ok {
			t.Fatalf("missing ledger key %q", key)
		}
	}

	var back Position
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Pair != pos.Pair || !back.EntryPrice.Equal(pos.EntryPrice) ||
		!back.Amount.Equal(pos.Amount) || !back.StopPrice.Equal(pos.StopPrice) ||
		!back.TakeProfit1.Equal(pos.TakeProfit1) || !back.HighestPrice.Equal(pos.HighestPrice) ||
		back.TP1Hit != pos.TP1Hit || back.StrategyTag != pos.StrategyTag {
		t.Fatalf("round-trip mismatch: %+v vs %+v", back, pos)
	}
}

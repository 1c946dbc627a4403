package execution

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSimGateway_BuyDebitsBalance(t *testing.T) {
	gw := NewSimGateway("IDR", d("1000000"))

	outcome := gw.Buy(context.Background(), "DOGE/IDR", d("100"), d("2500"))
	if !outcome.IsExecuted() {
		t.Fatalf("expected executed buy, got %+v", outcome)
	}
	if outcome.OrderRef == "" {
		t.Fatalf("expected an order ref")
	}
	if !gw.VirtualBalance().Equal(d("750000")) {
		t.Fatalf("expected balance 750000, got %s", gw.VirtualBalance())
	}
}

func TestSimGateway_BuySkippedWhenBalanceShort(t *testing.T) {
	gw := NewSimGateway("IDR", d("1000"))

	outcome := gw.Buy(context.Background(), "DOGE/IDR", d("100"), d("2500"))
	if outcome.Status != StatusSkipped {
		t.Fatalf("expected skipped buy, got %+v", outcome)
	}
	if !gw.VirtualBalance().Equal(d("1000")) {
		t.Fatalf("balance must be untouched, got %s", gw.VirtualBalance())
	}
}

func TestSimGateway_SellCreditsBalance(t *testing.T) {
	gw := NewSimGateway("IDR", d("0"))

	outcome := gw.SellMarket(context.Background(), "DOGE/IDR", d("100"), d("2500"))
	if !outcome.IsExecuted() {
		t.Fatalf("expected executed sell, got %+v", outcome)
	}
	if !gw.VirtualBalance().Equal(d("250000")) {
		t.Fatalf("expected balance 250000, got %s", gw.VirtualBalance())
	}
}

func TestSimGateway_BalanceSnapshot(t *testing.T) {
	gw := NewSimGateway("IDR", d("5000"))

	balance, err := gw.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !balance.FreeOf("IDR").Equal(d("5000")) || !balance.TotalOf("IDR").Equal(d("5000")) {
		t.Fatalf("unexpected snapshot %+v", balance)
	}
}

package execution

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cuanbot/src/model"
)

// Status classifies the result of a state-changing venue action. The
// lifecycle manager branches on this explicitly: Failed means the trigger
// condition still stands and the action retries next cycle, Skipped means
// the action was vetoed before reaching the venue.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

type Outcome struct {
	Status   Status
	Reason   string
	OrderRef string
}

func Executed(ref string) Outcome { return Outcome{Status: StatusExecuted, OrderRef: ref} }

func Skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }

func Failed(reason string) Outcome { return Outcome{Status: StatusFailed, Reason: reason} }

func (o Outcome) IsExecuted() bool { return o.Status == StatusExecuted }

// Gateway executes the irreversible buy/sell decisions. Implementations
// must not mutate any engine state; the caller owns the ledger.
type Gateway interface {
	// Buy places a limit buy for amount at price.
	Buy(ctx context.Context, pair string, amount, price decimal.Decimal) Outcome
	// SellMarket sells amount at market. price is the last observed price,
	// used for simulated fills and audit only.
	SellMarket(ctx context.Context, pair string, amount, price decimal.Decimal) Outcome
	// Balance returns the account snapshot backing this gateway.
	Balance(ctx context.Context) (model.Balance, error)
}

func newOrderRef() string {
	return "cuan-" + uuid.NewString()
}

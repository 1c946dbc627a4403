package execution

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/model"
)

// SimGateway fills every order against a virtual quote-currency balance:
// buys debit the estimated cost, sells credit the proceeds. It lets the
// whole engine run unchanged in simulation mode.
type SimGateway struct {
	quoteAsset string
	balance    decimal.Decimal
}

func NewSimGateway(quoteAsset string, initialBalance decimal.Decimal) *SimGateway {
	return &SimGateway{quoteAsset: quoteAsset, balance: initialBalance}
}

func (g *SimGateway) Buy(_ context.Context, pair string, amount, price decimal.Decimal) Outcome {
	cost := amount.Mul(price)
	if cost.GreaterThan(g.balance) {
		logger.WithFields(logger.Fields{
			"pair":    pair,
			"cost":    cost.String(),
			"balance": g.balance.String(),
		}).Warn("sim buy skipped, virtual balance insufficient")
		return Skipped("virtual balance insufficient")
	}
	g.balance = g.balance.Sub(cost)
	logger.WithFields(logger.Fields{
		"pair":    pair,
		"cost":    cost.String(),
		"balance": g.balance.String(),
	}).Info("sim buy filled, virtual balance debited")
	return Executed(newOrderRef())
}

func (g *SimGateway) SellMarket(_ context.Context, pair string, amount, price decimal.Decimal) Outcome {
	proceeds := amount.Mul(price)
	g.balance = g.balance.Add(proceeds)
	logger.WithFields(logger.Fields{
		"pair":     pair,
		"proceeds": proceeds.String(),
		"balance":  g.balance.String(),
	}).Info("sim sell filled, virtual balance credited")
	return Executed(newOrderRef())
}

func (g *SimGateway) Balance(_ context.Context) (model.Balance, error) {
	return model.Balance{
		Free:  map[string]decimal.Decimal{g.quoteAsset: g.balance},
		Total: map[string]decimal.Decimal{g.quoteAsset: g.balance},
	}, nil
}

// VirtualBalance is the current uncommitted quote balance.
func (g *SimGateway) VirtualBalance() decimal.Decimal { return g.balance }

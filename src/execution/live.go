package execution

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/connectors"
	"cuanbot/src/model"
)

// LiveGateway sends orders to the venue. Every order carries a fresh
// client reference so a retried action is distinguishable in the journal.
type LiveGateway struct {
	trader connectors.Trader
}

func NewLiveGateway(trader connectors.Trader) *LiveGateway {
	return &LiveGateway{trader: trader}
}

func (g *LiveGateway) Buy(ctx context.Context, pair string, amount, price decimal.Decimal) Outcome {
	ref := newOrderRef()
	if err := g.trader.CreateLimitBuy(ctx, pair, amount, price, ref); err != nil {
		logger.WithError(err).WithField("pair", pair).Error("live buy failed")
		return Failed(err.Error())
	}
	return Executed(ref)
}

func (g *LiveGateway) SellMarket(ctx context.Context, pair string, amount, _ decimal.Decimal) Outcome {
	ref := newOrderRef()
	if err := g.trader.CreateMarketSell(ctx, pair, amount, ref); err != nil {
		logger.WithError(err).WithField("pair", pair).Error("live market sell failed")
		return Failed(err.Error())
	}
	return Executed(ref)
}

func (g *LiveGateway) Balance(ctx context.Context) (model.Balance, error) {
	return g.trader.FetchBalance(ctx)
}

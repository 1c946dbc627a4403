package execution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cuanbot/src/model"
)

// Sizing applies the venue's precision and minimum-size rules to proposed
// order amounts. It implements portfolio.Sizer. Pairs without metadata are
// treated permissively; the venue itself is the final arbiter.
type Sizing struct {
	markets map[string]model.Market
}

func NewSizing(markets map[string]model.Market) *Sizing {
	if markets == nil {
		markets = map[string]model.Market{}
	}
	return &Sizing{markets: markets}
}

// ClampAmount rounds the amount down to the pair's precision and returns
// zero when the result is below the venue's minimum tradeable size.
func (s *Sizing) ClampAmount(pair string, amount decimal.Decimal) decimal.Decimal {
	market, ok := s.markets[pair]
	if !ok {
		return amount
	}
	clamped := amount.RoundDown(market.AmountPrecision)
	if market.MinAmount.IsPositive() && clamped.LessThan(market.MinAmount) {
		return decimal.Zero
	}
	return clamped
}

// CanTrade vetoes orders the venue would reject outright: inactive market
// or notional below the venue minimum.
func (s *Sizing) CanTrade(pair string, price, amount decimal.Decimal) (bool, string) {
	market, ok := s.markets[pair]
	if !ok {
		return true, ""
	}
	if !market.Active {
		return false, "market not active"
	}
	if market.MinNotional.IsPositive() {
		if notional := price.Mul(amount); notional.LessThan(market.MinNotional) {
			return false, fmt.Sprintf("notional %s below venue minimum %s", notional, market.MinNotional)
		}
	}
	return true, ""
}

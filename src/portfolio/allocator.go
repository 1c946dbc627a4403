package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"cuanbot/src/model"
)

// Sizer is the slice of the execution collaborator the allocator needs:
// venue size clamping and the minimum-viable-trade veto.
type Sizer interface {
	// ClampAmount rounds amount down to the venue's precision and returns
	// zero when the result is below the venue's minimum size.
	ClampAmount(pair string, amount decimal.Decimal) decimal.Decimal
	// CanTrade reports whether the venue accepts an order of this
	// price*amount (market active, minimum notional).
	CanTrade(pair string, price, amount decimal.Decimal) (bool, string)
}

// Decision is the allocator's verdict. Amount carries the venue-clamped
// size to execute when Accepted.
type Decision struct {
	Accepted bool
	Reason   string
	Amount   decimal.Decimal
}

func reject(reason string) Decision {
	return Decision{Accepted: false, Reason: reason}
}

// Allocator bounds simultaneous risk exposure globally and per sector.
// It is consulted once per candidate; during a scan batch the caller must
// pass the working set including positions admitted earlier in the same
// batch, so two same-sector candidates cannot both slip past the cap.
type Allocator struct {
	maxOpen int
	sectors SectorMap
	sizer   Sizer
}

func NewAllocator(maxOpen int, sectors SectorMap, sizer Sizer) *Allocator {
	return &Allocator{maxOpen: maxOpen, sectors: sectors, sizer: sizer}
}

// Admit runs the ordered checks from the portfolio policy, short-circuiting
// on the first failure.
func (a *Allocator) Admit(cand model.Candidate, open []model.Position) Decision {
	if len(open) >= a.maxOpen {
		return reject(fmt.Sprintf("max open positions reached (%d)", a.maxOpen))
	}

	for _, p := range open {
		if p.Pair == cand.Pair {
			return reject("position already open for pair")
		}
	}

	sector := a.sectors.Resolve(cand.Pair)
	sectorCap := a.sectors.CapFor(sector, a.maxOpen)
	inSector := 0
	for _, p := range open {
		if a.sectors.Resolve(p.Pair) == sector {
			inSector++
		}
	}
	if inSector >= sectorCap {
		logger.WithFields(logger.Fields{
			"pair":   cand.Pair,
			"sector": sector,
			"cap":    sectorCap,
		}).Info("signal ignored, sector cap reached")
		return reject(fmt.Sprintf("sector %s cap reached (%d)", sector, sectorCap))
	}

	amount := a.sizer.ClampAmount(cand.Pair, cand.Amount)
	if !amount.IsPositive() {
		return reject("amount below venue minimum after clamping")
	}
	if ok, why := a.sizer.CanTrade(cand.Pair, cand.EntryPrice, amount); !ok {
		return reject(why)
	}

	return Decision{Accepted: true, Amount: amount}
}

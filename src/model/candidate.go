package model

import "github.com/shopspring/decimal"

// Candidate is a fully specified trade proposal produced by the signal
// engine. It lives for one scan cycle only and is never persisted; a
// candidate that passes the allocator becomes a Position.
type Candidate struct {
	Pair        string
	EntryPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	TakeProfit1 decimal.Decimal
	Amount      decimal.Decimal
	StrategyTag string
}

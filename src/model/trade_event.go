package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeEventOpen     = "open"
	TradeEventTP1      = "tp1"
	TradeEventClose    = "close"
	TradeEventSkip     = "skip"
	TradeEventReconcNG = "reconcile_mismatch"
)

// TradeEvent is one row of the durable trade journal. The journal is an
// append-only audit trail; the ledger file, not the journal, is the source
// of truth for open risk.
type TradeEvent struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Pair       string          `gorm:"size:32;index" json:"pair"`
	Event      string          `gorm:"size:32;not null;index" json:"event"`
	Reason     string          `gorm:"size:128" json:"reason,omitempty"`
	Price      decimal.Decimal `gorm:"type:numeric" json:"price"`
	Amount     decimal.Decimal `gorm:"type:numeric" json:"amount"`
	PnlPercent decimal.Decimal `gorm:"type:numeric" json:"pnl_percent"`
	OrderRef   string          `gorm:"size:64" json:"order_ref,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

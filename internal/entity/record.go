package entity

import (
	"github.com/shopspring/decimal"
)

const DefaultSubaccount = "Main Account"

// TradeRecord 同步到账本的标准化记录
// Size and Price are nil for funding-only entries; the ledger mapping
// must omit absent numeric fields entirely.
type TradeRecord struct {
	Symbol     string
	Side       Side
	Size       *decimal.Decimal
	Price      *decimal.Decimal
	Fee        decimal.Decimal
	Pnl        decimal.Decimal
	Timestamp  int64 // milliseconds since epoch, UTC
	Subaccount string
}

type Side string

const (
	SideBuy     Side = "Buy"
	SideSell    Side = "Sell"
	SideFunding Side = "Funding"
)

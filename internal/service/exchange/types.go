package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeUnified AccountType = "UNIFIED"
)

type Category string

const (
	CategoryLinear  Category = "linear"
	CategoryInverse Category = "inverse"
	CategorySpot    Category = "spot"
)

type TransactionType string

const (
	TransactionTypeTrade   TransactionType = "TRADE"
	TransactionTypeFunding TransactionType = "FUNDING"
	TransactionTypeOther   TransactionType = "OTHER"
)

// Transaction 交易所账户流水的一条原始记录
type Transaction struct {
	Symbol          string
	Side            string // Buy / Sell, empty for funding settlements
	Type            TransactionType
	Qty             decimal.Decimal
	TradePrice      decimal.Decimal
	Change          decimal.Decimal
	Fee             decimal.Decimal
	TransactionTime int64 // ms
}

type GetTransactionLogReq struct {
	AccountType AccountType
	Category    Category
	StartTime   int64 // ms, inclusive
	EndTime     int64 // ms, inclusive
}

type GetExecutionsReq struct {
	Category  Category
	StartTime int64
	EndTime   int64
}

type Execution struct {
	Symbol    string
	Side      string
	OrderType string
	ExecPrice decimal.Decimal
	ExecQty   decimal.Decimal
	ExecFee   decimal.Decimal
	ExecTime  int64
}

// TransactionService (bounded per-call time span, caller does the chunking)
type TransactionService interface {
	GetTransactionLog(ctx context.Context, req GetTransactionLogReq) ([]Transaction, error)
	GetExecutions(ctx context.Context, req GetExecutionsReq) ([]Execution, error)
}

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

type OrderUpdate struct {
	Symbol     string
	Side       string
	OrderType  string
	Status     OrderStatus
	Price      decimal.Decimal
	Qty        decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	UpdatedAt  int64
}

type PositionUpdate struct {
	Symbol        string
	Side          string
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	UnrealizedPnl decimal.Decimal
	UpdatedAt     int64
}

type OrderHandler func(orders []OrderUpdate)
type ExecutionHandler func(executions []Execution)
type PositionHandler func(positions []PositionUpdate)

// StreamService 私有推送流，三个独立订阅通道。
// Handlers may be invoked concurrently with each other; each must be
// independently safe.
type StreamService interface {
	SubscribeOrders(handler OrderHandler) error
	SubscribeExecutions(handler ExecutionHandler) error
	SubscribePositions(handler PositionHandler) error

	// Run keeps the subscription alive until ctx is done.
	Run(ctx context.Context) error
	Close() error
}

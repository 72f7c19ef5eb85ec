package monitor

import (
	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/samber/lo"
)

type IntentKind string

const (
	IntentOrderNew       IntentKind = "order_new"
	IntentOrderCancelled IntentKind = "order_cancelled"
	IntentOrderFilled    IntentKind = "order_filled"
	IntentPositionUpdate IntentKind = "position_update"
)

// Intent 一条待发送的通知意图
type Intent struct {
	Kind      IntentKind
	Order     exchange.OrderUpdate
	Execution exchange.Execution
	Position  exchange.PositionUpdate
}

// RouteOrders classifies order updates. New and Cancelled produce intents;
// everything else (including Filled) is ignored here — fills come through
// the execution stream, and notifying on both would duplicate.
func RouteOrders(orders []exchange.OrderUpdate) []Intent {
	return lo.FilterMap(orders, func(order exchange.OrderUpdate, _ int) (Intent, bool) {
		switch order.Status {
		case exchange.OrderStatusNew:
			return Intent{Kind: IntentOrderNew, Order: order}, true
		case exchange.OrderStatusCancelled:
			return Intent{Kind: IntentOrderCancelled, Order: order}, true
		default:
			return Intent{}, false
		}
	})
}

// RouteExecutions notifies every fill unconditionally.
func RouteExecutions(executions []exchange.Execution) []Intent {
	return lo.Map(executions, func(execution exchange.Execution, _ int) Intent {
		return Intent{Kind: IntentOrderFilled, Execution: execution}
	})
}

// RoutePositions suppresses closed positions (size exactly zero).
func RoutePositions(positions []exchange.PositionUpdate) []Intent {
	return lo.FilterMap(positions, func(position exchange.PositionUpdate, _ int) (Intent, bool) {
		if position.Size.IsZero() {
			return Intent{}, false
		}
		return Intent{Kind: IntentPositionUpdate, Position: position}, true
	})
}

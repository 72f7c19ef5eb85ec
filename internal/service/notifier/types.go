package notifier

import (
	"context"

	"github.com/kazusato/trade-journal/internal/service/exchange"
)

// Notifier 事件通知通道。Implementations must be safe for concurrent use;
// the monitor's stream callbacks may overlap.
type Notifier interface {
	SendOrderNew(ctx context.Context, order exchange.OrderUpdate) error
	SendOrderFilled(ctx context.Context, execution exchange.Execution) error
	SendOrderCancelled(ctx context.Context, order exchange.OrderUpdate) error
	SendPositionUpdate(ctx context.Context, position exchange.PositionUpdate) error
}

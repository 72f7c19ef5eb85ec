package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/internal/service/notifier"
)

// Monitor 实时事件监控：持有私有推送订阅，按事件类型路由到通知通道。
// Notification failures are logged and never stop the stream.
type Monitor struct {
	stream   exchange.StreamService
	notifier notifier.Notifier
	logger   *slog.Logger
}

type Option func(*Monitor)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func NewMonitor(stream exchange.StreamService, n notifier.Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		stream:   stream,
		notifier: n,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers the three stream handlers and blocks until ctx is done
// or the stream fails to start.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.stream.SubscribeOrders(func(orders []exchange.OrderUpdate) {
		m.dispatch(ctx, RouteOrders(orders))
	}); err != nil {
		return fmt.Errorf("subscribe orders: %w", err)
	}
	if err := m.stream.SubscribeExecutions(func(executions []exchange.Execution) {
		m.dispatch(ctx, RouteExecutions(executions))
	}); err != nil {
		return fmt.Errorf("subscribe executions: %w", err)
	}
	if err := m.stream.SubscribePositions(func(positions []exchange.PositionUpdate) {
		m.dispatch(ctx, RoutePositions(positions))
	}); err != nil {
		return fmt.Errorf("subscribe positions: %w", err)
	}

	m.logger.Info("monitor started, listening for events")
	return m.stream.Run(ctx)
}

func (m *Monitor) Close() error {
	return m.stream.Close()
}

func (m *Monitor) dispatch(ctx context.Context, intents []Intent) {
	for _, intent := range intents {
		var err error
		switch intent.Kind {
		case IntentOrderNew:
			err = m.notifier.SendOrderNew(ctx, intent.Order)
		case IntentOrderCancelled:
			err = m.notifier.SendOrderCancelled(ctx, intent.Order)
		case IntentOrderFilled:
			err = m.notifier.SendOrderFilled(ctx, intent.Execution)
		case IntentPositionUpdate:
			err = m.notifier.SendPositionUpdate(ctx, intent.Position)
		}
		if err != nil {
			m.logger.Error("notification delivery failed",
				"kind", intent.Kind,
				"error", err,
			)
		}
	}
}

package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/pkg/decimalx"
)

const (
	keepaliveInterval = 30 * time.Minute
	reconnectDelay    = 5 * time.Second
)

var _ exchange.StreamService = (*Stream)(nil)

// Stream 币安合约用户数据流适配器。
// ORDER_TRADE_UPDATE feeds the order channel, and the execution channel
// when the update carries a fill; ACCOUNT_UPDATE feeds the position channel.
type Stream struct {
	cli    *futures.Client
	logger *slog.Logger

	orderHandler     exchange.OrderHandler
	executionHandler exchange.ExecutionHandler
	positionHandler  exchange.PositionHandler
}

func NewStream(cli *futures.Client) *Stream {
	return &Stream{
		cli:    cli,
		logger: slog.Default(),
	}
}

func (s *Stream) SubscribeOrders(handler exchange.OrderHandler) error {
	if s.orderHandler != nil {
		return errors.New("order stream already subscribed")
	}
	s.orderHandler = handler
	return nil
}

func (s *Stream) SubscribeExecutions(handler exchange.ExecutionHandler) error {
	if s.executionHandler != nil {
		return errors.New("execution stream already subscribed")
	}
	s.executionHandler = handler
	return nil
}

func (s *Stream) SubscribePositions(handler exchange.PositionHandler) error {
	if s.positionHandler != nil {
		return errors.New("position stream already subscribed")
	}
	s.positionHandler = handler
	return nil
}

func (s *Stream) Run(ctx context.Context) error {
	if s.orderHandler == nil && s.executionHandler == nil && s.positionHandler == nil {
		return errors.New("no stream subscribed")
	}

	listenKey, err := s.cli.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return fmt.Errorf("start user stream: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cli.NewCloseUserStreamService().ListenKey(listenKey).Do(closeCtx); err != nil {
			s.logger.Warn("close user stream", "error", err)
		}
	}()

	go s.keepaliveLoop(ctx, listenKey)

	for {
		doneC, stopC, err := futures.WsUserDataServe(listenKey, s.onEvent, func(err error) {
			s.logger.Error("user data stream error", "error", err)
		})
		if err != nil {
			s.logger.Error("user data stream connect failed, retrying",
				"error", err,
				"delay", reconnectDelay,
			)
		} else {
			s.logger.Info("user data stream connected")
			select {
			case <-ctx.Done():
				close(stopC)
				return ctx.Err()
			case <-doneC:
				s.logger.Error("user data stream disconnected, reconnecting", "delay", reconnectDelay)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Stream) Close() error {
	return nil
}

func (s *Stream) keepaliveLoop(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cli.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
				s.logger.Warn("keepalive user stream", "error", err)
			}
		}
	}
}

func (s *Stream) onEvent(event *futures.WsUserDataEvent) {
	switch event.Event {
	case futures.UserDataEventTypeOrderTradeUpdate:
		s.onOrderTradeUpdate(event.OrderTradeUpdate)
	case futures.UserDataEventTypeAccountUpdate:
		s.onAccountUpdate(event.AccountUpdate)
	}
}

func (s *Stream) onOrderTradeUpdate(update futures.WsOrderTradeUpdate) {
	if s.orderHandler != nil {
		s.orderHandler([]exchange.OrderUpdate{{
			Symbol:    update.Symbol,
			Side:      fromBinanceSide(update.Side),
			OrderType: string(update.Type),
			Status:    fromBinanceStatus(update.Status),
			Price:     decimalx.ParseOrZero(update.OriginalPrice),
			Qty:       decimalx.ParseOrZero(update.OriginalQty),
			UpdatedAt: update.TradeTime,
		}})
	}

	if s.executionHandler != nil && update.ExecutionType == futures.OrderExecutionTypeTrade {
		s.executionHandler([]exchange.Execution{{
			Symbol:    update.Symbol,
			Side:      fromBinanceSide(update.Side),
			OrderType: string(update.Type),
			ExecPrice: decimalx.ParseOrZero(update.LastFilledPrice),
			ExecQty:   decimalx.ParseOrZero(update.LastFilledQty),
			ExecTime:  update.TradeTime,
		}})
	}
}

func (s *Stream) onAccountUpdate(update futures.WsAccountUpdate) {
	if s.positionHandler == nil || len(update.Positions) == 0 {
		return
	}
	positions := make([]exchange.PositionUpdate, len(update.Positions))
	for i, pos := range update.Positions {
		positions[i] = exchange.PositionUpdate{
			Symbol:        pos.Symbol,
			Side:          fromBinancePositionSide(pos.Side),
			Size:          decimalx.ParseOrZero(pos.Amount),
			EntryPrice:    decimalx.ParseOrZero(pos.EntryPrice),
			UnrealizedPnl: decimalx.ParseOrZero(pos.UnrealizedPnL),
		}
	}
	s.positionHandler(positions)
}

package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/pkg/decimalx"
)

const (
	topicOrder     = "order"
	topicExecution = "execution"
	topicPosition  = "position"

	pingInterval   = 20 * time.Second
	reconnectDelay = 5 * time.Second
	authExpiry     = 10 * time.Second

	// Per-topic dispatch queue. A slow handler on one topic must not
	// stall delivery on the other two.
	topicQueueSize = 64
)

var _ exchange.StreamService = (*Stream)(nil)

// Stream v5 私有推送流（order / execution / position）
type Stream struct {
	cli    *Client
	logger *slog.Logger

	orderHandler     exchange.OrderHandler
	executionHandler exchange.ExecutionHandler
	positionHandler  exchange.PositionHandler

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewStream(cli *Client) *Stream {
	return &Stream{
		cli:    cli,
		logger: cli.logger,
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

func (s *Stream) topics() []string {
	var topics []string
	if s.orderHandler != nil {
		topics = append(topics, topicOrder)
	}
	if s.executionHandler != nil {
		topics = append(topics, topicExecution)
	}
	if s.positionHandler != nil {
		topics = append(topics, topicPosition)
	}
	return topics
}

// Run connects, authenticates and relays messages until ctx is done.
// A dropped connection is re-dialed after a fixed delay with the same
// subscriptions.
func (s *Stream) Run(ctx context.Context) error {
	if len(s.topics()) == 0 {
		return errors.New("no stream subscribed")
	}

	queues := s.startDispatchers(ctx)

	for {
		err := s.runOnce(ctx, queues)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.isClosed() {
			return nil
		}
		s.logger.Error("private stream disconnected, reconnecting",
			"error", err,
			"delay", reconnectDelay,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// startDispatchers spins up one delivery goroutine per subscribed topic.
func (s *Stream) startDispatchers(ctx context.Context) map[string]chan json.RawMessage {
	queues := make(map[string]chan json.RawMessage)
	for _, topic := range s.topics() {
		topic := topic
		queue := make(chan json.RawMessage, topicQueueSize)
		queues[topic] = queue
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case data := <-queue:
					s.deliver(topic, data)
				}
			}
		}()
	}
	return queues
}

type wsRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

type wsMessage struct {
	Topic   string          `json:"topic"`
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Data    json.RawMessage `json:"data"`
}

func (s *Stream) runOnce(ctx context.Context, queues map[string]chan json.RawMessage) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.cli.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial private stream: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	if err := s.authenticate(conn); err != nil {
		return err
	}
	if err := s.writeJSON(conn, wsRequest{Op: "subscribe", Args: s.topics()}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("private stream connected", "topics", s.topics())

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go s.pingLoop(pingCtx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("drop undecodable stream message", "error", err)
			continue
		}

		switch {
		case msg.Topic != "":
			if queue, ok := queues[msg.Topic]; ok {
				select {
				case queue <- msg.Data:
				default:
					s.logger.Warn("topic queue full, dropping message", "topic", msg.Topic)
				}
			}
		case msg.Op == "auth" || msg.Op == "subscribe":
			if msg.Success != nil && !*msg.Success {
				return fmt.Errorf("%s rejected: %s", msg.Op, msg.RetMsg)
			}
		case msg.Op == "pong" || msg.Op == "ping":
			// keepalive echo
		}
	}
}

// authenticate sends the auth op: HMAC-SHA256 over "GET/realtime" + expires.
func (s *Stream) authenticate(conn *websocket.Conn) error {
	expires := time.Now().Add(authExpiry).UnixMilli()
	mac := hmac.New(sha256.New, []byte(s.cli.apiSecret))
	mac.Write([]byte("GET/realtime" + strconv.FormatInt(expires, 10)))
	signature := hex.EncodeToString(mac.Sum(nil))

	req := wsRequest{
		Op:   "auth",
		Args: []string{s.cli.apiKey, strconv.FormatInt(expires, 10), signature},
	}
	if err := s.writeJSON(conn, req); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (s *Stream) writeJSON(conn *websocket.Conn, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return conn.WriteJSON(v)
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeJSON(conn, wsRequest{Op: "ping"}); err != nil {
				s.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Stream) deliver(topic string, data json.RawMessage) {
	switch topic {
	case topicOrder:
		var items []wsOrder
		if err := json.Unmarshal(data, &items); err != nil {
			s.logger.Warn("drop order batch", "error", err)
			return
		}
		s.orderHandler(convertWsOrders(items))
	case topicExecution:
		var items []wsExecution
		if err := json.Unmarshal(data, &items); err != nil {
			s.logger.Warn("drop execution batch", "error", err)
			return
		}
		s.executionHandler(convertWsExecutions(items))
	case topicPosition:
		var items []wsPosition
		if err := json.Unmarshal(data, &items); err != nil {
			s.logger.Warn("drop position batch", "error", err)
			return
		}
		s.positionHandler(convertWsPositions(items))
	}
}

type wsOrder struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	OrderStatus string `json:"orderStatus"`
	Price       string `json:"price"`
	Qty         string `json:"qty"`
	TakeProfit  string `json:"takeProfit"`
	StopLoss    string `json:"stopLoss"`
	UpdatedTime string `json:"updatedTime"`
}

type wsExecution struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	ExecPrice string `json:"execPrice"`
	ExecQty   string `json:"execQty"`
	ExecFee   string `json:"execFee"`
	ExecTime  string `json:"execTime"`
}

type wsPosition struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	EntryPrice    string `json:"entryPrice"`
	AvgPrice      string `json:"avgPrice"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	UpdatedTime   string `json:"updatedTime"`
}

func parseMs(s string) int64 {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

func convertWsOrders(items []wsOrder) []exchange.OrderUpdate {
	orders := make([]exchange.OrderUpdate, len(items))
	for i, item := range items {
		orders[i] = exchange.OrderUpdate{
			Symbol:     item.Symbol,
			Side:       item.Side,
			OrderType:  item.OrderType,
			Status:     exchange.OrderStatus(item.OrderStatus),
			Price:      decimalx.ParseOrZero(item.Price),
			Qty:        decimalx.ParseOrZero(item.Qty),
			TakeProfit: decimalx.ParseOrZero(item.TakeProfit),
			StopLoss:   decimalx.ParseOrZero(item.StopLoss),
			UpdatedAt:  parseMs(item.UpdatedTime),
		}
	}
	return orders
}

func convertWsExecutions(items []wsExecution) []exchange.Execution {
	executions := make([]exchange.Execution, len(items))
	for i, item := range items {
		executions[i] = exchange.Execution{
			Symbol:    item.Symbol,
			Side:      item.Side,
			OrderType: item.OrderType,
			ExecPrice: decimalx.ParseOrZero(item.ExecPrice),
			ExecQty:   decimalx.ParseOrZero(item.ExecQty),
			ExecFee:   decimalx.ParseOrZero(item.ExecFee),
			ExecTime:  parseMs(item.ExecTime),
		}
	}
	return executions
}

func convertWsPositions(items []wsPosition) []exchange.PositionUpdate {
	positions := make([]exchange.PositionUpdate, len(items))
	for i, item := range items {
		entry := item.EntryPrice
		if entry == "" {
			// older payload revisions report avgPrice instead
			entry = item.AvgPrice
		}
		positions[i] = exchange.PositionUpdate{
			Symbol:        item.Symbol,
			Side:          item.Side,
			Size:          decimalx.ParseOrZero(item.Size),
			EntryPrice:    decimalx.ParseOrZero(entry),
			UnrealizedPnl: decimalx.ParseOrZero(item.UnrealisedPnl),
			UpdatedAt:     parseMs(item.UpdatedTime),
		}
	}
	return positions
}

package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/internal/service/notifier"
	"github.com/shopspring/decimal"
)

const (
	colorGreen = 3066993
	colorRed   = 15158332
	colorGrey  = 9807270
	colorBlue  = 3447003
)

var _ notifier.Notifier = (*Notifier)(nil)

// Notifier posts embeds to a Discord webhook. An empty webhook URL turns
// every send into a silent no-op, checked before any formatting work.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Notifier)

func WithHTTPClient(hc *http.Client) Option {
	return func(n *Notifier) {
		n.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func NewNotifier(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.webhookURL == "" {
		n.logger.Warn("no discord webhook url configured, notifications disabled")
	}
	return n
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

func (n *Notifier) SendOrderNew(ctx context.Context, order exchange.OrderUpdate) error {
	if n.webhookURL == "" {
		return nil
	}
	return n.send(ctx, embed{
		Title: fmt.Sprintf("📢 New %s %s order", order.Symbol, order.Side),
		Color: sideColor(order.Side),
		Fields: []embedField{
			{Name: "Type", Value: order.OrderType, Inline: true},
			{Name: "Price", Value: order.Price.String(), Inline: true},
			{Name: "Qty", Value: order.Qty.String(), Inline: true},
			{Name: "Take Profit", Value: orNone(order.TakeProfit), Inline: true},
			{Name: "Stop Loss", Value: orNone(order.StopLoss), Inline: true},
		},
		Footer: n.footer(),
	})
}

func (n *Notifier) SendOrderFilled(ctx context.Context, execution exchange.Execution) error {
	if n.webhookURL == "" {
		return nil
	}
	return n.send(ctx, embed{
		Title: fmt.Sprintf("⚡ %s %s filled", execution.Symbol, execution.Side),
		Color: sideColor(execution.Side),
		Fields: []embedField{
			{Name: "Exec Price", Value: execution.ExecPrice.String(), Inline: true},
			{Name: "Exec Qty", Value: execution.ExecQty.String(), Inline: true},
		},
		Footer: n.footer(),
	})
}

func (n *Notifier) SendOrderCancelled(ctx context.Context, order exchange.OrderUpdate) error {
	if n.webhookURL == "" {
		return nil
	}
	return n.send(ctx, embed{
		Title:       fmt.Sprintf("🗑️ %s %s order cancelled", order.Symbol, order.Side),
		Color:       colorGrey,
		Description: fmt.Sprintf("Original order price: %s", order.Price.String()),
		Footer:      n.footer(),
	})
}

func (n *Notifier) SendPositionUpdate(ctx context.Context, position exchange.PositionUpdate) error {
	if n.webhookURL == "" {
		return nil
	}
	color := colorGreen
	emoji := "🟢"
	if position.UnrealizedPnl.IsNegative() {
		color = colorRed
		emoji = "🔴"
	}
	return n.send(ctx, embed{
		Title: fmt.Sprintf("📊 Position update %s %s", position.Symbol, position.Side),
		Color: color,
		Fields: []embedField{
			{Name: "Size", Value: position.Size.String(), Inline: true},
			{Name: "Entry Price", Value: position.EntryPrice.String(), Inline: true},
			{Name: "Unrealized PnL", Value: fmt.Sprintf("%s %s U", emoji, position.UnrealizedPnl.StringFixed(2))},
		},
		Footer: n.footer(),
	})
}

// SendTest posts a connectivity-check embed.
func (n *Notifier) SendTest(ctx context.Context) error {
	if n.webhookURL == "" {
		return nil
	}
	return n.send(ctx, embed{
		Title:       "🚀 Monitor webhook test",
		Description: "Webhook is configured correctly.",
		Color:       colorBlue,
		Fields: []embedField{
			{Name: "Status", Value: "✅ connected", Inline: true},
			{Name: "Streams", Value: "order / execution / position", Inline: true},
		},
	})
}

// send posts the payload. Success is exactly HTTP 204.
func (n *Notifier) send(ctx context.Context, e embed) error {
	body, err := json.Marshal(webhookPayload{Embeds: []embed{e}})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook delivery failed: %d %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (n *Notifier) footer() *embedFooter {
	return &embedFooter{
		Text: fmt.Sprintf("Trade Monitor • %s", n.now().Format("15:04:05")),
	}
}

func sideColor(side string) int {
	if side == "Buy" {
		return colorGreen
	}
	return colorRed
}

func orNone(v decimal.Decimal) string {
	if v.IsZero() {
		return "none"
	}
	return v.String()
}

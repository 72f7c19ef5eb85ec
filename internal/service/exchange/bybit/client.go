package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultBaseURL = "https://api.bybit.com"
	DefaultWSURL   = "wss://stream.bybit.com/v5/private"

	defaultRecvWindow = 5000
)

// Client v5 REST 客户端，仅覆盖账户流水相关的只读接口
type Client struct {
	baseURL    string
	wsURL      string
	apiKey     string
	apiSecret  string
	recvWindow int
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithWSURL(u string) Option {
	return func(c *Client) {
		c.wsURL = u
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		wsURL:      DefaultWSURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		recvWindow: defaultRecvWindow,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError Bybit 返回的业务错误（retCode != 0）或 HTTP 层错误
type APIError struct {
	StatusCode int
	RetCode    int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit api error %d (http %d): %s", e.RetCode, e.StatusCode, e.Message)
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// sign builds the X-BAPI-SIGN value: HMAC-SHA256 over
// timestamp + apiKey + recvWindow + queryString.
func (c *Client) sign(timestamp int64, query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(c.apiKey))
	mac.Write([]byte(strconv.Itoa(c.recvWindow)))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	encoded := query.Encode()
	fullURL := c.baseURL + path
	if encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	timestamp := time.Now().UnixMilli()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(c.recvWindow))
	req.Header.Set("X-BAPI-SIGN", c.sign(timestamp, encoded))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if env.RetCode != 0 {
		return &APIError{
			StatusCode: resp.StatusCode,
			RetCode:    env.RetCode,
			Message:    env.RetMsg,
		}
	}

	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

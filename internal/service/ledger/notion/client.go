package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kazusato/trade-journal/internal/entity"
	"github.com/kazusato/trade-journal/internal/service/ledger"
)

const (
	DefaultBaseURL = "https://api.notion.com"

	notionVersion = "2022-06-28"
	maxPageSize   = 100

	// Notion allows an average of 3 requests per second.
	defaultRequestDelay     = 400 * time.Millisecond
	defaultRateLimitBackoff = 60 * time.Second
)

var _ ledger.Service = (*Client)(nil)

type Client struct {
	baseURL    string
	token      string
	databaseID string
	httpClient *http.Client
	logger     *slog.Logger

	requestDelay     time.Duration
	rateLimitBackoff time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
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

// WithDelays overrides the inter-request delay and the rate-limit backoff.
func WithDelays(requestDelay, rateLimitBackoff time.Duration) Option {
	return func(c *Client) {
		c.requestDelay = requestDelay
		c.rateLimitBackoff = rateLimitBackoff
	}
}

func NewClient(token, databaseID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		databaseID: databaseID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:           slog.Default(),
		requestDelay:     defaultRequestDelay,
		rateLimitBackoff: defaultRateLimitBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError Notion API 错误，code == "rate_limited" 是唯一特殊处理的分支
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api error %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *APIError) IsRateLimited() bool {
	return e.Code == "rate_limited"
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

type queryRequest struct {
	Sorts       []querySort `json:"sorts,omitempty"`
	PageSize    int         `json:"page_size,omitempty"`
	StartCursor string      `json:"start_cursor,omitempty"`
}

type querySort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type queryResponse struct {
	Results    []pageResult `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type pageResult struct {
	ID         string                     `json:"id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

func (c *Client) queryPath() string {
	return "/v1/databases/" + c.databaseID + "/query"
}

// GetLastSyncTimestamp queries the single most recent entry ordered
// descending on sortProperty and converts its date value to epoch ms.
func (c *Client) GetLastSyncTimestamp(ctx context.Context, sortProperty string) (int64, bool, error) {
	var resp queryResponse
	err := c.post(ctx, c.queryPath(), queryRequest{
		Sorts:    []querySort{{Property: sortProperty, Direction: "descending"}},
		PageSize: 1,
	}, &resp)
	if err != nil {
		return 0, false, fmt.Errorf("query last record: %w", err)
	}
	if len(resp.Results) == 0 {
		return 0, false, nil
	}

	raw, ok := resp.Results[0].Properties[sortProperty]
	if !ok {
		return 0, false, fmt.Errorf("last record has no %q property", sortProperty)
	}
	var prop struct {
		Date struct {
			Start string `json:"start"`
		} `json:"date"`
	}
	if err := json.Unmarshal(raw, &prop); err != nil {
		return 0, false, fmt.Errorf("decode %q property: %w", sortProperty, err)
	}
	t, err := time.Parse(time.RFC3339, prop.Date.Start)
	if err != nil {
		return 0, false, fmt.Errorf("parse %q date: %w", sortProperty, err)
	}
	return t.UnixMilli(), true, nil
}

// QueryAllRecords pages through the full database, one fixed delay between
// requests.
func (c *Client) QueryAllRecords(ctx context.Context) ([]ledger.RawRecord, error) {
	var all []ledger.RawRecord

	cursor := ""
	for {
		var resp queryResponse
		err := c.post(ctx, c.queryPath(), queryRequest{
			PageSize:    maxPageSize,
			StartCursor: cursor,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("query records: %w", err)
		}

		for _, page := range resp.Results {
			props := make(map[string]any, len(page.Properties))
			for name, raw := range page.Properties {
				var v any
				if err := json.Unmarshal(raw, &v); err == nil {
					props[name] = v
				}
			}
			all = append(all, ledger.RawRecord{ID: page.ID, Properties: props})
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor

		if err := c.sleep(ctx, c.requestDelay); err != nil {
			return nil, err
		}
	}

	c.logger.Info("queried ledger records", "count", len(all))
	return all, nil
}

type createPageRequest struct {
	Parent     map[string]string `json:"parent"`
	Properties map[string]any    `json:"properties"`
}

// CreateRecords writes one page per record, a fixed delay apart. A
// rate_limited error backs off once and retries the identical payload;
// a second failure or any other API error aborts the batch.
func (c *Client) CreateRecords(ctx context.Context, records []entity.TradeRecord) error {
	for _, record := range records {
		payload := createPageRequest{
			Parent:     map[string]string{"database_id": c.databaseID},
			Properties: mapProperties(record),
		}

		err := c.post(ctx, "/v1/pages", payload, nil)
		if err != nil {
			var apiErr *APIError
			if !errors.As(err, &apiErr) || !apiErr.IsRateLimited() {
				return fmt.Errorf("create record %s: %w", record.Symbol, err)
			}

			c.logger.Warn("ledger rate limit hit, backing off",
				"backoff", c.rateLimitBackoff,
			)
			if err := c.sleep(ctx, c.rateLimitBackoff); err != nil {
				return err
			}
			if err := c.post(ctx, "/v1/pages", payload, nil); err != nil {
				return fmt.Errorf("create record %s after rate-limit retry: %w", record.Symbol, err)
			}
		}

		c.logger.Info("created ledger record",
			"symbol", record.Symbol,
			"timestamp", record.Timestamp,
		)
		if err := c.sleep(ctx, c.requestDelay); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

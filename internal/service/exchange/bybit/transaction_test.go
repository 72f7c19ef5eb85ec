package bybit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionService_GetTransactionLog_Pagination(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/account/transaction-log", r.URL.Path)

		query := r.URL.Query()
		assert.Equal(t, "UNIFIED", query.Get("accountType"))
		assert.Equal(t, "linear", query.Get("category"))
		assert.Equal(t, "1000", query.Get("startTime"))
		assert.Equal(t, "2000", query.Get("endTime"))

		assert.Equal(t, "test-key", r.Header.Get("X-BAPI-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-TIMESTAMP"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))

		cursors = append(cursors, query.Get("cursor"))
		if query.Get("cursor") == "" {
			io.WriteString(w, `{
				"retCode": 0, "retMsg": "OK",
				"result": {
					"list": [{
						"symbol": "BTCUSDT", "side": "Buy", "type": "TRADE",
						"qty": "0.5", "tradePrice": "50000",
						"change": "12.5", "fee": "-0.275",
						"transactionTime": "1700000000000"
					}],
					"nextPageCursor": "page-2"
				}
			}`)
			return
		}
		io.WriteString(w, `{
			"retCode": 0, "retMsg": "OK",
			"result": {
				"list": [{
					"symbol": "ETHUSDT", "side": "", "type": "SETTLEMENT",
					"qty": "", "tradePrice": "",
					"change": "-0.8", "fee": "0",
					"transactionTime": "1700000100000"
				}],
				"nextPageCursor": ""
			}
		}`)
	}))
	defer server.Close()

	cli := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	svc := NewTransactionService(cli)

	txs, err := svc.GetTransactionLog(context.Background(), exchange.GetTransactionLogReq{
		AccountType: exchange.AccountTypeUnified,
		Category:    exchange.CategoryLinear,
		StartTime:   1000,
		EndTime:     2000,
	})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, []string{"", "page-2"}, cursors)

	assert.Equal(t, exchange.TransactionTypeTrade, txs[0].Type)
	assert.Equal(t, "BTCUSDT", txs[0].Symbol)
	assert.True(t, txs[0].Change.Equal(decimal.NewFromFloat(12.5)))
	assert.True(t, txs[0].Fee.Equal(decimal.NewFromFloat(-0.275)))
	assert.Equal(t, int64(1700000000000), txs[0].TransactionTime)

	// funding settlement: decimals default to zero for empty fields
	assert.Equal(t, exchange.TransactionTypeFunding, txs[1].Type)
	assert.True(t, txs[1].Qty.IsZero())
	assert.True(t, txs[1].TradePrice.IsZero())
}

func TestTransactionService_GetTransactionLog_RetCodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode": 10002, "retMsg": "invalid timestamp", "result": {}}`)
	}))
	defer server.Close()

	cli := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	svc := NewTransactionService(cli)

	_, err := svc.GetTransactionLog(context.Background(), exchange.GetTransactionLogReq{
		AccountType: exchange.AccountTypeUnified,
		Category:    exchange.CategoryLinear,
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10002, apiErr.RetCode)
	assert.Contains(t, apiErr.Message, "invalid timestamp")
}

func TestTransactionService_GetExecutions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/execution/list", r.URL.Path)
		io.WriteString(w, `{
			"retCode": 0, "retMsg": "OK",
			"result": {
				"list": [{
					"symbol": "BTCUSDT", "side": "Sell", "orderType": "Market",
					"execPrice": "50100", "execQty": "0.2", "execFee": "0.11",
					"execTime": "1700000200000"
				}],
				"nextPageCursor": ""
			}
		}`)
	}))
	defer server.Close()

	cli := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	svc := NewTransactionService(cli)

	executions, err := svc.GetExecutions(context.Background(), exchange.GetExecutionsReq{
		Category: exchange.CategoryLinear,
	})
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, "Sell", executions[0].Side)
	assert.True(t, executions[0].ExecPrice.Equal(decimal.NewFromInt(50100)))
	assert.Equal(t, int64(1700000200000), executions[0].ExecTime)
}

func TestClient_Sign_Deterministic(t *testing.T) {
	cli := NewClient("key", "secret")
	a := cli.sign(1700000000000, "category=linear&limit=50")
	b := cli.sign(1700000000000, "category=linear&limit=50")
	c := cli.sign(1700000000001, "category=linear&limit=50")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "hex-encoded sha256")
}

package bybit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/pkg/decimalx"
)

var _ exchange.TransactionService = (*TransactionService)(nil)

type TransactionService struct {
	cli *Client
}

func NewTransactionService(cli *Client) *TransactionService {
	return &TransactionService{cli: cli}
}

type transactionLogItem struct {
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Type            string `json:"type"`
	Qty             string `json:"qty"`
	TradePrice      string `json:"tradePrice"`
	Change          string `json:"change"`
	Fee             string `json:"fee"`
	TransactionTime string `json:"transactionTime"`
}

type transactionLogResult struct {
	List           []transactionLogItem `json:"list"`
	NextPageCursor string               `json:"nextPageCursor"`
}

func fromTransactionType(t string) exchange.TransactionType {
	switch t {
	case "TRADE":
		return exchange.TransactionTypeTrade
	case "SETTLEMENT":
		// 资金费率结算
		return exchange.TransactionTypeFunding
	default:
		return exchange.TransactionTypeOther
	}
}

func (s *TransactionService) convertTransactions(items []transactionLogItem) []exchange.Transaction {
	txs := make([]exchange.Transaction, len(items))
	for i, item := range items {
		ts, err := strconv.ParseInt(item.TransactionTime, 10, 64)
		if err != nil {
			ts = 0
		}
		txs[i] = exchange.Transaction{
			Symbol:          item.Symbol,
			Side:            item.Side,
			Type:            fromTransactionType(item.Type),
			Qty:             decimalx.ParseOrZero(item.Qty),
			TradePrice:      decimalx.ParseOrZero(item.TradePrice),
			Change:          decimalx.ParseOrZero(item.Change),
			Fee:             decimalx.ParseOrZero(item.Fee),
			TransactionTime: ts,
		}
	}
	return txs
}

// GetTransactionLog fetches the account transaction log for one time window.
// Bybit caps the window at 7 days per request; the caller does the chunking.
func (s *TransactionService) GetTransactionLog(ctx context.Context, req exchange.GetTransactionLogReq) ([]exchange.Transaction, error) {
	var all []exchange.Transaction

	cursor := ""
	for {
		query := url.Values{}
		query.Set("accountType", string(req.AccountType))
		query.Set("category", string(req.Category))
		query.Set("startTime", strconv.FormatInt(req.StartTime, 10))
		query.Set("endTime", strconv.FormatInt(req.EndTime, 10))
		query.Set("limit", "50")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var result transactionLogResult
		if err := s.cli.get(ctx, "/v5/account/transaction-log", query, &result); err != nil {
			return nil, fmt.Errorf("get transaction log: %w", err)
		}

		all = append(all, s.convertTransactions(result.List)...)

		if result.NextPageCursor == "" {
			break
		}
		cursor = result.NextPageCursor
	}
	return all, nil
}

type executionItem struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	ExecPrice string `json:"execPrice"`
	ExecQty   string `json:"execQty"`
	ExecFee   string `json:"execFee"`
	ExecTime  string `json:"execTime"`
}

type executionListResult struct {
	List           []executionItem `json:"list"`
	NextPageCursor string          `json:"nextPageCursor"`
}

func convertExecution(item executionItem) exchange.Execution {
	ts, err := strconv.ParseInt(item.ExecTime, 10, 64)
	if err != nil {
		ts = 0
	}
	return exchange.Execution{
		Symbol:    item.Symbol,
		Side:      item.Side,
		OrderType: item.OrderType,
		ExecPrice: decimalx.ParseOrZero(item.ExecPrice),
		ExecQty:   decimalx.ParseOrZero(item.ExecQty),
		ExecFee:   decimalx.ParseOrZero(item.ExecFee),
		ExecTime:  ts,
	}
}

func (s *TransactionService) GetExecutions(ctx context.Context, req exchange.GetExecutionsReq) ([]exchange.Execution, error) {
	var all []exchange.Execution

	cursor := ""
	for {
		query := url.Values{}
		query.Set("category", string(req.Category))
		query.Set("startTime", strconv.FormatInt(req.StartTime, 10))
		query.Set("endTime", strconv.FormatInt(req.EndTime, 10))
		query.Set("limit", "100")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var result executionListResult
		if err := s.cli.get(ctx, "/v5/execution/list", query, &result); err != nil {
			return nil, fmt.Errorf("get executions: %w", err)
		}

		for _, item := range result.List {
			all = append(all, convertExecution(item))
		}

		if result.NextPageCursor == "" {
			break
		}
		cursor = result.NextPageCursor
	}
	return all, nil
}

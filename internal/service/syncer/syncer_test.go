package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kazusato/trade-journal/internal/entity"
	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/internal/service/ledger"
	"github.com/kazusato/trade-journal/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ============ Mock 定义 ============

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) GetTransactionLog(ctx context.Context, req exchange.GetTransactionLogReq) ([]exchange.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Transaction), args.Error(1)
}

func (m *MockTransactionService) GetExecutions(ctx context.Context, req exchange.GetExecutionsReq) ([]exchange.Execution, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Execution), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetLastSyncTimestamp(ctx context.Context, sortProperty string) (int64, bool, error) {
	args := m.Called(ctx, sortProperty)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockLedger) QueryAllRecords(ctx context.Context) ([]ledger.RawRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RawRecord), args.Error(1)
}

func (m *MockLedger) CreateRecords(ctx context.Context, records []entity.TradeRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

// ============ helpers ============

var testNow = time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

func fixedClock() Option {
	return WithClock(func() time.Time { return testNow })
}

func trade(symbol, side string, change, fee float64, ts int64) exchange.Transaction {
	return exchange.Transaction{
		Symbol:          symbol,
		Side:            side,
		Type:            exchange.TransactionTypeTrade,
		Qty:             decimal.NewFromFloat(1),
		TradePrice:      decimal.NewFromFloat(100),
		Change:          decimal.NewFromFloat(change),
		Fee:             decimal.NewFromFloat(fee),
		TransactionTime: ts,
	}
}

func TestService_RunSync_WindowPrecedence_Backfill(t *testing.T) {
	txSvc := new(MockTransactionService)
	ledgerSvc := new(MockLedger)

	backfill := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(txSvc, ledgerSvc, Config{BackfillFrom: backfill}, fixedClock())

	// 19-day window, 7-day chunks: three fetches, the watermark is never read
	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return([]exchange.Transaction{}, nil).Times(3)

	result, err := svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.RecordsWritten)

	txSvc.AssertExpectations(t)
	ledgerSvc.AssertNotCalled(t, "GetLastSyncTimestamp", mock.Anything, mock.Anything)

	first := txSvc.Calls[0].Arguments.Get(1).(exchange.GetTransactionLogReq)
	assert.Equal(t, backfill.UnixMilli(), first.StartTime)
}

func TestService_RunSync_WindowPrecedence_HighWatermark(t *testing.T) {
	txSvc := new(MockTransactionService)
	ledgerSvc := new(MockLedger)
	svc := NewService(txSvc, ledgerSvc, Config{}, fixedClock())

	watermark := testNow.Add(-48 * time.Hour).UnixMilli()
	ledgerSvc.On("GetLastSyncTimestamp", mock.Anything, "Timestamp").Return(watermark, true, nil)
	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return([]exchange.Transaction{}, nil).Once()

	_, err := svc.RunSync(context.Background())
	require.NoError(t, err)

	req := txSvc.Calls[0].Arguments.Get(1).(exchange.GetTransactionLogReq)
	assert.Equal(t, watermark+1, req.StartTime, "window starts 1ms past the high-watermark")
	assert.Equal(t, testNow.UnixMilli(), req.EndTime)
}

func TestService_RunSync_WindowPrecedence_LookbackFallback(t *testing.T) {
	txSvc := new(MockTransactionService)
	ledgerSvc := new(MockLedger)
	svc := NewService(txSvc, ledgerSvc, Config{Lookback: 3 * 24 * time.Hour}, fixedClock())

	ledgerSvc.On("GetLastSyncTimestamp", mock.Anything, "Timestamp").Return(int64(0), false, nil)
	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return([]exchange.Transaction{}, nil).Once()

	_, err := svc.RunSync(context.Background())
	require.NoError(t, err)

	req := txSvc.Calls[0].Arguments.Get(1).(exchange.GetTransactionLogReq)
	assert.Equal(t, testNow.Add(-3*24*time.Hour).UnixMilli(), req.StartTime)
}

func TestService_RunSync_EmptyResultSkipsLedger(t *testing.T) {
	txSvc := new(MockTransactionService)
	ledgerSvc := new(MockLedger)
	svc := NewService(txSvc, ledgerSvc, Config{Lookback: 24 * time.Hour}, fixedClock())

	ledgerSvc.On("GetLastSyncTimestamp", mock.Anything, "Timestamp").Return(int64(0), false, nil)
	// dust only: everything is filtered out
	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return([]exchange.Transaction{
		trade("BTCUSDT", "Buy", 0.3, -0.05, testNow.UnixMilli()-1000),
	}, nil).Once()

	result, err := svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.RecordsWritten)
	ledgerSvc.AssertNotCalled(t, "CreateRecords", mock.Anything, mock.Anything)
}

func TestService_RunSync_ChunkFetchErrorAbortsWithoutWrite(t *testing.T) {
	txSvc := new(MockTransactionService)
	ledgerSvc := new(MockLedger)

	backfill := testNow.Add(-10 * 24 * time.Hour)
	svc := NewService(txSvc, ledgerSvc, Config{BackfillFrom: backfill}, fixedClock())

	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return([]exchange.Transaction{
		trade("BTCUSDT", "Buy", 10, -0.5, backfill.UnixMilli()+1),
	}, nil).Once()
	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return(nil, errors.New("upstream timeout")).Once()

	_, err := svc.RunSync(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "upstream timeout")
	ledgerSvc.AssertNotCalled(t, "CreateRecords", mock.Anything, mock.Anything)
}

func TestService_Transform_DustThresholdBoundary(t *testing.T) {
	svc := NewService(nil, nil, Config{DustThreshold: decimalx.MustFromString("0.5")})

	ts := testNow.UnixMilli()
	records := svc.transform([]exchange.Transaction{
		trade("A", "Buy", 0.4, 0.1, ts),    // pnl 0.5, boundary inclusive: kept
		trade("B", "Buy", 0.39, 0.1, ts),   // pnl 0.49: dropped
		trade("C", "Sell", -0.4, -0.1, ts), // pnl -0.5: kept
		trade("D", "Sell", -0.2, 0.1, ts),  // pnl -0.1: dropped
	})

	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Symbol)
	assert.Equal(t, "C", records[1].Symbol)
}

func TestService_Transform_NonTradeTypesFiltered(t *testing.T) {
	svc := NewService(nil, nil, Config{})

	ts := testNow.UnixMilli()
	funding := exchange.Transaction{
		Symbol:          "BTCUSDT",
		Type:            exchange.TransactionTypeFunding,
		Change:          decimal.NewFromFloat(-2),
		TransactionTime: ts,
	}
	other := exchange.Transaction{
		Symbol:          "BTCUSDT",
		Type:            exchange.TransactionTypeOther,
		Change:          decimal.NewFromFloat(100),
		TransactionTime: ts,
	}

	assert.Empty(t, svc.transform([]exchange.Transaction{funding, other}))

	withFunding := NewService(nil, nil, Config{IncludeFunding: true})
	records := withFunding.transform([]exchange.Transaction{funding, other})
	require.Len(t, records, 1)
	assert.Equal(t, entity.SideFunding, records[0].Side)
	assert.Nil(t, records[0].Size)
	assert.Nil(t, records[0].Price)
}

func TestService_Transform_StableSortByTimestamp(t *testing.T) {
	svc := NewService(nil, nil, Config{})

	ts := testNow.UnixMilli()
	records := svc.transform([]exchange.Transaction{
		trade("LATE", "Buy", 5, 0, ts+100),
		trade("TIE-1", "Buy", 5, 0, ts),
		trade("TIE-2", "Sell", 5, 0, ts),
		trade("EARLY", "Buy", 5, 0, ts-100),
		trade("TIE-3", "Buy", 5, 0, ts),
	})

	require.Len(t, records, 5)
	symbols := make([]string, len(records))
	for i, r := range records {
		symbols[i] = r.Symbol
	}
	assert.Equal(t, []string{"EARLY", "TIE-1", "TIE-2", "TIE-3", "LATE"}, symbols)
}

func TestService_RunSync_ExampleScenario(t *testing.T) {
	txSvc := new(MockTransactionService)
	ledgerSvc := new(MockLedger)

	backfill := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(txSvc, ledgerSvc, Config{BackfillFrom: backfill}, fixedClock())

	// 50 TRADE records spread over the window, 12 below the dust threshold
	var all []exchange.Transaction
	for i := 0; i < 50; i++ {
		pnl := 2.0
		if i < 12 {
			pnl = 0.2
		}
		ts := backfill.UnixMilli() + int64(50-i)*time.Hour.Milliseconds()
		all = append(all, trade(fmt.Sprintf("SYM%02d", i), "Buy", pnl, 0, ts))
	}
	// three chunks for [01-01, 01-20]; all data arrives in the first
	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return(all, nil).Once()
	txSvc.On("GetTransactionLog", mock.Anything, mock.Anything).Return([]exchange.Transaction{}, nil).Twice()

	var written []entity.TradeRecord
	ledgerSvc.On("CreateRecords", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).([]entity.TradeRecord)
	}).Return(nil).Once()

	result, err := svc.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 38, result.RecordsWritten)

	require.Len(t, written, 38)
	for i := 1; i < len(written); i++ {
		assert.LessOrEqual(t, written[i-1].Timestamp, written[i].Timestamp)
	}
	ledgerSvc.AssertExpectations(t)
	txSvc.AssertExpectations(t)
}

func TestService_RunSync_WatermarkErrorIsFatal(t *testing.T) {
	txSvc := new(MockTransactionService)
	ledgerSvc := new(MockLedger)
	svc := NewService(txSvc, ledgerSvc, Config{}, fixedClock())

	ledgerSvc.On("GetLastSyncTimestamp", mock.Anything, "Timestamp").
		Return(int64(0), false, errors.New("ledger unreachable"))

	_, err := svc.RunSync(context.Background())
	require.Error(t, err)
	txSvc.AssertNotCalled(t, "GetTransactionLog", mock.Anything, mock.Anything)
}

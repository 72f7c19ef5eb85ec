package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kazusato/trade-journal/internal/entity"
	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/internal/service/ledger"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	// Exchange per-query window limit.
	DefaultMaxChunkSpan = 7 * 24 * time.Hour

	DefaultLookback          = 30 * 24 * time.Hour
	DefaultTimestampProperty = "Timestamp"
)

// DefaultDustThreshold suppresses residual/rounding noise, not real trades.
var DefaultDustThreshold = decimal.NewFromFloat(0.5)

type Config struct {
	AccountType exchange.AccountType
	Category    exchange.Category

	// BackfillFrom, when set, overrides the ledger high-watermark as the
	// window start.
	BackfillFrom time.Time
	// Lookback bounds the window when the ledger is empty.
	Lookback time.Duration

	MaxChunkSpan      time.Duration
	DustThreshold     decimal.Decimal
	IncludeFunding    bool
	Subaccount        string
	TimestampProperty string
}

func (c Config) withDefaults() Config {
	if c.AccountType == "" {
		c.AccountType = exchange.AccountTypeUnified
	}
	if c.Category == "" {
		c.Category = exchange.CategoryLinear
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.MaxChunkSpan <= 0 {
		c.MaxChunkSpan = DefaultMaxChunkSpan
	}
	if c.DustThreshold.IsZero() {
		c.DustThreshold = DefaultDustThreshold
	}
	if c.Subaccount == "" {
		c.Subaccount = entity.DefaultSubaccount
	}
	if c.TimestampProperty == "" {
		c.TimestampProperty = DefaultTimestampProperty
	}
	return c
}

type Result struct {
	RecordsWritten int
}

// Service 增量同步引擎：一次调用 = 一轮对账
type Service struct {
	exchange exchange.TransactionService
	ledger   ledger.Service
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(txSvc exchange.TransactionService, ledgerSvc ledger.Service, cfg Config, opts ...Option) *Service {
	s := &Service{
		exchange: txSvc,
		ledger:   ledgerSvc,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunSync executes one reconciliation pass. A chunk fetch failure aborts
// the whole run without writing anything; partial results are never
// persisted.
func (s *Service) RunSync(ctx context.Context) (Result, error) {
	s.logger.Info("starting synchronization")

	window, err := s.resolveWindow(ctx)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("resolved sync window", "window", window.String())

	var transactions []exchange.Transaction
	for _, chunk := range window.Chunks(s.cfg.MaxChunkSpan) {
		s.logger.Info("fetching chunk",
			"from", time.UnixMilli(chunk.Start).UTC().Format(time.RFC3339),
			"to", time.UnixMilli(chunk.End).UTC().Format(time.RFC3339),
		)
		chunkTxs, err := s.exchange.GetTransactionLog(ctx, exchange.GetTransactionLogReq{
			AccountType: s.cfg.AccountType,
			Category:    s.cfg.Category,
			StartTime:   chunk.Start,
			EndTime:     chunk.End,
		})
		if err != nil {
			return Result{}, fmt.Errorf("fetch chunk %d-%d: %w", chunk.Start, chunk.End, err)
		}
		transactions = append(transactions, chunkTxs...)
	}
	s.logger.Info("retrieved transactions", "count", len(transactions))

	records := s.transform(transactions)
	if len(records) == 0 {
		s.logger.Info("no records matching the filter were found")
		return Result{}, nil
	}

	s.logger.Info("writing records to ledger",
		"count", len(records),
		"dust_threshold", s.cfg.DustThreshold,
	)
	if err := s.ledger.CreateRecords(ctx, records); err != nil {
		return Result{}, fmt.Errorf("write records: %w", err)
	}

	s.logger.Info("synchronization completed", "records_written", len(records))
	return Result{RecordsWritten: len(records)}, nil
}

// resolveWindow picks the window start with explicit precedence:
// configured backfill origin > ledger high-watermark + 1ms > lookback.
func (s *Service) resolveWindow(ctx context.Context) (Window, error) {
	end := s.now().UnixMilli()

	if !s.cfg.BackfillFrom.IsZero() {
		start := s.cfg.BackfillFrom.UnixMilli()
		if start > end {
			start = end
		}
		s.logger.Info("using configured backfill origin",
			"start", s.cfg.BackfillFrom.UTC().Format(time.RFC3339),
		)
		return Window{Start: start, End: end}, nil
	}

	ts, ok, err := s.ledger.GetLastSyncTimestamp(ctx, s.cfg.TimestampProperty)
	if err != nil {
		return Window{}, fmt.Errorf("resolve high-watermark: %w", err)
	}
	if ok {
		return Window{Start: ts + 1, End: end}, nil
	}

	s.logger.Info("ledger is empty, falling back to lookback", "lookback", s.cfg.Lookback)
	return Window{Start: end - s.cfg.Lookback.Milliseconds(), End: end}, nil
}

// transform filters the raw log down to persistable records and sorts them
// chronologically. Ties keep their fetch order; chunked fetches interleave
// across symbols and the ledger expects chronological presentation.
func (s *Service) transform(transactions []exchange.Transaction) []entity.TradeRecord {
	kept := lo.Filter(transactions, func(tx exchange.Transaction, _ int) bool {
		switch tx.Type {
		case exchange.TransactionTypeTrade:
		case exchange.TransactionTypeFunding:
			if !s.cfg.IncludeFunding {
				return false
			}
		default:
			return false
		}
		// 阈值为包含边界：|pnl| == threshold 保留
		return pnl(tx).Abs().GreaterThanOrEqual(s.cfg.DustThreshold)
	})

	records := lo.Map(kept, func(tx exchange.Transaction, _ int) entity.TradeRecord {
		record := entity.TradeRecord{
			Symbol:     tx.Symbol,
			Side:       entity.Side(tx.Side),
			Fee:        tx.Fee,
			Pnl:        pnl(tx),
			Timestamp:  tx.TransactionTime,
			Subaccount: s.cfg.Subaccount,
		}
		if tx.Type == exchange.TransactionTypeFunding {
			// funding entries have no trade size or price
			record.Side = entity.SideFunding
			return record
		}
		size := tx.Qty
		price := tx.TradePrice
		record.Size = &size
		record.Price = &price
		return record
	})

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return records
}

func pnl(tx exchange.Transaction) decimal.Decimal {
	return tx.Change.Add(tx.Fee)
}

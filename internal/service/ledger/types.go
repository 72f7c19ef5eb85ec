package ledger

import (
	"context"

	"github.com/kazusato/trade-journal/internal/entity"
)

// RawRecord 账本中一条已存在的记录（分页查询的结果页）
type RawRecord struct {
	ID         string
	Properties map[string]any
}

// Service 远端账本。记录只写一次，没有更新路径；
// 去重完全依赖调用方用高水位推进时间窗口。
type Service interface {
	// GetLastSyncTimestamp returns the timestamp (ms) of the most recent
	// record ordered descending on sortProperty. ok is false when the
	// store is empty.
	GetLastSyncTimestamp(ctx context.Context, sortProperty string) (ts int64, ok bool, err error)

	QueryAllRecords(ctx context.Context) ([]RawRecord, error)

	// CreateRecords writes each record with per-item rate limiting.
	CreateRecords(ctx context.Context, records []entity.TradeRecord) error
}

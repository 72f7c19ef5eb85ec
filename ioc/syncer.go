package ioc

import (
	"fmt"
	"time"

	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/internal/service/syncer"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func InitSyncConfig() syncer.Config {
	type Config struct {
		AccountType       string  `mapstructure:"account_type"`
		Category          string  `mapstructure:"category"`
		BackfillFrom      string  `mapstructure:"backfill_from"`
		LookbackDays      int     `mapstructure:"lookback_days"`
		ChunkSpanDays     int     `mapstructure:"chunk_span_days"`
		DustThreshold     float64 `mapstructure:"dust_threshold"`
		IncludeFunding    bool    `mapstructure:"include_funding"`
		Subaccount        string  `mapstructure:"subaccount"`
		TimestampProperty string  `mapstructure:"timestamp_property"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("sync", &cfg); err != nil {
		panic(err)
	}

	out := syncer.Config{
		AccountType:       exchange.AccountType(cfg.AccountType),
		Category:          exchange.Category(cfg.Category),
		IncludeFunding:    cfg.IncludeFunding,
		Subaccount:        cfg.Subaccount,
		TimestampProperty: cfg.TimestampProperty,
	}
	if cfg.BackfillFrom != "" {
		t, err := time.Parse(time.RFC3339, cfg.BackfillFrom)
		if err != nil {
			panic(fmt.Errorf("invalid sync.backfill_from: %w", err))
		}
		out.BackfillFrom = t
	}
	if cfg.LookbackDays > 0 {
		out.Lookback = time.Duration(cfg.LookbackDays) * 24 * time.Hour
	}
	if cfg.ChunkSpanDays > 0 {
		out.MaxChunkSpan = time.Duration(cfg.ChunkSpanDays) * 24 * time.Hour
	}
	if cfg.DustThreshold > 0 {
		out.DustThreshold = decimal.NewFromFloat(cfg.DustThreshold)
	}
	return out
}

package ioc

import (
	"github.com/kazusato/trade-journal/internal/service/ledger/notion"
	"github.com/spf13/viper"
)

func InitNotionCli() *notion.Client {
	type Config struct {
		Token      string `mapstructure:"token"`
		DatabaseId string `mapstructure:"database_id"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("notion", &cfg); err != nil {
		panic(err)
	}
	if cfg.Token == "" || cfg.DatabaseId == "" {
		panic("notion token and database_id are required")
	}

	return notion.NewClient(cfg.Token, cfg.DatabaseId)
}

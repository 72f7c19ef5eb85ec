package ioc

import (
	"github.com/kazusato/trade-journal/internal/service/exchange/bybit"
	"github.com/spf13/viper"
)

func InitBybitCli() *bybit.Client {
	type Config struct {
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
		BaseUrl   string `mapstructure:"base_url"`
		WsUrl     string `mapstructure:"ws_url"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("exchange.bybit", &cfg); err != nil {
		panic(err)
	}

	var opts []bybit.Option
	if cfg.BaseUrl != "" {
		opts = append(opts, bybit.WithBaseURL(cfg.BaseUrl))
	}
	if cfg.WsUrl != "" {
		opts = append(opts, bybit.WithWSURL(cfg.WsUrl))
	}
	return bybit.NewClient(cfg.ApiKey, cfg.ApiSecret, opts...)
}

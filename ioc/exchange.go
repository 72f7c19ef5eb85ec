package ioc

import (
	"fmt"

	"github.com/kazusato/trade-journal/internal/service/exchange"
	"github.com/kazusato/trade-journal/internal/service/exchange/binance"
	"github.com/kazusato/trade-journal/internal/service/exchange/bybit"
	"github.com/spf13/viper"
)

func exchangeName() string {
	name := viper.GetString("exchange.name")
	if name == "" {
		name = "bybit"
	}
	return name
}

// InitStream picks the private push stream by exchange.name.
func InitStream() (exchange.StreamService, error) {
	switch name := exchangeName(); name {
	case "bybit":
		return bybit.NewStream(InitBybitCli()), nil
	case "binance":
		return binance.NewStream(InitBinanceCli()), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", name)
	}
}

// InitTransactionService returns the transaction-log source for the sync
// engine. Only Bybit exposes an account-wide transaction log with
// per-trade side/qty/price, so binance is rejected here.
func InitTransactionService() (exchange.TransactionService, error) {
	switch name := exchangeName(); name {
	case "bybit":
		return bybit.NewTransactionService(InitBybitCli()), nil
	default:
		return nil, fmt.Errorf("exchange %q has no transaction-log source", name)
	}
}

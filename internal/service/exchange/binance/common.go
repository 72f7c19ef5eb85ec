package binance

import (
	"github.com/adshao/go-binance/v2/futures"
	"github.com/kazusato/trade-journal/internal/service/exchange"
)

func fromBinanceSide(side futures.SideType) string {
	switch side {
	case futures.SideTypeBuy:
		return "Buy"
	case futures.SideTypeSell:
		return "Sell"
	default:
		return string(side)
	}
}

func fromBinancePositionSide(side futures.PositionSideType) string {
	switch side {
	case futures.PositionSideTypeLong:
		return "Buy"
	case futures.PositionSideTypeShort:
		return "Sell"
	default:
		return string(side)
	}
}

func fromBinanceStatus(status futures.OrderStatusType) exchange.OrderStatus {
	switch status {
	case futures.OrderStatusTypeNew:
		return exchange.OrderStatusNew
	case futures.OrderStatusTypePartiallyFilled:
		return exchange.OrderStatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return exchange.OrderStatusFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return exchange.OrderStatusCancelled
	default:
		return exchange.OrderStatus(status)
	}
}

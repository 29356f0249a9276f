package gateway

import (
	"context"
	"errors"

	"pure-market-maker/inventory"
	"pure-market-maker/market"
	"pure-market-maker/order"
)

var (
	// ErrFatal 系统性网关故障（如鉴权失效、账户冻结）；引擎收到后立即停止策略。
	ErrFatal = errors.New("fatal gateway error")
	// ErrTimeout 网关调用超时，视为一次失败调用。
	ErrTimeout = errors.New("gateway call timed out")
)

// MarketData 行情来源。
// 无数据返回 market.ErrNoData，过期返回 market.ErrStaleData。
type MarketData interface {
	MarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error)
}

// Account 账户余额查询。
type Account interface {
	Balances(ctx context.Context) (inventory.Balances, error)
}

// Gateway 引擎依赖的完整交易所接口。
type Gateway interface {
	MarketData
	Account
	order.Gateway
}

// FillSource 异步成交回报。
type FillSource interface {
	Fills() <-chan order.Fill
}

// IsFatal 判断错误是否为系统性故障。
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

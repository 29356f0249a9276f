package market

import (
	"errors"
	"fmt"
)

var (
	ErrNoData      = errors.New("no market data")
	ErrStaleData   = errors.New("stale market data")
	ErrCrossedBook = errors.New("crossed book")
)

// MarketDataError 行情缺失/过期/交叉；当前周期跳过，策略保持运行。
type MarketDataError struct {
	Symbol string
	Err    error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data %s: %v", e.Symbol, e.Err)
}

func (e *MarketDataError) Unwrap() error { return e.Err }

// IsMarketDataError 判断 err 链中是否存在 MarketDataError。
func IsMarketDataError(err error) bool {
	var me *MarketDataError
	return errors.As(err, &me)
}

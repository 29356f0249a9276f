package order

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound 网关不认识该订单（已成交或已撤销）。
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientBalance 可用余额不足以满足 minOrderSize。
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownOrder        = errors.New("unknown order")
)

// OrderError 单个订单的下单/撤单失败；只影响该方向本周期的报价。
type OrderError struct {
	Op      string // place / cancel / size
	Side    Side
	OrderID string
	Err     error
}

func (e *OrderError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s %s order %s: %v", e.Op, e.Side, e.OrderID, e.Err)
	}
	return fmt.Sprintf("%s %s order: %v", e.Op, e.Side, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

// IsOrderError 判断 err 链中是否存在 OrderError。
func IsOrderError(err error) bool {
	var oe *OrderError
	return errors.As(err, &oe)
}

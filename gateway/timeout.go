package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pure-market-maker/inventory"
	"pure-market-maker/market"
	"pure-market-maker/order"
)

// DefaultTimeout 单次网关调用的默认超时。
const DefaultTimeout = 5 * time.Second

type timeoutGateway struct {
	next Gateway
	d    time.Duration
}

// WithTimeout 为每次网关调用加上超时。
// 即使底层实现不响应 ctx，调用方也会在超时后拿到 ErrTimeout。
func WithTimeout(next Gateway, d time.Duration) Gateway {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutGateway{next: next, d: d}
}

type result[T any] struct {
	v   T
	err error
}

func bounded[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(cctx)
		ch <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return r.v, fmt.Errorf("%s: %w after %v", op, ErrTimeout, d)
		}
		return r.v, r.err
	case <-cctx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w after %v", op, ErrTimeout, d)
	}
}

func (g *timeoutGateway) MarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	return bounded(ctx, g.d, "market snapshot", func(ctx context.Context) (market.Snapshot, error) {
		return g.next.MarketSnapshot(ctx, symbol)
	})
}

func (g *timeoutGateway) Balances(ctx context.Context) (inventory.Balances, error) {
	return bounded(ctx, g.d, "balances", g.next.Balances)
}

func (g *timeoutGateway) PlaceOrder(ctx context.Context, symbol string, side order.Side, size, price float64) (string, error) {
	return bounded(ctx, g.d, "place order", func(ctx context.Context) (string, error) {
		return g.next.PlaceOrder(ctx, symbol, side, size, price)
	})
}

func (g *timeoutGateway) CancelOrder(ctx context.Context, orderID string) error {
	_, err := bounded(ctx, g.d, "cancel order", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.CancelOrder(ctx, orderID)
	})
	return err
}

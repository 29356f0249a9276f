package gateway

import (
	"context"
	"time"

	"pure-market-maker/inventory"
	"pure-market-maker/market"
	"pure-market-maker/order"
)

// Observer 接收每次网关调用的耗时与结果（由 monitor 实现）。
type Observer interface {
	ObserveGatewayCall(op string, latency time.Duration, err error)
}

type instrumentedGateway struct {
	next Gateway
	obs  Observer
}

// Instrumented 记录每次调用的延迟与错误。
func Instrumented(next Gateway, obs Observer) Gateway {
	if obs == nil {
		return next
	}
	return &instrumentedGateway{next: next, obs: obs}
}

func (g *instrumentedGateway) MarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	start := time.Now()
	snap, err := g.next.MarketSnapshot(ctx, symbol)
	g.obs.ObserveGatewayCall("market_snapshot", time.Since(start), err)
	return snap, err
}

func (g *instrumentedGateway) Balances(ctx context.Context) (inventory.Balances, error) {
	start := time.Now()
	bal, err := g.next.Balances(ctx)
	g.obs.ObserveGatewayCall("balances", time.Since(start), err)
	return bal, err
}

func (g *instrumentedGateway) PlaceOrder(ctx context.Context, symbol string, side order.Side, size, price float64) (string, error) {
	start := time.Now()
	id, err := g.next.PlaceOrder(ctx, symbol, side, size, price)
	g.obs.ObserveGatewayCall("place_order", time.Since(start), err)
	return id, err
}

func (g *instrumentedGateway) CancelOrder(ctx context.Context, orderID string) error {
	start := time.Now()
	err := g.next.CancelOrder(ctx, orderID)
	g.obs.ObserveGatewayCall("cancel_order", time.Since(start), err)
	return err
}

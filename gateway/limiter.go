package gateway

import (
	"context"

	"golang.org/x/time/rate"

	"pure-market-maker/inventory"
	"pure-market-maker/market"
	"pure-market-maker/order"
)

// NewLimiter 创建令牌桶限流器，避免触发交易所限流。
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type limitedGateway struct {
	next    Gateway
	limiter *rate.Limiter
}

// Limited 所有网关调用在发出前先获取令牌；等待受 ctx 约束。
func Limited(next Gateway, limiter *rate.Limiter) Gateway {
	return &limitedGateway{next: next, limiter: limiter}
}

func (g *limitedGateway) MarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return market.Snapshot{}, err
	}
	return g.next.MarketSnapshot(ctx, symbol)
}

func (g *limitedGateway) Balances(ctx context.Context) (inventory.Balances, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.next.Balances(ctx)
}

func (g *limitedGateway) PlaceOrder(ctx context.Context, symbol string, side order.Side, size, price float64) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.next.PlaceOrder(ctx, symbol, side, size, price)
}

func (g *limitedGateway) CancelOrder(ctx context.Context, orderID string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return g.next.CancelOrder(ctx, orderID)
}

package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"pure-market-maker/market"
)

// ErrInvalidQuote 计算出的报价不可用（例如钳制后价格非正）。
var ErrInvalidQuote = errors.New("invalid quote")

// Quotes 一个刷新周期的买/卖报价。
type Quotes struct {
	BuyPrice   float64 `json:"buy_price"`
	SellPrice  float64 `json:"sell_price"`
	BuyOffset  float64 `json:"buy_offset"`
	SellOffset float64 `json:"sell_offset"`
	// 展示用：买价距 bestBid、卖价距 bestAsk 的距离
	BuyToBid  float64 `json:"buy_to_bid"`
	SellToAsk float64 `json:"sell_to_ask"`
}

// ComputeQuotes 以对手方最优价为基准计算报价：
//
//	buy  = round(bestAsk * (1 - buyOffset), tickSize)
//	sell = round(bestBid * (1 + sellOffset), tickSize)
//
// 若取整后 buy >= bestAsk 或 sell <= bestBid，则向内钳制一个 tick，保证不自成交。
// 纯函数，相同输入得到相同输出。
func ComputeQuotes(snap market.Snapshot, p Parameters, off Offsets) (Quotes, error) {
	if err := snap.Validate(); err != nil {
		return Quotes{}, err
	}
	if p.TickSize <= 0 {
		return Quotes{}, invalid("tickSize", "must be > 0, got %v", p.TickSize)
	}
	one := decimal.NewFromInt(1)
	tick := decimal.NewFromFloat(p.TickSize)
	bid := decimal.NewFromFloat(snap.BestBid)
	ask := decimal.NewFromFloat(snap.BestAsk)

	buy := roundToTick(ask.Mul(one.Sub(decimal.NewFromFloat(off.Buy))), tick)
	sell := roundToTick(bid.Mul(one.Add(decimal.NewFromFloat(off.Sell))), tick)

	if buy.GreaterThanOrEqual(ask) {
		buy = ask.Sub(tick)
	}
	if sell.LessThanOrEqual(bid) {
		sell = bid.Add(tick)
	}
	if !buy.IsPositive() {
		return Quotes{}, fmt.Errorf("%w: buy price %s for ask %s", ErrInvalidQuote, buy, ask)
	}

	return Quotes{
		BuyPrice:   buy.InexactFloat64(),
		SellPrice:  sell.InexactFloat64(),
		BuyOffset:  off.Buy,
		SellOffset: off.Sell,
		BuyToBid:   buy.Sub(bid).InexactFloat64(),
		SellToAsk:  ask.Sub(sell).InexactFloat64(),
	}, nil
}

// roundToTick 四舍五入（远离零）到 tick 的整数倍。
func roundToTick(price, tick decimal.Decimal) decimal.Decimal {
	return price.DivRound(tick, 16).Round(0).Mul(tick)
}

// RoundToTick 供其他模块对齐价格使用。
func RoundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return roundToTick(decimal.NewFromFloat(price), decimal.NewFromFloat(tickSize)).InexactFloat64()
}

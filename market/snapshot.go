package market

import (
	"fmt"
	"time"
)

// Snapshot 单个交易对的盘口快照（最优买/卖价）。
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	BestBid   float64   `json:"best_bid"`
	BestAsk   float64   `json:"best_ask"`
	Timestamp time.Time `json:"timestamp"`
}

// Spread 返回 bestAsk - bestBid。
func (s Snapshot) Spread() float64 {
	return s.BestAsk - s.BestBid
}

// SpreadPct 返回相对 bestBid 的价差比例；bestBid 非正时为 0。
func (s Snapshot) SpreadPct() float64 {
	if s.BestBid <= 0 {
		return 0
	}
	return s.Spread() / s.BestBid
}

// Mid 返回中间价。
func (s Snapshot) Mid() float64 {
	return (s.BestBid + s.BestAsk) / 2
}

// Validate 拒绝缺失价格与交叉盘口。
func (s Snapshot) Validate() error {
	if s.BestBid <= 0 || s.BestAsk <= 0 {
		return &MarketDataError{
			Symbol: s.Symbol,
			Err:    fmt.Errorf("%w: bid=%v ask=%v", ErrNoData, s.BestBid, s.BestAsk),
		}
	}
	if s.BestAsk < s.BestBid {
		return &MarketDataError{
			Symbol: s.Symbol,
			Err:    fmt.Errorf("%w: bid=%v > ask=%v", ErrCrossedBook, s.BestBid, s.BestAsk),
		}
	}
	return nil
}

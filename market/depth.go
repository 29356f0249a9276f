package market

import "time"

// Depth 最优买卖价及其更新时间。
type Depth struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Update 增量更新：非正价格保留原值，时间总是前移。
func (d *Depth) Update(bid, ask float64, ts time.Time) {
	if bid > 0 {
		d.Bid = bid
	}
	if ask > 0 {
		d.Ask = ask
	}
	if ts.After(d.Time) {
		d.Time = ts
	}
}

// Ready 两侧价格都已就绪
func (d Depth) Ready() bool {
	return d.Bid > 0 && d.Ask > 0
}

// Snapshot 转为快照，不做校验
func (d Depth) Snapshot() Snapshot {
	return Snapshot{Symbol: d.Symbol, BestBid: d.Bid, BestAsk: d.Ask, Timestamp: d.Time}
}

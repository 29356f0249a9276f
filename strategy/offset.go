package strategy

import "github.com/shopspring/decimal"

// Offsets 买卖两侧当前的价格偏移（比例）。
type Offsets struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// InitialOffsets 返回启动时的偏移；仅在 Stopped -> Running 时调用。
func InitialOffsets(p Parameters) Offsets {
	return Offsets{Buy: p.InitialOffset, Sell: p.InitialOffset}
}

// Advance 每个刷新周期衰减一次：new = max(minOffset, cur - offsetReduction)。
// 两侧独立计算；使用十进制运算，确保能精确落在下限上。
func Advance(off Offsets, p Parameters) Offsets {
	return Offsets{
		Buy:  decay(off.Buy, p),
		Sell: decay(off.Sell, p),
	}
}

func decay(cur float64, p Parameters) float64 {
	floor := decimal.NewFromFloat(p.MinOffset)
	next := decimal.NewFromFloat(cur).Sub(decimal.NewFromFloat(p.OffsetReduction))
	if next.LessThan(floor) {
		next = floor
	}
	// 不高于当前值
	if c := decimal.NewFromFloat(cur); next.GreaterThan(c) {
		next = c
	}
	return next.InexactFloat64()
}

// Pinned 偏移是否都已到达下限。
func (o Offsets) Pinned(p Parameters) bool {
	return o.Buy <= p.MinOffset && o.Sell <= p.MinOffset
}

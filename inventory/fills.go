package inventory

import "sync"

// FillTracker 统计策略成交带来的净仓位与均价。
type FillTracker struct {
	mu     sync.RWMutex
	net    float64
	cost   float64
	volume float64
	count  int
}

// Apply 记录一笔成交；买入 delta 为正，卖出为负。
func (t *FillTracker) Apply(delta, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value := t.cost*t.net + price*delta
	t.net += delta
	if t.net != 0 {
		t.cost = value / t.net
	} else {
		t.cost = 0
	}
	if delta < 0 {
		t.volume -= delta
	} else {
		t.volume += delta
	}
	t.count++
}

// Reset 在策略重新启动时清零。
func (t *FillTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.net, t.cost, t.volume, t.count = 0, 0, 0, 0
}

// PositionSummary 成交统计快照。
type PositionSummary struct {
	Net     float64 `json:"net"`
	AvgCost float64 `json:"avg_cost"`
	Volume  float64 `json:"volume"`
	Fills   int     `json:"fills"`
}

func (t *FillTracker) Summary() PositionSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return PositionSummary{Net: t.net, AvgCost: t.cost, Volume: t.volume, Fills: t.count}
}

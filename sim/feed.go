// Package sim 模拟行情：随机游走的最优买卖价，驱动 paper 交易所撮合。
package sim

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DepthSink 接收盘口更新（gateway.Paper 实现）
type DepthSink interface {
	OnDepth(symbol string, bid, ask float64, ts time.Time)
}

// FeedConfig 随机游走参数
type FeedConfig struct {
	Symbol     string
	Bid        float64       // 初始买一
	Ask        float64       // 初始卖一
	Volatility float64       // 每步中间价相对波动的标准差
	TickSize   float64       // 价格对齐到 tick，0 不对齐
	Interval   time.Duration // 推送间隔
	Seed       int64         // 0 使用当前时间
}

// Feed 中间价做对数正态随机游走，价差保持初始宽度（至少一个 tick）。
type Feed struct {
	cfg    FeedConfig
	sink   DepthSink
	logger *zap.Logger
	rng    *rand.Rand
	mid    float64
	spread float64
	now    func() time.Time
}

func NewFeed(cfg FeedConfig, sink DepthSink, logger *zap.Logger) (*Feed, error) {
	if cfg.Symbol == "" {
		return nil, errors.New("feed symbol required")
	}
	if cfg.Bid <= 0 || cfg.Ask < cfg.Bid {
		return nil, errors.New("feed requires 0 < bid <= ask")
	}
	if cfg.Volatility < 0 {
		return nil, errors.New("feed volatility must be >= 0")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	spread := cfg.Ask - cfg.Bid
	if spread < cfg.TickSize {
		spread = cfg.TickSize
	}
	return &Feed{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With(zap.String("component", "sim_feed"), zap.String("symbol", cfg.Symbol)),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		mid:    (cfg.Bid + cfg.Ask) / 2,
		spread: spread,
		now:    time.Now,
	}, nil
}

// Step 推进一步并返回新的买一/卖一
func (f *Feed) Step() (bid, ask float64) {
	f.mid *= math.Exp(f.rng.NormFloat64() * f.cfg.Volatility)
	bid = f.align(f.mid-f.spread/2, false)
	ask = f.align(f.mid+f.spread/2, true)
	if ask <= bid && f.cfg.TickSize > 0 {
		ask = bid + f.cfg.TickSize
	}
	return bid, ask
}

// Publish 推进一步并推送给 sink
func (f *Feed) Publish() {
	bid, ask := f.Step()
	f.sink.OnDepth(f.cfg.Symbol, bid, ask, f.now())
}

// Run 立即推送一次，之后按间隔推送，直到 ctx 结束
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("sim feed started",
		zap.Float64("mid", f.mid),
		zap.Float64("spread", f.spread),
		zap.Duration("interval", f.cfg.Interval))
	f.Publish()
	t := time.NewTicker(f.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			f.Publish()
		}
	}
}

// align 买价向下、卖价向上对齐到 tick
func (f *Feed) align(price float64, up bool) float64 {
	if f.cfg.TickSize <= 0 {
		return price
	}
	tick := decimal.NewFromFloat(f.cfg.TickSize)
	steps := decimal.NewFromFloat(price).Div(tick)
	if up {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	v, _ := steps.Mul(tick).Float64()
	return v
}

package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pure-market-maker/inventory"
	"pure-market-maker/market"
	"pure-market-maker/order"
	"pure-market-maker/strategy"
)

// PaperConfig 模拟交易所配置。
type PaperConfig struct {
	Balances       map[string]float64 // 初始余额，资产 -> 数量
	MaxSnapshotAge time.Duration      // 0 表示不检查过期
	FillBuffer     int
}

type paperOrder struct {
	id       string
	symbol   string
	side     order.Side
	size     float64
	price    float64
	base     string
	quote    string
	reserved float64
}

// Paper 本地模拟交易所：盘口来自 market.Service，挂单在盘口穿价时整单成交。
type Paper struct {
	mkt    *market.Service
	maxAge time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	balances inventory.Balances
	orders   map[string]*paperOrder
	failNext map[string]error
	fills    chan order.Fill
	deferred int // 回报通道已满、推迟撮合的次数
	now      func() time.Time
}

func NewPaper(cfg PaperConfig, mkt *market.Service, logger *zap.Logger) *Paper {
	if mkt == nil {
		mkt = market.NewService(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FillBuffer <= 0 {
		cfg.FillBuffer = 256
	}
	bal := make(inventory.Balances, len(cfg.Balances))
	for asset, amt := range cfg.Balances {
		bal[strings.ToUpper(asset)] = inventory.Balance{Available: amt, Total: amt}
	}
	return &Paper{
		mkt:      mkt,
		maxAge:   cfg.MaxSnapshotAge,
		logger:   logger,
		balances: bal,
		orders:   make(map[string]*paperOrder),
		failNext: make(map[string]error),
		fills:    make(chan order.Fill, cfg.FillBuffer),
		now:      time.Now,
	}
}

// Market 返回底层行情服务。
func (p *Paper) Market() *market.Service {
	return p.mkt
}

// Fills 实现 FillSource。
func (p *Paper) Fills() <-chan order.Fill {
	return p.fills
}

// FailNext 让下一次 op（place/cancel/balances/snapshot）返回 err，用于故障演练。
func (p *Paper) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext[op] = err
}

func (p *Paper) takeFailure(op string) error {
	err := p.failNext[op]
	delete(p.failNext, op)
	return err
}

func (p *Paper) MarketSnapshot(_ context.Context, symbol string) (market.Snapshot, error) {
	p.mu.Lock()
	err := p.takeFailure("snapshot")
	p.mu.Unlock()
	if err != nil {
		return market.Snapshot{}, err
	}
	return p.mkt.Snapshot(symbol, p.maxAge)
}

func (p *Paper) Balances(_ context.Context) (inventory.Balances, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("balances"); err != nil {
		return nil, err
	}
	return p.balances.Clone(), nil
}

func (p *Paper) PlaceOrder(_ context.Context, symbol string, side order.Side, size, price float64) (string, error) {
	base, quote, err := strategy.SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	if size <= 0 || price <= 0 {
		return "", fmt.Errorf("invalid order size=%v price=%v", size, price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("place"); err != nil {
		return "", err
	}

	o := &paperOrder{
		id:     uuid.NewString(),
		symbol: strings.ToUpper(symbol),
		side:   side,
		size:   size,
		price:  price,
		base:   base,
		quote:  quote,
	}
	// 冻结资金
	asset, need := base, size
	if side == order.SideBuy {
		asset, need = quote, size*price
	}
	b := p.balances[asset]
	if b.Available < need {
		return "", fmt.Errorf("%w: %s available %v < %v", order.ErrInsufficientBalance, asset, b.Available, need)
	}
	b.Available -= need
	p.balances[asset] = b
	o.reserved = need
	p.orders[o.id] = o

	p.logger.Debug("paper order placed",
		zap.String("order_id", o.id),
		zap.String("side", string(side)),
		zap.Float64("size", size),
		zap.Float64("price", price))
	return o.id, nil
}

func (p *Paper) CancelOrder(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("cancel"); err != nil {
		return err
	}
	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	p.release(o)
	delete(p.orders, orderID)
	return nil
}

func (p *Paper) release(o *paperOrder) {
	asset := o.base
	if o.side == order.SideBuy {
		asset = o.quote
	}
	b := p.balances[asset]
	b.Available += o.reserved
	p.balances[asset] = b
}

// OpenOrders 返回当前挂单数量。
func (p *Paper) OpenOrders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

// OnDepth 更新盘口并撮合穿价挂单：买单在 ask <= price 时成交，卖单在 bid >= price 时成交。
// 回报写入通道后才结算并移除挂单；通道已满时挂单保留，下一次盘口更新再撮合。
func (p *Paper) OnDepth(symbol string, bid, ask float64, ts time.Time) {
	p.mkt.OnDepth(symbol, bid, ask, ts)

	key := strings.ToUpper(symbol)
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, o := range p.orders {
		if o.symbol != key {
			continue
		}
		crossed := (o.side == order.SideBuy && ask > 0 && ask <= o.price) ||
			(o.side == order.SideSell && bid > 0 && bid >= o.price)
		if !crossed {
			continue
		}
		select {
		case p.fills <- order.Fill{OrderID: id, Price: o.price, Size: o.size, Time: p.now()}:
		default:
			p.deferred++
			p.logger.Warn("paper fill deferred, channel full", zap.String("order_id", id))
			continue
		}
		p.settle(o)
		delete(p.orders, id)
	}
}

// settle 按挂单价结算余额。
func (p *Paper) settle(o *paperOrder) {
	notional := o.size * o.price
	base, quote := p.balances[o.base], p.balances[o.quote]
	if o.side == order.SideBuy {
		quote.Total -= notional
		base.Available += o.size
		base.Total += o.size
	} else {
		base.Total -= o.size
		quote.Available += notional
		quote.Total += notional
	}
	p.balances[o.base], p.balances[o.quote] = base, quote
}

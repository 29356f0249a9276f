package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pure-market-maker/inventory"
)

// Gateway 下单/撤单抽象；由 gateway 包的实现对接。
type Gateway interface {
	PlaceOrder(ctx context.Context, symbol string, side Side, size, price float64) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// DefaultFillGrace 撤单返回“订单不存在”后等待成交回报的时长
const DefaultFillGrace = 5 * time.Second

// awaitingFill 撤单时交易所已找不到的订单：可能已成交、回报还在路上。
type awaitingFill struct {
	order    *Order
	deadline time.Time
}

// Manager 持有策略的活跃订单集合，按“全撤全挂”策略刷新。
// 活跃订单只由 Manager 修改；读取方拿到的是拷贝。
type Manager struct {
	gw        Gateway
	symbol    string
	mu        sync.RWMutex
	active    map[string]*Order
	pending   map[Side]*Order
	awaiting  map[string]*awaitingFill
	fillGrace time.Duration
	history   *Book
	now       func() time.Time
}

func NewManager(gw Gateway, symbol string) *Manager {
	return &Manager{
		gw:        gw,
		symbol:    symbol,
		active:    make(map[string]*Order),
		pending:   make(map[Side]*Order),
		awaiting:  make(map[string]*awaitingFill),
		fillGrace: DefaultFillGrace,
		history:   NewBook(DefaultHistorySize),
		now:       time.Now,
	}
}

// SetFillGrace 设置等待成交回报的时长；<= 0 时使用默认值。
func (m *Manager) SetFillGrace(d time.Duration) {
	if d <= 0 {
		d = DefaultFillGrace
	}
	m.mu.Lock()
	m.fillGrace = d
	m.mu.Unlock()
}

// Reset 切换交易对；策略启动时调用。
// 上次停止时没撤掉的挂单和等待成交回报的订单保留，下一次撤单会继续处理。历史保留。
func (m *Manager) Reset(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbol = symbol
	m.pending = make(map[Side]*Order)
}

// Symbol 当前管理的交易对。
func (m *Manager) Symbol() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbol
}

// Active 返回 Pending/Resting 订单拷贝，按创建时间、方向排序。
func (m *Manager) Active() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Order, 0, len(m.active)+len(m.pending))
	for _, o := range m.active {
		res = append(res, *o)
	}
	for _, o := range m.pending {
		res = append(res, *o)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].Side < res[j].Side
	})
	return res
}

// History 返回终态订单历史。
func (m *Manager) History() []Order {
	return m.history.List()
}

// Awaiting 返回等待成交回报的订单拷贝，按方向排序。
func (m *Manager) Awaiting() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Order, 0, len(m.awaiting))
	for _, a := range m.awaiting {
		res = append(res, *a.order)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Side < res[j].Side })
	return res
}

// CancelResult 撤单结果。
type CancelResult struct {
	// Cancelled 交易所确认撤销的订单，以及等待成交回报超时的订单
	Cancelled []Order
	// Unconfirmed 交易所返回 ErrOrderNotFound 的订单；转入等待成交回报，不算撤销
	Unconfirmed []Order
	Errors      []error
	// Failed 撤单失败的方向；这些方向本周期不再挂新单，避免同向双挂。
	Failed map[Side]bool
}

// CancelAll 撤销所有挂单。
// 网关返回 ErrOrderNotFound 时订单可能刚成交，转入等待成交回报，超过 fillGrace 仍无回报才记为撤销。
func (m *Manager) CancelAll(ctx context.Context) CancelResult {
	res := CancelResult{Failed: make(map[Side]bool)}
	res.Cancelled = m.ExpireAwaiting(false)
	for _, o := range m.restingOrders() {
		err := m.gw.CancelOrder(ctx, o.ID)
		switch {
		case err == nil:
			if done, ok := m.finish(o.ID, StatusCancelled); ok {
				res.Cancelled = append(res.Cancelled, done)
			}
		case errors.Is(err, ErrOrderNotFound):
			if a, ok := m.await(o.ID); ok {
				res.Unconfirmed = append(res.Unconfirmed, a)
			}
		default:
			m.mu.Lock()
			if cur, ok := m.active[o.ID]; ok {
				cur.LastError = err.Error()
				cur.UpdatedAt = m.now()
			}
			m.mu.Unlock()
			res.Errors = append(res.Errors, &OrderError{Op: "cancel", Side: o.Side, OrderID: o.ID, Err: err})
			res.Failed[o.Side] = true
		}
	}
	return res
}

// restingOrders 所有 Resting 订单，包括切换交易对前遗留的。
func (m *Manager) restingOrders() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Order, 0, len(m.active))
	for _, o := range m.active {
		if o.Status == StatusResting {
			res = append(res, *o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Side < res[j].Side })
	return res
}

// await 活跃订单转入等待成交回报。
func (m *Manager) await(id string) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.active[id]
	if !ok {
		return Order{}, false
	}
	now := m.now()
	o.UpdatedAt = now
	delete(m.active, id)
	m.awaiting[id] = &awaitingFill{order: o, deadline: now.Add(m.fillGrace)}
	return *o, true
}

// ExpireAwaiting 将等待超时的订单记为撤销并移入历史；all 为 true 时不看期限（停止时使用）。
func (m *Manager) ExpireAwaiting(all bool) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var res []Order
	for id, a := range m.awaiting {
		if !all && now.Before(a.deadline) {
			continue
		}
		o := a.order
		if err := transition(o, StatusCancelled); err != nil {
			o.LastError = err.Error()
			continue
		}
		o.LastError = "not found on exchange and no fill reported"
		o.UpdatedAt = now
		delete(m.awaiting, id)
		m.history.Add(*o)
		res = append(res, *o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Side < res[j].Side })
	return res
}

// finish 将活跃或等待回报的订单转入终态并移入历史。
func (m *Manager) finish(id string, st Status) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.active[id]
	if !ok {
		a, found := m.awaiting[id]
		if !found {
			return Order{}, false
		}
		o = a.order
	}
	if err := transition(o, st); err != nil {
		o.LastError = err.Error()
		return *o, false
	}
	o.UpdatedAt = m.now()
	delete(m.active, id)
	delete(m.awaiting, id)
	m.history.Add(*o)
	return *o, true
}

// RefreshRequest 一个刷新周期的输入。
type RefreshRequest struct {
	BuyPrice  float64
	SellPrice float64
	Balances  inventory.Balances
	Sizing    Sizing
	// Halt 在撤单完成后检查；返回 true 时不再挂新单（停止命令的安全点）。
	Halt func() bool
}

// RefreshResult 一个刷新周期的输出，按事件顺序排列。
type RefreshResult struct {
	Cancelled   []Order
	Unconfirmed []Order
	Placed      []Order
	Errors      []error
	Halted      bool
}

type placement struct {
	order *Order
	id    string
	err   error
}

// Refresh 执行一个周期：全撤，然后买卖两侧独立并发下单，结果汇合后返回。
// 单侧失败只记录 OrderError，不影响另一侧。
func (m *Manager) Refresh(ctx context.Context, req RefreshRequest) RefreshResult {
	cancelled := m.CancelAll(ctx)
	res := RefreshResult{
		Cancelled:   cancelled.Cancelled,
		Unconfirmed: cancelled.Unconfirmed,
		Errors:      cancelled.Errors,
	}
	if req.Halt != nil && req.Halt() {
		res.Halted = true
		return res
	}

	m.mu.RLock()
	symbol := m.symbol
	m.mu.RUnlock()

	legs := []struct {
		side  Side
		price float64
	}{
		{SideBuy, req.BuyPrice},
		{SideSell, req.SellPrice},
	}
	var placements []*placement
	for _, leg := range legs {
		if cancelled.Failed[leg.side] {
			continue
		}
		size, err := req.Sizing.OrderSize(leg.side, leg.price, req.Balances)
		if err != nil {
			res.Errors = append(res.Errors, &OrderError{Op: "size", Side: leg.side, Err: err})
			continue
		}
		now := m.now()
		o := &Order{
			Symbol:    symbol,
			Side:      leg.side,
			Size:      size,
			Price:     leg.price,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.mu.Lock()
		m.pending[leg.side] = o
		m.mu.Unlock()
		placements = append(placements, &placement{order: o})
	}

	var g errgroup.Group
	for _, p := range placements {
		p := p
		g.Go(func() error {
			o := p.order
			p.id, p.err = m.gw.PlaceOrder(ctx, o.Symbol, o.Side, o.Size, o.Price)
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range placements {
		m.mu.Lock()
		delete(m.pending, p.order.Side)
		if p.err == nil && p.id == "" {
			p.err = errors.New("gateway returned empty order id")
		}
		if p.err != nil {
			m.mu.Unlock()
			res.Errors = append(res.Errors, &OrderError{Op: "place", Side: p.order.Side, Err: p.err})
			continue
		}
		o := p.order
		o.ID = p.id
		_ = transition(o, StatusResting)
		o.UpdatedAt = m.now()
		m.active[o.ID] = o
		placed := *o
		m.mu.Unlock()
		res.Placed = append(res.Placed, placed)
	}
	return res
}

// ApplyFill 处理网关成交回报，包括等待回报中的订单。返回更新后的订单；未知订单返回 false。
// 部分成交保持 Resting，累计成交量达到下单量后转为 Filled。
func (m *Manager) ApplyFill(f Fill) (Order, bool) {
	m.mu.Lock()
	o, ok := m.active[f.OrderID]
	if !ok {
		a, found := m.awaiting[f.OrderID]
		if !found {
			m.mu.Unlock()
			return Order{}, false
		}
		o = a.order
	}
	o.FilledSize += f.Size
	o.UpdatedAt = m.now()
	if o.FilledSize < o.Size*(1-1e-9) {
		updated := *o
		m.mu.Unlock()
		return updated, true
	}
	m.mu.Unlock()
	return m.finish(f.OrderID, StatusFilled)
}

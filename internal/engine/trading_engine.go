package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pure-market-maker/gateway"
	"pure-market-maker/infrastructure/alert"
	"pure-market-maker/infrastructure/logger"
	"pure-market-maker/infrastructure/monitor"
	"pure-market-maker/internal/eventlog"
	"pure-market-maker/internal/risk"
	"pure-market-maker/inventory"
	"pure-market-maker/market"
	"pure-market-maker/order"
	"pure-market-maker/strategy"
)

// Config 引擎配置
type Config struct {
	FatalFailureThreshold int           // 连续网关失败多少次视为系统性故障
	EventCapacity         int           // 事件环形缓冲容量
	ShutdownTimeout       time.Duration // 停止时撤单的最长耗时
	FillGracePeriod       time.Duration // 撤单返回“订单不存在”后等待成交回报的时长
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		FatalFailureThreshold: risk.DefaultThreshold,
		EventCapacity:         eventlog.DefaultCapacity,
		ShutdownTimeout:       10 * time.Second,
		FillGracePeriod:       order.DefaultFillGrace,
	}
}

// Components 引擎依赖组件；Gateway 必填，其余可选
type Components struct {
	Gateway gateway.Gateway
	Fills   gateway.FillSource
	Logger  *logger.Logger
	Monitor *monitor.Monitor
	Alerts  *alert.Manager
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type cancelAllCmd struct {
	reply chan error
}

// runHandle 一次 Running 的生命周期
type runHandle struct {
	stop     chan struct{}
	done     chan struct{}
	cmds     chan cancelAllCmd
	abort    context.CancelFunc
	stopOnce sync.Once

	// 以下只由循环 goroutine 使用
	log   *logger.Logger
	fills <-chan order.Fill
}

func (h *runHandle) requestStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *runHandle) stopRequested() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// Engine 纯做市引擎：单个交易对，Stopped ⇄ Running。
// 订单集合与 offset 只由循环 goroutine 修改，外部通过 CurrentState 读取拷贝。
type Engine struct {
	cfg      Config
	gw       gateway.Gateway
	fills    gateway.FillSource
	logger   *logger.Logger
	monitor  *monitor.Monitor
	alerts   *alert.Manager
	events   *eventlog.Log
	orders   *order.Manager
	breaker  *risk.CircuitBreaker
	position *inventory.FillTracker

	mu         sync.RWMutex
	state      RunState
	params     strategy.Parameters
	offsets    strategy.Offsets
	lastQuotes *strategy.Quotes
	lastSnap   *market.Snapshot
	balances   inventory.Balances
	cycles     int64
	startedAt  time.Time
	stopCause  string
	run        *runHandle

	newTicker func(time.Duration) ticker
	now       func() time.Time
}

// New 创建引擎，初始为 Stopped
func New(cfg Config, params strategy.Parameters, c Components) (*Engine, error) {
	if c.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cfg.FatalFailureThreshold <= 0 {
		cfg.FatalFailureThreshold = risk.DefaultThreshold
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.FillGracePeriod <= 0 {
		cfg.FillGracePeriod = order.DefaultFillGrace
	}
	if c.Logger == nil {
		c.Logger = logger.Wrap(nil)
	}
	if c.Monitor == nil {
		c.Monitor = monitor.New(monitor.DefaultConfig())
	}

	events := eventlog.New(cfg.EventCapacity)
	events.AddSink(c.Logger)

	orders := order.NewManager(c.Gateway, params.Symbol)
	orders.SetFillGrace(cfg.FillGracePeriod)

	return &Engine{
		cfg:       cfg,
		gw:        c.Gateway,
		fills:     c.Fills,
		logger:    c.Logger,
		monitor:   c.Monitor,
		alerts:    c.Alerts,
		events:    events,
		orders:    orders,
		breaker:   risk.NewCircuitBreaker(risk.CircuitBreakerConfig{Threshold: cfg.FatalFailureThreshold}),
		position:  &inventory.FillTracker{},
		state:     StateStopped,
		params:    params,
		offsets:   strategy.InitialOffsets(params),
		newTicker: newTimeTicker,
		now:       time.Now,
	}, nil
}

// Events 返回事件日志，供 API/Kafka 订阅
func (e *Engine) Events() *eventlog.Log {
	return e.events
}

// Start Stopped -> Running；已运行时为空操作
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return nil
	}
	p := e.params
	if err := p.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &runHandle{
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		cmds:  make(chan cancelAllCmd),
		abort: cancel,
		log:   e.logger.WithFields(map[string]interface{}{"symbol": p.Symbol}),
	}
	e.state = StateRunning
	e.run = h
	e.offsets = strategy.InitialOffsets(p)
	e.lastQuotes = nil
	e.lastSnap = nil
	e.cycles = 0
	e.startedAt = e.now()
	e.stopCause = ""
	e.orders.Reset(p.Symbol)
	e.breaker.Reset()
	e.position.Reset()
	e.mu.Unlock()
	if e.alerts != nil {
		e.alerts.ResetThrottle()
	}

	e.monitor.SetRunning(true)
	e.monitor.UpdateActiveOrders(0)
	e.emit(eventlog.StrategyStarted, p.Symbol, "strategy started", map[string]any{
		"refresh_seconds": p.OrderRefreshTimeSeconds,
		"initial_offset":  p.InitialOffset,
		"min_offset":      p.MinOffset,
	})

	go e.loop(ctx, h, p)
	return nil
}

// Stop Running -> Stopped；撤销全部挂单后返回。已停止时为空操作。
// 进行中的网关调用先完成，随后不再挂新单。ctx 到期时中止进行中的调用，撤单仍然执行，完成后返回 ctx.Err()。
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	h := e.run
	running := e.state == StateRunning
	e.mu.RUnlock()
	if !running || h == nil {
		return nil
	}

	h.requestStop()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		h.abort()
		<-h.done
		return ctx.Err()
	}
}

// Wait 阻塞直到当前运行结束（停止或致命错误）
func (e *Engine) Wait() {
	e.mu.RLock()
	h := e.run
	e.mu.RUnlock()
	if h != nil {
		<-h.done
	}
}

// UpdateParameters 仅在 Stopped 时可修改参数
func (e *Engine) UpdateParameters(p strategy.Parameters) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		return ErrRejectedWhileRunning
	}
	if err := p.Validate(); err != nil {
		return err
	}
	e.params = p
	e.offsets = strategy.InitialOffsets(p)
	return nil
}

// CancelAll 撤销当前全部策略挂单，策略继续运行并在下个周期重新报价。Stopped 时为空操作。
func (e *Engine) CancelAll(ctx context.Context) error {
	e.mu.RLock()
	h := e.run
	running := e.state == StateRunning
	e.mu.RUnlock()
	if !running || h == nil {
		return nil
	}

	cmd := cancelAllCmd{reply: make(chan error, 1)}
	select {
	case h.cmds <- cmd:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentState 返回状态拷贝
func (e *Engine) CurrentState() State {
	e.mu.RLock()
	st := State{
		RunState:   e.state,
		Parameters: e.params,
		Offsets:    e.offsets,
		Balances:   e.balances.Clone(),
		Cycles:     e.cycles,
		StartedAt:  e.startedAt,
		StopCause:  e.stopCause,
	}
	if e.lastQuotes != nil {
		q := *e.lastQuotes
		st.LastQuotes = &q
	}
	if e.lastSnap != nil {
		s := *e.lastSnap
		st.LastSnapshot = &s
	}
	e.mu.RUnlock()

	st.ActiveOrders = e.orders.Active()
	st.AwaitingFill = e.orders.Awaiting()
	st.OrderHistory = e.orders.History()
	st.RecentLogs = e.events.Recent()
	st.Position = e.position.Summary()
	st.Breaker = e.breakerStatus()
	return st
}

func (e *Engine) breakerStatus() BreakerStatus {
	m := e.breaker.GetMetrics()
	bs := BreakerStatus{
		State:               m.State.String(),
		Threshold:           e.breaker.Threshold(),
		ConsecutiveFailures: m.ConsecutiveFails,
		Failures:            m.FailureCount,
		Successes:           m.SuccessCount,
		LastFailure:         m.LastFailTime,
	}
	if err := e.breaker.LastError(); err != nil {
		bs.LastError = err.Error()
	}
	return bs
}

// loop 刷新循环：首个周期立即执行，之后按刷新间隔执行。
// ticker 在周期耗时过长时丢弃积压的 tick，周期不会重叠。
func (e *Engine) loop(ctx context.Context, h *runHandle, p strategy.Parameters) {
	defer close(h.done)
	defer h.abort()

	tk := e.newTicker(time.Duration(p.OrderRefreshTimeSeconds) * time.Second)
	defer tk.Stop()

	if e.fills != nil {
		h.fills = e.fills.Fills()
	}

	cause := e.cycle(ctx, h, p)
	for cause == nil && !h.stopRequested() {
		select {
		case <-h.stop:
		case <-tk.C():
			cause = e.cycle(ctx, h, p)
		case f, ok := <-h.fills:
			if !ok {
				h.fills = nil
				continue
			}
			e.onFill(h, p, f)
		case cmd := <-h.cmds:
			res, fatal := e.cancelResting(ctx, h, p)
			if fatal != nil {
				cmd.reply <- fatal
				cause = fatal
				continue
			}
			cmd.reply <- errors.Join(res.Errors...)
		}
	}
	e.shutdown(h, p, cause)
}

// cycle 执行一个刷新周期；返回非 nil 表示致命错误。
func (e *Engine) cycle(ctx context.Context, h *runHandle, p strategy.Parameters) error {
	start := time.Now()
	defer func() {
		e.mu.Lock()
		e.cycles++
		e.mu.Unlock()
		e.monitor.RecordCycle(time.Since(start))
	}()

	e.mu.RLock()
	off := e.offsets
	e.mu.RUnlock()

	snap, err := e.gw.MarketSnapshot(ctx, p.Symbol)
	if err != nil {
		if gateway.IsFatal(err) {
			e.emitError(p.Symbol, "gateway", fmt.Errorf("market snapshot: %w", err))
			return &FatalGatewayError{Cause: err}
		}
		if !market.IsMarketDataError(err) {
			err = &market.MarketDataError{Symbol: p.Symbol, Err: err}
		}
		e.emitError(p.Symbol, "market_data", err)
		return nil
	}
	e.monitor.UpdateBook(snap.BestBid, snap.BestAsk)

	quotes, err := strategy.ComputeQuotes(snap, p, off)
	if err != nil {
		kind := "quote"
		if market.IsMarketDataError(err) {
			kind = "market_data"
		}
		e.mu.Lock()
		e.lastSnap = &snap
		e.mu.Unlock()
		e.emitError(p.Symbol, kind, err)
		return nil
	}

	e.mu.Lock()
	e.lastSnap = &snap
	e.lastQuotes = &quotes
	e.mu.Unlock()
	e.monitor.RecordQuote(quotes.BuyPrice, quotes.SellPrice, quotes.BuyOffset, quotes.SellOffset, quotes.BuyToBid, quotes.SellToAsk)
	e.emit(eventlog.QuoteComputed, p.Symbol,
		fmt.Sprintf("quote buy %v sell %v (bid %v ask %v)", quotes.BuyPrice, quotes.SellPrice, snap.BestBid, snap.BestAsk),
		map[string]any{
			"best_bid":    snap.BestBid,
			"best_ask":    snap.BestAsk,
			"buy_price":   quotes.BuyPrice,
			"sell_price":  quotes.SellPrice,
			"buy_offset":  quotes.BuyOffset,
			"sell_offset": quotes.SellOffset,
			"spread_pct":  snap.SpreadPct(),
		})
	defer e.advanceOffsets(p)

	var bal inventory.Balances
	err = e.breaker.Call(func() error {
		var err error
		bal, err = e.gw.Balances(ctx)
		return err
	})
	if err != nil {
		// 无法计算下单量：仍然撤掉旧价位的挂单，本周期不挂新单
		e.emitError(p.Symbol, "gateway", fmt.Errorf("balances: %w", err))
		if fatal := e.checkBreaker(h, p, err); fatal != nil {
			return fatal
		}
		_, fatal := e.cancelResting(ctx, h, p)
		return fatal
	}
	e.mu.Lock()
	e.balances = bal
	e.mu.Unlock()

	e.drainFills(h, p)
	res := e.orders.Refresh(ctx, order.RefreshRequest{
		BuyPrice:  quotes.BuyPrice,
		SellPrice: quotes.SellPrice,
		Balances:  bal,
		Sizing:    order.SizingFromParams(p),
		Halt:      h.stopRequested,
	})
	fatal := e.report(h, p, res.Cancelled, res.Unconfirmed, res.Errors)
	for _, o := range res.Placed {
		e.breaker.RecordSuccess()
		e.monitor.RecordOrderPlaced()
		e.emit(eventlog.OrderPlaced, p.Symbol,
			fmt.Sprintf("placed %s %v @ %v", o.Side, o.Size, o.Price),
			orderFields(o))
	}
	e.monitor.UpdateActiveOrders(len(e.orders.Active()))
	return fatal
}

func (e *Engine) advanceOffsets(p strategy.Parameters) {
	e.mu.Lock()
	e.offsets = strategy.Advance(e.offsets, p)
	e.mu.Unlock()
}

// report 记录撤单事件和订单错误；返回致命错误（如有）。
// unconfirmed 的订单等待成交回报，此时不记 OrderCancelled。
func (e *Engine) report(h *runHandle, p strategy.Parameters, cancelled, unconfirmed []order.Order, errs []error) error {
	for _, o := range cancelled {
		e.breaker.RecordSuccess()
		e.emitCancelled(p, o)
	}
	for _, o := range unconfirmed {
		e.breaker.RecordSuccess()
		h.log.LogOrder("cancel_unconfirmed", o.ID, map[string]interface{}{
			"side":        string(o.Side),
			"price":       o.Price,
			"filled_size": o.FilledSize,
		})
	}
	var fatal error
	for _, err := range errs {
		var oe *order.OrderError
		if errors.As(err, &oe) {
			e.monitor.RecordOrderRejected(oe.Op, string(oe.Side))
		}
		e.emitError(p.Symbol, "order", err)
		// 余额不足属于策略侧判断，不计入网关失败
		if oe != nil && oe.Op == "size" {
			continue
		}
		if f := e.recordGatewayFailure(h, p, err); f != nil && fatal == nil {
			fatal = f
		}
	}
	return fatal
}

// cancelResting 撤销全部挂单，并返回致命错误（如有）。
func (e *Engine) cancelResting(ctx context.Context, h *runHandle, p strategy.Parameters) (order.CancelResult, error) {
	e.drainFills(h, p)
	res := e.orders.CancelAll(ctx)
	fatal := e.report(h, p, res.Cancelled, res.Unconfirmed, res.Errors)
	e.monitor.UpdateActiveOrders(len(e.orders.Active()))
	return res, fatal
}

// recordGatewayFailure 计入熔断器（ErrFatal 不计数），再交给 checkBreaker。
func (e *Engine) recordGatewayFailure(h *runHandle, p strategy.Parameters, err error) error {
	if !gateway.IsFatal(err) {
		e.breaker.RecordFailure(err)
	}
	return e.checkBreaker(h, p, err)
}

// checkBreaker 在失败计入熔断器之后调用：ErrFatal 或熔断打开时返回 FatalGatewayError；
// 距离阈值只差一次时发 WARNING 告警。
func (e *Engine) checkBreaker(h *runHandle, p strategy.Parameters, err error) error {
	if gateway.IsFatal(err) {
		return &FatalGatewayError{Cause: err}
	}
	threshold := e.breaker.Threshold()
	m := e.breaker.GetMetrics()
	if m.State == risk.StateOpen {
		return &FatalGatewayError{
			Cause: fmt.Errorf("%d consecutive gateway failures, last: %w", threshold, e.breaker.LastError()),
		}
	}
	if threshold > 1 && m.ConsecutiveFails == int64(threshold-1) && e.alerts != nil {
		if aerr := e.alerts.SendWarning("gateway failures approaching circuit breaker threshold", map[string]interface{}{
			"symbol":               p.Symbol,
			"consecutive_failures": m.ConsecutiveFails,
			"threshold":            threshold,
			"last_error":           err.Error(),
		}); aerr != nil {
			h.log.LogError(aerr, map[string]interface{}{"alert": "breaker_warning"})
		}
	}
	return nil
}

// drainFills 处理已经到达的成交回报，撤单前调用。
func (e *Engine) drainFills(h *runHandle, p strategy.Parameters) {
	for h.fills != nil {
		select {
		case f, ok := <-h.fills:
			if !ok {
				h.fills = nil
				return
			}
			e.onFill(h, p, f)
		default:
			return
		}
	}
}

// awaitFills 等待撤单时已不存在的订单的成交回报，最长 FillGracePeriod。
func (e *Engine) awaitFills(ctx context.Context, h *runHandle, p strategy.Parameters) {
	if h.fills == nil || len(e.orders.Awaiting()) == 0 {
		return
	}
	timer := time.NewTimer(e.cfg.FillGracePeriod)
	defer timer.Stop()
	for len(e.orders.Awaiting()) > 0 {
		select {
		case f, ok := <-h.fills:
			if !ok {
				h.fills = nil
				return
			}
			e.onFill(h, p, f)
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) onFill(h *runHandle, p strategy.Parameters, f order.Fill) {
	o, ok := e.orders.ApplyFill(f)
	if !ok {
		h.log.LogOrder("fill_ignored", f.OrderID, map[string]interface{}{
			"reason": "unknown order",
			"size":   f.Size,
			"price":  f.Price,
		})
		return
	}
	delta := f.Size
	if o.Side == order.SideSell {
		delta = -delta
	}
	e.position.Apply(delta, f.Price)
	summary := e.position.Summary()

	e.monitor.RecordOrderFilled(f.Size, o.Status == order.StatusFilled)
	e.monitor.UpdatePosition(summary.Net)
	e.monitor.UpdateActiveOrders(len(e.orders.Active()))

	fields := orderFields(o)
	fields["fill_size"] = f.Size
	fields["fill_price"] = f.Price
	e.emit(eventlog.OrderFilled, p.Symbol,
		fmt.Sprintf("filled %s %v @ %v (%v/%v)", o.Side, f.Size, f.Price, o.FilledSize, o.Size),
		fields)
}

// shutdown 撤单并进入 Stopped；cause 非 nil 表示致命停止。
// 状态最后切换，保证 StrategyStopped 先于下一次 StrategyStarted。
func (e *Engine) shutdown(h *runHandle, p strategy.Parameters, cause error) {
	// 不从运行 ctx 派生：Stop 超时后运行 ctx 已被取消
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()

	e.drainFills(h, p)
	res := e.orders.CancelAll(ctx)
	for _, o := range res.Cancelled {
		e.emitCancelled(p, o)
	}
	for _, o := range res.Unconfirmed {
		h.log.LogOrder("cancel_unconfirmed", o.ID, map[string]interface{}{"side": string(o.Side), "price": o.Price})
	}
	for _, err := range res.Errors {
		e.emitError(p.Symbol, "order", err)
	}
	e.awaitFills(ctx, h, p)
	for _, o := range e.orders.ExpireAwaiting(true) {
		e.emitCancelled(p, o)
	}

	remaining := len(e.orders.Active())
	if remaining > 0 {
		h.log.LogError(fmt.Errorf("%d orders still resting after shutdown", remaining), map[string]interface{}{
			"retry": "next start",
		})
	}
	e.monitor.UpdateActiveOrders(remaining)
	e.monitor.SetRunning(false)

	fields := map[string]any{"remaining_orders": remaining}
	msg := "strategy stopped"
	if cause != nil {
		fields["cause"] = cause.Error()
		msg = "strategy stopped: " + cause.Error()
		e.monitor.RecordError("fatal")
	}
	e.emit(eventlog.StrategyStopped, p.Symbol, msg, fields)

	if cause != nil && e.alerts != nil {
		if err := e.alerts.SendCritical("strategy stopped on fatal gateway error", map[string]interface{}{
			"symbol": p.Symbol,
			"cause":  cause.Error(),
		}); err != nil {
			h.log.LogError(err, map[string]interface{}{"alert": "fatal_stop"})
		}
	}

	e.mu.Lock()
	e.state = StateStopped
	if cause != nil {
		e.stopCause = cause.Error()
	}
	e.mu.Unlock()
}

func (e *Engine) emitCancelled(p strategy.Parameters, o order.Order) {
	e.monitor.RecordOrderCanceled()
	e.emit(eventlog.OrderCancelled, p.Symbol,
		fmt.Sprintf("cancelled %s %s @ %v", o.Side, o.ID, o.Price),
		orderFields(o))
}

func (e *Engine) emit(kind eventlog.Kind, symbol, msg string, fields map[string]any) {
	e.events.Append(kind, symbol, msg, fields)
}

func (e *Engine) emitError(symbol, kind string, err error) {
	e.monitor.RecordError(kind)
	e.events.Append(eventlog.Error, symbol, err.Error(), map[string]any{"kind": kind})
}

func orderFields(o order.Order) map[string]any {
	fields := map[string]any{
		"order_id":    o.ID,
		"side":        string(o.Side),
		"size":        o.Size,
		"price":       o.Price,
		"filled_size": o.FilledSize,
		"status":      string(o.Status),
	}
	if o.LastError != "" {
		fields["last_error"] = o.LastError
	}
	return fields
}

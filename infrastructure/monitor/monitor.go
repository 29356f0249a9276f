package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersPlaced   prometheus.Counter
	ordersCanceled prometheus.Counter
	ordersFilled   prometheus.Counter
	ordersRejected *prometheus.CounterVec
	activeOrders   prometheus.Gauge
	filledVolume   prometheus.Counter

	// 市场指标
	bidPrice  prometheus.Gauge
	askPrice  prometheus.Gauge
	spread    prometheus.Gauge
	spreadPct prometheus.Gauge

	// 策略指标
	running         prometheus.Gauge
	cycles          prometheus.Counter
	cycleLatency    prometheus.Histogram
	quotesGenerated prometheus.Counter
	quotePrice      *prometheus.GaugeVec
	quoteOffset     *prometheus.GaugeVec
	quoteDistance   *prometheus.GaugeVec
	position        prometheus.Gauge
	errors          *prometheus.CounterVec

	// 网关指标
	gatewayRequests *prometheus.CounterVec
	gatewayErrors   *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mm",
		Subsystem: "quoter",
	}
}

// New 创建新的Monitor实例，使用独立 registry
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}

	return &Monitor{
		registry: reg,

		ordersPlaced:   counter("orders_placed_total", "订单下单总数"),
		ordersCanceled: counter("orders_canceled_total", "订单撤单总数"),
		ordersFilled:   counter("orders_filled_total", "订单完全成交总数"),
		ordersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_rejected_total",
			Help:      "下单/撤单失败总数",
		}, []string{"op", "side"}),
		activeOrders: gauge("active_orders", "当前挂单数"),
		filledVolume: counter("filled_volume_total", "累计成交量（基础资产）"),

		bidPrice:  gauge("bid_price", "当前买一价"),
		askPrice:  gauge("ask_price", "当前卖一价"),
		spread:    gauge("spread", "当前价差"),
		spreadPct: gauge("spread_pct", "价差占买一价比例"),

		running:         gauge("strategy_running", "策略是否运行(1=运行,0=停止)"),
		cycles:          counter("cycles_total", "刷新周期总数"),
		quotesGenerated: counter("quotes_generated_total", "策略生成报价总数"),
		cycleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_latency_seconds",
			Help:      "单个刷新周期耗时（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		quotePrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quote_price",
			Help:      "最近一次报价",
		}, []string{"side"}),
		quoteOffset: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quote_offset",
			Help:      "当前 offset",
		}, []string{"side"}),
		quoteDistance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quote_distance",
			Help:      "报价与对侧盘口的距离(buy: buy-bid, sell: ask-sell)",
		}, []string{"side"}),
		position: gauge("position", "策略成交产生的净仓位"),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "errors_total",
			Help:      "策略错误事件总数",
		}, []string{"kind"}),

		gatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "gateway_requests_total",
			Help:      "网关请求总数",
		}, []string{"op"}),
		gatewayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "gateway_errors_total",
			Help:      "网关错误总数",
		}, []string{"op"}),
		gatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "gateway_latency_seconds",
			Help:      "网关请求延迟（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// 订单相关方法
func (m *Monitor) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

func (m *Monitor) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

func (m *Monitor) RecordOrderFilled(size float64, complete bool) {
	m.filledVolume.Add(size)
	if complete {
		m.ordersFilled.Inc()
	}
}

func (m *Monitor) RecordOrderRejected(op, side string) {
	m.ordersRejected.WithLabelValues(op, side).Inc()
}

func (m *Monitor) UpdateActiveOrders(n int) {
	m.activeOrders.Set(float64(n))
}

// 市场相关方法
func (m *Monitor) UpdateBook(bid, ask float64) {
	m.bidPrice.Set(bid)
	m.askPrice.Set(ask)
	m.spread.Set(ask - bid)
	if bid > 0 {
		m.spreadPct.Set((ask - bid) / bid)
	}
}

// 策略相关方法
func (m *Monitor) SetRunning(running bool) {
	if running {
		m.running.Set(1)
		return
	}
	m.running.Set(0)
}

func (m *Monitor) RecordCycle(d time.Duration) {
	m.cycles.Inc()
	m.cycleLatency.Observe(d.Seconds())
}

// RecordQuote 记录一次报价及其展示指标
func (m *Monitor) RecordQuote(buy, sell, buyOffset, sellOffset, buyToBid, sellToAsk float64) {
	m.quotesGenerated.Inc()
	m.quotePrice.WithLabelValues("buy").Set(buy)
	m.quotePrice.WithLabelValues("sell").Set(sell)
	m.quoteOffset.WithLabelValues("buy").Set(buyOffset)
	m.quoteOffset.WithLabelValues("sell").Set(sellOffset)
	m.quoteDistance.WithLabelValues("buy").Set(buyToBid)
	m.quoteDistance.WithLabelValues("sell").Set(sellToAsk)
}

func (m *Monitor) UpdatePosition(net float64) {
	m.position.Set(net)
}

func (m *Monitor) RecordError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

// ObserveGatewayCall 实现 gateway.Observer
func (m *Monitor) ObserveGatewayCall(op string, latency time.Duration, err error) {
	m.gatewayRequests.WithLabelValues(op).Inc()
	m.gatewayLatency.WithLabelValues(op).Observe(latency.Seconds())
	if err != nil {
		m.gatewayErrors.WithLabelValues(op).Inc()
	}
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

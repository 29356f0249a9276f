// Package api 策略控制面：状态查询、启停、撤单、参数修改与实时事件推送。
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pure-market-maker/internal/engine"
	"pure-market-maker/internal/eventlog"
	"pure-market-maker/strategy"
)

// DefaultStopTimeout 停止请求等待撤单完成的最长时间
const DefaultStopTimeout = 15 * time.Second

// Controller 引擎控制接口（engine.Engine 实现）
type Controller interface {
	Start() error
	Stop(ctx context.Context) error
	CancelAll(ctx context.Context) error
	UpdateParameters(p strategy.Parameters) error
	CurrentState() engine.State
	Events() *eventlog.Log
}

// MarketView 行情视图（market.Service 实现）
type MarketView interface {
	Mid(symbol string) float64
	Staleness(symbol string) time.Duration
}

// Server HTTP + WebSocket 服务
type Server struct {
	ctrl        Controller
	metrics     http.Handler
	logger      *zap.Logger
	router      *gin.Engine
	stopTimeout time.Duration
	market      MarketView
	maxBookAge  time.Duration

	mu     sync.Mutex
	srv    *http.Server
	closed bool
}

// NewServer 创建服务并注册路由；metrics 为空时不暴露 /metrics。
func NewServer(ctrl Controller, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ctrl:        ctrl,
		metrics:     metrics,
		logger:      logger.With(zap.String("component", "api")),
		stopTimeout: DefaultStopTimeout,
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	s.RegisterRoutes(r)
	s.router = r
	return s
}

// RegisterRoutes 将处理器绑定到 gin 路由
func (s *Server) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/state", s.GetState)
		v1.POST("/start", s.Start)
		v1.POST("/stop", s.Stop)
		v1.POST("/orders/cancel-all", s.CancelAll)
		v1.PUT("/parameters", s.UpdateParameters)
		v1.GET("/market", s.GetMarket)
	}
	r.GET("/ws/events", s.StreamEvents)
	r.GET("/healthz", s.Health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// SetMarket 注册行情视图，需在开始服务前调用。
// maxBookAge > 0 时，策略运行中盘口超过该时长未更新，/healthz 返回 503。
func (s *Server) SetMarket(mv MarketView, maxBookAge time.Duration) {
	s.market = mv
	s.maxBookAge = maxBookAge
}

// Handler 返回路由，供测试和自定义 http.Server 使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe 阻塞监听；Shutdown 后返回 nil
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.srv = srv
	s.mu.Unlock()
	s.logger.Info("api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

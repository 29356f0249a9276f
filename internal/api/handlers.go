package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pure-market-maker/internal/engine"
	"pure-market-maker/strategy"
)

// GetState 当前运行状态、参数、挂单与最近日志
func (s *Server) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.CurrentState())
}

// Start Stopped -> Running
func (s *Server) Start(c *gin.Context) {
	if err := s.ctrl.Start(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_state": s.ctrl.CurrentState().RunState})
}

// Stop 等待撤单完成后返回
func (s *Server) Stop(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.stopTimeout)
	defer cancel()
	if err := s.ctrl.Stop(ctx); err != nil {
		s.logger.Warn("stop did not complete in time", zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_state": s.ctrl.CurrentState().RunState})
}

// CancelAll 撤销全部策略挂单，策略继续运行
func (s *Server) CancelAll(c *gin.Context) {
	if err := s.ctrl.CancelAll(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UpdateParameters 以当前参数为基础合并请求体中的字段；运行中返回 409
func (s *Server) UpdateParameters(c *gin.Context) {
	p := s.ctrl.CurrentState().Parameters
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctrl.UpdateParameters(p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.CurrentState().Parameters)
}

// GetMarket 中间价与盘口更新距今时长；symbol 缺省为当前策略交易对
func (s *Server) GetMarket(c *gin.Context) {
	if s.market == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "market data not available"})
		return
	}
	symbol := c.DefaultQuery("symbol", s.ctrl.CurrentState().Parameters.Symbol)
	age := s.market.Staleness(symbol)
	c.JSON(http.StatusOK, gin.H{
		"symbol":      symbol,
		"mid":         s.market.Mid(symbol),
		"book_age_ms": age.Milliseconds(),
		"stale":       s.maxBookAge > 0 && age > s.maxBookAge,
	})
}

// Health 存活检查；策略运行中而盘口过期时返回 503
func (s *Server) Health(c *gin.Context) {
	st := s.ctrl.CurrentState()
	body := gin.H{"status": "ok", "run_state": st.RunState}
	if s.market != nil {
		age := s.market.Staleness(st.Parameters.Symbol)
		body["book_age_ms"] = age.Milliseconds()
		if s.maxBookAge > 0 && age > s.maxBookAge && st.RunState == engine.StateRunning {
			body["status"] = "stale_market_data"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) fail(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, engine.ErrRejectedWhileRunning):
		status = http.StatusConflict
	case strategy.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusBadGateway
	}
	s.logger.Warn("request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

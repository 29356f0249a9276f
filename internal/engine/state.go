package engine

import (
	"errors"
	"fmt"
	"time"

	"pure-market-maker/internal/eventlog"
	"pure-market-maker/inventory"
	"pure-market-maker/market"
	"pure-market-maker/order"
	"pure-market-maker/strategy"
)

// RunState 策略运行状态；没有暂停状态。
type RunState int

const (
	StateStopped RunState = iota
	StateRunning
)

func (s RunState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrRejectedWhileRunning 运行中参数被锁定。
var ErrRejectedWhileRunning = errors.New("parameters are locked while the strategy is running")

// FatalGatewayError 系统性网关故障，强制停止策略。
type FatalGatewayError struct {
	Cause error
}

func (e *FatalGatewayError) Error() string {
	return fmt.Sprintf("fatal gateway failure: %v", e.Cause)
}

func (e *FatalGatewayError) Unwrap() error { return e.Cause }

// State 引擎状态快照；所有字段都是拷贝。
type State struct {
	RunState     RunState                  `json:"run_state"`
	Parameters   strategy.Parameters       `json:"parameters"`
	Offsets      strategy.Offsets          `json:"offsets"`
	ActiveOrders []order.Order             `json:"active_orders"`
	AwaitingFill []order.Order             `json:"awaiting_fill,omitempty"`
	OrderHistory []order.Order             `json:"order_history"`
	RecentLogs   []eventlog.Event          `json:"recent_logs"`
	LastQuotes   *strategy.Quotes          `json:"last_quotes,omitempty"`
	LastSnapshot *market.Snapshot          `json:"last_snapshot,omitempty"`
	Balances     inventory.Balances        `json:"balances,omitempty"`
	Position     inventory.PositionSummary `json:"position"`
	Cycles       int64                     `json:"cycles"`
	StartedAt    time.Time                 `json:"started_at,omitempty"`
	StopCause    string                    `json:"stop_cause,omitempty"`
	Breaker      BreakerStatus             `json:"breaker"`
}

// BreakerStatus 网关熔断器计数。
type BreakerStatus struct {
	State               string    `json:"state"`
	Threshold           int       `json:"threshold"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
	Failures            int64     `json:"failures"`
	Successes           int64     `json:"successes"`
	LastError           string    `json:"last_error,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

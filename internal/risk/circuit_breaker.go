package risk

import (
	"sync"
	"time"
)

// State 熔断器状态
type State int

const (
	// StateClosed 正常运行
	StateClosed State = iota
	// StateOpen 连续失败达到阈值，策略必须停止
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// DefaultThreshold 默认连续失败阈值
const DefaultThreshold = 5

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Threshold int // 触发熔断的连续失败次数
}

// CircuitBreaker 统计网关的连续失败；打开后保持打开，直到 Reset（策略重新启动）。
// 打开状态不会自动半开：做市引擎在熔断后停止，由人工重新启动。
type CircuitBreaker struct {
	threshold int

	state           State
	failureCount    int64
	successCount    int64
	consecutiveFail int64
	lastFailTime    time.Time
	lastErr         error
	openTime        time.Time
	now             func() time.Time

	mu sync.RWMutex
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	return &CircuitBreaker{
		threshold: config.Threshold,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Call 执行 fn 并记录结果；打开状态下直接返回 ErrOpen
func (cb *CircuitBreaker) Call(fn func() error) error {
	if cb.IsOpen() {
		return ErrOpen
	}
	err := fn()
	if err != nil {
		cb.RecordFailure(err)
	} else {
		cb.RecordSuccess()
	}
	return err
}

// RecordSuccess 成功调用清零连续失败
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.successCount++
	cb.consecutiveFail = 0
}

// RecordFailure 记录失败，返回本次是否触发熔断（Closed -> Open）
func (cb *CircuitBreaker) RecordFailure(err error) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount++
	cb.consecutiveFail++
	cb.lastFailTime = cb.now()
	cb.lastErr = err
	if cb.state == StateClosed && cb.consecutiveFail >= int64(cb.threshold) {
		cb.state = StateOpen
		cb.openTime = cb.lastFailTime
		return true
	}
	return false
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.GetState() == StateOpen
}

// Threshold 连续失败阈值
func (cb *CircuitBreaker) Threshold() int {
	return cb.threshold
}

// LastError 最近一次失败
func (cb *CircuitBreaker) LastError() error {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.lastErr
}

// CircuitBreakerMetrics 熔断器指标
type CircuitBreakerMetrics struct {
	State            State
	FailureCount     int64
	SuccessCount     int64
	ConsecutiveFails int64
	LastFailTime     time.Time
	OpenTime         time.Time
}

func (cb *CircuitBreaker) GetMetrics() CircuitBreakerMetrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return CircuitBreakerMetrics{
		State:            cb.state,
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		ConsecutiveFails: cb.consecutiveFail,
		LastFailTime:     cb.lastFailTime,
		OpenTime:         cb.openTime,
	}
}

// Reset 重置熔断器（策略启动时调用）
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.consecutiveFail = 0
	cb.lastFailTime = time.Time{}
	cb.lastErr = nil
	cb.openTime = time.Time{}
}

package config

import (
	"fmt"
)

// ErrInvalid 用于配置验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present.
// 策略参数的校验委托给 strategy.Parameters.Validate，返回的错误保留 ValidationError。
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if cfg.Engine.GatewayTimeout < 0 || cfg.Engine.MaxSnapshotAge < 0 || cfg.Engine.ShutdownTimeout < 0 || cfg.Engine.FillGracePeriod < 0 {
		return ErrInvalid("engine durations must be >= 0")
	}
	if cfg.Engine.FatalFailureThreshold < 0 {
		return ErrInvalid("engine.fatalFailureThreshold must be >= 0")
	}
	if cfg.Gateway.Mode != "paper" {
		return ErrInvalid(fmt.Sprintf("gateway.mode %q is not supported", cfg.Gateway.Mode))
	}
	if cfg.Gateway.RateLimit.RPS <= 0 || cfg.Gateway.RateLimit.Burst <= 0 {
		return ErrInvalid("gateway.rateLimit rps/burst must be > 0")
	}
	p := cfg.Gateway.Paper
	if p.Bid <= 0 || p.Ask <= 0 || p.Ask < p.Bid {
		return ErrInvalid(fmt.Sprintf("gateway.paper book must satisfy 0 < bid <= ask, got bid=%v ask=%v", p.Bid, p.Ask))
	}
	if p.Volatility < 0 || p.Interval < 0 {
		return ErrInvalid("gateway.paper volatility/interval must be >= 0")
	}
	for asset, amt := range p.Balances {
		if amt < 0 {
			return ErrInvalid(fmt.Sprintf("gateway.paper balance %s must be >= 0", asset))
		}
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return ErrInvalid("api.addr is required when api is enabled")
	}
	if len(cfg.Publisher.Brokers) > 0 && cfg.Publisher.Topic == "" {
		return ErrInvalid("publisher.topic is required when brokers are set")
	}
	if cfg.Alert.ThrottleInterval < 0 {
		return ErrInvalid("alert.throttleInterval must be >= 0")
	}
	return nil
}

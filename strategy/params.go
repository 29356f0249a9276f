package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// Parameters 纯做市策略参数；运行中不可修改，仅在 Stopped 状态下更新。
type Parameters struct {
	Symbol                  string  `yaml:"symbol" json:"symbol"`
	MaxOrderSize            float64 `yaml:"maxOrderSize" json:"max_order_size"`
	MinOrderSize            float64 `yaml:"minOrderSize" json:"min_order_size"`
	PositionUsePct          float64 `yaml:"positionUsePct" json:"position_use_pct"`   // 可用余额使用比例 (0,1]
	TickSize                float64 `yaml:"tickSize" json:"tick_size"`                // 价格最小变动单位
	InitialOffset           float64 `yaml:"initialOffset" json:"initial_offset"`      // 0.0001 = 0.01%
	MinOffset               float64 `yaml:"minOffset" json:"min_offset"`              // offset 衰减下限
	OffsetReduction         float64 `yaml:"offsetReduction" json:"offset_reduction"`  // 每个刷新周期的衰减量
	OrderRefreshTimeSeconds int     `yaml:"orderRefreshTime" json:"order_refresh_time"` // 刷新周期（秒）
}

// DefaultParameters 返回 HWTR/USDC 的默认参数。
func DefaultParameters() Parameters {
	return Parameters{
		Symbol:                  "HWTR/USDC",
		MaxOrderSize:            6000,
		MinOrderSize:            1000,
		PositionUsePct:          0.90,
		TickSize:                0.0001,
		InitialOffset:           0.0001,
		MinOffset:               0.00009,
		OffsetReduction:         0.00001,
		OrderRefreshTimeSeconds: 10,
	}
}

const (
	MinRefreshSeconds = 1
	MaxRefreshSeconds = 60
)

// ValidationError 参数校验失败；策略不会进入 Running。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// IsValidationError 判断 err 链中是否存在 ValidationError。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate 检查参数是否满足约束。
func (p Parameters) Validate() error {
	if _, _, err := SplitSymbol(p.Symbol); err != nil {
		return err
	}
	if p.MinOrderSize <= 0 {
		return invalid("minOrderSize", "must be > 0, got %v", p.MinOrderSize)
	}
	if p.MaxOrderSize < p.MinOrderSize {
		return invalid("maxOrderSize", "must be >= minOrderSize (%v), got %v", p.MinOrderSize, p.MaxOrderSize)
	}
	if p.PositionUsePct <= 0 || p.PositionUsePct > 1 {
		return invalid("positionUsePct", "must be in (0,1], got %v", p.PositionUsePct)
	}
	if p.TickSize <= 0 {
		return invalid("tickSize", "must be > 0, got %v", p.TickSize)
	}
	if p.MinOffset < 0 {
		return invalid("minOffset", "must be >= 0, got %v", p.MinOffset)
	}
	if p.InitialOffset < p.MinOffset {
		return invalid("initialOffset", "must be >= minOffset (%v), got %v", p.MinOffset, p.InitialOffset)
	}
	if p.InitialOffset >= 1 {
		return invalid("initialOffset", "must be < 1, got %v", p.InitialOffset)
	}
	if p.OffsetReduction < 0 {
		return invalid("offsetReduction", "must be >= 0, got %v", p.OffsetReduction)
	}
	if p.OrderRefreshTimeSeconds < MinRefreshSeconds || p.OrderRefreshTimeSeconds > MaxRefreshSeconds {
		return invalid("orderRefreshTime", "must be in [%d,%d], got %d",
			MinRefreshSeconds, MaxRefreshSeconds, p.OrderRefreshTimeSeconds)
	}
	return nil
}

// BaseAsset 返回交易对的基础资产，如 HWTR/USDC -> HWTR。
func (p Parameters) BaseAsset() string {
	base, _, _ := SplitSymbol(p.Symbol)
	return base
}

// QuoteAsset 返回计价资产，如 HWTR/USDC -> USDC。
func (p Parameters) QuoteAsset() string {
	_, quote, _ := SplitSymbol(p.Symbol)
	return quote
}

// SplitSymbol 按 "/" 或 "-" 拆分交易对。
func SplitSymbol(symbol string) (base, quote string, err error) {
	s := strings.TrimSpace(symbol)
	if s == "" {
		return "", "", invalid("symbol", "is required")
	}
	for _, sep := range []string{"/", "-"} {
		if parts := strings.Split(s, sep); len(parts) == 2 {
			base = strings.ToUpper(strings.TrimSpace(parts[0]))
			quote = strings.ToUpper(strings.TrimSpace(parts[1]))
			if base == "" || quote == "" {
				break
			}
			return base, quote, nil
		}
	}
	return "", "", invalid("symbol", "%q must look like BASE/QUOTE", symbol)
}

package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pure-market-maker/inventory"
	"pure-market-maker/strategy"
)

// sizePrecision 下单数量保留的小数位（向下截断）。
const sizePrecision = 8

// Sizing 下单数量约束。
type Sizing struct {
	MinOrderSize   float64
	MaxOrderSize   float64
	PositionUsePct float64
	BaseAsset      string
	QuoteAsset     string
}

// SizingFromParams 从策略参数构造。
func SizingFromParams(p strategy.Parameters) Sizing {
	return Sizing{
		MinOrderSize:   p.MinOrderSize,
		MaxOrderSize:   p.MaxOrderSize,
		PositionUsePct: p.PositionUsePct,
		BaseAsset:      p.BaseAsset(),
		QuoteAsset:     p.QuoteAsset(),
	}
}

// OrderSize 计算某一方向的下单数量（基础资产单位）。
// 买单使用计价资产余额 / 价格，卖单使用基础资产余额；
// 取 positionUsePct 比例后钳制到 [min, max]。
// 全部可用余额都不足 minOrderSize 时返回 ErrInsufficientBalance。
func (s Sizing) OrderSize(side Side, price float64, bal inventory.Balances) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("invalid price %v", price)
	}
	var (
		asset     string
		available decimal.Decimal
	)
	switch side {
	case SideBuy:
		asset = s.QuoteAsset
		available = decimal.NewFromFloat(bal.Available(asset)).DivRound(decimal.NewFromFloat(price), 16)
	case SideSell:
		asset = s.BaseAsset
		available = decimal.NewFromFloat(bal.Available(asset))
	default:
		return 0, fmt.Errorf("unknown side %q", side)
	}

	minSize := decimal.NewFromFloat(s.MinOrderSize)
	maxSize := decimal.NewFromFloat(s.MaxOrderSize)
	if available.LessThan(minSize) {
		return 0, fmt.Errorf("%w: %s available %v covers %s < minOrderSize %v",
			ErrInsufficientBalance, asset, bal.Available(asset),
			available.Truncate(sizePrecision).String(), s.MinOrderSize)
	}

	size := available.Mul(decimal.NewFromFloat(s.PositionUsePct)).Truncate(sizePrecision)
	if size.LessThan(minSize) {
		size = minSize
	}
	if size.GreaterThan(maxSize) {
		size = maxSize
	}
	return size.InexactFloat64(), nil
}

package inventory

import "strings"

// Balance 单个资产的余额。
type Balance struct {
	Available float64 `json:"available"`
	Total     float64 `json:"total"`
}

// Balances 资产 -> 余额。资产名统一大写。
type Balances map[string]Balance

// Available 返回资产可用余额；缺失视为 0。
func (b Balances) Available(asset string) float64 {
	if b == nil {
		return 0
	}
	return b[strings.ToUpper(asset)].Available
}

// Clone 返回拷贝，供只读快照使用。
func (b Balances) Clone() Balances {
	if b == nil {
		return nil
	}
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

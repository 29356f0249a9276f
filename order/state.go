package order

import "time"

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status represents order lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"   // 已提交，等待网关确认
	StatusResting   Status = "RESTING"   // 挂单中
	StatusCancelled Status = "CANCELLED" // 已撤销（终态）
	StatusFilled    Status = "FILLED"    // 完全成交（终态）
)

// Order holds a strategy order. ID 由网关分配。
type Order struct {
	ID         string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Size       float64   `json:"size"`
	Price      float64   `json:"price"`
	FilledSize float64   `json:"filled_size"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// Fill 网关回报的一笔成交。
type Fill struct {
	OrderID string    `json:"order_id"`
	Price   float64   `json:"price"`
	Size    float64   `json:"size"`
	Time    time.Time `json:"time"`
}

// Remaining 未成交数量。
func (o Order) Remaining() float64 {
	if r := o.Size - o.FilledSize; r > 0 {
		return r
	}
	return 0
}

package order

import "sync"

// DefaultHistorySize 终态订单历史的默认容量。
const DefaultHistorySize = 200

// Book 记录已进入终态的订单（只读历史），超出容量时丢弃最旧的。
type Book struct {
	mu     sync.RWMutex
	orders []Order
	limit  int
}

func NewBook(limit int) *Book {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &Book{orders: make([]Order, 0, limit), limit: limit}
}

// Add 追加一条历史。
func (b *Book) Add(o Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.orders) == b.limit {
		copy(b.orders, b.orders[1:])
		b.orders = b.orders[:b.limit-1]
	}
	b.orders = append(b.orders, o)
}

func (b *Book) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := len(b.orders) - 1; i >= 0; i-- {
		if b.orders[i].ID == id {
			return b.orders[i], true
		}
	}
	return Order{}, false
}

// List 返回全部历史（拷贝，旧 -> 新）。
func (b *Book) List() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Order, len(b.orders))
	copy(res, b.orders)
	return res
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

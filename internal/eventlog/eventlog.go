// Package eventlog 保存策略最近的事件，供状态查询与实时推送使用。
package eventlog

import (
	"sync"
	"time"
)

// DefaultCapacity 环形缓冲保留的事件条数。
const DefaultCapacity = 50

// Kind 事件类型。
type Kind string

const (
	StrategyStarted Kind = "STRATEGY_STARTED"
	StrategyStopped Kind = "STRATEGY_STOPPED"
	QuoteComputed   Kind = "QUOTE_COMPUTED"
	OrderPlaced     Kind = "ORDER_PLACED"
	OrderCancelled  Kind = "ORDER_CANCELLED"
	OrderFilled     Kind = "ORDER_FILLED"
	Error           Kind = "ERROR"
)

// Event 一条策略事件。Seq 单调递增。
type Event struct {
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Kind    Kind           `json:"kind"`
	Symbol  string         `json:"symbol,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Sink 接收每条新事件（日志、Kafka、WebSocket 等）。
// Publish 在追加事件的 goroutine 中同步调用，实现方不应阻塞。
type Sink interface {
	Publish(Event)
}

// SinkFunc 函数适配器。
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Log 固定容量的事件环形缓冲，并发安全。
type Log struct {
	mu    sync.RWMutex
	buf   []Event
	next  int
	full  bool
	seq   uint64
	sinks []Sink
	subs  map[int]chan Event
	subID int
	now   func() time.Time
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:  make([]Event, capacity),
		subs: make(map[int]chan Event),
		now:  time.Now,
	}
}

// AddSink 注册一个事件出口。
func (l *Log) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Append 追加事件，分配 Seq 与时间戳后返回。超出容量时覆盖最旧的一条。
func (l *Log) Append(kind Kind, symbol, msg string, fields map[string]any) Event {
	l.mu.Lock()
	l.seq++
	e := Event{
		Seq:     l.seq,
		Time:    l.now(),
		Kind:    kind,
		Symbol:  symbol,
		Message: msg,
		Fields:  fields,
	}
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	sinks := l.sinks
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.mu.Unlock()

	for _, s := range sinks {
		s.Publish(e)
	}
	return e
}

// Recent 返回最近的事件，旧 -> 新。
func (l *Log) Recent() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.full {
		out := make([]Event, l.next)
		copy(out, l.buf[:l.next])
		return out
	}
	out := make([]Event, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	out = append(out, l.buf[:l.next]...)
	return out
}

// Len 当前保留的事件数。
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.buf)
	}
	return l.next
}

// Subscribe 订阅新事件；慢订阅者丢弃事件。返回的 cancel 关闭通道。
func (l *Log) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultCapacity
	}
	ch := make(chan Event, buffer)
	l.mu.Lock()
	id := l.subID
	l.subID++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

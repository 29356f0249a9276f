package market

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Service 维护各交易对的最新盘口，并向订阅者广播。
type Service struct {
	pub   *Publisher
	mu    sync.RWMutex
	depth map[string]Depth
	now   func() time.Time
}

func NewService(pub *Publisher) *Service {
	if pub == nil {
		pub = NewPublisher()
	}
	return &Service{
		pub:   pub,
		depth: make(map[string]Depth),
		now:   time.Now,
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Publisher 返回底层分发器。
func (s *Service) Publisher() *Publisher {
	return s.pub
}

// OnDepth 更新并广播。
func (s *Service) OnDepth(symbol string, bid, ask float64, ts time.Time) {
	key := normalize(symbol)
	s.mu.Lock()
	d := s.depth[key]
	d.Symbol = key
	d.Update(bid, ask, ts)
	s.depth[key] = d
	s.mu.Unlock()
	s.pub.PublishDepth(d)
}

// Mid 返回当前中间价；若缺失则返回 0。
func (s *Service) Mid(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depth[normalize(symbol)]
	if !ok || !d.Ready() {
		return 0
	}
	return (d.Bid + d.Ask) / 2
}

// Staleness 返回距离上次更新的时间间隔；如无数据返回正无穷。
func (s *Service) Staleness(symbol string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depth[normalize(symbol)]
	if !ok {
		return time.Hour * 24 * 365
	}
	return s.now().Sub(d.Time)
}

// Snapshot 返回最新快照。maxAge > 0 时超过该时长视为过期。
func (s *Service) Snapshot(symbol string, maxAge time.Duration) (Snapshot, error) {
	key := normalize(symbol)
	s.mu.RLock()
	d, ok := s.depth[key]
	s.mu.RUnlock()
	if !ok || !d.Ready() {
		return Snapshot{}, &MarketDataError{Symbol: symbol, Err: ErrNoData}
	}
	if age := s.now().Sub(d.Time); maxAge > 0 && age > maxAge {
		return Snapshot{}, &MarketDataError{
			Symbol: symbol,
			Err:    fmt.Errorf("%w: last update %s ago", ErrStaleData, age.Truncate(time.Millisecond)),
		}
	}
	snap := d.Snapshot()
	snap.Symbol = symbol
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

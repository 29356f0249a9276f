package market

import "sync"

// Publisher 盘口分发器；每个订阅者只缓冲一条，慢订阅者拿到的总是最新盘口。
type Publisher struct {
	mu        sync.Mutex
	depthSubs []chan Depth
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) SubscribeDepth() <-chan Depth {
	ch := make(chan Depth, 1)
	p.mu.Lock()
	p.depthSubs = append(p.depthSubs, ch)
	p.mu.Unlock()
	return ch
}

// PublishDepth 不阻塞；缓冲已满时替换掉未读的旧盘口
func (p *Publisher) PublishDepth(d Depth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.depthSubs {
		select {
		case ch <- d:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- d:
		default:
		}
	}
}

// Package publisher 将策略事件导出到 Kafka，供下游看板和审计使用。
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"pure-market-maker/internal/eventlog"
)

const (
	defaultBuffer       = 256
	defaultWriteTimeout = 5 * time.Second
)

// messageWriter kafka.Writer 的子集，测试中可替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config Kafka 导出配置
type Config struct {
	Brokers      []string
	Topic        string
	Buffer       int           // 待发送事件缓冲，满时丢弃
	WriteTimeout time.Duration // 单次写入超时
}

// Kafka 异步事件发布器，实现 eventlog.Sink。
// Publish 不阻塞；后台 goroutine 按顺序写入，以 symbol 作为消息 key。
type Kafka struct {
	w       messageWriter
	topic   string
	timeout time.Duration
	logger  *zap.Logger

	queue chan eventlog.Event
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewKafka 创建发布器。brokers 为空时返回错误。
func NewKafka(cfg Config, logger *zap.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafka(w, cfg, logger), nil
}

func newKafka(w messageWriter, cfg Config, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	k := &Kafka{
		w:       w,
		topic:   cfg.Topic,
		timeout: cfg.WriteTimeout,
		logger:  logger.With(zap.String("component", "kafka_publisher"), zap.String("topic", cfg.Topic)),
		queue:   make(chan eventlog.Event, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go k.run()
	return k
}

// Publish 入队；队列满或已关闭时丢弃
func (k *Kafka) Publish(ev eventlog.Event) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	select {
	case k.queue <- ev:
	default:
		k.dropped++
		k.logger.Warn("event dropped, queue full", zap.Uint64("seq", ev.Seq), zap.String("event", string(ev.Kind)))
	}
}

// Dropped 因队列满丢弃的事件数
func (k *Kafka) Dropped() int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dropped
}

func (k *Kafka) run() {
	defer close(k.done)
	for ev := range k.queue {
		msg, err := Message(ev)
		if err != nil {
			k.logger.Error("encode event failed", zap.Uint64("seq", ev.Seq), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
		err = k.w.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			k.logger.Warn("write event failed", zap.Uint64("seq", ev.Seq), zap.Error(err))
		}
	}
}

// Close 停止接收新事件，发送完队列中剩余事件后关闭 writer。
func (k *Kafka) Close(ctx context.Context) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.queue)
	k.mu.Unlock()

	select {
	case <-k.done:
	case <-ctx.Done():
		k.w.Close()
		return ctx.Err()
	}
	return k.w.Close()
}

// Message 将事件编码为 Kafka 消息：key 为 symbol，value 为 JSON。
func Message(ev eventlog.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %d: %w", ev.Seq, err)
	}
	return kafka.Message{
		Key:   []byte(ev.Symbol),
		Value: value,
		Time:  ev.Time,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}, nil
}

package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pure-market-maker/internal/eventlog"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
	block  chan struct{}
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestMessage(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := Message(eventlog.Event{
		Seq:     7,
		Time:    ts,
		Kind:    eventlog.OrderPlaced,
		Symbol:  "HWTR/USDC",
		Message: "order placed",
		Fields:  map[string]any{"side": "BUY"},
	})
	require.NoError(t, err)

	assert.Equal(t, "HWTR/USDC", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "ORDER_PLACED", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ORDER_PLACED", decoded["kind"])
	assert.Equal(t, float64(7), decoded["seq"])
	assert.Equal(t, "BUY", decoded["fields"].(map[string]any)["side"])
}

func TestMessageUnsupportedField(t *testing.T) {
	_, err := Message(eventlog.Event{Fields: map[string]any{"ch": make(chan int)}})
	assert.Error(t, err)
}

func TestKafkaPublishAndClose(t *testing.T) {
	w := &fakeWriter{}
	k := newKafka(w, Config{Topic: "events"}, nil)

	log := eventlog.New(10)
	log.AddSink(k)
	log.Append(eventlog.StrategyStarted, "HWTR/USDC", "strategy started", nil)
	log.Append(eventlog.QuoteComputed, "HWTR/USDC", "quotes computed", nil)

	require.NoError(t, k.Close(context.Background()))
	assert.Equal(t, 2, w.count())
	assert.True(t, w.closed)

	// 关闭后丢弃
	k.Publish(eventlog.Event{Seq: 99})
	assert.Equal(t, 2, w.count())
	assert.NoError(t, k.Close(context.Background()))
}

func TestKafkaDropsWhenQueueFull(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	k := newKafka(w, Config{Topic: "events", Buffer: 1}, nil)

	// 第一条被后台 goroutine 取走并阻塞，第二条占满队列，之后的全部丢弃
	for i := 0; i < 10; i++ {
		k.Publish(eventlog.Event{Seq: uint64(i)})
	}
	assert.Eventually(t, func() bool { return k.Dropped() >= 8 }, time.Second, 5*time.Millisecond)

	close(w.block)
	require.NoError(t, k.Close(context.Background()))
	assert.Equal(t, int64(10), int64(w.count())+k.Dropped())
}

func TestKafkaWriteErrorsDoNotStop(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	k := newKafka(w, Config{Topic: "events"}, nil)
	k.Publish(eventlog.Event{Seq: 1})
	k.Publish(eventlog.Event{Seq: 2})
	require.NoError(t, k.Close(context.Background()))
	assert.Equal(t, 0, w.count())
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	_, err := NewKafka(Config{Topic: "events"}, nil)
	assert.Error(t, err)
	_, err = NewKafka(Config{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}

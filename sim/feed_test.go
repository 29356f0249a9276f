package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type depth struct {
	symbol   string
	bid, ask float64
}

type recordingSink struct {
	mu   sync.Mutex
	seen []depth
}

func (r *recordingSink) OnDepth(symbol string, bid, ask float64, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, depth{symbol, bid, ask})
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestFeedStepKeepsBookUncrossed(t *testing.T) {
	f, err := NewFeed(FeedConfig{
		Symbol:     "HWTR/USDC",
		Bid:        0.8150,
		Ask:        0.8160,
		Volatility: 0.01,
		TickSize:   0.0001,
		Seed:       42,
	}, &recordingSink{}, nil)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		bid, ask := f.Step()
		require.Greater(t, bid, 0.0)
		require.Greater(t, ask, bid, "step %d", i)
	}
}

func TestFeedDeterministicWithSeed(t *testing.T) {
	cfg := FeedConfig{Symbol: "HWTR/USDC", Bid: 1, Ask: 1.01, Volatility: 0.001, Seed: 7}
	a, err := NewFeed(cfg, &recordingSink{}, nil)
	require.NoError(t, err)
	b, err := NewFeed(cfg, &recordingSink{}, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		ab, aa := a.Step()
		bb, ba := b.Step()
		assert.Equal(t, ab, bb)
		assert.Equal(t, aa, ba)
	}
}

func TestFeedZeroVolatilityIsFlat(t *testing.T) {
	f, err := NewFeed(FeedConfig{Symbol: "X/Y", Bid: 2, Ask: 2.5, Seed: 1}, &recordingSink{}, nil)
	require.NoError(t, err)
	bid, ask := f.Step()
	assert.InDelta(t, 2.0, bid, 1e-12)
	assert.InDelta(t, 2.5, ask, 1e-12)
}

func TestFeedRunPublishes(t *testing.T) {
	sink := &recordingSink{}
	f, err := NewFeed(FeedConfig{
		Symbol:   "HWTR/USDC",
		Bid:      0.815,
		Ask:      0.816,
		Interval: 5 * time.Millisecond,
		Seed:     3,
	}, sink, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	assert.Eventually(t, func() bool { return sink.len() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "HWTR/USDC", sink.seen[0].symbol)
}

func TestNewFeedValidates(t *testing.T) {
	_, err := NewFeed(FeedConfig{Bid: 1, Ask: 2}, &recordingSink{}, nil)
	assert.Error(t, err)
	_, err = NewFeed(FeedConfig{Symbol: "X/Y", Bid: 2, Ask: 1}, &recordingSink{}, nil)
	assert.Error(t, err)
	_, err = NewFeed(FeedConfig{Symbol: "X/Y", Bid: 1, Ask: 2, Volatility: -1}, &recordingSink{}, nil)
	assert.Error(t, err)
}

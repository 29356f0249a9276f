package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceMidAndStaleness(t *testing.T) {
	svc := NewService(nil)
	svc.OnDepth("HWTR/USDC", 0.8150, 0.8160, time.Now())
	assert.InDelta(t, 0.8155, svc.Mid("hwtr/usdc"), 1e-12)
	if st := svc.Staleness("HWTR/USDC"); st < 0 {
		t.Fatalf("expected non-negative staleness, got %v", st)
	}
}

func TestServiceSnapshot(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(nil)
	svc.now = func() time.Time { return now }

	_, err := svc.Snapshot("HWTR/USDC", time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))

	svc.OnDepth("HWTR/USDC", 0.8150, 0.8160, now.Add(-500*time.Millisecond))
	snap, err := svc.Snapshot("HWTR/USDC", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0.8150, snap.BestBid)
	assert.Equal(t, 0.8160, snap.BestAsk)

	now = now.Add(2 * time.Second)
	_, err = svc.Snapshot("HWTR/USDC", time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaleData))
	assert.True(t, IsMarketDataError(err))

	// maxAge 为 0 时不检查过期
	_, err = svc.Snapshot("HWTR/USDC", 0)
	assert.NoError(t, err)
}

func TestServiceSnapshotCrossed(t *testing.T) {
	svc := NewService(nil)
	svc.OnDepth("HWTR/USDC", 0.8150, 0.8100, time.Now())
	_, err := svc.Snapshot("HWTR/USDC", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCrossedBook))
}

func TestServicePublishesDepth(t *testing.T) {
	pub := NewPublisher()
	ch := pub.SubscribeDepth()
	svc := NewService(pub)
	svc.OnDepth("HWTR/USDC", 1, 2, time.Now())
	select {
	case d := <-ch:
		assert.Equal(t, "HWTR/USDC", d.Symbol)
		assert.Equal(t, 1.0, d.Bid)
	default:
		t.Fatalf("expected depth published")
	}
}

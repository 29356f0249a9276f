package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotSpread(t *testing.T) {
	s := Snapshot{Symbol: "HWTR/USDC", BestBid: 0.8150, BestAsk: 0.8160}
	assert.InDelta(t, 0.0010, s.Spread(), 1e-12)
	assert.InDelta(t, 0.0010/0.8150, s.SpreadPct(), 1e-12)
	assert.InDelta(t, 0.8155, s.Mid(), 1e-12)
	assert.NoError(t, s.Validate())
}

func TestSnapshotValidate(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		want error
	}{
		{"crossed", Snapshot{BestBid: 0.8150, BestAsk: 0.8100}, ErrCrossedBook},
		{"missing bid", Snapshot{BestBid: 0, BestAsk: 0.8100}, ErrNoData},
		{"negative ask", Snapshot{BestBid: 1, BestAsk: -1}, ErrNoData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.snap.Validate()
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.True(t, IsMarketDataError(err))
		})
	}

	// 锁定盘口（bid == ask）不算交叉
	assert.NoError(t, Snapshot{BestBid: 1, BestAsk: 1}.Validate())
	assert.Zero(t, Snapshot{}.SpreadPct())
}

package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pure-market-maker/market"
	"pure-market-maker/order"
)

func newTestPaper() *Paper {
	return NewPaper(PaperConfig{
		Balances: map[string]float64{"hwtr": 12500.45, "usdc": 8750.32},
	}, nil, nil)
}

func TestPaperSnapshot(t *testing.T) {
	p := newTestPaper()
	_, err := p.MarketSnapshot(context.Background(), "HWTR/USDC")
	require.ErrorIs(t, err, market.ErrNoData)

	p.OnDepth("HWTR/USDC", 0.8150, 0.8160, time.Now())
	snap, err := p.MarketSnapshot(context.Background(), "HWTR/USDC")
	require.NoError(t, err)
	assert.Equal(t, 0.8150, snap.BestBid)
	assert.Equal(t, 0.8160, snap.BestAsk)
}

func TestPaperPlaceReservesAndCancelReleases(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	id, err := p.PlaceOrder(ctx, "HWTR/USDC", order.SideSell, 6000, 0.8151)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	bal, _ := p.Balances(ctx)
	assert.InDelta(t, 6500.45, bal.Available("HWTR"), 1e-9)
	assert.InDelta(t, 12500.45, bal["HWTR"].Total, 1e-9)

	require.NoError(t, p.CancelOrder(ctx, id))
	bal, _ = p.Balances(ctx)
	assert.InDelta(t, 12500.45, bal.Available("HWTR"), 1e-9)

	err = p.CancelOrder(ctx, id)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPaperInsufficientBalance(t *testing.T) {
	p := NewPaper(PaperConfig{Balances: map[string]float64{"USDC": 40}}, nil, nil)
	_, err := p.PlaceOrder(context.Background(), "HWTR/USDC", order.SideBuy, 1000, 0.8159)
	assert.ErrorIs(t, err, order.ErrInsufficientBalance)
}

func TestPaperFillsWhenBookCrosses(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()
	p.OnDepth("HWTR/USDC", 0.8150, 0.8160, time.Now())

	buyID, err := p.PlaceOrder(ctx, "HWTR/USDC", order.SideBuy, 1000, 0.8159)
	require.NoError(t, err)
	sellID, err := p.PlaceOrder(ctx, "HWTR/USDC", order.SideSell, 1000, 0.8170)
	require.NoError(t, err)

	// ask 下探到买单价，买单成交，卖单不动
	p.OnDepth("HWTR/USDC", 0.8140, 0.8158, time.Now())

	select {
	case f := <-p.Fills():
		assert.Equal(t, buyID, f.OrderID)
		assert.Equal(t, 1000.0, f.Size)
		assert.Equal(t, 0.8159, f.Price)
	case <-time.After(time.Second):
		t.Fatal("expected a fill")
	}
	assert.Equal(t, 1, p.OpenOrders())

	bal, _ := p.Balances(ctx)
	assert.InDelta(t, 13500.45, bal["HWTR"].Total, 1e-9)
	assert.InDelta(t, 8750.32-815.9, bal["USDC"].Total, 1e-9)

	require.NoError(t, p.CancelOrder(ctx, sellID))
}

func TestPaperDefersFillWhenChannelFull(t *testing.T) {
	p := NewPaper(PaperConfig{
		Balances:   map[string]float64{"hwtr": 12500.45, "usdc": 8750.32},
		FillBuffer: 1,
	}, nil, nil)
	ctx := context.Background()
	p.OnDepth("HWTR/USDC", 0.8150, 0.8160, time.Now())

	first, err := p.PlaceOrder(ctx, "HWTR/USDC", order.SideBuy, 1000, 0.8159)
	require.NoError(t, err)
	second, err := p.PlaceOrder(ctx, "HWTR/USDC", order.SideBuy, 1000, 0.8158)
	require.NoError(t, err)

	// 两个买单同时穿价，通道只能放下一条回报
	p.OnDepth("HWTR/USDC", 0.8140, 0.8150, time.Now())
	assert.Equal(t, 1, p.OpenOrders())
	assert.Equal(t, 1, p.deferred)

	var got []string
	recv := func() {
		select {
		case f := <-p.Fills():
			got = append(got, f.OrderID)
		case <-time.After(time.Second):
			t.Fatal("expected a fill")
		}
	}
	recv()

	// 通道腾出空间后，下一次盘口更新补上成交
	p.OnDepth("HWTR/USDC", 0.8140, 0.8150, time.Now())
	recv()
	assert.ElementsMatch(t, []string{first, second}, got)
	assert.Equal(t, 0, p.OpenOrders())

	bal, err := p.Balances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 14500.45, bal.Available("HWTR"), 1e-9)
}

func TestPaperFailNext(t *testing.T) {
	p := newTestPaper()
	boom := errors.New("boom")
	p.FailNext("balances", boom)

	_, err := p.Balances(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = p.Balances(context.Background())
	assert.NoError(t, err)
}

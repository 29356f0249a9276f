package monitor

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordQuote(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordQuote(0.8159, 0.8151, 0.0001, 0.0001, 0.0009, 0.0009)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotesGenerated))
	assert.Equal(t, 0.8159, testutil.ToFloat64(m.quotePrice.WithLabelValues("buy")))
	assert.Equal(t, 0.8151, testutil.ToFloat64(m.quotePrice.WithLabelValues("sell")))
	assert.Equal(t, 0.0001, testutil.ToFloat64(m.quoteOffset.WithLabelValues("sell")))
}

func TestOrderCounters(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordOrderPlaced()
	m.RecordOrderPlaced()
	m.RecordOrderCanceled()
	m.RecordOrderFilled(500, false)
	m.RecordOrderFilled(500, true)
	m.RecordOrderRejected("place", "BUY")
	m.UpdateActiveOrders(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCanceled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersFilled))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.filledVolume))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersRejected.WithLabelValues("place", "BUY")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeOrders))
}

func TestGatewayObserver(t *testing.T) {
	m := New(DefaultConfig())
	m.ObserveGatewayCall("place_order", 10*time.Millisecond, nil)
	m.ObserveGatewayCall("place_order", 10*time.Millisecond, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gatewayRequests.WithLabelValues("place_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayErrors.WithLabelValues("place_order")))
}

func TestBookAndRunning(t *testing.T) {
	m := New(DefaultConfig())
	m.UpdateBook(100, 101)
	m.SetRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.spread))
	assert.InDelta(t, 0.01, testutil.ToFloat64(m.spreadPct), 1e-12)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.running))
	m.SetRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.running))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordCycle(20 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mm_quoter_cycles_total 1"))
}

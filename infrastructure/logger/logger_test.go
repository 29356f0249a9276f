package logger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pure-market-maker/internal/eventlog"
)

func TestNewRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewWithFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:      "debug",
		Outputs:    []string{"file"},
		OutputFile: filepath.Join(dir, "mm.log"),
		ErrorFile:  filepath.Join(dir, "mm.err.log"),
		Format:     "json",
	}
	l, err := New(cfg)
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Close()
}

func TestPublishMirrorsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	l.Publish(eventlog.Event{
		Seq:     7,
		Time:    time.Now(),
		Kind:    eventlog.OrderPlaced,
		Symbol:  "HWTR/USDC",
		Message: "placed BUY 6000 @ 0.8159",
		Fields:  map[string]any{"side": "BUY"},
	})
	l.Publish(eventlog.Event{Seq: 8, Kind: eventlog.Error, Message: "insufficient balance"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "ORDER_PLACED", ctx["event"])
	assert.Equal(t, "HWTR/USDC", ctx["symbol"])
	assert.Equal(t, uint64(7), ctx["seq"])
	assert.Equal(t, "BUY", ctx["side"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestLogOrderAndError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core)).WithFields(map[string]interface{}{"env": "test"})

	l.LogOrder("placed", "ord-1", map[string]interface{}{"price": 0.8159})
	l.LogError(errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "ord-1", entries[0].ContextMap()["order_id"])
	assert.Equal(t, "test", entries[0].ContextMap()["env"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

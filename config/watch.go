package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"pure-market-maker/strategy"
)

// DefaultCooldown 两次重载的最小间隔，编辑器保存时常触发多次写事件
const DefaultCooldown = time.Second

// Watcher 基于 fsnotify 监听配置文件，变化后重新加载并回调。
// 监听所在目录而非文件本身，以兼容“写临时文件再 rename”的保存方式。
type Watcher struct {
	path     string
	cooldown time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	mu         sync.Mutex
	lastReload time.Time
}

func NewWatcher(path string, cooldown time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}
	return &Watcher{path: abs, cooldown: cooldown, logger: logger, watcher: fw}, nil
}

// Run 阻塞直到 ctx 结束；加载失败的配置被记录并忽略。
func (w *Watcher) Run(ctx context.Context, onUpdate func(AppConfig)) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.reload(onUpdate)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(onUpdate func(AppConfig)) {
	w.mu.Lock()
	if !w.lastReload.IsZero() && time.Since(w.lastReload) < w.cooldown {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.path))
	if onUpdate != nil {
		onUpdate(cfg)
	}
}

// ParameterUpdater 接收新的策略参数（engine.Engine 实现）
type ParameterUpdater interface {
	UpdateParameters(strategy.Parameters) error
}

// ApplyStrategy 返回把 strategy 段应用到引擎的回调；运行中被拒绝时记录告警。
func ApplyStrategy(u ParameterUpdater, logger *zap.Logger) func(AppConfig) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(cfg AppConfig) {
		if err := u.UpdateParameters(cfg.Strategy); err != nil {
			logger.Warn("strategy parameters not applied",
				zap.String("symbol", cfg.Strategy.Symbol),
				zap.Error(err))
			return
		}
		logger.Info("strategy parameters applied", zap.String("symbol", cfg.Strategy.Symbol))
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pure-market-maker/config"
	"pure-market-maker/gateway"
	"pure-market-maker/infrastructure/alert"
	"pure-market-maker/infrastructure/logger"
	"pure-market-maker/infrastructure/monitor"
	"pure-market-maker/infrastructure/publisher"
	"pure-market-maker/internal/api"
	"pure-market-maker/internal/engine"
	"pure-market-maker/market"
	"pure-market-maker/sim"
)

func main() {
	cfgPath := flag.String("config", "configs/quoter.yaml", "配置文件路径")
	autostart := flag.Bool("autostart", false, "启动后立即开始报价")
	watch := flag.Bool("watch", true, "监听配置文件变化，停止状态下应用新的策略参数")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	if err := run(cfg, *cfgPath, *autostart, *watch, lg); err != nil {
		lg.Error("quoter exited with error", zap.Error(err))
		lg.Close()
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, cfgPath string, autostart, watch bool, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mon := monitor.New(cfg.Metrics)

	// paper 交易所 + 随机游走盘口
	mkt := market.NewService(market.NewPublisher())
	paper := gateway.NewPaper(gateway.PaperConfig{
		Balances:       cfg.Gateway.Paper.Balances,
		MaxSnapshotAge: cfg.Engine.MaxSnapshotAge,
	}, mkt, lg.Named("paper"))
	feed, err := sim.NewFeed(sim.FeedConfig{
		Symbol:     cfg.Strategy.Symbol,
		Bid:        cfg.Gateway.Paper.Bid,
		Ask:        cfg.Gateway.Paper.Ask,
		Volatility: cfg.Gateway.Paper.Volatility,
		TickSize:   cfg.Strategy.TickSize,
		Interval:   cfg.Gateway.Paper.Interval,
	}, paper, lg.Logger)
	if err != nil {
		return err
	}

	// 装饰顺序：超时在最外层，包含限流等待
	var gw gateway.Gateway = paper
	gw = gateway.Instrumented(gw, mon)
	gw = gateway.Limited(gw, gateway.NewLimiter(cfg.Gateway.RateLimit.RPS, cfg.Gateway.RateLimit.Burst))
	gw = gateway.WithTimeout(gw, cfg.Engine.GatewayTimeout)

	alerts := alert.NewManager(nil, cfg.Alert.ThrottleInterval)
	alerts.AddChannel(alert.NewZapChannel("log", lg.Logger))
	lg.Info("alert channels", zap.Strings("channels", alerts.Channels()))

	engCfg := engine.DefaultConfig()
	if cfg.Engine.FatalFailureThreshold > 0 {
		engCfg.FatalFailureThreshold = cfg.Engine.FatalFailureThreshold
	}
	if cfg.Engine.ShutdownTimeout > 0 {
		engCfg.ShutdownTimeout = cfg.Engine.ShutdownTimeout
	}
	if cfg.Engine.FillGracePeriod > 0 {
		engCfg.FillGracePeriod = cfg.Engine.FillGracePeriod
	}
	eng, err := engine.New(engCfg, cfg.Strategy, engine.Components{
		Gateway: gw,
		Fills:   paper,
		Logger:  lg,
		Monitor: mon,
		Alerts:  alerts,
	})
	if err != nil {
		return err
	}

	var kafkaSink *publisher.Kafka
	if len(cfg.Publisher.Brokers) > 0 {
		kafkaSink, err = publisher.NewKafka(publisher.Config{
			Brokers: cfg.Publisher.Brokers,
			Topic:   cfg.Publisher.Topic,
		}, lg.Logger)
		if err != nil {
			return err
		}
		eng.Events().AddSink(kafkaSink)
		lg.Info("kafka event export enabled",
			zap.Strings("brokers", cfg.Publisher.Brokers),
			zap.String("topic", cfg.Publisher.Topic))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := feed.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	// 盘口指标在报价周期之间也保持更新
	depth := mkt.Publisher().SubscribeDepth()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case d := <-depth:
				mon.UpdateBook(d.Bid, d.Ask)
			}
		}
	})

	var srv *api.Server
	if cfg.API.Enabled {
		srv = api.NewServer(eng, mon.Handler(), lg.Logger)
		srv.SetMarket(mkt, cfg.Engine.MaxSnapshotAge)
		g.Go(func() error { return srv.ListenAndServe(cfg.API.Addr) })
	}

	if watch {
		w, err := config.NewWatcher(cfgPath, config.DefaultCooldown, lg.Logger)
		if err != nil {
			lg.Warn("config watcher disabled", zap.Error(err))
		} else {
			g.Go(func() error {
				w.Run(gctx, config.ApplyStrategy(eng, lg.Logger))
				return nil
			})
		}
	}

	if autostart {
		if err := eng.Start(); err != nil {
			return err
		}
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("sd_notify READY failed", zap.Error(err))
	} else if ok {
		lg.Info("sd_notify READY sent")
	}
	lg.Info("quoter ready",
		zap.String("env", cfg.Env),
		zap.String("symbol", cfg.Strategy.Symbol),
		zap.Bool("autostart", autostart),
		zap.Bool("api", cfg.API.Enabled))

	<-gctx.Done()
	lg.Info("shutting down")
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	// 先停策略（撤单），再关 API 与事件导出
	shutdownCtx, cancel := context.WithTimeout(context.Background(), engCfg.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := eng.Stop(shutdownCtx); err != nil {
		lg.Error("engine stop incomplete", zap.Error(err))
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("api shutdown", zap.Error(err))
		}
	}
	err = g.Wait()
	if kafkaSink != nil {
		if cerr := kafkaSink.Close(shutdownCtx); cerr != nil {
			lg.Warn("kafka publisher close", zap.Error(cerr))
		}
	}
	return err
}

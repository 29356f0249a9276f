package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pure-market-maker/infrastructure/logger"
	"pure-market-maker/infrastructure/monitor"
	"pure-market-maker/strategy"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string              `yaml:"env"`
	Strategy  strategy.Parameters `yaml:"strategy"`
	Engine    EngineConfig        `yaml:"engine"`
	Gateway   GatewayConfig       `yaml:"gateway"`
	Logger    logger.Config       `yaml:"logger"`
	API       APIConfig           `yaml:"api"`
	Metrics   monitor.Config      `yaml:"metrics"`
	Publisher PublisherConfig     `yaml:"publisher"`
	Alert     AlertConfig         `yaml:"alert"`
}

type EngineConfig struct {
	GatewayTimeout        time.Duration `yaml:"gatewayTimeout"`        // 单次网关调用超时
	FatalFailureThreshold int           `yaml:"fatalFailureThreshold"` // 连续网关失败阈值
	MaxSnapshotAge        time.Duration `yaml:"maxSnapshotAge"`        // 行情过期阈值，0 不检查
	ShutdownTimeout       time.Duration `yaml:"shutdownTimeout"`
	FillGracePeriod       time.Duration `yaml:"fillGracePeriod"` // 撤单返回订单不存在后等待成交回报
}

type GatewayConfig struct {
	Mode      string          `yaml:"mode"` // 目前只支持 paper
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Paper     PaperConfig     `yaml:"paper"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// PaperConfig 模拟盘口与初始余额。
type PaperConfig struct {
	Balances   map[string]float64 `yaml:"balances"`
	Bid        float64            `yaml:"bid"`
	Ask        float64            `yaml:"ask"`
	Volatility float64            `yaml:"volatility"` // 每步相对波动
	Interval   time.Duration      `yaml:"interval"`   // 盘口更新间隔
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PublisherConfig Kafka 事件导出；brokers 为空时关闭。
type PublisherConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AlertConfig struct {
	ThrottleInterval time.Duration `yaml:"throttleInterval"`
}

// Default 返回默认配置，文件中缺失的字段保持默认值。
func Default() AppConfig {
	return AppConfig{
		Env:      "dev",
		Strategy: strategy.DefaultParameters(),
		Engine: EngineConfig{
			GatewayTimeout:        5 * time.Second,
			FatalFailureThreshold: 5,
			MaxSnapshotAge:        30 * time.Second,
			ShutdownTimeout:       10 * time.Second,
			FillGracePeriod:       5 * time.Second,
		},
		Gateway: GatewayConfig{
			Mode:      "paper",
			RateLimit: RateLimitConfig{RPS: 10, Burst: 5},
			Paper: PaperConfig{
				Balances:   map[string]float64{"HWTR": 12500.45, "USDC": 8750.32},
				Bid:        0.8150,
				Ask:        0.8160,
				Volatility: 0.0005,
				Interval:   time.Second,
			},
		},
		Logger:  logger.DefaultConfig(),
		API:     APIConfig{Enabled: true, Addr: ":8080"},
		Metrics: monitor.DefaultConfig(),
		Publisher: PublisherConfig{
			Topic: "mm.strategy.events",
		},
		Alert: AlertConfig{ThrottleInterval: 5 * time.Minute},
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deployment fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("MM_SYMBOL"); v != "" {
		cfg.Strategy.Symbol = v
	}
	if v := os.Getenv("MM_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("MM_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MM_KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Publisher.Brokers = brokers
	}
}

// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括市场数据源、信号权重、风控限额、
// 影子执行参数与输出设置。核心将配置视为进程生命周期内不可变。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 市场数据提供者类型常量
const (
	// ProviderMock 合成数据提供者（随机游走）
	ProviderMock = "mock"
	// ProviderOanda OANDA 实时数据提供者（REST + 价格流）
	ProviderOanda = "oanda"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// System 系统调度配置
	System SystemConfig `yaml:"system"`
	// Market 市场数据源配置
	Market MarketConfig `yaml:"market"`
	// Signals 信号权重与中性区配置
	Signals SignalsConfig `yaml:"signals"`
	// Risk 风控限额配置
	Risk RiskConfig `yaml:"risk"`
	// Execution 影子执行配置
	Execution ExecutionConfig `yaml:"execution"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// MetricsAddr Prometheus 指标服务监听地址；为空则不启动
	MetricsAddr string `yaml:"metrics_addr"`
}

// SystemConfig 系统调度配置
type SystemConfig struct {
	// Pair 货币对标识，如 EUR_USD
	Pair string `yaml:"pair"`
	// Timeframe K 线周期，如 4h
	Timeframe string `yaml:"timeframe"`
	// Lookback 每次拉取的 K 线数量
	Lookback int `yaml:"lookback"`
	// TickIntervalMs tick 调度间隔（毫秒）
	TickIntervalMs int `yaml:"tick_interval_ms"`
	// FetchTimeoutMs 单次行情拉取超时（毫秒）
	// 防止数据源卡死导致 tick 无限期延迟
	FetchTimeoutMs int `yaml:"fetch_timeout_ms"`
}

// MarketConfig 市场数据源配置
type MarketConfig struct {
	// Provider 数据提供者: mock 或 oanda
	Provider string `yaml:"provider"`
	// RestURL OANDA K 线 REST API 地址
	RestURL string `yaml:"rest_url"`
	// StreamURL OANDA 价格流 WebSocket 地址
	StreamURL string `yaml:"stream_url"`
	// APIToken OANDA API Token
	APIToken string `yaml:"api_token"`
	// PingIntervalMs 价格流心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// ReadTimeoutMs 价格流读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
	// MockSeed 合成数据随机种子（可复现）
	MockSeed int64 `yaml:"mock_seed"`
}

// SignalsConfig 信号权重与中性区配置
type SignalsConfig struct {
	// Weights 各信号类型的投票权重（非负）
	Weights WeightsConfig `yaml:"weights"`
	// NeutralZone 中性区阈值 ε
	// |加权得分| < ε 时决策强制为中性
	NeutralZone float64 `yaml:"neutral_zone"`
}

// WeightsConfig 各信号类型的投票权重
type WeightsConfig struct {
	// Trend 趋势信号权重
	Trend float64 `yaml:"trend"`
	// Momentum 动量信号权重
	Momentum float64 `yaml:"momentum"`
	// Volatility 波动率信号权重
	Volatility float64 `yaml:"volatility"`
	// News 新闻信号权重
	News float64 `yaml:"news"`
}

// RiskConfig 风控限额配置
type RiskConfig struct {
	// MaxRiskPerTrade 单笔最大风险占比（0-1），如 0.01 表示 1% 权益
	MaxRiskPerTrade float64 `yaml:"max_risk_per_trade"`
	// DailyLossCap 日亏损上限占比（0-1）
	// 当日已实现亏损 ≤ -DailyLossCap × equity 时当天禁止交易
	DailyLossCap float64 `yaml:"daily_loss_cap"`
	// MaxOpenPositions 最大同时持仓数
	MaxOpenPositions int `yaml:"max_open_positions"`
}

// ExecutionConfig 影子执行配置
// 成交模型: 按当前 tick 参考价零滑点成交（显式简化）。
type ExecutionConfig struct {
	// InitialBalance 初始权益（影子账户）
	InitialBalance float64 `yaml:"initial_balance"`
	// StopATRMult 止损距离的 ATR 倍数
	StopATRMult float64 `yaml:"stop_atr_mult"`
	// TakeATRMult 止盈距离的 ATR 倍数
	TakeATRMult float64 `yaml:"take_atr_mult"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// AuditFile 审计日志文件名（JSONL，追加写）
	AuditFile string `yaml:"audit_file"`
	// StateFile 账户状态文件名（JSON）
	StateFile string `yaml:"state_file"`
	// SnapshotFile 看板快照文件名（JSON，原子写）
	SnapshotFile string `yaml:"snapshot_file"`
	// TradesEnabled 是否输出已平仓订单文件（JSONL，异步写）
	TradesEnabled bool `yaml:"trades_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "forex-shadow-agent"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.System.Pair == "" {
		c.System.Pair = "EUR_USD"
	}
	if c.System.Timeframe == "" {
		c.System.Timeframe = "4h"
	}
	if c.System.Lookback == 0 {
		c.System.Lookback = 250
	}
	if c.System.TickIntervalMs == 0 {
		c.System.TickIntervalMs = 3_600_000 // 1 小时
	}
	if c.System.FetchTimeoutMs == 0 {
		c.System.FetchTimeoutMs = 15000 // 15 秒
	}

	if c.Market.Provider == "" {
		c.Market.Provider = ProviderMock
	}
	if c.Market.PingIntervalMs == 0 {
		c.Market.PingIntervalMs = 20000 // 20 秒
	}
	if c.Market.ReadTimeoutMs == 0 {
		c.Market.ReadTimeoutMs = 30000 // 30 秒
	}
	if c.Market.MockSeed == 0 {
		c.Market.MockSeed = 42
	}

	if c.Signals.Weights == (WeightsConfig{}) {
		c.Signals.Weights = WeightsConfig{Trend: 0.4, Momentum: 0.3, Volatility: 0.2, News: 0.1}
	}
	if c.Signals.NeutralZone == 0 {
		c.Signals.NeutralZone = 0.15
	}

	if c.Risk.MaxRiskPerTrade == 0 {
		c.Risk.MaxRiskPerTrade = 0.01
	}
	if c.Risk.DailyLossCap == 0 {
		c.Risk.DailyLossCap = 0.03
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = 3
	}

	if c.Execution.InitialBalance == 0 {
		c.Execution.InitialBalance = 10000
	}
	if c.Execution.StopATRMult == 0 {
		c.Execution.StopATRMult = 2
	}
	if c.Execution.TakeATRMult == 0 {
		c.Execution.TakeATRMult = 3
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.AuditFile == "" {
		c.Output.AuditFile = "audit.jsonl"
	}
	if c.Output.StateFile == "" {
		c.Output.StateFile = "state.json"
	}
	if c.Output.SnapshotFile == "" {
		c.Output.SnapshotFile = "snapshot.json"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围，在首个 tick 运行前拒绝非法配置。
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	if c.System.Pair == "" {
		errs = append(errs, "system.pair: 货币对不能为空")
	}
	if c.System.Lookback < 2 {
		errs = append(errs, "system.lookback: K 线数量必须大于 1")
	}
	if c.System.TickIntervalMs <= 0 {
		errs = append(errs, "system.tick_interval_ms: tick 间隔必须为正数")
	}
	if c.System.FetchTimeoutMs <= 0 {
		errs = append(errs, "system.fetch_timeout_ms: 拉取超时必须为正数")
	}

	switch c.Market.Provider {
	case ProviderMock:
	case ProviderOanda:
		if c.Market.RestURL == "" {
			errs = append(errs, "market.rest_url: oanda 模式下 REST 地址不能为空")
		}
		if c.Market.StreamURL == "" {
			errs = append(errs, "market.stream_url: oanda 模式下价格流地址不能为空")
		}
	default:
		errs = append(errs, fmt.Sprintf("market.provider: 未知数据提供者 '%s'，有效值: mock, oanda", c.Market.Provider))
	}

	if err := validateFraction(c.Signals.Weights.Trend, "signals.weights.trend"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateFraction(c.Signals.Weights.Momentum, "signals.weights.momentum"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateFraction(c.Signals.Weights.Volatility, "signals.weights.volatility"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateFraction(c.Signals.Weights.News, "signals.weights.news"); err != nil {
		errs = append(errs, err.Error())
	}
	totalWeight := c.Signals.Weights.Trend + c.Signals.Weights.Momentum + c.Signals.Weights.Volatility + c.Signals.Weights.News
	if totalWeight <= 0 {
		errs = append(errs, "signals.weights: 权重总和必须为正数")
	}
	if c.Signals.NeutralZone < 0 || c.Signals.NeutralZone >= 1 {
		errs = append(errs, fmt.Sprintf("signals.neutral_zone: 中性区阈值必须在 [0, 1) 之间，当前值: %f", c.Signals.NeutralZone))
	}

	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade > 1 {
		errs = append(errs, fmt.Sprintf("risk.max_risk_per_trade: 必须在 (0, 1] 之间，当前值: %f", c.Risk.MaxRiskPerTrade))
	}
	if c.Risk.DailyLossCap <= 0 || c.Risk.DailyLossCap > 1 {
		errs = append(errs, fmt.Sprintf("risk.daily_loss_cap: 必须在 (0, 1] 之间，当前值: %f", c.Risk.DailyLossCap))
	}
	if c.Risk.MaxOpenPositions <= 0 {
		errs = append(errs, "risk.max_open_positions: 最大持仓数必须为正数")
	}

	if c.Execution.InitialBalance <= 0 {
		errs = append(errs, "execution.initial_balance: 初始权益必须为正数")
	}
	if c.Execution.StopATRMult <= 0 {
		errs = append(errs, "execution.stop_atr_mult: 止损 ATR 倍数必须为正数")
	}
	if c.Execution.TakeATRMult <= 0 {
		errs = append(errs, "execution.take_atr_mult: 止盈 ATR 倍数必须为正数")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Weight 获取指定信号类型的权重
// 未知类型返回 0（视为弃权）
func (w *WeightsConfig) Weight(kind string) float64 {
	switch kind {
	case "trend":
		return w.Trend
	case "momentum":
		return w.Momentum
	case "volatility":
		return w.Volatility
	case "news":
		return w.News
	default:
		return 0
	}
}

// validateFraction 验证比例值范围
// 参数 v: 比例值
// 参数 field: 字段名称，用于错误消息
// 返回: 若比例无效则返回错误
func validateFraction(v float64, field string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s: 比例必须在 0-1 之间，当前值: %f", field, v)
	}
	return nil
}

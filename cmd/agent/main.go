// Package main 是外汇影子交易代理的入口点。
// 代理按固定间隔拉取行情，聚合多路信号为单一决策，经风控裁决后
// 以影子订单模拟成交，并维护哈希链审计日志与模拟账户状态。
//
// 重要：本系统仅做模拟验证，严禁真实下单。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"forex-shadow-agent/internal/audit"
	"forex-shadow-agent/internal/config"
	"forex-shadow-agent/internal/core/account"
	"forex-shadow-agent/internal/core/decision"
	"forex-shadow-agent/internal/core/risk"
	"forex-shadow-agent/internal/core/shadow"
	"forex-shadow-agent/internal/export"
	"forex-shadow-agent/internal/market"
	"forex-shadow-agent/internal/market/oanda"
	"forex-shadow-agent/internal/metrics"
	"forex-shadow-agent/internal/output/trades"
	"forex-shadow-agent/internal/runner"
	"forex-shadow-agent/internal/signals"
	"forex-shadow-agent/internal/util/timeutil"
)

func main() {
	var configPath string
	var runOnce bool
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.BoolVar(&runOnce, "run-once", false, "只执行一个 tick 后退出")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发 tick 边界的优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	// 行情数据源
	provider, streamCloser, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("初始化行情数据源失败", zap.Error(err))
		os.Exit(1)
	}

	// 审计日志（启动时验证哈希链并恢复序号）
	auditPath := filepath.Join(cfg.Output.Dir, cfg.Output.AuditFile)
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		logger.Error("打开审计日志失败", zap.Error(err))
		os.Exit(1)
	}

	// 账户状态（存在则恢复，否则按初始余额创建）
	statePath := filepath.Join(cfg.Output.Dir, cfg.Output.StateFile)
	ledger, err := account.Open(statePath, cfg.Execution.InitialBalance, timeutil.Now())
	if err != nil {
		logger.Error("打开账户状态失败", zap.Error(err))
		os.Exit(1)
	}

	exporter, err := export.NewExporter(filepath.Join(cfg.Output.Dir, cfg.Output.SnapshotFile))
	if err != nil {
		logger.Error("创建快照导出器失败", zap.Error(err))
		os.Exit(1)
	}

	var feed *trades.Feed
	if cfg.Output.TradesEnabled {
		feed, err = trades.NewFeed(filepath.Join(cfg.Output.Dir, "trades.jsonl"), cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建交易输出器失败", zap.Error(err))
			os.Exit(1)
		}
	}

	var metricsSrv *http.Server
	if cfg.App.MetricsAddr != "" {
		metricsSrv = metrics.Serve(cfg.App.MetricsAddr)
		logger.Info("metrics 服务已启动", zap.String("addr", cfg.App.MetricsAddr))
	}

	// 启动审计事件
	startNow := timeutil.Now()
	if _, err := auditLog.Append(startNow, audit.KindSystem, "agent_started", map[string]any{
		"pair":        cfg.System.Pair,
		"timeframe":   cfg.System.Timeframe,
		"provider":    cfg.Market.Provider,
		"equity":      ledger.Equity(),
		"trading_day": ledger.TradingDay(),
		"resumed_seq": auditLog.LastSeq(),
	}); err != nil {
		logger.Error("写入启动审计事件失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("代理启动",
		zap.String("pair", cfg.System.Pair),
		zap.String("provider", cfg.Market.Provider),
		zap.Float64("equity", ledger.Equity()),
		zap.Int("open_positions", ledger.OpenCount()))

	r := runner.New(cfg, logger, runner.Deps{
		Provider:    provider,
		Generators:  signals.DefaultGenerators(signals.MockNewsInterpreter{}),
		Aggregator:  decision.NewAggregator(cfg.System.Pair, cfg.Signals, cfg.Execution),
		RiskManager: risk.NewManager(cfg.Risk),
		Engine:      shadow.NewEngine(cfg.System.Pair, ledger),
		Ledger:      ledger,
		AuditLog:    auditLog,
		Exporter:    exporter,
		Feed:        feed,
	})

	var runErr error
	if runOnce {
		runErr = r.Tick(ctx)
	} else {
		runErr = r.Run(ctx)
	}
	if runErr != nil {
		logger.Error("主循环异常退出", zap.Error(runErr))
	}

	// 关闭审计事件（权威状态已持久化，写入失败只记录）
	stopNow := timeutil.Now()
	if _, err := auditLog.Append(stopNow, audit.KindSystem, "agent_stopped", map[string]any{
		"equity":    ledger.Equity(),
		"daily_pnl": ledger.DailyPnL(),
		"perf":      r.PerfStats(),
	}); err != nil {
		logger.Warn("写入停止审计事件失败", zap.Error(err))
	}

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if streamCloser != nil {
			_ = streamCloser.Close()
		}
		if feed != nil {
			_ = feed.Close()
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		_ = auditLog.Close()
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// buildProvider 根据配置构建行情数据源。
// oanda 模式会先建立价格流连接（用于点差），REST 拉取 K 线。
func buildProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (market.DataProvider, *oanda.Stream, error) {
	switch cfg.Market.Provider {
	case config.ProviderMock:
		return market.NewMockProvider(cfg.Market.MockSeed), nil, nil
	case config.ProviderOanda:
		p := oanda.NewProvider(&cfg.Market, cfg.System.Pair, logger)
		stream := p.Stream()

		connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
		defer connCancel()
		if err := stream.Connect(connCtx); err != nil {
			return nil, nil, fmt.Errorf("价格流连接失败: %w", err)
		}
		go stream.Run(ctx)

		return p, stream, nil
	default:
		return nil, nil, fmt.Errorf("未知数据源: %s", cfg.Market.Provider)
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

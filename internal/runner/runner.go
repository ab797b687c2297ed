// Package runner 实现代理主循环。
// 每个 tick 按固定顺序执行: 交易日切换 → 拉取行情 → 持仓退出评估 →
// 信号收集 → 决策聚合 → 风控裁决 → 影子执行 → 快照导出。
// 优雅关闭只在 tick 边界生效，永不中断进行中的 tick。
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"forex-shadow-agent/internal/audit"
	"forex-shadow-agent/internal/config"
	"forex-shadow-agent/internal/core/account"
	"forex-shadow-agent/internal/core/decision"
	"forex-shadow-agent/internal/core/model"
	"forex-shadow-agent/internal/core/risk"
	"forex-shadow-agent/internal/core/shadow"
	"forex-shadow-agent/internal/export"
	"forex-shadow-agent/internal/market"
	"forex-shadow-agent/internal/metrics"
	"forex-shadow-agent/internal/output/trades"
	"forex-shadow-agent/internal/signals"
	"forex-shadow-agent/internal/stats/health"
	"forex-shadow-agent/internal/stats/perf"
	"forex-shadow-agent/internal/util/timeutil"
)

// maxConsecutiveFetchFailures 达到该连续失败次数后记录降级健康事件
const maxConsecutiveFetchFailures = 3

// Runner 代理主循环
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger

	provider   market.DataProvider
	generators []signals.Generator
	aggregator *decision.Aggregator
	riskMgr    *risk.Manager
	engine     *shadow.Engine
	ledger     *account.Ledger
	auditLog   *audit.Log

	perfStats   *perf.Tracker
	healthStats *health.Tracker
	exporter    *export.Exporter
	// feed 可选的交易输出器，nil 表示未启用
	feed *trades.Feed

	// tickSeq 已启动的 tick 序号（进程内单调递增）
	tickSeq int64
	// lastSnapshot 最近一次成功的行情快照，拉取失败时兜底
	lastSnapshot *model.MarketSnapshot
	lastDecision *model.Decision
	lastVerdict  *model.RiskVerdict
}

// Deps 主循环依赖项
type Deps struct {
	Provider    market.DataProvider
	Generators  []signals.Generator
	Aggregator  *decision.Aggregator
	RiskManager *risk.Manager
	Engine      *shadow.Engine
	Ledger      *account.Ledger
	AuditLog    *audit.Log
	Exporter    *export.Exporter
	// Feed 可为 nil（未启用交易输出时）
	Feed *trades.Feed
}

// New 创建主循环
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Runner {
	return &Runner{
		cfg:         cfg,
		logger:      logger.Named("runner"),
		provider:    deps.Provider,
		generators:  deps.Generators,
		aggregator:  deps.Aggregator,
		riskMgr:     deps.RiskManager,
		engine:      deps.Engine,
		ledger:      deps.Ledger,
		auditLog:    deps.AuditLog,
		perfStats:   perf.NewTracker(500),
		healthStats: health.NewTracker(256),
		exporter:    deps.Exporter,
		feed:        deps.Feed,
	}
}

// Run 启动主循环，直到 ctx 取消。
// ctx 取消只在 tick 之间检查; 进行中的 tick 总是完整执行。
func (r *Runner) Run(ctx context.Context) error {
	interval := time.Duration(r.cfg.System.TickIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("主循环启动",
		zap.String("pair", r.cfg.System.Pair),
		zap.Duration("interval", interval))

	// 启动后立即执行首个 tick，不等第一个间隔
	if err := r.Tick(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("收到退出信号，在 tick 边界停止")
			return nil
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Tick 执行一个完整的 tick。
// 返回 error 表示不可恢复的故障（审计或状态持久化失败），应终止进程。
func (r *Runner) Tick(ctx context.Context) error {
	r.tickSeq++
	now := timeutil.Now()
	tickLog := r.logger.With(zap.Int64("tick", r.tickSeq))

	// 1. 交易日切换: 重置日内计数并记录系统事件
	if r.ledger.RollDay(now) {
		if err := r.ledger.Persist(); err != nil {
			return fmt.Errorf("tick %d: 交易日切换持久化失败: %w", r.tickSeq, err)
		}
		if _, err := r.auditLog.Append(now, audit.KindSystem, "day_rollover", map[string]any{
			"trading_day": r.ledger.TradingDay(),
			"equity":      r.ledger.Equity(),
		}); err != nil {
			return fmt.Errorf("tick %d: 审计写入失败: %w", r.tickSeq, err)
		}
		tickLog.Info("交易日切换", zap.String("trading_day", r.ledger.TradingDay()))
	}

	// 2. 拉取行情
	snap, stale, err := r.fetchMarket(ctx, now, tickLog)
	if err != nil {
		return err
	}
	if snap == nil {
		// 无任何可用行情: 记录健康事件后结束本 tick
		return r.finishTick(now, nil, stale, tickLog)
	}

	refPrice := snap.ClosePrice

	// 3. 持仓退出评估（在新决策之前）
	closed, err := r.engine.EvaluateOpen(now, refPrice)
	if err != nil {
		return fmt.Errorf("tick %d: 持仓评估失败: %w", r.tickSeq, err)
	}
	for i := range closed {
		c := &closed[i]
		if _, err := r.auditLog.Append(now, audit.KindExecution, "position_closed", c); err != nil {
			return fmt.Errorf("tick %d: 审计写入失败: %w", r.tickSeq, err)
		}
		r.perfStats.Add(c)
		metrics.PositionsClosedTotal.WithLabelValues(string(c.Reason)).Inc()
		if r.feed != nil {
			if err := r.feed.Publish(c); err != nil {
				tickLog.Warn("交易输出失败", zap.Error(err))
			}
		}
		tickLog.Info("持仓平仓",
			zap.Int64("order_id", c.Order.ID),
			zap.String("reason", string(c.Reason)),
			zap.Float64("pnl", c.PnL))
	}

	// 4. 信号收集 + 决策聚合
	// 过期快照禁止驱动新决策: 信号层整体弃权，聚合必然落入中性，
	// 风控随后以 no_signal 拒绝并留下审计记录
	var sigs []model.Signal
	if !stale {
		sigs = signals.Collect(now, snap, r.generators)
	}
	d := r.aggregator.Aggregate(now, snap, sigs)
	r.lastDecision = d
	if _, err := r.auditLog.Append(now, audit.KindDecision, "decision", d); err != nil {
		return fmt.Errorf("tick %d: 审计写入失败: %w", r.tickSeq, err)
	}
	metrics.DecisionsTotal.WithLabelValues(string(d.Direction)).Inc()

	// 5. 风控裁决
	v := r.riskMgr.Check(now, d, r.ledger.View())
	r.lastVerdict = v
	if _, err := r.auditLog.Append(now, audit.KindRisk, "risk_verdict", v); err != nil {
		return fmt.Errorf("tick %d: 审计写入失败: %w", r.tickSeq, err)
	}

	// 6. 影子执行
	if v.Approved {
		order, err := r.engine.Execute(now, d, v)
		if err != nil {
			return fmt.Errorf("tick %d: 影子执行失败: %w", r.tickSeq, err)
		}
		if _, err := r.auditLog.Append(now, audit.KindExecution, "order_filled", order); err != nil {
			return fmt.Errorf("tick %d: 审计写入失败: %w", r.tickSeq, err)
		}
		metrics.ShadowOrdersTotal.WithLabelValues(string(order.Status)).Inc()
		tickLog.Info("影子订单成交",
			zap.Int64("order_id", order.ID),
			zap.String("direction", string(order.Direction)),
			zap.Float64("size", order.Size),
			zap.Float64("entry_px", order.EntryPx))
	} else {
		metrics.RiskRejectionsTotal.WithLabelValues(string(v.Reason)).Inc()
		tickLog.Debug("风控拒绝", zap.String("reason", string(v.Reason)))
	}

	return r.finishTick(now, snap, stale, tickLog)
}

// fetchMarket 拉取行情快照，失败时回退到上一次快照。
// 返回 (快照, 是否过期, 致命错误)。快照为 nil 表示既无新行情也无兜底。
func (r *Runner) fetchMarket(ctx context.Context, now time.Time, tickLog *zap.Logger) (*model.MarketSnapshot, bool, error) {
	timeout := time.Duration(r.cfg.System.FetchTimeoutMs) * time.Millisecond
	startNs := timeutil.NowNano()

	snap, err := market.FetchSnapshot(ctx, r.provider,
		r.cfg.System.Pair, r.cfg.System.Timeframe, r.cfg.System.Lookback, timeout)
	latencyMs := timeutil.DurationMs(startNs, timeutil.NowNano())

	if err == nil {
		r.healthStats.RecordSuccess(timeutil.NowNano(), latencyMs)
		metrics.FetchLatency.Observe(latencyMs / 1000)
		r.lastSnapshot = snap
		return snap, false, nil
	}

	failures := r.healthStats.RecordFailure()
	metrics.FetchFailuresTotal.Inc()
	tickLog.Warn("行情拉取失败",
		zap.Error(err),
		zap.Int("consecutive_failures", failures))

	if _, aerr := r.auditLog.Append(now, audit.KindHealth, "fetch_failed", map[string]any{
		"error":                err.Error(),
		"consecutive_failures": failures,
		"latency_ms":           latencyMs,
	}); aerr != nil {
		return nil, false, fmt.Errorf("tick %d: 审计写入失败: %w", r.tickSeq, aerr)
	}

	if failures >= maxConsecutiveFetchFailures {
		if _, aerr := r.auditLog.Append(now, audit.KindHealth, "data_degraded", map[string]any{
			"consecutive_failures": failures,
			"since_last_success_ms": r.healthStats.SinceLastSuccessMs(
				timeutil.NowNano()),
		}); aerr != nil {
			return nil, false, fmt.Errorf("tick %d: 审计写入失败: %w", r.tickSeq, aerr)
		}
	}

	if r.lastSnapshot == nil {
		return nil, false, nil
	}
	// 使用过期快照兜底: 仅供持仓退出评估，本 tick 不收集信号
	r.healthStats.RecordStaleTick()
	return r.lastSnapshot, true, nil
}

// finishTick 导出仪表盘快照并更新指标
func (r *Runner) finishTick(now time.Time, snap *model.MarketSnapshot, stale bool, tickLog *zap.Logger) error {
	view := r.ledger.View()
	metrics.AccountEquity.Set(view.Equity)
	metrics.DailyRealizedPnL.Set(view.DailyPnL)
	metrics.OpenPositions.Set(float64(view.OpenPositions))
	metrics.TicksTotal.Inc()

	out := &export.Snapshot{
		Pair:          r.cfg.System.Pair,
		TickSeq:       r.tickSeq,
		MarketStale:   stale,
		LastDecision:  r.lastDecision,
		LastVerdict:   r.lastVerdict,
		Equity:        view.Equity,
		DailyPnL:      view.DailyPnL,
		OpenPositions: view.OpenPositions,
		OpenOrders:    r.ledger.OpenOrders(),
		Perf:          r.perfStats.Stats(),
		Health:        r.healthStats.Stats(),
	}
	if snap != nil {
		out.Price = snap.ClosePrice
		out.Spread = snap.Spread
		out.Indicators = snap.Indicators
	}
	if err := r.exporter.Write(now, out); err != nil {
		// 快照仅供仪表盘消费，导出失败不终止进程
		tickLog.Warn("快照导出失败", zap.Error(err))
	}

	tickLog.Debug("tick 完成",
		zap.Float64("equity", view.Equity),
		zap.Int("open_positions", view.OpenPositions))
	return nil
}

// PerfStats 返回表现统计（供启动方输出最终摘要）
func (r *Runner) PerfStats() perf.Stats { return r.perfStats.Stats() }

// HealthStats 返回健康度统计
func (r *Runner) HealthStats() health.Stats { return r.healthStats.Stats() }

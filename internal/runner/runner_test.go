// Package runner 主循环测试
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

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
	"forex-shadow-agent/internal/signals"
	"forex-shadow-agent/internal/util/timeutil"
)

// flakyProvider 首次拉取成功、随后持续失败的数据源
type flakyProvider struct {
	inner market.DataProvider
	calls int
}

func (p *flakyProvider) FetchCandles(ctx context.Context, pair, timeframe string, lookback int) ([]model.Candle, error) {
	p.calls++
	if p.calls > 1 {
		return nil, fmt.Errorf("行情源不可用")
	}
	return p.inner.FetchCandles(ctx, pair, timeframe, lookback)
}

func (p *flakyProvider) FetchSpread(ctx context.Context, pair string) (float64, error) {
	return p.inner.FetchSpread(ctx, pair)
}

// newTestRunner 构建以合成数据驱动的主循环及其依赖
func newTestRunner(t *testing.T, dir string) (*Runner, *account.Ledger, *audit.Log) {
	t.Helper()
	return newTestRunnerWith(t, dir, nil)
}

// newTestRunnerWith 同 newTestRunner，可注入自定义数据源（nil 用默认 mock）
func newTestRunnerWith(t *testing.T, dir string, provider market.DataProvider) (*Runner, *account.Ledger, *audit.Log) {
	t.Helper()

	yaml := fmt.Sprintf("output:\n  dir: %s\n", dir)
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	auditLog, err := audit.Open(filepath.Join(dir, cfg.Output.AuditFile))
	if err != nil {
		t.Fatalf("打开审计日志失败: %v", err)
	}
	ledger, err := account.Open(filepath.Join(dir, cfg.Output.StateFile), cfg.Execution.InitialBalance, timeutil.Now())
	if err != nil {
		t.Fatalf("打开账户失败: %v", err)
	}
	exporter, err := export.NewExporter(filepath.Join(dir, cfg.Output.SnapshotFile))
	if err != nil {
		t.Fatalf("创建导出器失败: %v", err)
	}

	if provider == nil {
		provider = market.NewMockProvider(cfg.Market.MockSeed)
	}
	r := New(cfg, zap.NewNop(), Deps{
		Provider:    provider,
		Generators:  signals.DefaultGenerators(signals.MockNewsInterpreter{}),
		Aggregator:  decision.NewAggregator(cfg.System.Pair, cfg.Signals, cfg.Execution),
		RiskManager: risk.NewManager(cfg.Risk),
		Engine:      shadow.NewEngine(cfg.System.Pair, ledger),
		Ledger:      ledger,
		AuditLog:    auditLog,
		Exporter:    exporter,
	})
	return r, ledger, auditLog
}

func TestTick_AuditsDecisionAndVerdict(t *testing.T) {
	dir := t.TempDir()
	r, _, auditLog := newTestRunner(t, dir)
	defer auditLog.Close()

	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("Tick 失败: %v", err)
	}

	records, err := auditLog.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll 失败: %v", err)
	}
	if err := audit.VerifyChain(records); err != nil {
		t.Fatalf("链校验失败: %v", err)
	}

	var kinds []audit.EventKind
	for _, rec := range records {
		kinds = append(kinds, rec.Kind)
	}
	hasDecision, hasRisk := false, false
	for _, k := range kinds {
		if k == audit.KindDecision {
			hasDecision = true
		}
		if k == audit.KindRisk {
			hasRisk = true
		}
	}
	if !hasDecision || !hasRisk {
		t.Fatalf("每个 tick 必须记录决策与风控事件: %v", kinds)
	}
}

func TestTick_ExportsSnapshot(t *testing.T) {
	dir := t.TempDir()
	r, _, auditLog := newTestRunner(t, dir)
	defer auditLog.Close()

	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("Tick 失败: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "snapshot.json")); err != nil {
		t.Fatalf("Tick 后应导出仪表盘快照: %v", err)
	}
}

func TestTick_MultipleTicks_SequenceContinuous(t *testing.T) {
	dir := t.TempDir()
	r, _, auditLog := newTestRunner(t, dir)
	defer auditLog.Close()

	for i := 0; i < 3; i++ {
		if err := r.Tick(context.Background()); err != nil {
			t.Fatalf("第 %d 个 Tick 失败: %v", i+1, err)
		}
	}

	records, _ := auditLog.ReadAll()
	for i, rec := range records {
		if rec.Seq != int64(i+1) {
			t.Fatalf("第 %d 条 Seq=%d, 序号必须连续无空洞", i, rec.Seq)
		}
	}
	if err := audit.VerifyChain(records); err != nil {
		t.Fatalf("多 tick 链校验失败: %v", err)
	}
}

func TestRun_CancelledContextStopsAtBoundary(t *testing.T) {
	dir := t.TempDir()
	r, _, auditLog := newTestRunner(t, dir)
	defer auditLog.Close()

	// 已取消的上下文: 首个 tick 照常完整执行，随后在边界退出
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run 失败: %v", err)
	}

	records, _ := auditLog.ReadAll()
	if len(records) == 0 {
		t.Fatalf("取消前的首个 tick 仍应完整执行并记录")
	}
}

func TestTick_StaleMarketAllSignalsAbstain(t *testing.T) {
	dir := t.TempDir()
	mock := market.NewMockProvider(1)
	r, _, auditLog := newTestRunnerWith(t, dir, &flakyProvider{inner: mock})
	defer auditLog.Close()

	// 第一个 tick 拉取成功，第二个 tick 拉取失败并回退到过期快照
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("首个 Tick 失败: %v", err)
	}
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("第二个 Tick 失败: %v", err)
	}

	records, err := auditLog.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll 失败: %v", err)
	}

	// 过期行情的 tick: 决策必为中性且不含任何投票信号
	var lastDecision *model.Decision
	var lastVerdict *model.RiskVerdict
	sawFetchFailed := false
	for i := range records {
		rec := &records[i]
		switch {
		case rec.Kind == audit.KindDecision:
			var d model.Decision
			if err := json.Unmarshal(rec.Payload, &d); err != nil {
				t.Fatalf("解析决策负载失败: %v", err)
			}
			lastDecision = &d
		case rec.Kind == audit.KindRisk:
			var v model.RiskVerdict
			if err := json.Unmarshal(rec.Payload, &v); err != nil {
				t.Fatalf("解析风控负载失败: %v", err)
			}
			lastVerdict = &v
		case rec.Kind == audit.KindHealth && rec.Type == "fetch_failed":
			sawFetchFailed = true
		}
	}

	if !sawFetchFailed {
		t.Fatalf("拉取失败必须留下 health 审计记录")
	}
	if lastDecision == nil {
		t.Fatalf("过期行情的 tick 仍应记录决策")
	}
	if lastDecision.Direction != model.DirNeutral {
		t.Fatalf("过期行情下决策必须为中性, 实际 %s", lastDecision.Direction)
	}
	if len(lastDecision.Signals) != 0 {
		t.Fatalf("过期行情下信号必须全部弃权, 实际有 %d 个投票信号", len(lastDecision.Signals))
	}
	if lastVerdict == nil || lastVerdict.Approved {
		t.Fatalf("过期行情下风控必须拒绝")
	}
	if lastVerdict.Reason != model.ReasonNoSignal {
		t.Fatalf("拒绝原因应为 %s, 实际 %s", model.ReasonNoSignal, lastVerdict.Reason)
	}
}

func TestTick_EquityUnchangedWithoutCloses(t *testing.T) {
	dir := t.TempDir()
	r, ledger, auditLog := newTestRunner(t, dir)
	defer auditLog.Close()

	before := ledger.Equity()
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("Tick 失败: %v", err)
	}

	// 首个 tick 无持仓可平: 权益只能因平仓变化
	if ledger.Equity() != before {
		t.Fatalf("无平仓时权益不应变化: %f → %f", before, ledger.Equity())
	}
}

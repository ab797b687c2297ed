// Package export 实现仪表盘快照的原子导出。
// 每个 tick 结束后将当前市场、决策与账户状态整体写出为单个 JSON 文件，
// 外部仪表盘只读消费，读取方永远看到完整文件。
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forex-shadow-agent/internal/core/model"
	"forex-shadow-agent/internal/stats/health"
	"forex-shadow-agent/internal/stats/perf"
)

// Snapshot 仪表盘快照
type Snapshot struct {
	// Pair 交易对
	Pair string `json:"pair"`
	// UpdatedAt 快照生成时间（RFC3339Nano）
	UpdatedAt string `json:"updated_at"`
	// TickSeq 当前 tick 序号
	TickSeq int64 `json:"tick_seq"`

	// Price 最近收盘价（无行情时为 0）
	Price float64 `json:"price"`
	// Spread 最近点差
	Spread float64 `json:"spread"`
	// Indicators 指标值
	Indicators map[string]float64 `json:"indicators,omitempty"`
	// MarketStale 本 tick 是否使用了过期行情
	MarketStale bool `json:"market_stale"`

	// LastDecision 最近一次聚合决策
	LastDecision *model.Decision `json:"last_decision,omitempty"`
	// LastVerdict 最近一次风控裁决
	LastVerdict *model.RiskVerdict `json:"last_verdict,omitempty"`

	// Equity 当前权益
	Equity float64 `json:"equity"`
	// DailyPnL 当日已实现盈亏
	DailyPnL float64 `json:"daily_pnl"`
	// OpenPositions 当前持仓数
	OpenPositions int `json:"open_positions"`
	// OpenOrders 当前持仓明细
	OpenOrders []model.ShadowOrder `json:"open_orders,omitempty"`

	// Perf 表现统计（滚动窗口）
	Perf perf.Stats `json:"perf"`
	// Health 数据健康度统计
	Health health.Stats `json:"health"`
}

// Exporter 快照导出器
type Exporter struct {
	// path 快照文件路径
	path string
}

// NewExporter 创建快照导出器
func NewExporter(path string) (*Exporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	return &Exporter{path: path}, nil
}

// Write 原子写出快照（临时文件 + rename）
func (e *Exporter) Write(now time.Time, s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("快照为空")
	}
	s.UpdatedAt = now.UTC().Format(time.RFC3339Nano)

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("写入快照临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("替换快照文件失败: %w", err)
	}
	return nil
}

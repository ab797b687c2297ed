// Package perf 实现影子交易表现的滚动统计。
// 仅用于观察输出; 不参与任何交易决策或风控判断。
package perf

import (
	"forex-shadow-agent/internal/core/model"
)

type closeSample struct {
	win    bool
	pnl    float64
	reason model.CloseReason
}

// Stats 表现统计快照（滚动窗口）
type Stats struct {
	// Count 样本数
	Count int64 `json:"count"`
	// WinCount 盈利平仓笔数
	WinCount int64 `json:"win_count"`
	// LossCount 亏损平仓笔数（含持平）
	LossCount int64 `json:"loss_count"`
	// WinRate 胜率
	WinRate float64 `json:"win_rate"`
	// AvgWin 平均盈利
	AvgWin float64 `json:"avg_win"`
	// AvgLoss 平均亏损（绝对值）
	AvgLoss float64 `json:"avg_loss"`
	// Expectancy 单笔期望 = p × AvgWin - (1-p) × AvgLoss
	Expectancy float64 `json:"expectancy"`
	// StopLossCount 止损平仓笔数
	StopLossCount int64 `json:"stop_loss_count"`
	// TakeProfitCount 止盈平仓笔数
	TakeProfitCount int64 `json:"take_profit_count"`
}

// Tracker 表现统计追踪器（环形缓冲滚动窗口，O(1) 更新）
type Tracker struct {
	// windowSize 滚动窗口大小
	windowSize int
	// buf 环形缓冲区
	buf []closeSample
	// pos 写入位置
	pos int
	// full 是否已填满
	full bool

	count     int64
	winCount  int64
	lossCount int64
	sumWin    float64
	sumLoss   float64
	slCount   int64
	tpCount   int64
}

// NewTracker 创建表现统计追踪器
// 参数 windowSize: 滚动窗口大小（建议 500）
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 500
	}
	return &Tracker{
		windowSize: windowSize,
		buf:        make([]closeSample, windowSize),
	}
}

// Add 添加一笔平仓结果到滚动统计
func (t *Tracker) Add(c *model.ClosedOrder) {
	if c == nil {
		return
	}

	s := closeSample{win: c.PnL > 0, pnl: c.PnL, reason: c.Reason}

	// 若环已满，移除旧样本对统计的贡献
	if t.full {
		old := t.buf[t.pos]
		t.count--
		if old.win {
			t.winCount--
			t.sumWin -= old.pnl
		} else {
			t.lossCount--
			t.sumLoss -= -old.pnl
		}
		switch old.reason {
		case model.CloseStopLoss:
			t.slCount--
		case model.CloseTakeProfit:
			t.tpCount--
		}
	}

	t.buf[t.pos] = s
	t.pos++
	if t.pos >= t.windowSize {
		t.pos = 0
		t.full = true
	}

	t.count++
	if s.win {
		t.winCount++
		t.sumWin += s.pnl
	} else {
		t.lossCount++
		t.sumLoss += -s.pnl
	}
	switch s.reason {
	case model.CloseStopLoss:
		t.slCount++
	case model.CloseTakeProfit:
		t.tpCount++
	}
}

// Stats 返回滚动窗口统计
func (t *Tracker) Stats() Stats {
	out := Stats{
		Count:           t.count,
		WinCount:        t.winCount,
		LossCount:       t.lossCount,
		StopLossCount:   t.slCount,
		TakeProfitCount: t.tpCount,
	}
	if t.count <= 0 {
		return out
	}

	out.WinRate = float64(t.winCount) / float64(t.count)
	if t.winCount > 0 {
		out.AvgWin = t.sumWin / float64(t.winCount)
	}
	if t.lossCount > 0 {
		out.AvgLoss = t.sumLoss / float64(t.lossCount)
	}
	out.Expectancy = out.WinRate*out.AvgWin - (1-out.WinRate)*out.AvgLoss
	return out
}

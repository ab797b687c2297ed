// Package signals 实现各信号源的投票生成。
// 每个生成器从市场快照产出一个类型化信号；所需指标缺失时弃权。
package signals

import (
	"fmt"
	"time"

	"forex-shadow-agent/internal/core/model"
)

// Generator 信号生成器能力接口
type Generator interface {
	// Kind 信号类型
	Kind() model.SignalKind
	// Generate 从快照产出信号
	// 返回: 信号与是否参与投票（false 表示弃权）
	Generate(now time.Time, snap *model.MarketSnapshot) (model.Signal, bool)
}

// TrendGenerator 趋势信号（双均线 + 收盘价对齐）
type TrendGenerator struct{}

// Kind 信号类型
func (TrendGenerator) Kind() model.SignalKind { return model.KindTrend }

// Generate 产出趋势信号
// SMA50 > SMA200 且 close > SMA50 ⇒ long；反向对齐 ⇒ short；否则中性。
func (TrendGenerator) Generate(now time.Time, snap *model.MarketSnapshot) (model.Signal, bool) {
	fast, ok1 := snap.Indicator(model.IndSMAFast)
	slow, ok2 := snap.Indicator(model.IndSMASlow)
	if !ok1 || !ok2 {
		return model.Signal{}, false
	}

	s := model.Signal{Kind: model.KindTrend, Direction: model.DirNeutral, Timestamp: now}
	switch {
	case fast > slow && snap.ClosePrice > fast:
		s.Direction = model.DirLong
		s.Confidence = 0.8
		s.Reason = "close > SMA50 > SMA200"
	case fast < slow && snap.ClosePrice < fast:
		s.Direction = model.DirShort
		s.Confidence = 0.8
		s.Reason = "close < SMA50 < SMA200"
	default:
		s.Confidence = 0
		s.Reason = "趋势未对齐"
	}
	return s, true
}

// MomentumGenerator 动量信号（RSI 超买/超卖）
type MomentumGenerator struct{}

// Kind 信号类型
func (MomentumGenerator) Kind() model.SignalKind { return model.KindMomentum }

// Generate 产出动量信号
// RSI < 30 ⇒ long（超卖反弹）；RSI > 70 ⇒ short（超买回落）；否则中性。
func (MomentumGenerator) Generate(now time.Time, snap *model.MarketSnapshot) (model.Signal, bool) {
	rsi, ok := snap.Indicator(model.IndRSI)
	if !ok {
		return model.Signal{}, false
	}

	s := model.Signal{Kind: model.KindMomentum, Direction: model.DirNeutral, Timestamp: now}
	switch {
	case rsi < 30:
		s.Direction = model.DirLong
		s.Confidence = 0.7
		s.Reason = fmt.Sprintf("超卖 (RSI=%.1f)", rsi)
	case rsi > 70:
		s.Direction = model.DirShort
		s.Confidence = 0.7
		s.Reason = fmt.Sprintf("超买 (RSI=%.1f)", rsi)
	default:
		s.Confidence = 0.5
		s.Reason = fmt.Sprintf("RSI 中性 (%.1f)", rsi)
	}
	return s, true
}

// VolatilityGenerator 波动率信号（ATR 占价格比例的状态判定）
// 波动率过高时投出高置信度中性票，将总得分拖入中性区。
type VolatilityGenerator struct {
	// VolatileRatio 判定为高波动的 ATR/价格比例阈值
	VolatileRatio float64
}

// NewVolatilityGenerator 创建波动率信号生成器（默认阈值 1%）
func NewVolatilityGenerator() *VolatilityGenerator {
	return &VolatilityGenerator{VolatileRatio: 0.01}
}

// Kind 信号类型
func (*VolatilityGenerator) Kind() model.SignalKind { return model.KindVolatility }

// Generate 产出波动率信号
// 高波动 ⇒ 中性（置信度 1.0）；正常 ⇒ 中性（置信度 0，等同弃权贡献）。
func (g *VolatilityGenerator) Generate(now time.Time, snap *model.MarketSnapshot) (model.Signal, bool) {
	atr, ok := snap.Indicator(model.IndATR)
	if !ok || snap.ClosePrice <= 0 {
		return model.Signal{}, false
	}

	s := model.Signal{Kind: model.KindVolatility, Direction: model.DirNeutral, Timestamp: now}
	ratio := atr / snap.ClosePrice
	if ratio > g.VolatileRatio {
		s.Confidence = 1.0
		s.Reason = fmt.Sprintf("高波动状态 (ATR/px=%.4f)", ratio)
	} else {
		s.Confidence = 0
		s.Reason = "波动正常"
	}
	return s, true
}

// NewsInterpreter 新闻/事件解读器能力接口
// 变体在构造期选定: mock（恒允许）或未来的实时事件源。
type NewsInterpreter interface {
	// Interpret 解读当前新闻态势
	// 返回: 信号与是否参与投票
	Interpret(now time.Time) (model.Signal, bool)
}

// MockNewsInterpreter 模拟新闻解读器
// 无实时连接，恒弃权（不影响投票）。
type MockNewsInterpreter struct{}

// Interpret 恒弃权
func (MockNewsInterpreter) Interpret(now time.Time) (model.Signal, bool) {
	return model.Signal{}, false
}

// NewsGenerator 把新闻解读器适配为信号生成器
type NewsGenerator struct {
	// interp 新闻解读器
	interp NewsInterpreter
}

// NewNewsGenerator 创建新闻信号生成器
// 参数 interp: 新闻解读器实现
func NewNewsGenerator(interp NewsInterpreter) *NewsGenerator {
	return &NewsGenerator{interp: interp}
}

// Kind 信号类型
func (*NewsGenerator) Kind() model.SignalKind { return model.KindNews }

// Generate 产出新闻信号（快照不参与解读）
func (g *NewsGenerator) Generate(now time.Time, snap *model.MarketSnapshot) (model.Signal, bool) {
	return g.interp.Interpret(now)
}

// Collect 依次运行全部生成器收集本 tick 的信号集合
// 弃权的生成器不产出信号；返回顺序与生成器顺序一致。
// 参数 now: 当前时间
// 参数 snap: 市场快照
// 参数 gens: 生成器集合
func Collect(now time.Time, snap *model.MarketSnapshot, gens []Generator) []model.Signal {
	out := make([]model.Signal, 0, len(gens))
	if !snap.IsValid() {
		return out
	}
	for _, g := range gens {
		if s, ok := g.Generate(now, snap); ok {
			out = append(out, s)
		}
	}
	return out
}

// DefaultGenerators 构建默认生成器集合（trend, momentum, volatility, news）
// 参数 news: 新闻解读器实现
func DefaultGenerators(news NewsInterpreter) []Generator {
	return []Generator{
		TrendGenerator{},
		MomentumGenerator{},
		NewVolatilityGenerator(),
		NewNewsGenerator(news),
	}
}

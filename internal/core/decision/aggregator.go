// Package decision 实现多信号加权投票的决策聚合。
package decision

import (
	"fmt"
	"strings"
	"time"

	"forex-shadow-agent/internal/config"
	"forex-shadow-agent/internal/core/model"
)

// Aggregator 决策聚合器
// 将一个 tick 的信号集合融合为唯一的 Decision。
// 纯计算组件: 无随机性、无隐藏状态，相同输入必产生相同输出。
type Aggregator struct {
	// pair 货币对
	pair string
	// weights 各信号类型的投票权重
	weights config.WeightsConfig
	// neutralZone 中性区阈值 ε
	neutralZone float64
	// stopATRMult 止损距离的 ATR 倍数
	stopATRMult float64
	// takeATRMult 止盈距离的 ATR 倍数
	takeATRMult float64
}

// NewAggregator 创建决策聚合器
// 参数 pair: 货币对
// 参数 sigCfg: 信号权重配置
// 参数 execCfg: 影子执行配置（提供 ATR 倍数）
func NewAggregator(pair string, sigCfg config.SignalsConfig, execCfg config.ExecutionConfig) *Aggregator {
	return &Aggregator{
		pair:        pair,
		weights:     sigCfg.Weights,
		neutralZone: sigCfg.NeutralZone,
		stopATRMult: execCfg.StopATRMult,
		takeATRMult: execCfg.TakeATRMult,
	}
}

// Aggregate 聚合当前 tick 的信号集合为一个 Decision
// 算法: score = Σ 方向系数 × 置信度 × 权重；
// |score| < ε 时方向为中性，否则由符号决定方向，|score| 截断到 [0,1] 作为置信度。
// 缺席的信号源视为弃权（贡献为 0），并记录在 Rationale 中。
// 参数 now: 决策时间
// 参数 snap: 当前市场快照（提供参考价与 ATR）
// 参数 signals: 本 tick 的信号集合（允许缺失任意类型）
func (a *Aggregator) Aggregate(now time.Time, snap *model.MarketSnapshot, signals []model.Signal) *model.Decision {
	byKind := make(map[model.SignalKind]*model.Signal, len(signals))
	for i := range signals {
		s := &signals[i]
		if !s.IsValid() {
			continue
		}
		byKind[s.Kind] = s
	}

	var score float64
	ordered := make([]model.Signal, 0, len(model.AllSignalKinds))
	var parts []string

	// 固定遍历顺序，保证决策与 Rationale 的确定性
	for _, kind := range model.AllSignalKinds {
		w := a.weights.Weight(string(kind))
		s, ok := byKind[kind]
		if !ok {
			parts = append(parts, fmt.Sprintf("%s=abstain", kind))
			continue
		}
		score += s.Direction.Coeff() * s.Confidence * w
		ordered = append(ordered, *s)
		parts = append(parts, fmt.Sprintf("%s=%s(%.2f)", kind, s.Direction, s.Confidence))
	}

	dir := model.DirNeutral
	if score > a.neutralZone {
		dir = model.DirLong
	} else if score < -a.neutralZone {
		dir = model.DirShort
	}

	// 置信度恒为 |score| 截断到 [0,1]，中性决策也保留票数强度
	conf := score
	if conf < 0 {
		conf = -conf
	}
	if conf > 1 {
		conf = 1
	}

	d := &model.Decision{
		Pair:       a.pair,
		Direction:  dir,
		Confidence: conf,
		Score:      score,
		Signals:    ordered,
		Rationale:  fmt.Sprintf("%s | score=%.4f", strings.Join(parts, " "), score),
		RefPrice:   0,
		Timestamp:  now,
	}
	if snap.IsValid() {
		d.RefPrice = snap.ClosePrice
	}

	// 非中性决策由 ATR 派生止损/止盈价位；ATR 缺失时价位为 0，
	// 风控在定仓阶段会因止损距离不可用而拒绝。
	if dir != model.DirNeutral && snap.IsValid() {
		if atr, ok := snap.Indicator(model.IndATR); ok && atr > 0 {
			switch dir {
			case model.DirLong:
				d.StopLoss = snap.ClosePrice - a.stopATRMult*atr
				d.TakeProfit = snap.ClosePrice + a.takeATRMult*atr
			case model.DirShort:
				d.StopLoss = snap.ClosePrice + a.stopATRMult*atr
				d.TakeProfit = snap.ClosePrice - a.takeATRMult*atr
			}
		}
	}

	return d
}

// Package model 定义影子交易代理中使用的核心数据结构。
// 包含信号、决策、风控裁决、影子订单等核心类型。
package model

import (
	"time"
)

// Direction 交易方向
type Direction string

const (
	// DirLong 多头方向
	DirLong Direction = "long"
	// DirShort 空头方向
	DirShort Direction = "short"
	// DirNeutral 中性方向（不交易）
	DirNeutral Direction = "neutral"
)

// Coeff 获取方向系数
// 多头返回 +1，空头返回 -1，中性返回 0
func (d Direction) Coeff() float64 {
	switch d {
	case DirLong:
		return 1
	case DirShort:
		return -1
	default:
		return 0
	}
}

// SignalKind 信号来源类型
type SignalKind string

const (
	// KindTrend 趋势信号（SMA 交叉）
	KindTrend SignalKind = "trend"
	// KindMomentum 动量信号（RSI 超买/超卖）
	KindMomentum SignalKind = "momentum"
	// KindVolatility 波动率信号（ATR 状态）
	KindVolatility SignalKind = "volatility"
	// KindNews 新闻/事件信号
	KindNews SignalKind = "news"
)

// AllSignalKinds 全部信号类型（固定遍历顺序，保证决策确定性）
var AllSignalKinds = []SignalKind{KindTrend, KindMomentum, KindVolatility, KindNews}

// Signal 单个信号源在当前 tick 的投票
// 由外部信号生成器产出，当 tick 消费后仅保留在审计记录中。
type Signal struct {
	// Kind 信号来源类型: trend, momentum, volatility, news
	Kind SignalKind `json:"kind"`
	// Direction 投票方向: long, short, neutral
	Direction Direction `json:"direction"`
	// Confidence 置信度，取值 [0, 1]
	Confidence float64 `json:"confidence"`
	// Reason 信号产生原因（人类可读）
	Reason string `json:"reason"`
	// Timestamp 信号产生时间
	Timestamp time.Time `json:"timestamp"`
}

// IsValid 检查信号是否合法
// 合法条件: 置信度在 [0, 1]，方向为已知枚举值
func (s *Signal) IsValid() bool {
	if s.Confidence < 0 || s.Confidence > 1 {
		return false
	}
	switch s.Direction {
	case DirLong, DirShort, DirNeutral:
		return true
	default:
		return false
	}
}

// Decision 一次 tick 的聚合决策
// 由决策聚合器创建，创建后不可变。
type Decision struct {
	// Pair 货币对，如 EUR_USD
	Pair string `json:"pair"`
	// Direction 聚合方向: long, short, neutral
	Direction Direction `json:"direction"`
	// Confidence 聚合置信度，|加权得分| 截断到 [0, 1]
	Confidence float64 `json:"confidence"`
	// Score 原始加权得分（带符号，未截断）
	Score float64 `json:"score"`
	// Signals 参与投票的信号（固定顺序: trend, momentum, volatility, news）
	Signals []Signal `json:"signals"`
	// Rationale 决策依据，包含缺席信号源的说明
	Rationale string `json:"rationale"`
	// RefPrice 当前 tick 的参考价（最新收盘价）
	RefPrice float64 `json:"ref_price"`
	// StopLoss 止损价（close ∓ stop_atr_mult × ATR）
	// 中性决策时为 0
	StopLoss float64 `json:"stop_loss"`
	// TakeProfit 止盈价（close ± take_atr_mult × ATR）
	// 中性决策时为 0
	TakeProfit float64 `json:"take_profit"`
	// Timestamp 决策时间
	Timestamp time.Time `json:"timestamp"`
}

// IsNeutral 判断是否为中性（不交易）决策
func (d *Decision) IsNeutral() bool {
	return d.Direction == DirNeutral
}

// StopDistance 获取止损距离（参考价与止损价之差的绝对值）
// 中性决策或止损价缺失（ATR 不可用）时返回 0
func (d *Decision) StopDistance() float64 {
	if d.IsNeutral() || d.StopLoss <= 0 {
		return 0
	}
	dist := d.RefPrice - d.StopLoss
	if dist < 0 {
		return -dist
	}
	return dist
}

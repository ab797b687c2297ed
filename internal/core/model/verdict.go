// Package model 定义影子交易代理中使用的核心数据结构。
package model

import (
	"time"
)

// RejectReason 风控拒绝原因码
type RejectReason string

const (
	// ReasonNone 未拒绝（批准时使用）
	ReasonNone RejectReason = ""
	// ReasonDailyCap 当日已触及日亏损上限，当天剩余时间禁止交易
	ReasonDailyCap RejectReason = "daily_cap_breached"
	// ReasonNoSignal 决策为中性方向，无可执行信号
	ReasonNoSignal RejectReason = "no_signal"
	// ReasonExposure 已开仓位数达到上限
	ReasonExposure RejectReason = "exposure_limit"
	// ReasonSizeTooSmall 按风险预算计算的仓位向下取整后为 0
	ReasonSizeTooSmall RejectReason = "size_too_small"
)

// RiskVerdict 风控裁决
// 由风控管理器从 Decision 派生，创建后不可变。
// 不变量: Approved=false 时 Size=0；Approved=true 时 Size>0 且
// Size × 止损距离 ≤ max_risk_per_trade × equity。
type RiskVerdict struct {
	// Pair 货币对
	Pair string `json:"pair"`
	// Direction 裁决对应的决策方向
	Direction Direction `json:"direction"`
	// Approved 是否批准执行
	Approved bool `json:"approved"`
	// Reason 拒绝原因码；批准时为空
	Reason RejectReason `json:"reason,omitempty"`
	// Size 批准的仓位（单位数，整数值）；拒绝时为 0
	Size float64 `json:"size"`
	// RiskAmount 本笔交易的最大风险金额（equity × max_risk_per_trade）
	RiskAmount float64 `json:"risk_amount"`
	// StopDistance 止损距离（价格单位）
	StopDistance float64 `json:"stop_distance"`
	// Timestamp 裁决时间
	Timestamp time.Time `json:"timestamp"`
}

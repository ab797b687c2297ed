// Package model 定义影子交易代理中使用的核心数据结构。
// 重要：影子订单仅用于模拟，严禁真实下单。
package model

import (
	"time"
)

// OrderStatus 影子订单状态
type OrderStatus string

const (
	// StatusFilled 已模拟成交
	StatusFilled OrderStatus = "filled"
)

// CloseReason 平仓原因
type CloseReason string

const (
	// CloseStopLoss 止损触发平仓
	CloseStopLoss CloseReason = "stop_loss"
	// CloseTakeProfit 止盈触发平仓
	CloseTakeProfit CloseReason = "take_profit"
)

// ShadowOrder 影子订单
// 仅能从已批准的 RiskVerdict 创建；状态一旦设置即为终态。
type ShadowOrder struct {
	// ID 单调递增的订单号（由 AccountState 分配）
	ID int64 `json:"id"`
	// Pair 货币对
	Pair string `json:"pair"`
	// Direction 开仓方向: long 或 short
	Direction Direction `json:"direction"`
	// Size 仓位（单位数）
	Size float64 `json:"size"`
	// EntryPx 入场价（当前 tick 参考价，零滑点模型）
	EntryPx float64 `json:"entry_px"`
	// StopLoss 止损价
	StopLoss float64 `json:"stop_loss"`
	// TakeProfit 止盈价
	TakeProfit float64 `json:"take_profit"`
	// Status 订单状态（当前仅 filled: 被拒绝的决策不产生订单）
	Status OrderStatus `json:"status"`
	// OpenedAt 开仓时间
	OpenedAt time.Time `json:"opened_at"`
}

// ClosedOrder 已平仓订单
// 平仓由影子执行引擎在后续 tick 对照新参考价触发。
type ClosedOrder struct {
	// Order 原始影子订单
	Order ShadowOrder `json:"order"`
	// ExitPx 出场价（止损价或止盈价）
	ExitPx float64 `json:"exit_px"`
	// Reason 平仓原因: stop_loss 或 take_profit
	Reason CloseReason `json:"reason"`
	// PnL 已实现盈亏 = (exit - entry) × size × 方向系数
	PnL float64 `json:"pnl"`
	// ClosedAt 平仓时间
	ClosedAt time.Time `json:"closed_at"`
}

// IsWin 判断是否盈利
func (c *ClosedOrder) IsWin() bool {
	return c.PnL > 0
}

// HoldDuration 获取持仓时长
func (c *ClosedOrder) HoldDuration() time.Duration {
	return c.ClosedAt.Sub(c.Order.OpenedAt)
}

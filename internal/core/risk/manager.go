// Package risk 实现资本保全硬约束检查与仓位计算。
// Check 是 (Decision, 账户视图, 配置) 的纯函数: 无变更、无 I/O，
// 对相同输入重复调用是幂等的。
package risk

import (
	"math"
	"time"

	"forex-shadow-agent/internal/config"
	"forex-shadow-agent/internal/core/account"
	"forex-shadow-agent/internal/core/model"
)

// Manager 风控管理器
type Manager struct {
	// cfg 风控限额配置
	cfg config.RiskConfig
}

// NewManager 创建风控管理器
// 参数 cfg: 风控限额配置
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Check 对决策执行硬约束检查，产出风控裁决
// 约束按固定顺序评估，首个失败即短路并携带对应原因码:
//  1. 日亏损上限: daily_pnl ≤ -daily_loss_cap × equity ⇒ daily_cap_breached
//  2. 中性决策 ⇒ no_signal
//  3. 持仓数上限 ⇒ exposure_limit
//  4. 定仓: size = floor(equity × max_risk_per_trade / 止损距离)；
//     止损距离不可用或 size 取整后为 0 ⇒ size_too_small
//
// 批准时满足不变量: size > 0 且 size × 止损距离 ≤ max_risk_per_trade × equity。
// 参数 now: 裁决时间
// 参数 d: 待检查的决策
// 参数 acct: 账户只读视图
func (m *Manager) Check(now time.Time, d *model.Decision, acct account.View) *model.RiskVerdict {
	v := &model.RiskVerdict{
		Pair:      d.Pair,
		Direction: d.Direction,
		Timestamp: now,
	}

	// 1. 日亏损上限: 无论决策质量如何，当天剩余时间禁止交易
	if acct.DailyPnL <= -m.cfg.DailyLossCap*acct.Equity {
		v.Reason = model.ReasonDailyCap
		return v
	}

	// 2. 中性决策无可执行方向
	if d.IsNeutral() {
		v.Reason = model.ReasonNoSignal
		return v
	}

	// 3. 持仓数上限
	if acct.OpenPositions >= m.cfg.MaxOpenPositions {
		v.Reason = model.ReasonExposure
		return v
	}

	// 4. 定仓: 止损处的最大亏损不得超过单笔风险预算
	riskAmount := acct.Equity * m.cfg.MaxRiskPerTrade
	stopDist := d.StopDistance()
	v.RiskAmount = riskAmount
	v.StopDistance = stopDist

	if stopDist <= 0 {
		// 止损价位不可用（如 ATR 缺失），无法定仓
		v.Reason = model.ReasonSizeTooSmall
		return v
	}

	size := math.Floor(riskAmount / stopDist)
	if size < 1 {
		v.Reason = model.ReasonSizeTooSmall
		return v
	}

	v.Approved = true
	v.Size = size
	return v
}

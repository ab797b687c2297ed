// Package shadow 实现影子/模拟成交的执行引擎。
// 重要：仅用于研究观察，严禁真实下单；唯一副作用是账户状态变更
// 与交给调用方记账的结果值。
package shadow

import (
	"fmt"
	"time"

	"forex-shadow-agent/internal/core/account"
	"forex-shadow-agent/internal/core/model"
)

// Engine 影子执行引擎
// 账户总账的唯一写入者（见 account 包的单写者约定）。
type Engine struct {
	// pair 货币对
	pair string
	// ledger 账户总账
	ledger *account.Ledger
}

// NewEngine 创建影子执行引擎
// 参数 pair: 货币对
// 参数 ledger: 账户总账
func NewEngine(pair string, ledger *account.Ledger) *Engine {
	return &Engine{pair: pair, ledger: ledger}
}

// Execute 按已批准的风控裁决模拟成交
// 成交模型: 按决策的参考价零滑点成交（显式简化，不建模滑点）。
// 账户变更无法落盘时本 tick 致命: 订单回滚、错误上抛，绝不在
// 未持久化的情况下声称成交成功。
// 参数 now: 成交时间
// 参数 d: 产生裁决的决策
// 参数 v: 已批准的风控裁决
// 返回: 已成交的影子订单
func (e *Engine) Execute(now time.Time, d *model.Decision, v *model.RiskVerdict) (*model.ShadowOrder, error) {
	if v == nil || !v.Approved {
		return nil, fmt.Errorf("仅已批准的裁决可执行")
	}
	if v.Size <= 0 {
		return nil, fmt.Errorf("裁决仓位非法: size=%f", v.Size)
	}
	if d == nil || d.RefPrice <= 0 {
		return nil, fmt.Errorf("决策缺少有效参考价")
	}
	if d.StopLoss <= 0 {
		return nil, fmt.Errorf("决策缺少止损价")
	}

	order := model.ShadowOrder{
		ID:         e.ledger.AllocateOrderID(),
		Pair:       e.pair,
		Direction:  d.Direction,
		Size:       v.Size,
		EntryPx:    d.RefPrice,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
		Status:     model.StatusFilled,
		OpenedAt:   now,
	}

	if err := e.ledger.ApplyFill(order); err != nil {
		return nil, fmt.Errorf("订单入账失败: %w", err)
	}
	if err := e.ledger.Persist(); err != nil {
		// 回滚未持久化的订单，保证无部分状态
		e.ledger.Rollback(order.ID)
		return nil, fmt.Errorf("账户状态持久化失败: %w", err)
	}

	return &order, nil
}

// EvaluateOpen 对照新 tick 的参考价重新评估全部持仓
// 止损/止盈触价即按对应价位平仓；已实现盈亏计入权益与当日盈亏。
// 在新决策评估之前调用（持仓跨 tick 存续的平仓评估步骤）。
// 参数 now: 当前时间
// 参数 refPrice: 当前 tick 参考价
// 返回: 本次平仓的订单集合；持久化失败时返回错误（致命）
func (e *Engine) EvaluateOpen(now time.Time, refPrice float64) ([]model.ClosedOrder, error) {
	if refPrice <= 0 {
		return nil, nil
	}

	var closed []model.ClosedOrder
	for _, o := range e.ledger.OpenOrders() {
		exitPx, reason, hit := evalExit(&o, refPrice)
		if !hit {
			continue
		}

		c := model.ClosedOrder{
			Order:    o,
			ExitPx:   exitPx,
			Reason:   reason,
			PnL:      (exitPx - o.EntryPx) * o.Size * o.Direction.Coeff(),
			ClosedAt: now,
		}
		if err := e.ledger.ApplyClose(c); err != nil {
			return closed, fmt.Errorf("平仓入账失败: %w", err)
		}
		closed = append(closed, c)
	}

	if len(closed) > 0 {
		if err := e.ledger.Persist(); err != nil {
			return closed, fmt.Errorf("账户状态持久化失败: %w", err)
		}
	}
	return closed, nil
}

// evalExit 判断持仓是否触发退出
// 止损优先于止盈: 同一 tick 内两者都触发时按止损处理（保守）。
// 返回: 出场价、平仓原因、是否触发
func evalExit(o *model.ShadowOrder, refPrice float64) (float64, model.CloseReason, bool) {
	switch o.Direction {
	case model.DirLong:
		if refPrice <= o.StopLoss {
			return o.StopLoss, model.CloseStopLoss, true
		}
		if o.TakeProfit > 0 && refPrice >= o.TakeProfit {
			return o.TakeProfit, model.CloseTakeProfit, true
		}
	case model.DirShort:
		if refPrice >= o.StopLoss {
			return o.StopLoss, model.CloseStopLoss, true
		}
		if o.TakeProfit > 0 && refPrice <= o.TakeProfit {
			return o.TakeProfit, model.CloseTakeProfit, true
		}
	}
	return 0, "", false
}

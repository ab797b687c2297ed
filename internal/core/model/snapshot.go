// Package model 定义影子交易代理中使用的核心数据结构。
package model

import (
	"time"
)

// 指标名称常量
// 缺失的指标在快照 Indicators 中不出现，下游信号源按弃权处理。
const (
	// IndSMAFast 快速均线（50 周期）
	IndSMAFast = "sma_50"
	// IndSMASlow 慢速均线（200 周期）
	IndSMASlow = "sma_200"
	// IndRSI 相对强弱指标（14 周期）
	IndRSI = "rsi_14"
	// IndATR 平均真实波幅（14 周期）
	IndATR = "atr_14"
)

// Candle OHLCV K 线
type Candle struct {
	// Timestamp K 线时间
	Timestamp time.Time `json:"timestamp"`
	// Open 开盘价
	Open float64 `json:"open"`
	// High 最高价
	High float64 `json:"high"`
	// Low 最低价
	Low float64 `json:"low"`
	// Close 收盘价
	Close float64 `json:"close"`
	// Volume 成交量
	Volume float64 `json:"volume"`
}

// MarketSnapshot 当前 tick 的市场快照
// 由市场数据提供者产出（K 线 + 指标），作为信号生成的唯一输入。
type MarketSnapshot struct {
	// Pair 货币对
	Pair string `json:"pair"`
	// Timeframe K 线周期，如 4h
	Timeframe string `json:"timeframe"`
	// ClosePrice 最新收盘价（tick 参考价）
	ClosePrice float64 `json:"close_price"`
	// Spread 当前买卖价差（价格单位）
	Spread float64 `json:"spread"`
	// Indicators 指标集合; 缺失的 key 表示历史数据不足
	Indicators map[string]float64 `json:"indicators"`
	// Timestamp 快照时间（最新 K 线时间）
	Timestamp time.Time `json:"timestamp"`
}

// IsValid 检查快照是否可用
// 可用条件: 收盘价大于 0
func (m *MarketSnapshot) IsValid() bool {
	return m != nil && m.ClosePrice > 0
}

// Indicator 获取指定指标值
// 返回: 指标值与是否存在
func (m *MarketSnapshot) Indicator(name string) (float64, bool) {
	if m == nil || m.Indicators == nil {
		return 0, false
	}
	v, ok := m.Indicators[name]
	return v, ok
}

// Package market 定义市场数据提供者接口并实现快照构建。
// 提供者在构造期选定（mock 或 oanda），绝不通过运行时类型探测切换。
package market

import (
	"context"
	"fmt"
	"time"

	"forex-shadow-agent/internal/core/model"
)

// DataProvider 市场数据提供者能力接口
// 实现: MockProvider（合成数据）、oanda.Provider（实时数据）。
type DataProvider interface {
	// FetchCandles 拉取最近的 K 线序列（旧到新排序）
	FetchCandles(ctx context.Context, pair, timeframe string, lookback int) ([]model.Candle, error)
	// FetchSpread 获取当前买卖价差
	FetchSpread(ctx context.Context, pair string) (float64, error)
}

// BuildSnapshot 从 K 线序列构建带指标的市场快照
// 历史不足以计算某个指标时该指标缺席，下游信号源按弃权处理。
// 参数 pair: 货币对
// 参数 timeframe: K 线周期
// 参数 candles: K 线序列（旧到新）
// 参数 spread: 当前买卖价差
func BuildSnapshot(pair, timeframe string, candles []model.Candle, spread float64) (*model.MarketSnapshot, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("K 线序列为空")
	}

	last := candles[len(candles)-1]
	snap := &model.MarketSnapshot{
		Pair:       pair,
		Timeframe:  timeframe,
		ClosePrice: last.Close,
		Spread:     spread,
		Indicators: make(map[string]float64, 4),
		Timestamp:  last.Timestamp,
	}

	if v, ok := SMA(candles, 50); ok {
		snap.Indicators[model.IndSMAFast] = v
	}
	if v, ok := SMA(candles, 200); ok {
		snap.Indicators[model.IndSMASlow] = v
	}
	if v, ok := RSI(candles, 14); ok {
		snap.Indicators[model.IndRSI] = v
	}
	if v, ok := ATR(candles, 14); ok {
		snap.Indicators[model.IndATR] = v
	}

	return snap, nil
}

// FetchSnapshot 拉取行情并构建快照（带超时）
// 这是 tick 中唯一允许的阻塞点；超时防止卡死的数据源无限期
// 拖延本 tick 的审计记录。
// 参数 ctx: 上下文
// 参数 p: 数据提供者
// 参数 pair: 货币对
// 参数 timeframe: K 线周期
// 参数 lookback: 拉取的 K 线数量
// 参数 timeout: 拉取超时
func FetchSnapshot(ctx context.Context, p DataProvider, pair, timeframe string, lookback int, timeout time.Duration) (*model.MarketSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	candles, err := p.FetchCandles(fetchCtx, pair, timeframe, lookback)
	if err != nil {
		return nil, fmt.Errorf("拉取 K 线失败: %w", err)
	}

	spread, err := p.FetchSpread(fetchCtx, pair)
	if err != nil {
		// 价差获取失败不致命: 快照仍可用于决策，价差按 0 记录
		spread = 0
	}

	return BuildSnapshot(pair, timeframe, candles, spread)
}

// 指标计算: SMA / RSI / ATR。
// 轻量实现，仅覆盖信号源所需的指标；历史不足时显式返回不可用。
package market

import (
	"math"

	"forex-shadow-agent/internal/core/model"
)

// SMA 计算简单移动平均（最近 period 根 K 线的收盘均价）
// 参数 candles: K 线序列（旧到新）
// 参数 period: 周期
// 返回: 均值与是否可用（历史不足时 false）
func SMA(candles []model.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}
	var sum float64
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period), true
}

// RSI 计算相对强弱指标（Wilder 平滑）
// 参数 candles: K 线序列（旧到新）
// 参数 period: 周期（常用 14）
// 返回: RSI 值（0-100）与是否可用
func RSI(candles []model.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	// 初始均值: 前 period 个涨跌幅的简单平均
	for i := len(candles) - period; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// ATR 计算平均真实波幅
// TR = max(high-low, |high-prevClose|, |low-prevClose|)
// 参数 candles: K 线序列（旧到新）
// 参数 period: 周期（常用 14）
// 返回: ATR 值与是否可用
func ATR(candles []model.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}

	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		c := candles[i]
		prevClose := candles[i-1].Close
		tr := c.High - c.Low
		tr = math.Max(tr, math.Abs(c.High-prevClose))
		tr = math.Max(tr, math.Abs(c.Low-prevClose))
		sum += tr
	}
	return sum / float64(period), true
}

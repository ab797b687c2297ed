// 合成数据提供者: 确定性随机游走 OHLCV。
// 用于无外部依赖的影子运行与测试；相同种子产生相同序列。
package market

import (
	"context"
	"math"
	"math/rand"
	"time"

	"forex-shadow-agent/internal/core/model"
)

// MockProvider 合成数据提供者
// 以固定种子的随机游走生成 K 线，价差固定。
type MockProvider struct {
	// seed 随机种子（可复现）
	seed int64
	// basePrice 游走起始价
	basePrice float64
	// spread 固定买卖价差
	spread float64
}

// NewMockProvider 创建合成数据提供者
// 参数 seed: 随机种子
func NewMockProvider(seed int64) *MockProvider {
	return &MockProvider{
		seed:      seed,
		basePrice: 1.10,
		spread:    0.00015, // 1.5 pip
	}
}

// FetchCandles 生成以当前时间结尾的合成 K 线序列
// 游走: close[i] = base × exp(Σ N(0, 0.001))，高低价在开收价外 ±0.05%。
// 参数 ctx: 上下文（合成数据不阻塞，仅响应取消）
// 参数 pair: 货币对（不影响生成）
// 参数 timeframe: K 线周期（决定时间间隔）
// 参数 lookback: K 线数量
func (m *MockProvider) FetchCandles(ctx context.Context, pair, timeframe string, lookback int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	interval := timeframeDuration(timeframe)
	end := time.Now().UTC().Truncate(interval)

	rng := rand.New(rand.NewSource(m.seed))
	prices := make([]float64, lookback)
	var cum float64
	for i := 0; i < lookback; i++ {
		cum += rng.NormFloat64() * 0.001
		prices[i] = m.basePrice * math.Exp(cum)
	}

	candles := make([]model.Candle, lookback)
	for i := 0; i < lookback; i++ {
		close := prices[i]
		open := close
		if i > 0 {
			open = prices[i-1]
		}
		high := math.Max(open, close) * 1.0005
		low := math.Min(open, close) * 0.9995
		candles[i] = model.Candle{
			Timestamp: end.Add(-time.Duration(lookback-1-i) * interval),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(1000 + rng.Intn(9000)),
		}
	}
	return candles, nil
}

// FetchSpread 返回固定价差
func (m *MockProvider) FetchSpread(ctx context.Context, pair string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.spread, nil
}

// timeframeDuration 将周期字符串转换为时间间隔
// 未知周期按 4 小时处理。
func timeframeDuration(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 4 * time.Hour
	}
}

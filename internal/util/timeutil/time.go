// Package timeutil 提供时间相关的工具函数。
// 主要用于获取抗时钟跳变的时间戳以及交易日边界计算。
package timeutil

import (
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// 使用“单调时钟 + 启动时 Unix 时间”组合实现：
// NowNano = baseUnixNs + time.Since(baseTime).Nanoseconds()
// 这样在系统时间跳变（NTP/手动调整）时也能保持时间差的单调性，
// 避免污染审计记录的时间顺序。
// 返回: 当前时间的 Unix 纳秒时间戳
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NanoToTime 将纳秒时间戳转换为 time.Time
// 参数 ns: 纳秒时间戳
// 返回: time.Time 对象
func NanoToTime(ns int64) time.Time {
	return time.Unix(0, ns)
}

// Now 获取当前时间的 time.Time 表示（基于 NowNano）
func Now() time.Time {
	return NanoToTime(NowNano())
}

// TradingDay 计算时间所属的交易日标识
// 交易日按 UTC 日期切分，是日亏损统计的重置边界。
// 参数 t: 任意时间
// 返回: 形如 2024-07-15 的交易日标识
func TradingDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SameTradingDay 判断两个时间是否属于同一交易日
func SameTradingDay(a, b time.Time) bool {
	return TradingDay(a) == TradingDay(b)
}

// DurationMs 计算两个纳秒时间戳之间的毫秒差
// 参数 startNs: 开始时间（纳秒）
// 参数 endNs: 结束时间（纳秒）
// 返回: 时间差（毫秒，浮点数以保留精度）
func DurationMs(startNs, endNs int64) float64 {
	return float64(endNs-startNs) / 1_000_000.0
}

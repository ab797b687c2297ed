// Package health 实现行情数据健康度统计。
// 追踪行情拉取延迟分位数与连续失败次数，
// 供审计日志与仪表盘快照标记数据质量问题。
package health

import (
	"sort"
	"sync"

	"forex-shadow-agent/internal/util/timeutil"
)

// Stats 数据健康度统计快照
type Stats struct {
	// SampleCount 延迟样本数
	SampleCount int `json:"sample_count"`
	// P50Ms 延迟中位数（毫秒）
	P50Ms float64 `json:"p50_ms"`
	// P90Ms 90 分位延迟（毫秒）
	P90Ms float64 `json:"p90_ms"`
	// P99Ms 99 分位延迟（毫秒）
	P99Ms float64 `json:"p99_ms"`
	// ConsecutiveFailures 连续拉取失败次数
	ConsecutiveFailures int `json:"consecutive_failures"`
	// LastSuccessAtNs 最近一次成功拉取的时间戳（纳秒，0 表示尚无）
	LastSuccessAtNs int64 `json:"last_success_at_ns"`
	// StaleTicks 使用过期快照兜底的总次数
	StaleTicks int64 `json:"stale_ticks"`
}

// Tracker 数据健康度追踪器（环形缓冲延迟窗口）
// 并发安全: 拉取协程记录，导出协程读取。
type Tracker struct {
	mu sync.Mutex

	// windowSize 延迟样本窗口大小
	windowSize int
	// samples 延迟环形缓冲区（毫秒）
	samples []float64
	pos     int
	full    bool

	consecutiveFailures int
	lastSuccessNs       int64
	staleTicks          int64
}

// NewTracker 创建健康度追踪器
// 参数 windowSize: 延迟样本窗口大小（建议 256）
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 256
	}
	return &Tracker{
		windowSize: windowSize,
		samples:    make([]float64, windowSize),
	}
}

// RecordSuccess 记录一次成功拉取及其耗时
func (t *Tracker) RecordSuccess(nowNs int64, latencyMs float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.pos] = latencyMs
	t.pos++
	if t.pos >= t.windowSize {
		t.pos = 0
		t.full = true
	}
	t.consecutiveFailures = 0
	t.lastSuccessNs = nowNs
}

// RecordFailure 记录一次拉取失败，返回当前连续失败次数
func (t *Tracker) RecordFailure() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures++
	return t.consecutiveFailures
}

// RecordStaleTick 记录一次使用过期快照兜底的 tick
func (t *Tracker) RecordStaleTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staleTicks++
}

// Stats 返回健康度统计快照
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.pos
	if t.full {
		n = t.windowSize
	}
	out := Stats{
		SampleCount:         n,
		ConsecutiveFailures: t.consecutiveFailures,
		LastSuccessAtNs:     t.lastSuccessNs,
		StaleTicks:          t.staleTicks,
	}
	if n == 0 {
		return out
	}

	sorted := make([]float64, n)
	copy(sorted, t.samples[:n])
	sort.Float64s(sorted)

	out.P50Ms = percentile(sorted, 0.50)
	out.P90Ms = percentile(sorted, 0.90)
	out.P99Ms = percentile(sorted, 0.99)
	return out
}

// SinceLastSuccessMs 返回距最近一次成功拉取的毫秒数，尚无成功记录时返回 -1
func (t *Tracker) SinceLastSuccessMs(nowNs int64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastSuccessNs == 0 {
		return -1
	}
	return timeutil.DurationMs(t.lastSuccessNs, nowNs)
}

// percentile 最近秩法取分位数，sorted 必须已升序排序且非空
func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

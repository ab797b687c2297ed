// Package backoff 退避算法测试
package backoff

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Feature: forex-shadow-agent, Property: Exponential Backoff Bounds**

// TestBackoff_ExponentialGrowth 测试退避时间指数增长
func TestBackoff_ExponentialGrowth(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// 属性: 无抖动时退避时间单调不减，且不超过最大值
	properties.Property("退避时间指数增长", prop.ForAll(
		func(baseMs int, maxMs int) bool {
			if maxMs <= baseMs {
				return true
			}

			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			b := New(base, max, 0)

			prev := time.Duration(0)
			for i := 0; i < 10; i++ {
				delay := b.Next()
				if delay < prev && delay != max {
					return false
				}
				if delay > max {
					return false
				}
				prev = delay
			}
			return true
		},
		gen.IntRange(100, 2000),
		gen.IntRange(5000, 60000),
	))

	properties.TestingRun(t)
}

// TestBackoff_MaxBound 测试最大值边界
func TestBackoff_MaxBound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// 属性: 延迟永远不超过最大值（考虑抖动上界）
	properties.Property("延迟不超过最大值上限", prop.ForAll(
		func(baseMs int, maxMs int, jitterPercent int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			jitter := float64(jitterPercent) / 100.0
			b := New(base, max, jitter)

			maxPossible := float64(max) * (1 + jitter)
			for i := 0; i < 20; i++ {
				if float64(b.Next()) > maxPossible {
					return false
				}
			}
			return true
		},
		gen.IntRange(100, 2000),
		gen.IntRange(1000, 60000),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}

// TestBackoff_Reset 测试重置功能
func TestBackoff_Reset(t *testing.T) {
	b := New(time.Second, 60*time.Second, 0)

	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()

	if b.Attempt() != 0 {
		t.Fatalf("重置后重试次数=%d, want 0", b.Attempt())
	}
	if delay := b.Next(); delay != time.Second {
		t.Fatalf("重置后首次延迟=%v, want 1s", delay)
	}
}

// TestBackoff_DefaultConfig 测试默认配置
func TestBackoff_DefaultConfig(t *testing.T) {
	b := NewDefault()

	if b.base != time.Second {
		t.Errorf("默认 base = %v, want 1s", b.base)
	}
	if b.max != 60*time.Second {
		t.Errorf("默认 max = %v, want 60s", b.max)
	}
	if b.jitter != 0.2 {
		t.Errorf("默认 jitter = %v, want 0.2", b.jitter)
	}
}

// TestBackoff_SpecificValues 验证无抖动时的精确序列
func TestBackoff_SpecificValues(t *testing.T) {
	b := New(time.Second, 60*time.Second, 0)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second}, // 2^6 = 64s, 饱和到 60s
		{7, 60 * time.Second},
	}

	for _, tt := range tests {
		b.Reset()
		for i := 0; i < tt.attempt; i++ {
			b.Next()
		}
		if got := b.Next(); got != tt.expected {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

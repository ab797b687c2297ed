// Package health 数据健康度统计测试
package health

import (
	"testing"
)

func TestTracker_Empty(t *testing.T) {
	s := NewTracker(16).Stats()
	if s.SampleCount != 0 || s.ConsecutiveFailures != 0 || s.LastSuccessAtNs != 0 {
		t.Fatalf("空追踪器统计应全零: %+v", s)
	}
}

func TestTracker_Percentiles(t *testing.T) {
	tr := NewTracker(100)
	// 1..100ms
	for i := 1; i <= 100; i++ {
		tr.RecordSuccess(int64(i), float64(i))
	}

	s := tr.Stats()
	if s.SampleCount != 100 {
		t.Fatalf("SampleCount=%d, want 100", s.SampleCount)
	}
	if s.P50Ms != 50 {
		t.Fatalf("P50=%f, want 50", s.P50Ms)
	}
	if s.P90Ms != 90 {
		t.Fatalf("P90=%f, want 90", s.P90Ms)
	}
	if s.P99Ms != 99 {
		t.Fatalf("P99=%f, want 99", s.P99Ms)
	}
}

func TestTracker_FailureCounting(t *testing.T) {
	tr := NewTracker(16)

	if n := tr.RecordFailure(); n != 1 {
		t.Fatalf("首次失败计数=%d, want 1", n)
	}
	if n := tr.RecordFailure(); n != 2 {
		t.Fatalf("连续失败计数=%d, want 2", n)
	}

	// 成功重置连续失败计数
	tr.RecordSuccess(1000, 10)
	if s := tr.Stats(); s.ConsecutiveFailures != 0 {
		t.Fatalf("成功后连续失败计数=%d, want 0", s.ConsecutiveFailures)
	}
	if n := tr.RecordFailure(); n != 1 {
		t.Fatalf("重置后失败计数=%d, want 1", n)
	}
}

func TestTracker_StaleTicks(t *testing.T) {
	tr := NewTracker(16)
	tr.RecordStaleTick()
	tr.RecordStaleTick()
	if s := tr.Stats(); s.StaleTicks != 2 {
		t.Fatalf("StaleTicks=%d, want 2", s.StaleTicks)
	}
}

func TestTracker_SinceLastSuccess(t *testing.T) {
	tr := NewTracker(16)
	if v := tr.SinceLastSuccessMs(1_000_000_000); v != -1 {
		t.Fatalf("尚无成功记录应返回 -1, 实际 %f", v)
	}

	tr.RecordSuccess(1_000_000_000, 10)
	// 2s - 1s = 1000ms
	if v := tr.SinceLastSuccessMs(2_000_000_000); v != 1000 {
		t.Fatalf("SinceLastSuccessMs=%f, want 1000", v)
	}
}

func TestTracker_WindowWraps(t *testing.T) {
	tr := NewTracker(4)
	for i := 0; i < 10; i++ {
		tr.RecordSuccess(int64(i), 100)
	}
	if s := tr.Stats(); s.SampleCount != 4 {
		t.Fatalf("环绕后 SampleCount=%d, want 4", s.SampleCount)
	}
}

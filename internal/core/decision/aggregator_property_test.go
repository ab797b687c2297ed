// Package decision 决策聚合器属性测试
package decision

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"forex-shadow-agent/internal/core/model"
)

// **Feature: forex-shadow-agent, Property: Decision Determinism**

func TestAggregate_Determinism_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// 属性: 相同信号集合重复聚合必产生完全一致的决策
	properties.Property("相同输入产生相同决策", prop.ForAll(
		func(trendConf, momConf float64, trendLong, momLong bool) bool {
			a := testAggregator()
			now := time.Unix(1_700_000_000, 0)
			snap := testSnapshot(1.10, 0.005)

			sigs := []model.Signal{
				{Kind: model.KindTrend, Direction: boolDir(trendLong), Confidence: trendConf, Timestamp: now},
				{Kind: model.KindMomentum, Direction: boolDir(momLong), Confidence: momConf, Timestamp: now},
			}

			d1 := a.Aggregate(now, snap, sigs)
			d2 := a.Aggregate(now, snap, sigs)

			return d1.Direction == d2.Direction &&
				d1.Score == d2.Score &&
				d1.Confidence == d2.Confidence &&
				d1.Rationale == d2.Rationale &&
				d1.StopLoss == d2.StopLoss &&
				d1.TakeProfit == d2.TakeProfit
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Bool(),
		gen.Bool(),
	))

	// 属性: 信号切片顺序不影响聚合结果（按固定类型顺序遍历）
	properties.Property("信号顺序无关", prop.ForAll(
		func(trendConf, momConf float64) bool {
			a := testAggregator()
			now := time.Unix(1_700_000_000, 0)
			snap := testSnapshot(1.10, 0.005)

			s1 := model.Signal{Kind: model.KindTrend, Direction: model.DirLong, Confidence: trendConf, Timestamp: now}
			s2 := model.Signal{Kind: model.KindMomentum, Direction: model.DirShort, Confidence: momConf, Timestamp: now}

			d1 := a.Aggregate(now, snap, []model.Signal{s1, s2})
			d2 := a.Aggregate(now, snap, []model.Signal{s2, s1})

			return d1.Score == d2.Score && d1.Rationale == d2.Rationale
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// **Feature: forex-shadow-agent, Property: Confidence Bounds**

func TestAggregate_ConfidenceBounds_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// 属性: 置信度恒为 |score| 截断到 [0, 1]，与方向无关
	properties.Property("置信度在界内", prop.ForAll(
		func(confs []float64, longs []bool) bool {
			a := testAggregator()
			now := time.Unix(1_700_000_000, 0)
			snap := testSnapshot(1.10, 0.005)

			n := len(confs)
			if len(longs) < n {
				n = len(longs)
			}
			kinds := model.AllSignalKinds
			if n > len(kinds) {
				n = len(kinds)
			}

			sigs := make([]model.Signal, 0, n)
			for i := 0; i < n; i++ {
				sigs = append(sigs, model.Signal{
					Kind:       kinds[i],
					Direction:  boolDir(longs[i]),
					Confidence: confs[i],
					Timestamp:  now,
				})
			}

			d := a.Aggregate(now, snap, sigs)
			if d.Confidence < 0 || d.Confidence > 1 {
				return false
			}
			want := math.Abs(d.Score)
			if want > 1 {
				want = 1
			}
			if math.Abs(d.Confidence-want) > 1e-12 {
				return false
			}
			// 方向与得分符号一致
			if d.Direction == model.DirLong && d.Score <= 0 {
				return false
			}
			if d.Direction == model.DirShort && d.Score >= 0 {
				return false
			}
			return true
		},
		gen.SliceOfN(4, gen.Float64Range(0, 1)),
		gen.SliceOfN(4, gen.Bool()),
	))

	// 属性: 非中性决策的止损必在开仓价的亏损侧
	properties.Property("止损在亏损侧", prop.ForAll(
		func(atr float64) bool {
			a := testAggregator()
			now := time.Unix(1_700_000_000, 0)
			snap := testSnapshot(1.10, atr)

			sigs := []model.Signal{
				{Kind: model.KindTrend, Direction: model.DirLong, Confidence: 0.9, Timestamp: now},
				{Kind: model.KindMomentum, Direction: model.DirLong, Confidence: 0.9, Timestamp: now},
			}
			d := a.Aggregate(now, snap, sigs)
			if d.Direction != model.DirLong {
				return false
			}
			if d.StopLoss >= snap.ClosePrice || d.TakeProfit <= snap.ClosePrice {
				return false
			}
			// 止损距离 = 2×ATR
			return math.Abs(d.StopDistance()-2*atr) < 1e-9
		},
		gen.Float64Range(0.0001, 0.05),
	))

	properties.TestingRun(t)
}

func boolDir(long bool) model.Direction {
	if long {
		return model.DirLong
	}
	return model.DirShort
}

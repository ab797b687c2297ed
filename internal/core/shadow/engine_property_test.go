// Package shadow 影子执行引擎属性测试
package shadow

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"forex-shadow-agent/internal/core/account"
	"forex-shadow-agent/internal/core/model"
)

// **Feature: forex-shadow-agent, Property: PnL Conservation**

func TestEvaluateOpen_PnLConservation_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	// 属性: 权益变化 = 已实现盈亏之和；持仓与平仓互斥且完备
	properties.Property("权益变化等于已实现盈亏之和", prop.ForAll(
		func(entries []float64, exitPx float64) bool {
			path := filepath.Join(t.TempDir(), "state.json")
			now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
			ledger, err := account.Open(path, 10000, now)
			if err != nil {
				return false
			}
			e := NewEngine("EUR_USD", ledger)

			opened := 0
			for _, px := range entries {
				d := &model.Decision{
					Pair:       "EUR_USD",
					Direction:  model.DirLong,
					RefPrice:   px,
					StopLoss:   px * 0.99,
					TakeProfit: px * 1.015,
					Timestamp:  now,
				}
				v := &model.RiskVerdict{Approved: true, Size: 5, Direction: model.DirLong, Timestamp: now}
				if _, err := e.Execute(now, d, v); err != nil {
					return false
				}
				opened++
			}

			before := ledger.Equity()
			closed, err := e.EvaluateOpen(now.Add(4*time.Hour), exitPx)
			if err != nil {
				return false
			}

			var sum float64
			for _, c := range closed {
				sum += c.PnL
			}
			if math.Abs((ledger.Equity()-before)-sum) > 1e-9 {
				return false
			}
			return ledger.OpenCount()+len(closed) == opened
		},
		gen.SliceOfN(5, gen.Float64Range(0.8, 1.5)),
		gen.Float64Range(0.5, 2.0),
	))

	properties.TestingRun(t)
}

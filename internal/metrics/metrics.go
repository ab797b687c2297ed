// Package metrics 定义 Prometheus 指标并提供 /metrics 服务。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal 已完成的 tick 总数
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fsa_ticks_total", Help: "Completed agent ticks"},
	)

	// DecisionsTotal 聚合决策总数（按方向）
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fsa_decisions_total", Help: "Aggregated decisions by direction"},
		[]string{"direction"},
	)

	// RiskRejectionsTotal 风控拒绝总数（按原因）
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fsa_risk_rejections_total", Help: "Risk rejections by reason"},
		[]string{"reason"},
	)

	// ShadowOrdersTotal 影子订单总数（按状态）
	ShadowOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fsa_shadow_orders_total", Help: "Shadow orders by status"},
		[]string{"status"},
	)

	// PositionsClosedTotal 平仓总数（按原因）
	PositionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fsa_positions_closed_total", Help: "Closed positions by reason"},
		[]string{"reason"},
	)

	// FetchFailuresTotal 行情拉取失败总数
	FetchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fsa_fetch_failures_total", Help: "Market data fetch failures"},
	)

	// FetchLatency 行情拉取耗时（秒）
	FetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fsa_fetch_latency_seconds",
			Help:    "Market data fetch latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// AccountEquity 当前权益
	AccountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fsa_account_equity", Help: "Current shadow account equity"},
	)

	// DailyRealizedPnL 当日已实现盈亏
	DailyRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fsa_daily_realized_pnl", Help: "Realized PnL for the current trading day"},
	)

	// OpenPositions 当前持仓数
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fsa_open_positions", Help: "Currently open shadow positions"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		DecisionsTotal,
		RiskRejectionsTotal,
		ShadowOrdersTotal,
		PositionsClosedTotal,
		FetchFailuresTotal,
		FetchLatency,
		AccountEquity,
		DailyRealizedPnL,
		OpenPositions,
	)
}

// Serve 启动 /metrics HTTP 服务（非阻塞）
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

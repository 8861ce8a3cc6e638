// Package metrics 定义 Prometheus 运行指标。
// 指标通过信号注入服务的 /metrics 端点暴露。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"bitmex-market-maker/internal/core/converge"
	"bitmex-market-maker/internal/core/model"
)

var (
	// cyclesTotal 周期计数，按结果分类: ok、error、retry
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_cycles_total",
			Help: "做市周期计数，按结果分类",
		},
		[]string{"result"},
	)

	// ordersTotal 订单操作计数，按动作与方向分类
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_orders_total",
			Help: "订单操作计数，按动作（create/amend/cancel）与方向分类",
		},
		[]string{"action", "side"},
	)

	// positionQty 当前持仓数量（合约张数，带符号）
	positionQty = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mm_position_qty",
			Help: "当前持仓数量（带符号）",
		},
	)

	// positionRoe 当前持仓未实现收益率
	positionRoe = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mm_position_roe",
			Help: "当前持仓未实现收益率",
		},
	)

	// profitWatermark 追踪止盈水位
	profitWatermark = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mm_profit_watermark",
			Help: "追踪止盈的收益率水位",
		},
	)

	// exitsTotal 止盈离场计数
	exitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mm_exits_total",
			Help: "追踪止盈触发的平仓次数",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cyclesTotal,
		ordersTotal,
		positionQty,
		positionRoe,
		profitWatermark,
		exitsTotal,
	)
}

// RecordCycle 记录一次周期结果
// 参数 result: ok、error 或 retry
func RecordCycle(result string) {
	cyclesTotal.WithLabelValues(result).Inc()
}

// RecordPlan 记录一次收敛计划的订单操作量
func RecordPlan(plan converge.Plan) {
	for _, o := range plan.Creates {
		ordersTotal.WithLabelValues("create", string(o.Side)).Inc()
	}
	for _, a := range plan.Amends {
		ordersTotal.WithLabelValues("amend", string(a.Side)).Inc()
	}
	for range plan.Cancels {
		ordersTotal.WithLabelValues("cancel", "").Inc()
	}
}

// RecordPosition 记录当前持仓状态
func RecordPosition(pos *model.Position) {
	positionQty.Set(pos.CurrentQty)
	positionRoe.Set(pos.UnrealisedRoePcnt)
}

// RecordWatermark 记录追踪止盈水位
func RecordWatermark(watermark float64) {
	profitWatermark.Set(watermark)
}

// RecordExit 记录一次追踪止盈平仓
func RecordExit() {
	exitsTotal.Inc()
}

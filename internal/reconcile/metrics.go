package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 订单状态迁移总数，按迁移前后状态分
	orderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "订单状态迁移总数",
		},
		[]string{"from", "to"},
	)

	// 转人工的异常单总数
	orderEscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_escalations_total",
			Help: "订单转人工处理总数",
		},
		[]string{"type"},
	)
)

package syncsvc

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 渠道价格/库存推送总数，按渠道、内容类型与结果分
var channelPushTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "channel_push_total",
		Help: "渠道价格库存推送总数",
	},
	[]string{"platform", "kind", "outcome"},
)

func observePush(otaPlatform int, kind string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	channelPushTotal.WithLabelValues(strconv.Itoa(otaPlatform), kind, outcome).Inc()
}

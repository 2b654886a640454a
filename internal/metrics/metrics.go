// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 领取与审批是本服务仅有的两条热路径，按结果维度打点。
var (
	RedeemTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazaar",
		Subsystem: "coupon",
		Name:      "redeem_total",
		Help:      "Redemption attempts by outcome.",
	}, []string{"result"}) // success / sold_out / already_redeemed / expired_or_inactive / not_found / error

	RedeemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bazaar",
		Subsystem: "coupon",
		Name:      "redeem_duration_seconds",
		Help:      "Latency of the redeem transaction.",
		Buckets:   prometheus.DefBuckets,
	})

	ApplicationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazaar",
		Subsystem: "coupon",
		Name:      "application_transitions_total",
		Help:      "Coupon application terminal transitions.",
	}, []string{"type", "outcome"}) // outcome: approved / rejected / conflict

	ExpireSweepRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bazaar",
		Subsystem: "coupon",
		Name:      "expire_sweep_rows_total",
		Help:      "User coupons expired by the periodic sweep.",
	})

	QuotaGateRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazaar",
		Subsystem: "coupon",
		Name:      "quota_gate_rejects_total",
		Help:      "Requests short-circuited by the redis burst gate.",
	}, []string{"reason"}) // sold_out / already_redeemed
)

// Package metrics 注册机器人的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesIngested 按类别统计登记到文件注册表的消息数。
	FilesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsb_files_ingested_total",
		Help: "Messages registered from the storage channels.",
	}, []string{"category"})

	// Deliveries 按类别统计成功投递给用户的文件数。
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsb_deliveries_total",
		Help: "Files copied to users.",
	}, []string{"category"})

	// DeliveryFailures 按原因统计失败的请求。
	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsb_delivery_failures_total",
		Help: "Start requests that ended in a user-visible failure.",
	}, []string{"reason"})

	GateBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsb_gate_blocked_total",
		Help: "Requests blocked pending channel subscription.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsb_rate_limited_total",
		Help: "Rate limit signals received from the platform.",
	})

	DeletionsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsb_deletions_scheduled_total",
		Help: "Auto-delete tasks registered.",
	})

	DeletionsDone = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsb_deletions_done_total",
		Help: "Auto-delete tasks that removed their message.",
	})

	DeletionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsb_deletions_failed_total",
		Help: "Auto-delete tasks that failed.",
	})

	// BroadcastResults 按结果统计广播投递。
	BroadcastResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsb_broadcast_results_total",
		Help: "Broadcast deliveries by outcome.",
	}, []string{"outcome"})
)

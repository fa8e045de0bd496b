package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 访客生命周期相关的业务指标。
var (
	GuestSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cvforge",
		Subsystem: "guest",
		Name:      "sessions_created_total",
		Help:      "创建的访客会话总数。",
	})

	GuestSessionsConverted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cvforge",
		Subsystem: "guest",
		Name:      "sessions_converted_total",
		Help:      "转正为注册用户的访客会话总数。",
	})

	GuestRateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cvforge",
		Subsystem: "guest",
		Name:      "rate_limit_hits_total",
		Help:      "触发 IP 频率限制的次数（kind: session/resume）。",
	}, []string{"kind"})

	ThumbnailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cvforge",
		Subsystem: "thumbnail",
		Name:      "failures_total",
		Help:      "缩略图生成失败次数。",
	})
)

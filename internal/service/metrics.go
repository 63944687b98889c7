package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by auth domain and outcome",
		},
		[]string{"domain", "outcome"},
	)

	lockoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Account lockouts applied by auth domain",
		},
		[]string{"domain"},
	)

	tokenReuseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_reuse_detected_total",
			Help: "Refresh token reuse detections by auth domain",
		},
		[]string{"domain"},
	)
)

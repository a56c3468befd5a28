package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	startupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faydo_session_startups_total",
		Help: "Session restores by outcome (authenticated, anonymous, offline).",
	}, []string{"outcome"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faydo_session_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faydo_session_token_refreshes_total",
		Help: "Access token refresh attempts by outcome (success, rejected, transient, stale).",
	}, []string{"outcome"})
)

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	movesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hanoi",
		Name:      "moves_total",
		Help:      "Total disks moved, by who moved them (manual or solver).",
	}, []string{"source"})

	winsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hanoi",
		Name:      "wins_total",
		Help:      "Total games solved.",
	})

	solvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hanoi",
		Name:      "auto_solves_total",
		Help:      "Auto-solve runs by outcome (started, completed, cancelled).",
	}, []string{"outcome"})

	restartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hanoi",
		Name:      "restarts_total",
		Help:      "Total restarts and disk count changes.",
	})

	gamesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hanoi",
		Name:      "games_active",
		Help:      "Number of games currently held in memory.",
	})

	clientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hanoi",
		Name:      "clients_connected",
		Help:      "Number of open game sockets.",
	})

	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

func registerMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		movesTotal,
		winsTotal,
		solvesTotal,
		restartsTotal,
		gamesActive,
		clientsConnected,
	)
}

func registerMetricsHandlers(cfg *Config, mux *httprouter.Router) {
	registerOnce.Do(func() {
		registerMetrics(registry)
	})

	mux.Handler("GET", cfg.prefix+"/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

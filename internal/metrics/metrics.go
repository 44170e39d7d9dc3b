// Package metrics exposes the Prometheus surface scraped by Grafana.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PriceSolPerGC = prometheus.NewGauge(prometheus.GaugeOpts{Name: "price_sol_per_gc", Help: "SOL per GC (spot)"})
	SolUSDC       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "sol_usdc", Help: "USDC per SOL (spot)"})
	BandLowerSol  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "band_lower_sol", Help: "Lower band in SOL per GC"})
	BandUpperSol  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "band_upper_sol", Help: "Upper band in SOL per GC"})
	TreasuryGC    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "treasury_gc", Help: "Treasury GC balance"})
	VaultUSDC     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "vault_usdc", Help: "Vault USDC balance"})
	VaultUSDT     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "vault_usdt", Help: "Vault USDT balance"})

	ExecBuyCount  = prometheus.NewCounter(prometheus.CounterOpts{Name: "exec_buy_count", Help: "Number of BUY executions"})
	ExecSellCount = prometheus.NewCounter(prometheus.CounterOpts{Name: "exec_sell_count", Help: "Number of SELL executions"})
	SkipCount     = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cycle_skip_count", Help: "Cycles skipped by a gate"},
		[]string{"gate"},
	)
	CycleErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "cycle_error_count", Help: "Cycles ended by an error"})
)

func init() {
	prometheus.MustRegister(
		PriceSolPerGC, SolUSDC, BandLowerSol, BandUpperSol,
		TreasuryGC, VaultUSDC, VaultUSDT,
		ExecBuyCount, ExecSellCount, SkipCount, CycleErrors,
	)
}

// Serve starts the metrics endpoint in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Package metrics holds the prometheus instruments the core updates
// while operating:
//   - fleet_evaluations_total{timeframe,result} - pipeline runs by outcome
//   - fleet_signals_total{side}                 - signals produced
//   - fleet_orders_total{side}                  - broker orders placed
//   - fleet_risk_rejections_total{reason}       - gatekeeper rejections
//   - fleet_lock_skips_total                    - cycles skipped on a held lock
//   - fleet_active_bots{timeframe}              - bots currently scheduled (gauge)
//
// Registered in init() and served from the admin mux at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_evaluations_total",
			Help: "Pipeline runs by timeframe and outcome",
		},
		[]string{"timeframe", "result"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_signals_total",
			Help: "Strategy signals produced",
		},
		[]string{"side"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_orders_total",
			Help: "Broker orders placed",
		},
		[]string{"side"},
	)

	RiskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_risk_rejections_total",
			Help: "Trades rejected by the risk gatekeeper",
		},
		[]string{"reason"},
	)

	LockSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_lock_skips_total",
			Help: "Cycles skipped because the bot lock was held",
		},
	)

	ActiveBots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_active_bots",
			Help: "Bots currently registered with the scheduler",
		},
		[]string{"timeframe"},
	)
)

func init() {
	prometheus.MustRegister(
		Evaluations,
		Signals,
		Orders,
		RiskRejections,
		LockSkips,
		ActiveBots,
	)
}

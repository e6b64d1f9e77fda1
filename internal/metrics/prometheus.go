package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace = "bn_breakout_bot"
	assetLabel    = "asset"
)

type Prometheus struct {
	registry        *prometheus.Registry
	cycles          *prometheus.CounterVec
	cyclesAborted   *prometheus.CounterVec
	ordersPlaced    *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	emergencyCloses *prometheus.CounterVec
	entriesSkipped  *prometheus.CounterVec
	reentries       *prometheus.CounterVec
	unitStopped     *prometheus.CounterVec
	direction       *prometheus.GaugeVec
}

func newCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	}, []string{assetLabel})
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry:        prometheus.NewRegistry(),
		cycles:          newCounterVec("cycles_total", "Total number of completed decision cycles."),
		cyclesAborted:   newCounterVec("cycles_aborted_total", "Total number of cycles aborted before a decision."),
		ordersPlaced:    newCounterVec("orders_placed_total", "Total number of orders accepted by the exchange."),
		ordersRejected:  newCounterVec("orders_rejected_total", "Total number of orders rejected by the exchange."),
		emergencyCloses: newCounterVec("emergency_closes_total", "Total number of market closes after a missed stop."),
		entriesSkipped:  newCounterVec("entries_skipped_total", "Total number of entries skipped by the sizer."),
		reentries:       newCounterVec("reentries_total", "Total number of add-on entries submitted."),
		unitStopped:     newCounterVec("units_stopped_total", "Total number of units stopped by a fatal error."),
		direction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      "direction",
			Help:      "Current inferred direction: -1 short, 0 flat, 1 long.",
		}, []string{assetLabel}),
	}
	p.registry.MustRegister(
		p.cycles,
		p.cyclesAborted,
		p.ordersPlaced,
		p.ordersRejected,
		p.emergencyCloses,
		p.entriesSkipped,
		p.reentries,
		p.unitStopped,
		p.direction,
	)
	return p
}

func (p *Prometheus) ForAsset(asset string) *Metrics {
	labels := prometheus.Labels{assetLabel: asset}
	return &Metrics{
		Cycles:          p.cycles.With(labels),
		CyclesAborted:   p.cyclesAborted.With(labels),
		OrdersPlaced:    p.ordersPlaced.With(labels),
		OrdersRejected:  p.ordersRejected.With(labels),
		EmergencyCloses: p.emergencyCloses.With(labels),
		EntriesSkipped:  p.entriesSkipped.With(labels),
		Reentries:       p.reentries.With(labels),
		UnitStopped:     p.unitStopped.With(labels),
		Direction:       p.direction.With(labels),
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

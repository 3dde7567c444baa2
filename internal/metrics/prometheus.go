// Package metrics экспортирует счетчики симуляции в формате Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimMetrics содержит метрики Prometheus одного прогона симуляции.
// Регистрируются в собственном registry, чтобы не тащить глобальные
// коллекторы процесса в отчет.
type SimMetrics struct {
	registry *prometheus.Registry

	// Счетчики пакетов по стадиям конвейера.
	packetsGenerated prometheus.Counter
	repairsSent      prometheus.Counter
	packetsDropped   prometheus.Counter
	sourceDropped    prometheus.Counter
	packetsRecovered prometheus.Counter
	packetsLost      prometheus.Gauge

	// Фактическая доля потерь за прогон.
	dropRatio prometheus.Gauge
}

// NewSimMetrics создает и регистрирует метрики симуляции.
func NewSimMetrics() *SimMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &SimMetrics{
		registry: registry,
		packetsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "fec_sim_source_packets_total",
			Help: "Source packets emitted by the simulation source",
		}),
		repairsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "fec_sim_repair_packets_total",
			Help: "Repair packets generated by the FEC encoder",
		}),
		packetsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fec_sim_dropped_packets_total",
			Help: "Packets dropped by the loss oracle",
		}),
		sourceDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fec_sim_dropped_source_packets_total",
			Help: "Source packets dropped by the loss oracle",
		}),
		packetsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "fec_sim_recovered_packets_total",
			Help: "Packets reconstructed by the FEC decoder",
		}),
		packetsLost: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fec_sim_lost_packets",
			Help: "Packets that reached the sink in no form",
		}),
		dropRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fec_sim_drop_ratio",
			Help: "A-posteriori drop ratio observed at the dropper",
		}),
	}
}

// Observe переносит итоговые счетчики прогона в метрики.
func (m *SimMetrics) Observe(generated, repairs, dropped, sourceDropped, recovered, lost uint64, ratio float64) {
	m.packetsGenerated.Add(float64(generated))
	m.repairsSent.Add(float64(repairs))
	m.packetsDropped.Add(float64(dropped))
	m.sourceDropped.Add(float64(sourceDropped))
	m.packetsRecovered.Add(float64(recovered))
	m.packetsLost.Set(float64(lost))
	m.dropRatio.Set(ratio)
}

// Handler возвращает HTTP-обработчик /metrics для этого registry.
func (m *SimMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry возвращает registry метрик (для тестов и встраивания).
func (m *SimMetrics) Registry() *prometheus.Registry {
	return m.registry
}

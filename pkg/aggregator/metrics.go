package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsIngestedDesc = prometheus.NewDesc(
		"busify_events_ingested_total",
		"Operational events ingested by the aggregator",
		[]string{"type"}, nil,
	)
	eventsByDimensionDesc = prometheus.NewDesc(
		"busify_events_by_dimension",
		"Operational events per vehicle",
		[]string{"type", "dimension"}, nil,
	)
)

func (a *Aggregator) Describe(ch chan<- *prometheus.Desc) {
	ch <- eventsIngestedDesc
	ch <- eventsByDimensionDesc
}

func (a *Aggregator) Collect(ch chan<- prometheus.Metric) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	for eventType, ingested := range a.ingested {
		ch <- prometheus.MustNewConstMetric(eventsIngestedDesc, prometheus.CounterValue, float64(ingested), string(eventType))
	}

	for eventType, counts := range a.counts {
		for dimension, count := range counts {
			ch <- prometheus.MustNewConstMetric(eventsByDimensionDesc, prometheus.GaugeValue, float64(count), string(eventType), dimension)
		}
	}
}

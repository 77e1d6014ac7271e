package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "critique_jobs_inflight",
			Help: "Number of analysis jobs currently being processed.",
		},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "critique_analyses_total",
			Help: "Total number of finished analyses by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "critique_analysis_duration_seconds",
			Help:    "Time spent processing one analysis, including the computation delay.",
			Buckets: prometheus.DefBuckets,
		},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "critique_deliveries_total",
			Help: "Total number of result delivery attempts by result.",
		},
		[]string{"result"},
	)

	deliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "critique_delivery_duration_seconds",
			Help:    "Time spent posting one result to the main service.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(jobsInflight)
	prometheus.MustRegister(analysesTotal)
	prometheus.MustRegister(analysisDuration)
	prometheus.MustRegister(deliveriesTotal)
	prometheus.MustRegister(deliveryDuration)
}

// Package metrics 以 Prometheus 计数器记录策略评估结果。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 所有方法对 nil 接收者安全。
type Recorder struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	errors      *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New 使用独立 registry，重复创建不会冲突。
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartflow_evaluations_total",
				Help: "Strategy evaluations by stage and outcome",
			},
			[]string{"strategy", "stage", "outcome"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartflow_evaluation_errors_total",
				Help: "Strategy evaluations that fell back to safe defaults",
			},
			[]string{"strategy", "kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartflow_evaluation_duration_seconds",
				Help:    "Duration of a full strategy evaluation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
	}
}

func (r *Recorder) RecordEvaluation(strategy, stage, outcome string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(strategy, stage, outcome).Inc()
}

func (r *Recorder) RecordError(strategy, kind string) {
	if r == nil || kind == "" {
		return
	}
	r.errors.WithLabelValues(strategy, kind).Inc()
}

func (r *Recorder) ObserveDuration(strategy string, d time.Duration) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(strategy).Observe(d.Seconds())
}

// Handler 暴露 /metrics。
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

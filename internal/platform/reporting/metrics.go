package reporting

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mfl_report_duration_seconds",
			Help:    "Report computation time by report type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"report_type"}),
	}
	reg.MustRegister(m.duration)
	return m
}

func (m *Metrics) observe(reportType string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(reportType).Observe(d.Seconds())
}

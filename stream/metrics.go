package stream

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a Publisher exporting the latest sample as Prometheus gauges.
type Metrics struct {
	registry    *prometheus.Registry
	field       *prometheus.GaugeVec
	raw         *prometheus.GaugeVec
	norm        prometheus.Gauge
	temperature prometheus.Gauge
	samples     prometheus.Counter
	overflows   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		field: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "magnetometer_field",
			Help: "Last measured field strength per axis.",
		}, []string{"axis", "unit"}),
		raw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "magnetometer_raw",
			Help: "Last raw axis reading in counts.",
		}, []string{"axis"}),
		norm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "magnetometer_field_norm",
			Help: "Magnitude of the last valid field vector.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "magnetometer_temperature_celsius",
			Help: "Last die temperature.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magnetometer_samples_total",
			Help: "Samples taken.",
		}),
		overflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magnetometer_overflows_total",
			Help: "Axis readings that hit the overflow sentinel.",
		}, []string{"axis"}),
	}
	m.registry.MustRegister(m.field, m.raw, m.norm, m.temperature, m.samples, m.overflows)
	return m
}

func (m *Metrics) Publish(_ context.Context, s Sample) error {
	m.samples.Inc()
	set := func(axis string, v *float64, raw int16) {
		m.raw.WithLabelValues(axis).Set(float64(raw))
		if v != nil {
			m.field.WithLabelValues(axis, s.Unit).Set(*v)
		}
	}
	set("X", s.X, s.RawX)
	set("Y", s.Y, s.RawY)
	set("Z", s.Z, s.RawZ)
	for _, axis := range s.Overflow {
		m.overflows.WithLabelValues(axis).Inc()
	}
	if s.Norm != nil {
		m.norm.Set(*s.Norm)
	}
	if s.Temperature != nil {
		m.temperature.Set(*s.Temperature)
	}
	return nil
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package status

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics publishes the control loop's observations on the default
// prometheus registry. A nil *Metrics is valid and records nothing,
// so the manager behaves the same with the status server disabled.
type Metrics struct {
	ticksTotal    prometheus.Counter
	timeoutsTotal prometheus.Counter
	temperature   prometheus.Gauge
	level         prometheus.Gauge
	fanSpeed      prometheus.Gauge
	readDuration  prometheus.Histogram
}

// NewMetrics registers and return the controller metrics. Call it at
// most once per process.
func NewMetrics() *Metrics {
	m := &Metrics{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "x62fanctl_ticks_total",
			Help: "Control-loop passes completed.",
		}),
		timeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "x62fanctl_protocol_timeouts_total",
			Help: "EC status waits that hit the polling bound.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "x62fanctl_temperature_degrees",
			Help: "Last temperature sample read from the EC.",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "x62fanctl_level",
			Help: "Current hysteresis level index.",
		}),
		fanSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "x62fanctl_fan_speed_code",
			Help: "Fan-speed code commanded last (0 off, 1 fastest of 1-100, above 100 maximum).",
		}),
		readDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "x62fanctl_ec_read_duration_seconds",
			Help:    "Duration of complete temperature read handshakes.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.ticksTotal,
		m.timeoutsTotal,
		m.temperature,
		m.level,
		m.fanSpeed,
		m.readDuration,
	)

	return m
}

// ObserveTick records one completed read→step→set pass.
func (m *Metrics) ObserveTick(temp uint8, level int, fanSpeed uint8) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.temperature.Set(float64(temp))
	m.level.Set(float64(level))
	m.fanSpeed.Set(float64(fanSpeed))
}

// ObserveRead records the duration of one temperature handshake.
func (m *Metrics) ObserveRead(d time.Duration) {
	if m == nil {
		return
	}
	m.readDuration.Observe(d.Seconds())
}

// ObserveTimeout counts a protocol timeout.
func (m *Metrics) ObserveTimeout() {
	if m == nil {
		return
	}
	m.timeoutsTotal.Inc()
}

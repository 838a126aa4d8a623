package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rednet.ai/internal/sim/grid"
)

// GridCollector bundles Prometheus metrics for the conduit networks. It
// implements grid.Metrics.
type GridCollector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	Work          *prometheus.CounterVec
	TickDuration  prometheus.Histogram
	Networks      prometheus.Gauge
	Ticking       prometheus.Gauge
	Conduits      prometheus.Gauge
	SinkDropped   *prometheus.GaugeVec
	SinkQueueSize *prometheus.GaugeVec
}

// NewGridCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewGridCollector(reg prometheus.Registerer) (*GridCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rednet_ticks_total",
		Help: "Ticks processed by the network handler.",
	}), "rednet_ticks_total")
	if err != nil {
		return nil, err
	}
	work, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rednet_tick_work_total",
		Help: "Work done per tick stage, labeled by kind (placed, sweeps, merges, refreshed, notifications, deferred, rescans).",
	}, []string{"kind"}), "rednet_tick_work_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rednet_tick_duration_seconds",
		Help:    "Wall time of one handler tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "rednet_tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	networks, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rednet_networks",
		Help: "Live networks after the last tick.",
	}), "rednet_networks")
	if err != nil {
		return nil, err
	}
	ticking, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rednet_ticking_networks",
		Help: "Networks with at least one logic conduit.",
	}), "rednet_ticking_networks")
	if err != nil {
		return nil, err
	}
	conduits, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rednet_conduits",
		Help: "Conduits attached to a network.",
	}), "rednet_conduits")
	if err != nil {
		return nil, err
	}
	dropped, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rednet_sink_dropped",
		Help: "Tick entries dropped by a sink under backpressure.",
	}, []string{"sink"}), "rednet_sink_dropped")
	if err != nil {
		return nil, err
	}
	queue, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rednet_sink_queue_depth",
		Help: "Entries waiting in a sink queue.",
	}, []string{"sink"}), "rednet_sink_queue_depth")
	if err != nil {
		return nil, err
	}

	return &GridCollector{
		gatherer:      gatherer,
		Ticks:         ticks,
		Work:          work,
		TickDuration:  duration,
		Networks:      networks,
		Ticking:       ticking,
		Conduits:      conduits,
		SinkDropped:   dropped,
		SinkQueueSize: queue,
	}, nil
}

func (c *GridCollector) ObserveTick(st grid.TickStats) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.Work.WithLabelValues("placed").Add(float64(st.Placed))
	c.Work.WithLabelValues("sweeps").Add(float64(st.Sweeps))
	c.Work.WithLabelValues("merges").Add(float64(st.Merges))
	c.Work.WithLabelValues("refreshed").Add(float64(st.Refreshed))
	c.Work.WithLabelValues("notifications").Add(float64(st.Notifications))
	c.Work.WithLabelValues("deferred").Add(float64(st.Deferred))
	c.Work.WithLabelValues("rescans").Add(float64(st.Rescans))
	c.TickDuration.Observe(st.Duration.Seconds())
	c.Networks.Set(float64(st.Networks))
	c.Ticking.Set(float64(st.Ticking))
	c.Conduits.Set(float64(st.Conduits))
}

// ObserveSink records the backlog of a named tick sink.
func (c *GridCollector) ObserveSink(name string, dropped uint64, depth int) {
	if c == nil {
		return
	}
	c.SinkDropped.WithLabelValues(name).Set(float64(dropped))
	c.SinkQueueSize.WithLabelValues(name).Set(float64(depth))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *GridCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

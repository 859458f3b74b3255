package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DeliveryCollector bundles Prometheus metrics for the delivery lifecycle
// and the simulation loop that drives it.
type DeliveryCollector struct {
	gatherer prometheus.Gatherer

	Assignments *prometheus.CounterVec
	Pickups     *prometheus.CounterVec
	Dropoffs    *prometheus.CounterVec
	Thefts      prometheus.Counter
	DeliverySim *prometheus.HistogramVec

	RegistryEvents *prometheus.CounterVec

	QueueDepth   prometheus.Gauge
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
}

// NewDeliveryCollector registers delivery metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewDeliveryCollector(reg prometheus.Registerer) (*DeliveryCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	assignments, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_assignments_total",
		Help: "Packages taken off the delivery queue, labeled by route strategy.",
	}, []string{"strategy"}), "delivery_assignments_total")
	if err != nil {
		return nil, err
	}
	pickups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_pickups_total",
		Help: "Packages physically collected by a drone, labeled by route strategy.",
	}, []string{"strategy"}), "delivery_pickups_total")
	if err != nil {
		return nil, err
	}
	dropoffs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_dropoffs_total",
		Help: "Packages handed off at their destination, labeled by route strategy.",
	}, []string{"strategy"}), "delivery_dropoffs_total")
	if err != nil {
		return nil, err
	}
	thefts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_thefts_total",
		Help: "Deliveries abandoned because the package was stolen.",
	}), "delivery_thefts_total")
	if err != nil {
		return nil, err
	}
	deliverySim, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_duration_sim_seconds",
		Help:    "Simulated seconds from assignment to hand-off.",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
	}, []string{"strategy"}), "delivery_duration_sim_seconds")
	if err != nil {
		return nil, err
	}
	registryEvents, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_events_total",
		Help: "Registry change events, labeled by event type.",
	}, []string{"event"}), "registry_events_total")
	if err != nil {
		return nil, err
	}
	queueDepth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "delivery_queue_depth",
		Help: "Packages waiting in the delivery queue.",
	}), "delivery_queue_depth")
	if err != nil {
		return nil, err
	}
	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Simulation ticks executed.",
	}), "sim_ticks_total")
	if err != nil {
		return nil, err
	}
	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock time spent updating all entities for one tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &DeliveryCollector{
		gatherer:     gatherer,
		Assignments:  assignments,
		Pickups:      pickups,
		Dropoffs:     dropoffs,
		Thefts:       thefts,
		DeliverySim:  deliverySim,
		QueueDepth:   queueDepth,
		Ticks:        ticks,
		TickDuration: tickDuration,

		RegistryEvents: registryEvents,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *DeliveryCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// DeliveryAssigned, PackagePickedUp, PackageDelivered and PackageStolen
// satisfy the drone's DeliveryRecorder interface.
func (c *DeliveryCollector) DeliveryAssigned(strategy string) {
	if c == nil || c.Assignments == nil {
		return
	}
	c.Assignments.WithLabelValues(strategy).Inc()
}

func (c *DeliveryCollector) PackagePickedUp(strategy string) {
	if c == nil || c.Pickups == nil {
		return
	}
	c.Pickups.WithLabelValues(strategy).Inc()
}

func (c *DeliveryCollector) PackageDelivered(strategy string, simSeconds float64) {
	if c == nil {
		return
	}
	if c.Dropoffs != nil {
		c.Dropoffs.WithLabelValues(strategy).Inc()
	}
	if c.DeliverySim != nil {
		c.DeliverySim.WithLabelValues(strategy).Observe(simSeconds)
	}
}

func (c *DeliveryCollector) PackageStolen() {
	if c == nil || c.Thefts == nil {
		return
	}
	c.Thefts.Inc()
}

// RegistryEvent counts one registry change of the given type.
func (c *DeliveryCollector) RegistryEvent(event string) {
	if c == nil || c.RegistryEvents == nil {
		return
	}
	c.RegistryEvents.WithLabelValues(event).Inc()
}

// ObserveTick records one engine tick and the queue depth after it.
func (c *DeliveryCollector) ObserveTick(d time.Duration, queueDepth int) {
	if c == nil {
		return
	}
	if c.Ticks != nil {
		c.Ticks.Inc()
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
	if c.QueueDepth != nil {
		c.QueueDepth.Set(float64(queueDepth))
	}
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

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
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

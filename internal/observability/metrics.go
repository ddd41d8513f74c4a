package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// VizCollector bundles the visualizer's Prometheus metrics and provides a
// ready-to-serve /metrics handler.
type VizCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	FramesTotal   prometheus.Counter
	FrameDuration prometheus.Histogram
	PlantUpdates  *prometheus.CounterVec
	ActiveAlarms  prometheus.Gauge
	SceneNodes    prometheus.Gauge
	Components    prometheus.Gauge
}

// NewVizCollector registers the visualizer metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewVizCollector(reg prometheus.Registerer) (*VizCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viz_http_requests_total",
		Help: "Total handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "viz_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "viz_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations, "viz_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "viz_frames_total",
		Help: "Total rendered animation frames.",
	}), "viz_frames_total")
	if err != nil {
		return nil, err
	}

	frameDur, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "viz_frame_duration_seconds",
		Help:    "Time spent advancing all engines for one frame.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	}), "viz_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viz_plant_updates_total",
		Help: "Applied plant snapshot updates, labeled by source.",
	}, []string{"source"})
	updates, err = registerCounterVec(reg, updates, "viz_plant_updates_total")
	if err != nil {
		return nil, err
	}

	alarms, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viz_active_alarms",
		Help: "Number of currently active alarm descriptions.",
	}), "viz_active_alarms")
	if err != nil {
		return nil, err
	}
	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viz_scene_nodes",
		Help: "Number of nodes in the loaded scene graph.",
	}), "viz_scene_nodes")
	if err != nil {
		return nil, err
	}
	components, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viz_indexed_components",
		Help: "Number of distinct semantic component keys in the index.",
	}), "viz_indexed_components")
	if err != nil {
		return nil, err
	}

	return &VizCollector{
		gatherer:      gatherer,
		HTTPRequests:  requests,
		HTTPDurations: durations,
		FramesTotal:   frames,
		FrameDuration: frameDur,
		PlantUpdates:  updates,
		ActiveAlarms:  alarms,
		SceneNodes:    nodes,
		Components:    components,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *VizCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordFrame satisfies the visualizer's FrameRecorder interface.
func (c *VizCollector) RecordFrame(d time.Duration) {
	if c == nil {
		return
	}
	c.FramesTotal.Inc()
	c.FrameDuration.Observe(d.Seconds())
}

// SetActiveAlarms satisfies the visualizer's FrameRecorder interface.
func (c *VizCollector) SetActiveAlarms(count int) {
	if c == nil {
		return
	}
	c.ActiveAlarms.Set(float64(count))
}

// RecordUpdate satisfies the state store's UpdateRecorder interface.
func (c *VizCollector) RecordUpdate(source string) {
	if c == nil {
		return
	}
	c.PlantUpdates.WithLabelValues(source).Inc()
}

// SetSceneCounts records the load-time scene shape.
func (c *VizCollector) SetSceneCounts(nodes, components int) {
	if c == nil {
		return
	}
	c.SceneNodes.Set(float64(nodes))
	c.Components.Set(float64(components))
}

// RecordHTTP records one handled HTTP request.
func (c *VizCollector) RecordHTTP(route, method string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, method, fmt.Sprintf("%d", code)).Inc()
	c.HTTPDurations.WithLabelValues(route, method).Observe(elapsed.Seconds())
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

func registerCounter(reg prometheus.Registerer, ctr prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(ctr); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return ctr, nil
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

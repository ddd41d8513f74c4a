// Package api exposes the visualizer's external contracts over HTTP/JSON:
// plant data updates, snapshot reads, dashboard fields, simulation control,
// and view control.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aquasight/plant-visualizer/internal/dashboard"
	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/internal/observability"
	"github.com/aquasight/plant-visualizer/internal/state"
	"github.com/aquasight/plant-visualizer/model"
)

// VizController is the subset of the visualizer the API drives. View
// controls mutate the camera only, independent of data state.
type VizController interface {
	ResetView()
	ZoomIn()
	ZoomOut()
	ActiveAlarms() []string
}

// FeedController is the subset of the synthetic feeder the API drives.
type FeedController interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
}

// Server wires the HTTP routes over the plant state and controllers.
type Server struct {
	state   *state.PlantState
	viz     VizController
	feed    FeedController
	log     logging.Logger
	metrics *observability.VizCollector
}

// NewServer constructs the API server. viz and feed may be nil; the
// corresponding routes then answer 503.
func NewServer(st *state.PlantState, viz VizController, feed FeedController, log logging.Logger, metrics *observability.VizCollector) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{state: st, viz: viz, feed: feed, log: log, metrics: metrics}
}

// Handler returns the routed handler with request-id, tracing, and metrics
// middleware applied per route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/plant/data", s.route("plant.update", s.handleUpdate))
	mux.Handle("GET /api/v1/plant/data", s.route("plant.get", s.handleGet))
	mux.Handle("POST /api/v1/plant/clear", s.route("plant.clear", s.handleClear))
	mux.Handle("GET /api/v1/dashboard", s.route("dashboard.get", s.handleDashboard))
	mux.Handle("POST /api/v1/sim/start", s.route("sim.start", s.handleSimStart))
	mux.Handle("POST /api/v1/sim/stop", s.route("sim.stop", s.handleSimStop))
	mux.Handle("POST /api/v1/view/reset", s.route("view.reset", s.viewHandler(func(v VizController) { v.ResetView() })))
	mux.Handle("POST /api/v1/view/zoom-in", s.route("view.zoom_in", s.viewHandler(func(v VizController) { v.ZoomIn() })))
	mux.Handle("POST /api/v1/view/zoom-out", s.route("view.zoom_out", s.viewHandler(func(v VizController) { v.ZoomOut() })))
	mux.Handle("GET /healthz", s.route("healthz", s.handleHealthz))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

// handleUpdate implements the incoming data contract: present subsystems
// overwrite, absent subsystems are untouched, repeated identical payloads
// are idempotent.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload model.PartialPlantSnapshot
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	s.state.Apply(r.Context(), payload, "api")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.state.Version(),
	})
}

// handleGet implements the outgoing query contract: a read-only view of the
// current full snapshot.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// handleClear resets the snapshot to the fixed default; dependent display
// and animation targets refresh through the normal update fan-out.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.state.Clear(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var alarms []string
	if s.viz != nil {
		alarms = s.viz.ActiveAlarms()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"fields": dashboard.Build(s.state.Snapshot()),
		"alarms": alarms,
	})
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "simulation feed not configured")
		return
	}
	// Detach from the request context: the feed outlives the request.
	s.feed.Start(context.WithoutCancel(r.Context()))
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": true})
}

func (s *Server) handleSimStop(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "simulation feed not configured")
		return
	}
	s.feed.Stop()
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": false})
}

func (s *Server) viewHandler(apply func(VizController)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.viz == nil {
			s.writeError(w, r, http.StatusServiceUnavailable, "visualizer not configured")
			return
		}
		apply(s.viz)
		s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn(context.Background(), "response encode failed",
			logging.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	log := logging.LoggerFromContext(r.Context())
	if log == nil {
		log = s.log
	}
	log.Warn(r.Context(), "request failed",
		logging.Int("code", code),
		logging.String("error", msg))
	s.writeJSON(w, code, map[string]any{"error": msg})
}

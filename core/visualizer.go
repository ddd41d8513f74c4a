package core

import (
	"context"
	"time"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
	"github.com/aquasight/plant-visualizer/scene"
)

// SnapshotSource supplies the latest plant snapshot. Version increments on
// every applied update, which is how the visualizer knows to recompute
// snapshot-derived values (water tint) without doing so every frame.
type SnapshotSource interface {
	Snapshot() model.PlantSnapshot
	Version() uint64
}

// FrameRecorder receives per-frame observability updates.
type FrameRecorder interface {
	RecordFrame(d time.Duration)
	SetActiveAlarms(count int)
}

// Option customises Visualizer construction.
type Option func(*Visualizer)

// WithFillConfig overrides the fill engine constants.
func WithFillConfig(cfg FillConfig) Option {
	return func(v *Visualizer) { v.fillCfg = cfg }
}

// WithActuatorConfig overrides the actuator engine constants.
func WithActuatorConfig(cfg ActuatorConfig) Option {
	return func(v *Visualizer) { v.actCfg = cfg }
}

// WithAlarmConfig overrides the alarm engine constants.
func WithAlarmConfig(cfg AlarmConfig) Option {
	return func(v *Visualizer) { v.alarmCfg = cfg }
}

// WithCamera replaces the default camera.
func WithCamera(c *Camera) Option {
	return func(v *Visualizer) { v.camera = c }
}

// WithFrameRecorder attaches an optional metrics recorder.
func WithFrameRecorder(r FrameRecorder) Option {
	return func(v *Visualizer) { v.metrics = r }
}

// Visualizer is the explicit owned context of one plant visualization
// instance: scene graph, component index, engines, and camera. All scene
// mutation happens inside Advance, which runs only on the frame-loop
// goroutine.
type Visualizer struct {
	scene     *scene.Scene
	index     *ComponentIndex
	fill      *FillEngine
	actuators *ActuatorEngine
	alarms    *AlarmEngine
	camera    *Camera
	source    SnapshotSource
	log       logging.Logger
	metrics   FrameRecorder

	fillCfg  FillConfig
	actCfg   ActuatorConfig
	alarmCfg AlarmConfig

	elapsed     float64
	tintVersion uint64
	frames      uint64
}

// New indexes the scene, derives tank geometry, generates fill meshes, and
// wires the engines. Missing components are tolerated; the corresponding
// features degrade to no-op.
func New(s *scene.Scene, source SnapshotSource, log logging.Logger, opts ...Option) *Visualizer {
	if log == nil {
		log = logging.Noop()
	}
	v := &Visualizer{
		scene:    s,
		source:   source,
		log:      log,
		fillCfg:  DefaultFillConfig(),
		actCfg:   DefaultActuatorConfig(),
		alarmCfg: DefaultAlarmConfig(),
		camera:   NewCamera(scene.Vec3{X: 0, Y: 12, Z: 24}, scene.Vec3{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	v.index = BuildComponentIndex(s)
	v.fill = NewFillEngine(s, v.index, v.fillCfg, log)
	v.actuators = NewActuatorEngine(v.index, v.actCfg, log)
	v.alarms = NewAlarmEngine(v.index, v.alarmCfg, log)

	log.Info(context.Background(), "visualizer ready",
		logging.Int("scene_nodes", s.Len()),
		logging.Int("indexed_components", v.index.Len()))
	return v
}

// Advance runs one frame: fill update, actuator effects, pipe flow, alarm
// overlays, strictly in that order. dt is the clamped elapsed time in
// seconds.
func (v *Visualizer) Advance(now time.Time, dt float64) {
	start := time.Now()
	v.elapsed += dt
	v.frames++

	snap := v.source.Snapshot()

	if ver := v.source.Version(); ver != v.tintVersion {
		v.fill.RefreshTint(&snap)
		v.tintVersion = ver
	}

	v.fill.Update(&snap, dt)
	v.actuators.Update(&snap, v.elapsed, dt)
	v.actuators.UpdatePipes(&snap, v.elapsed, dt)
	v.alarms.Update(&snap, v.elapsed)

	if v.metrics != nil {
		v.metrics.RecordFrame(time.Since(start))
		v.metrics.SetActiveAlarms(len(v.alarms.ActiveAlarms()))
	}
}

// ActiveAlarms returns a copy of the alarm descriptions from the last
// frame.
func (v *Visualizer) ActiveAlarms() []string {
	return append([]string(nil), v.alarms.ActiveAlarms()...)
}

// Scene exposes the scene graph, mainly for tests and render sinks.
func (v *Visualizer) Scene() *scene.Scene { return v.scene }

// Index exposes the component index.
func (v *Visualizer) Index() *ComponentIndex { return v.index }

// Fill exposes the fill engine for fraction queries.
func (v *Visualizer) Fill() *FillEngine { return v.fill }

// Camera exposes the view transform.
func (v *Visualizer) Camera() *Camera { return v.camera }

// ResetView restores the camera home position.
func (v *Visualizer) ResetView() { v.camera.ResetView() }

// ZoomIn moves the camera toward the target.
func (v *Visualizer) ZoomIn() { v.camera.ZoomIn() }

// ZoomOut moves the camera away from the target.
func (v *Visualizer) ZoomOut() { v.camera.ZoomOut() }

// Elapsed returns the accumulated animation time in seconds.
func (v *Visualizer) Elapsed() float64 { return v.elapsed }

// Frames returns the number of frames advanced.
func (v *Visualizer) Frames() uint64 { return v.frames }

package core

import (
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
	"github.com/aquasight/plant-visualizer/scene"
)

// ActuatorConfig carries the waveform constants for pump, mixer, and pipe
// effects.
type ActuatorConfig struct {
	VibrationAmplitude float64 // scene units
	VibrationFrequency float64 // rad/s
	PulseBase          float64 // running emissive midpoint
	PulseAmplitude     float64 // running emissive swing
	PulseFrequency     float64 // rad/s
	BlinkFrequency     float64 // rad/s, square wave on sin
	MixerRate          float64 // rad/s while on
	ScrollRate         float64 // texture units per second at nominal flow
	NominalFlow        float64 // flow reading mapped to ScrollRate

	RunningColor colorful.Color
	StoppedColor colorful.Color
	AlarmColor   colorful.Color
}

// DefaultActuatorConfig returns the production waveform constants.
func DefaultActuatorConfig() ActuatorConfig {
	return ActuatorConfig{
		VibrationAmplitude: 0.02,
		VibrationFrequency: 30,
		PulseBase:          0.3,
		PulseAmplitude:     0.1,
		PulseFrequency:     3,
		BlinkFrequency:     5,
		MixerRate:          2 * math.Pi, // one revolution per second
		ScrollRate:         0.5,
		NominalFlow:        100,
		RunningColor:       colorful.Color{R: 0.2, G: 0.8, B: 0.3},
		StoppedColor:       colorful.Color{R: 0.35, G: 0.35, B: 0.35},
		AlarmColor:         colorful.Color{R: 0.9, G: 0.15, B: 0.1},
	}
}

// ActuatorEngine applies deterministic periodic effects for pumps, rotating
// sub-elements, and pipes. Coloring of pump nodes is owned exclusively by
// this engine; the alarm engine never touches them.
type ActuatorEngine struct {
	cfg ActuatorConfig
	ix  *ComponentIndex
	log logging.Logger

	// rest remembers each vibrating node's exact rest position so it can be
	// restored when the pump stops or faults.
	rest map[*scene.Node]scene.Vec3
}

// NewActuatorEngine builds the engine over an already-built index.
func NewActuatorEngine(ix *ComponentIndex, cfg ActuatorConfig, log logging.Logger) *ActuatorEngine {
	if log == nil {
		log = logging.Noop()
	}
	return &ActuatorEngine{
		cfg:  cfg,
		ix:   ix,
		log:  log,
		rest: make(map[*scene.Node]scene.Vec3),
	}
}

// Update applies pump and rotation effects for the snapshot at elapsed time
// t (seconds since visualizer start).
func (e *ActuatorEngine) Update(snap *model.PlantSnapshot, t, dt float64) {
	for _, key := range model.PumpKeys {
		reading, ok := pumpReading(snap, key)
		if !ok {
			continue
		}
		for _, n := range e.ix.Nodes(key) {
			e.applyPumpEffect(n, reading, t)
		}
	}

	// Mixer: spins at a fixed rate while on; frozen otherwise, no inertia.
	if snap.CFT.MixerStatus {
		for _, n := range e.ix.Nodes("CFT_Mixer") {
			n.RotateY(e.cfg.MixerRate * dt)
		}
	}

	for _, key := range e.ix.KeysOfClass(ClassScraper) {
		if !scraperOn(snap, key) {
			continue
		}
		for _, n := range e.ix.Nodes(key) {
			n.RotateY(e.cfg.MixerRate * dt)
		}
	}
}

// applyPumpEffect selects emissive state with priority fault > on > off and
// drives the vibration offset.
func (e *ActuatorEngine) applyPumpEffect(n *scene.Node, p model.PumpReading, t float64) {
	mat := n.OwnMaterial()

	switch {
	case p.Fault:
		mat.Emissive = e.cfg.AlarmColor
		if math.Sin(e.cfg.BlinkFrequency*t) > 0 {
			mat.EmissiveIntensity = 0.8
		} else {
			mat.EmissiveIntensity = 0
		}
	case p.Status:
		mat.Emissive = e.cfg.RunningColor
		mat.EmissiveIntensity = e.cfg.PulseBase + e.cfg.PulseAmplitude*math.Sin(e.cfg.PulseFrequency*t)
	default:
		mat.Emissive = e.cfg.StoppedColor
		mat.EmissiveIntensity = 0
	}

	rest, seen := e.rest[n]
	if !seen {
		rest = n.Position
		e.rest[n] = rest
	}
	if p.Status && !p.Fault {
		n.Position = rest.Add(scene.Vec3{
			X: e.cfg.VibrationAmplitude * math.Sin(e.cfg.VibrationFrequency*t),
		})
	} else {
		n.Position = rest
	}
}

// UpdatePipes scrolls pipe textures and pulses pipe emissives while their
// associated flow is nonzero; pipes with zero flow report no effect at all.
func (e *ActuatorEngine) UpdatePipes(snap *model.PlantSnapshot, t, dt float64) {
	for _, key := range e.ix.KeysOfClass(ClassPipe) {
		flow := FlowForPipe(snap, key)
		for _, n := range e.ix.Nodes(key) {
			mat := n.OwnMaterial()
			if flow <= 0 {
				mat.ClearEmissive()
				continue
			}
			mat.TextureOffset += e.cfg.ScrollRate * (flow / e.cfg.NominalFlow) * dt
			mat.TextureOffset = math.Mod(mat.TextureOffset, 1)
			mat.Emissive = e.cfg.RunningColor
			mat.EmissiveIntensity = 0.05 + 0.05*math.Sin(e.cfg.PulseFrequency*t)
		}
	}
}

// FlowForPipe resolves a pipe key like "PIPE_RWT_CFT" to the flow reading
// of its upstream component: a tank's outflow or a pump's flow rate. Pumps
// that are off or faulted contribute no flow. Unresolvable keys yield zero,
// which degrades the pipe to a static node.
func FlowForPipe(snap *model.PlantSnapshot, pipeKey string) float64 {
	parts := strings.Split(pipeKey, "_")
	if len(parts) < 2 {
		return 0
	}
	upstream := strings.ToUpper(parts[1])
	switch upstream {
	case model.KeyRWT:
		return snap.RWT.Outflow
	case model.KeyCST:
		return snap.CST.Outflow
	case model.KeyCFT:
		return snap.CFT.Outflow
	case model.KeySLT:
		return snap.SLT.Outflow
	case model.KeySCT:
		return sumOutflow(snap.SCT)
	case model.KeyCWT:
		return sumOutflow(snap.CWT)
	case model.KeyCDP:
		return runningFlow(snap.CDP)
	case model.KeyPPS:
		return runningFlow(snap.PPS)
	default:
		return 0
	}
}

func sumOutflow(readings []model.TankReading) float64 {
	var total float64
	for _, r := range readings {
		total += r.Outflow
	}
	return total
}

func runningFlow(p model.PumpReading) float64 {
	if !p.Status || p.Fault {
		return 0
	}
	return p.FlowRate
}

// scraperOn looks up the scraper status of the tank a scraper key belongs
// to, e.g. "CST_SCRAPER" -> CST.ScraperStatus.
func scraperOn(snap *model.PlantSnapshot, scraperKey string) bool {
	switch {
	case strings.HasPrefix(scraperKey, model.KeyCST):
		return snap.CST.ScraperStatus
	case strings.HasPrefix(scraperKey, model.KeySLT):
		return snap.SLT.ScraperStatus
	default:
		return false
	}
}

func pumpReading(snap *model.PlantSnapshot, key string) (model.PumpReading, bool) {
	switch key {
	case model.KeyCDP:
		return snap.CDP, true
	case model.KeyPPS:
		return snap.PPS, true
	default:
		return model.PumpReading{}, false
	}
}

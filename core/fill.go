package core

import (
	"context"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
	"github.com/aquasight/plant-visualizer/scene"
)

// FillConfig carries the tunable constants of the fill animation. The
// compound-tank split and gate thresholds are configuration, not law: the
// plant models we render hold them at the defaults, but nothing downstream
// assumes so.
type FillConfig struct {
	// MinScale/MaxScale bound the visual fill fraction for standard tanks so
	// an empty tank still renders a sliver of water mesh.
	MinScale float64
	MaxScale float64

	// SmoothRate is the exponential smoothing rate: each frame the current
	// fraction moves toward the target by min(1, SmoothRate*dt).
	SmoothRate float64

	// ConeLevelSplit is the portion of the 0-100 level range mapped onto the
	// cone section of the compound tank; the rest fills the cylinder.
	ConeLevelSplit float64

	// GateLow / GateHigh are the sequencing thresholds: the cone may start
	// draining only once the cylinder fraction is <= GateLow, and the
	// cylinder may start filling only once the cone fraction is >= GateHigh.
	GateLow  float64
	GateHigh float64

	// VisibilityEpsilon hides a compound section when its fraction falls to
	// effectively zero.
	VisibilityEpsilon float64

	// ConeHeightRatio is the share of the compound tank's height occupied by
	// the hopper section.
	ConeHeightRatio float64

	// CompoundKey names the tank animated with the two-stage algorithm.
	CompoundKey string

	// CleanColor and TurbidColor are the water tint endpoints; the blend
	// position is the tank's turbidity reading on a 0-100 scale.
	CleanColor  colorful.Color
	TurbidColor colorful.Color
}

// DefaultFillConfig returns the constants used by the production scenes.
func DefaultFillConfig() FillConfig {
	return FillConfig{
		MinScale:          0.01,
		MaxScale:          1.0,
		SmoothRate:        2.0,
		ConeLevelSplit:    0.25,
		GateLow:           0.01,
		GateHigh:          0.99,
		VisibilityEpsilon: 0.01,
		ConeHeightRatio:   1.0 / 3.0,
		CompoundKey:       model.KeySLT,
		CleanColor:        colorful.Color{R: 0.25, G: 0.55, B: 0.85},
		TurbidColor:       colorful.Color{R: 0.45, G: 0.35, B: 0.2},
	}
}

// standardTank is one animated fill instance: the tank body, its water
// mesh, and the interpolated fill state.
type standardTank struct {
	body  *scene.Node
	water *scene.Node
	geo   TankGeometry

	fill    float64
	started bool
}

// compoundTank is the two-stage cone+cylinder instance. The cone section
// regenerates mesh geometry every frame; the cylinder section scales like a
// standard tank stacked on top of the hopper.
type compoundTank struct {
	body      *scene.Node
	coneWater *scene.Node
	cylWater  *scene.Node
	geo       TankGeometry

	coneMaxRadius float64
	coneMaxHeight float64
	cylHeight     float64

	cone    float64
	cyl     float64
	started bool
}

// FillEngine converts level readings into smoothly interpolated water
// meshes. All node mutation happens on the frame-loop goroutine.
type FillEngine struct {
	cfg FillConfig
	log logging.Logger

	standard map[string][]*standardTank
	compound *compoundTank
}

// NewFillEngine derives geometry for every indexed tank, adopts water
// sub-meshes present in the loaded model, and generates tight-fitting fill
// meshes where the model has none. Missing tanks degrade to no-op.
func NewFillEngine(s *scene.Scene, ix *ComponentIndex, cfg FillConfig, log logging.Logger) *FillEngine {
	if log == nil {
		log = logging.Noop()
	}
	e := &FillEngine{
		cfg:      cfg,
		log:      log,
		standard: make(map[string][]*standardTank),
	}
	ctx := context.Background()

	for _, key := range append(append([]string{}, model.SingleTankKeys...), model.MultiTankKeys...) {
		bodies := ix.Nodes(key)
		if len(bodies) == 0 {
			log.Warn(ctx, "tank not found in scene; fill animation disabled",
				logging.String("component", key))
			continue
		}
		if key == cfg.CompoundKey {
			e.compound = e.buildCompound(s, ix, key, bodies[0])
			continue
		}
		waters := ix.Nodes(key + "_Water")
		for i, body := range bodies {
			geo := DeriveTankGeometry(body)
			var water *scene.Node
			if i < len(waters) {
				water = waters[i]
			} else {
				water = e.generateFillMesh(s, body, geo, instanceName(body.Name, "Fill"))
			}
			if water == nil {
				continue
			}
			e.standard[key] = append(e.standard[key], &standardTank{
				body:  body,
				water: water,
				geo:   geo,
			})
		}
	}
	return e
}

func (e *FillEngine) buildCompound(s *scene.Scene, ix *ComponentIndex, key string, body *scene.Node) *compoundTank {
	geo := DeriveTankGeometry(body)
	coneMaxH := geo.Height * e.cfg.ConeHeightRatio
	cylH := geo.Height - coneMaxH

	ct := &compoundTank{
		body:          body,
		geo:           geo,
		coneMaxRadius: geo.Radius * 0.95,
		coneMaxHeight: coneMaxH,
		cylHeight:     cylH,
	}

	ct.coneWater = ix.First(key + "_Water_Cone")
	if ct.coneWater == nil {
		n := scene.NewNode(instanceName(body.Name, "Fill_Hopper"))
		n.Mesh = &scene.Mesh{Kind: scene.MeshCone}
		n.Visible = false
		n.OwnMaterial().Color = e.cfg.CleanColor
		if err := s.AddNode(body.Name, n); err != nil {
			e.log.Warn(context.Background(), "cannot attach cone fill mesh",
				logging.String("tank", body.Name), logging.String("error", err.Error()))
			return nil
		}
		ct.coneWater = n
	}

	ct.cylWater = ix.First(key + "_Water")
	if ct.cylWater == nil {
		n := scene.NewNode(instanceName(body.Name, "Fill_Barrel"))
		n.Mesh = &scene.Mesh{Kind: scene.MeshCylinder, Radius: geo.Radius * 0.95, Height: cylH}
		n.Scale.Y = 0
		n.Visible = false
		n.OwnMaterial().Color = e.cfg.CleanColor
		if err := s.AddNode(body.Name, n); err != nil {
			e.log.Warn(context.Background(), "cannot attach cylinder fill mesh",
				logging.String("tank", body.Name), logging.String("error", err.Error()))
			return nil
		}
		ct.cylWater = n
	}
	return ct
}

// generateFillMesh attaches a tight-fitting water cylinder inside the tank,
// sized from the derived geometry and parked at MinScale.
func (e *FillEngine) generateFillMesh(s *scene.Scene, body *scene.Node, geo TankGeometry, name string) *scene.Node {
	n := scene.NewNode(name)
	n.Mesh = &scene.Mesh{Kind: scene.MeshCylinder, Radius: geo.Radius * 0.95, Height: geo.Height}
	n.Scale.Y = e.cfg.MinScale
	n.Position = scene.Vec3{Y: geo.Bottom() + geo.Height*e.cfg.MinScale/2}
	n.OwnMaterial().Color = e.cfg.CleanColor
	if err := s.AddNode(body.Name, n); err != nil {
		e.log.Warn(context.Background(), "cannot attach fill mesh",
			logging.String("tank", body.Name), logging.String("error", err.Error()))
		return nil
	}
	return n
}

func instanceName(base, suffix string) string {
	return fmt.Sprintf("%s_%s", base, suffix)
}

// smoothStep bounds the per-frame interpolation fraction so convergence is
// proportional to elapsed time and never overshoots.
func (e *FillEngine) smoothStep(dt float64) float64 {
	return math.Min(1, e.cfg.SmoothRate*dt)
}

// Update advances every tank's fill state toward the snapshot's levels.
func (e *FillEngine) Update(snap *model.PlantSnapshot, dt float64) {
	step := e.smoothStep(dt)

	for _, key := range model.SingleTankKeys {
		if key == e.cfg.CompoundKey {
			continue
		}
		reading, ok := singleTankReading(snap, key)
		if !ok {
			continue
		}
		for _, inst := range e.standard[key] {
			e.updateStandard(inst, reading.Level, step)
		}
	}

	for _, key := range model.MultiTankKeys {
		readings := multiTankReadings(snap, key)
		insts := e.standard[key]
		// Positional correlation; mismatched lengths only update the overlap.
		n := len(readings)
		if len(insts) < n {
			n = len(insts)
		}
		for i := 0; i < n; i++ {
			e.updateStandard(insts[i], readings[i].Level, step)
		}
	}

	if e.compound != nil {
		reading, ok := singleTankReading(snap, e.cfg.CompoundKey)
		if ok {
			e.updateCompound(e.compound, reading.Level, step)
		}
	}
}

// updateStandard applies the exponential smoothing law and lays the water
// mesh on the tank floor so it grows upward from a fixed bottom.
func (e *FillEngine) updateStandard(t *standardTank, level, step float64) {
	target := e.cfg.MinScale + level/100*(e.cfg.MaxScale-e.cfg.MinScale)
	if !t.started {
		t.fill = t.water.Scale.Y
		t.started = true
	}
	t.fill += (target - t.fill) * step

	t.water.Scale.Y = t.fill
	t.water.Position.Y = t.geo.Bottom() + t.geo.Height*t.fill/2
}

// updateCompound runs the two-stage sequencing state machine. The gates
// guarantee the stages never both transition within one tick: filling pins
// the cone full before the cylinder may rise, draining pins the cylinder
// empty before the cone may fall.
func (e *FillEngine) updateCompound(t *compoundTank, level, step float64) {
	if !t.started {
		t.cyl = t.cylWater.Scale.Y
		if t.coneMaxHeight > 0 && t.coneWater.Mesh != nil {
			t.cone = t.coneWater.Mesh.Height / t.coneMaxHeight
		}
		t.started = true
	}

	splitLevel := e.cfg.ConeLevelSplit * 100
	var coneTarget, cylTarget float64
	if level <= splitLevel {
		coneTarget = level / splitLevel
		cylTarget = 0
	} else {
		coneTarget = 1
		cylTarget = (level - splitLevel) / (100 - splitLevel)
	}

	if cylTarget > t.cyl {
		if t.cone < e.cfg.GateHigh {
			// Fill the cone first; hold the cylinder where it is.
			cylTarget = t.cyl
		} else {
			t.cone = 1
			coneTarget = 1
		}
	}
	if coneTarget < t.cone {
		if t.cyl > e.cfg.GateLow {
			// Drain the cylinder first; hold the cone where it is.
			coneTarget = t.cone
		} else {
			t.cyl = 0
			cylTarget = 0
		}
	}

	t.cone += (coneTarget - t.cone) * step
	t.cyl += (cylTarget - t.cyl) * step

	// Cone section: geometry, not just scale, tracks the fill so the water
	// tapers with the hopper.
	radius, height, centerY := ConeFillParams(t.cone, t.coneMaxRadius, t.coneMaxHeight)
	if t.coneWater.Mesh != nil {
		t.coneWater.Mesh.Radius = radius
		t.coneWater.Mesh.Height = height
	}
	t.coneWater.Position.Y = t.geo.Bottom() + centerY
	t.coneWater.Visible = t.cone > e.cfg.VisibilityEpsilon

	coneTop := t.geo.Bottom() + t.coneMaxHeight
	t.cylWater.Scale.Y = t.cyl
	t.cylWater.Position.Y = coneTop + t.cylHeight*t.cyl/2
	t.cylWater.Visible = t.cyl > e.cfg.VisibilityEpsilon
}

// RefreshTint recolors every water mesh from its tank's turbidity reading.
// Called when the snapshot changes, not every frame.
func (e *FillEngine) RefreshTint(snap *model.PlantSnapshot) {
	for _, key := range model.SingleTankKeys {
		if key == e.cfg.CompoundKey {
			continue
		}
		reading, ok := singleTankReading(snap, key)
		if !ok {
			continue
		}
		for _, inst := range e.standard[key] {
			inst.water.OwnMaterial().Color = e.tint(reading.Turbidity)
		}
	}
	for _, key := range model.MultiTankKeys {
		readings := multiTankReadings(snap, key)
		for i, inst := range e.standard[key] {
			if i >= len(readings) {
				break
			}
			inst.water.OwnMaterial().Color = e.tint(readings[i].Turbidity)
		}
	}
	if e.compound != nil {
		if reading, ok := singleTankReading(snap, e.cfg.CompoundKey); ok {
			c := e.tint(reading.Turbidity)
			e.compound.coneWater.OwnMaterial().Color = c
			e.compound.cylWater.OwnMaterial().Color = c
		}
	}
}

func (e *FillEngine) tint(turbidity float64) colorful.Color {
	f := turbidity / 100
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	return e.cfg.CleanColor.BlendRgb(e.cfg.TurbidColor, f)
}

// Fraction reports the current fill fraction for a tank instance; the
// second return is false when the instance is not animated.
func (e *FillEngine) Fraction(key string, index int) (float64, bool) {
	if key == e.cfg.CompoundKey {
		if e.compound == nil {
			return 0, false
		}
		// Combined fraction weighted by the level split.
		split := e.cfg.ConeLevelSplit
		return e.compound.cone*split + e.compound.cyl*(1-split), true
	}
	insts := e.standard[key]
	if index < 0 || index >= len(insts) {
		return 0, false
	}
	return insts[index].fill, true
}

// StageFractions reports the compound tank's per-stage fill fractions.
func (e *FillEngine) StageFractions() (cone, cyl float64, ok bool) {
	if e.compound == nil {
		return 0, 0, false
	}
	return e.compound.cone, e.compound.cyl, true
}

func singleTankReading(snap *model.PlantSnapshot, key string) (model.TankReading, bool) {
	switch key {
	case model.KeyRWT:
		return snap.RWT, true
	case model.KeyCST:
		return snap.CST, true
	case model.KeyCFT:
		return snap.CFT, true
	case model.KeySLT:
		return snap.SLT, true
	default:
		return model.TankReading{}, false
	}
}

func multiTankReadings(snap *model.PlantSnapshot, key string) []model.TankReading {
	switch key {
	case model.KeySCT:
		return snap.SCT
	case model.KeyCWT:
		return snap.CWT
	default:
		return nil
	}
}

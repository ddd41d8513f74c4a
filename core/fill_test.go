package core

import (
	"math"
	"testing"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
	"github.com/aquasight/plant-visualizer/scene"
)

const frameDt = 1.0 / 60

// fillFixture is a minimal plant: one standard tank with a modelled water
// mesh, two clarifiers without one, and the compound sludge tank.
type fillFixture struct {
	scene  *scene.Scene
	engine *FillEngine
	snap   model.PlantSnapshot
}

func newFillFixture(t *testing.T) *fillFixture {
	t.Helper()
	s := scene.NewScene()

	add := func(parent string, n *scene.Node) {
		t.Helper()
		if err := s.AddNode(parent, n); err != nil {
			t.Fatalf("AddNode(%q) failed: %v", n.Name, err)
		}
	}

	rwt := scene.NewNode("RWT")
	rwt.Mesh = &scene.Mesh{Kind: scene.MeshCylinder, Radius: 2, Height: 4}
	add("", rwt)
	water := scene.NewNode("RWT_Water")
	water.Mesh = &scene.Mesh{Kind: scene.MeshCylinder, Radius: 1.9, Height: 4}
	add("RWT", water)

	for _, name := range []string{"SCT_1", "SCT_2"} {
		n := scene.NewNode(name)
		n.Mesh = &scene.Mesh{Kind: scene.MeshCylinder, Radius: 2.4, Height: 4}
		add("", n)
	}

	slt := scene.NewNode("SLT")
	slt.Mesh = &scene.Mesh{Kind: scene.MeshCylinder, Radius: 2, Height: 3}
	add("", slt)
	hopper := scene.NewNode("Hopper_Lower")
	hopper.Position = scene.Vec3{Y: -2.25}
	hopper.Mesh = &scene.Mesh{Kind: scene.MeshCone, Radius: 2, Height: 1.5}
	add("SLT", hopper)

	ix := BuildComponentIndex(s)
	engine := NewFillEngine(s, ix, DefaultFillConfig(), logging.Noop())

	snap := model.DefaultSnapshot()
	return &fillFixture{scene: s, engine: engine, snap: snap}
}

func (f *fillFixture) run(frames int) {
	for i := 0; i < frames; i++ {
		f.engine.Update(&f.snap, frameDt)
	}
}

func TestFillAdoptsModelledWaterMesh(t *testing.T) {
	f := newFillFixture(t)
	if f.scene.Node("RWT_Fill") != nil {
		t.Fatalf("fill mesh generated for a tank that already has a water mesh")
	}
	if f.scene.Node("SCT_1_Fill") == nil || f.scene.Node("SCT_2_Fill") == nil {
		t.Fatalf("no fill mesh generated for the clarifiers")
	}
}

// Fill must converge toward the target monotonically, without ever
// overshooting it.
func TestFillConvergesWithoutOvershoot(t *testing.T) {
	f := newFillFixture(t)
	f.snap.SCT[0].Level = 80

	cfg := DefaultFillConfig()
	target := cfg.MinScale + 0.80*(cfg.MaxScale-cfg.MinScale)

	prev, _ := f.engine.Fraction(model.KeySCT, 0)
	for i := 0; i < 600; i++ {
		f.engine.Update(&f.snap, frameDt)
		cur, ok := f.engine.Fraction(model.KeySCT, 0)
		if !ok {
			t.Fatalf("SCT[0] has no fill instance")
		}
		if cur < prev {
			t.Fatalf("fill regressed at frame %d: %v -> %v", i, prev, cur)
		}
		if cur > target+1e-9 {
			t.Fatalf("fill overshot target at frame %d: %v > %v", i, cur, target)
		}
		prev = cur
	}
	if math.Abs(prev-target) > 0.01 {
		t.Fatalf("fill = %v after 10s, want ~%v", prev, target)
	}
}

func TestFillMultiInstancesAreIndependent(t *testing.T) {
	f := newFillFixture(t)
	f.snap.SCT[0].Level = 90
	f.snap.SCT[1].Level = 10
	f.run(600)

	f0, _ := f.engine.Fraction(model.KeySCT, 0)
	f1, _ := f.engine.Fraction(model.KeySCT, 1)
	if math.Abs(f0-0.901) > 0.02 {
		t.Fatalf("SCT[0] fill = %v, want ~0.9", f0)
	}
	if math.Abs(f1-0.109) > 0.02 {
		t.Fatalf("SCT[1] fill = %v, want ~0.1", f1)
	}
}

// Extra payload instances beyond the modelled tanks only update the
// overlap; nothing panics and the modelled tanks still animate.
func TestFillExtraReadingsIgnored(t *testing.T) {
	f := newFillFixture(t)
	f.snap.SCT = append(f.snap.SCT, model.TankReading{Level: 50})
	f.snap.SCT[0].Level = 40
	f.run(600)

	if frac, _ := f.engine.Fraction(model.KeySCT, 0); math.Abs(frac-0.406) > 0.02 {
		t.Fatalf("SCT[0] fill = %v, want ~0.4", frac)
	}
	if _, ok := f.engine.Fraction(model.KeySCT, 2); ok {
		t.Fatalf("phantom third instance reported a fraction")
	}
}

func TestFillWaterMeshSitsOnTankFloor(t *testing.T) {
	f := newFillFixture(t)
	f.snap.SCT[0].Level = 50
	f.run(600)

	water := f.scene.Node("SCT_1_Fill")
	frac, _ := f.engine.Fraction(model.KeySCT, 0)

	// Bottom of the scaled mesh must stay at the tank floor (-2 for a
	// height-4 cylinder centred at the origin).
	bottom := water.Position.Y - 4*frac/2
	if math.Abs(bottom-(-2)) > 1e-6 {
		t.Fatalf("water bottom = %v, want -2", bottom)
	}
}

// Filling from empty: the cone section must reach its gate before the
// cylinder section starts rising.
func TestCompoundFillSequencesConeFirst(t *testing.T) {
	f := newFillFixture(t)
	cfg := DefaultFillConfig()
	f.snap.SLT.Level = 100

	sawConePartial := false
	for i := 0; i < 600; i++ {
		f.engine.Update(&f.snap, frameDt)
		cone, cyl, ok := f.engine.StageFractions()
		if !ok {
			t.Fatalf("no compound tank")
		}
		if cone < cfg.GateHigh {
			sawConePartial = true
			if cyl > 1e-9 {
				t.Fatalf("cylinder rose (%v) while cone at %v", cyl, cone)
			}
		}
	}
	if !sawConePartial {
		t.Fatalf("cone never observed mid-fill; smoothing too fast for the test")
	}
	cone, cyl, _ := f.engine.StageFractions()
	if cone != 1 {
		t.Fatalf("cone = %v after fill, want pinned to 1", cone)
	}
	if cyl < 0.95 {
		t.Fatalf("cylinder = %v after 10s at level 100, want near full", cyl)
	}
}

// Draining from full: the cylinder must empty past its gate before the
// cone starts falling.
func TestCompoundDrainSequencesCylinderFirst(t *testing.T) {
	f := newFillFixture(t)
	cfg := DefaultFillConfig()

	f.snap.SLT.Level = 100
	f.run(1200)

	f.snap.SLT.Level = 0
	sawCylPartial := false
	for i := 0; i < 600; i++ {
		f.engine.Update(&f.snap, frameDt)
		cone, cyl, _ := f.engine.StageFractions()
		if cyl > cfg.GateLow {
			sawCylPartial = true
			if cone < 1-1e-9 {
				t.Fatalf("cone fell (%v) while cylinder at %v", cone, cyl)
			}
		}
	}
	if !sawCylPartial {
		t.Fatalf("cylinder never observed mid-drain")
	}
	cone, cyl, _ := f.engine.StageFractions()
	if cyl != 0 {
		t.Fatalf("cylinder = %v after drain, want pinned to 0", cyl)
	}
	if cone > 0.05 {
		t.Fatalf("cone = %v after 10s at level 0, want near empty", cone)
	}
}

// Within one tick the two stages never both move. Checked across a level
// pattern that crosses the split in both directions.
func TestCompoundStagesNeverBothTransition(t *testing.T) {
	f := newFillFixture(t)

	levels := []float64{60, 100, 40, 0, 25, 80}
	prevCone, prevCyl, _ := f.engine.StageFractions()
	for _, lvl := range levels {
		f.snap.SLT.Level = lvl
		for i := 0; i < 300; i++ {
			f.engine.Update(&f.snap, frameDt)
			cone, cyl, _ := f.engine.StageFractions()
			coneMoved := math.Abs(cone-prevCone) > 1e-9 && prevCone != 1 && cone != 1
			cylMoved := math.Abs(cyl-prevCyl) > 1e-9 && prevCyl != 0 && cyl != 0
			if coneMoved && cylMoved {
				t.Fatalf("both stages transitioned in one tick at level %v: cone %v->%v cyl %v->%v",
					lvl, prevCone, cone, prevCyl, cyl)
			}
			prevCone, prevCyl = cone, cyl
		}
	}
}

func TestCompoundLevelSplitMapping(t *testing.T) {
	f := newFillFixture(t)

	// Level 25 is exactly the split: cone full, cylinder empty.
	f.snap.SLT.Level = 25
	f.run(2400)
	cone, cyl, _ := f.engine.StageFractions()
	if math.Abs(cone-1) > 0.02 {
		t.Fatalf("cone = %v at split level, want ~1", cone)
	}
	if cyl > 0.02 {
		t.Fatalf("cylinder = %v at split level, want ~0", cyl)
	}

	// Level 62.5 is halfway up the cylinder range.
	f.snap.SLT.Level = 62.5
	f.run(2400)
	_, cyl, _ = f.engine.StageFractions()
	if math.Abs(cyl-0.5) > 0.02 {
		t.Fatalf("cylinder = %v at level 62.5, want ~0.5", cyl)
	}
}

func TestCompoundSectionVisibility(t *testing.T) {
	f := newFillFixture(t)

	coneWater := f.scene.Node("SLT_Fill_Hopper")
	cylWater := f.scene.Node("SLT_Fill_Barrel")
	if coneWater == nil || cylWater == nil {
		t.Fatalf("generated compound fill meshes missing")
	}

	f.snap.SLT.Level = 0
	f.run(1)
	if coneWater.Visible || cylWater.Visible {
		t.Fatalf("empty compound tank shows water sections")
	}

	f.snap.SLT.Level = 100
	f.run(1200)
	if !coneWater.Visible || !cylWater.Visible {
		t.Fatalf("full compound tank hides water sections")
	}
}

func TestCompoundConeMeshTracksFraction(t *testing.T) {
	f := newFillFixture(t)
	f.snap.SLT.Level = 12.5 // half of the cone range
	f.run(2400)

	cone, _, _ := f.engine.StageFractions()
	coneWater := f.scene.Node("SLT_Fill_Hopper")
	wantR, wantH, _ := ConeFillParams(cone, 2*0.95, 1.5)
	if math.Abs(coneWater.Mesh.Radius-wantR) > 1e-9 {
		t.Fatalf("cone mesh radius = %v, want %v", coneWater.Mesh.Radius, wantR)
	}
	if math.Abs(coneWater.Mesh.Height-wantH) > 1e-9 {
		t.Fatalf("cone mesh height = %v, want %v", coneWater.Mesh.Height, wantH)
	}
}

func TestRefreshTintBlendsByTurbidity(t *testing.T) {
	f := newFillFixture(t)
	cfg := DefaultFillConfig()

	f.snap.RWT.Turbidity = 0
	f.engine.RefreshTint(&f.snap)
	water := f.scene.Node("RWT_Water")
	if got := water.Material().Color; got != cfg.CleanColor {
		t.Fatalf("turbidity 0 color = %v, want clean %v", got, cfg.CleanColor)
	}

	f.snap.RWT.Turbidity = 100
	f.engine.RefreshTint(&f.snap)
	if got := water.Material().Color; got != cfg.TurbidColor {
		t.Fatalf("turbidity 100 color = %v, want turbid %v", got, cfg.TurbidColor)
	}
}

// A scene missing a tank entirely must not panic and must report no fill
// fraction for it.
func TestFillMissingTankDegradesToNoop(t *testing.T) {
	s := scene.NewScene()
	rwt := scene.NewNode("RWT")
	rwt.Mesh = &scene.Mesh{Kind: scene.MeshCylinder, Radius: 2, Height: 4}
	if err := s.AddNode("", rwt); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	ix := BuildComponentIndex(s)
	engine := NewFillEngine(s, ix, DefaultFillConfig(), logging.Noop())

	snap := model.DefaultSnapshot()
	snap.CFT.Level = 70
	engine.Update(&snap, frameDt)

	if _, ok := engine.Fraction(model.KeyCFT, 0); ok {
		t.Fatalf("missing tank reported a fill fraction")
	}
	if _, _, ok := engine.StageFractions(); ok {
		t.Fatalf("missing compound tank reported stage fractions")
	}
}

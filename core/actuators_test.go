package core

import (
	"math"
	"testing"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
	"github.com/aquasight/plant-visualizer/scene"
)

type actuatorFixture struct {
	scene  *scene.Scene
	ix     *ComponentIndex
	engine *ActuatorEngine
	snap   model.PlantSnapshot
}

func newActuatorFixture(t *testing.T) *actuatorFixture {
	t.Helper()
	s := scene.NewScene()
	for _, name := range []string{
		"CDP", "PPS", "CFT", "CST", "Pipe_RWT_CDP", "Pipe_PPS_Out",
	} {
		if err := s.AddNode("", scene.NewNode(name)); err != nil {
			t.Fatalf("AddNode(%q) failed: %v", name, err)
		}
	}
	if err := s.AddNode("CFT", scene.NewNode("CFT_Mixer")); err != nil {
		t.Fatalf("AddNode(CFT_Mixer) failed: %v", err)
	}
	if err := s.AddNode("CST", scene.NewNode("CST_Scraper")); err != nil {
		t.Fatalf("AddNode(CST_Scraper) failed: %v", err)
	}

	ix := BuildComponentIndex(s)
	return &actuatorFixture{
		scene:  s,
		ix:     ix,
		engine: NewActuatorEngine(ix, DefaultActuatorConfig(), logging.Noop()),
		snap:   model.DefaultSnapshot(),
	}
}

// A running pump pulses its emissive within the configured band and never
// outside it.
func TestRunningPumpPulseStaysInBand(t *testing.T) {
	f := newActuatorFixture(t)
	f.snap.PPS.Status = true
	pump := f.ix.First("PPS")

	for i := 0; i < 120; i++ {
		elapsed := float64(i) / 60
		f.engine.Update(&f.snap, elapsed, frameDt)
		got := pump.Material().EmissiveIntensity
		if got < 0.2-1e-9 || got > 0.4+1e-9 {
			t.Fatalf("pulse intensity = %v at t=%v, want within [0.2, 0.4]", got, elapsed)
		}
	}
}

// A faulted pump blinks hard between full alarm intensity and zero,
// regardless of its running status.
func TestFaultedPumpBlinks(t *testing.T) {
	f := newActuatorFixture(t)
	cfg := DefaultActuatorConfig()
	f.snap.CDP.Status = true
	f.snap.CDP.Fault = true
	pump := f.ix.First("CDP")

	seen := map[float64]bool{}
	for i := 0; i < 300; i++ {
		f.engine.Update(&f.snap, float64(i)/60, frameDt)
		got := pump.Material().EmissiveIntensity
		if got != 0 && got != 0.8 {
			t.Fatalf("fault intensity = %v, want 0 or 0.8", got)
		}
		seen[got] = true
	}
	if !seen[0] || !seen[0.8] {
		t.Fatalf("fault blink never toggled; observed %v", seen)
	}
	if pump.Material().Emissive != cfg.AlarmColor {
		t.Fatalf("fault color = %v, want %v", pump.Material().Emissive, cfg.AlarmColor)
	}
}

// Vibration must restore the exact rest position when the pump stops, with
// no drift accumulated across start/stop cycles.
func TestVibrationRestoresRestPosition(t *testing.T) {
	f := newActuatorFixture(t)
	pump := f.ix.First("PPS")
	pump.Position = scene.Vec3{X: 6, Y: 0.5, Z: 9}
	rest := pump.Position

	for cycle := 0; cycle < 3; cycle++ {
		f.snap.PPS.Status = true
		for i := 0; i < 60; i++ {
			f.engine.Update(&f.snap, float64(cycle*120+i)/60, frameDt)
		}
		f.snap.PPS.Status = false
		f.engine.Update(&f.snap, float64(cycle*120+60)/60, frameDt)
		if pump.Position != rest {
			t.Fatalf("cycle %d: position = %+v after stop, want exact rest %+v",
				cycle, pump.Position, rest)
		}
	}
}

func TestVibrationOffsetWhileRunning(t *testing.T) {
	f := newActuatorFixture(t)
	cfg := DefaultActuatorConfig()
	f.snap.PPS.Status = true
	pump := f.ix.First("PPS")
	rest := pump.Position

	maxOffset := 0.0
	for i := 0; i < 120; i++ {
		f.engine.Update(&f.snap, float64(i)/60, frameDt)
		off := math.Abs(pump.Position.X - rest.X)
		if off > cfg.VibrationAmplitude+1e-9 {
			t.Fatalf("vibration offset %v exceeds amplitude %v", off, cfg.VibrationAmplitude)
		}
		if off > maxOffset {
			maxOffset = off
		}
	}
	if maxOffset == 0 {
		t.Fatalf("running pump never moved")
	}
}

// The mixer spins at a fixed rate while on and freezes in place when off;
// there is no spin-down.
func TestMixerSpinsOnlyWhileOn(t *testing.T) {
	f := newActuatorFixture(t)
	mixer := f.ix.First("CFT_Mixer")

	f.snap.CFT.MixerStatus = true
	for i := 0; i < 30; i++ {
		f.engine.Update(&f.snap, float64(i)/60, frameDt)
	}
	// Half a second at one revolution per second is half a turn.
	if math.Abs(mixer.Rotation.Y-math.Pi) > 1e-6 {
		t.Fatalf("mixer rotation = %v after 0.5s, want pi", mixer.Rotation.Y)
	}

	f.snap.CFT.MixerStatus = false
	frozen := mixer.Rotation.Y
	for i := 30; i < 90; i++ {
		f.engine.Update(&f.snap, float64(i)/60, frameDt)
	}
	if mixer.Rotation.Y != frozen {
		t.Fatalf("mixer rotated while off: %v -> %v", frozen, mixer.Rotation.Y)
	}
}

func TestScraperFollowsTankStatus(t *testing.T) {
	f := newActuatorFixture(t)
	scraper := f.ix.First("CST_SCRAPER")

	f.engine.Update(&f.snap, 0, frameDt)
	if scraper.Rotation.Y != 0 {
		t.Fatalf("scraper rotated while off")
	}

	f.snap.CST.ScraperStatus = true
	f.engine.Update(&f.snap, frameDt, frameDt)
	if scraper.Rotation.Y == 0 {
		t.Fatalf("scraper did not rotate while on")
	}
}

// A pipe with zero flow must show no effect at all: no scroll, no glow.
func TestZeroFlowPipeIsStatic(t *testing.T) {
	f := newActuatorFixture(t)
	pipe := f.ix.First("PIPE_RWT_CDP")

	f.engine.UpdatePipes(&f.snap, 0.5, frameDt)
	mat := pipe.Material()
	if mat.TextureOffset != 0 {
		t.Fatalf("texture scrolled with zero flow: %v", mat.TextureOffset)
	}
	if mat.EmissiveIntensity != 0 {
		t.Fatalf("pipe glows with zero flow: %v", mat.EmissiveIntensity)
	}
}

func TestPipeScrollRateScalesWithFlow(t *testing.T) {
	f := newActuatorFixture(t)
	cfg := DefaultActuatorConfig()
	f.snap.RWT.Outflow = 50 // half of nominal
	pipe := f.ix.First("PIPE_RWT_CDP")

	frames := 60
	for i := 0; i < frames; i++ {
		f.engine.UpdatePipes(&f.snap, float64(i)/60, frameDt)
	}
	want := cfg.ScrollRate * 0.5 // one second at half nominal flow
	got := pipe.Material().TextureOffset
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("texture offset = %v after 1s, want %v", got, want)
	}
	if pipe.Material().EmissiveIntensity <= 0 {
		t.Fatalf("flowing pipe does not glow")
	}
}

func TestFlowForPipeUpstreamResolution(t *testing.T) {
	snap := model.DefaultSnapshot()
	snap.RWT.Outflow = 110
	snap.SCT[0].Outflow = 40
	snap.SCT[1].Outflow = 45
	snap.PPS = model.PumpReading{Status: true, FlowRate: 96}
	snap.CDP = model.PumpReading{Status: true, Fault: true, FlowRate: 5}

	cases := []struct {
		key  string
		want float64
	}{
		{"PIPE_RWT_CDP", 110},
		{"PIPE_SCT_CWT", 85},
		{"PIPE_PPS_OUT", 96},
		{"PIPE_CDP_CFT", 0}, // faulted pump contributes no flow
		{"PIPE_UNKNOWN_X", 0},
		{"PIPE", 0},
	}
	for _, c := range cases {
		if got := FlowForPipe(&snap, c.key); got != c.want {
			t.Fatalf("FlowForPipe(%q) = %v, want %v", c.key, got, c.want)
		}
	}
}

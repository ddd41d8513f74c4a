package core

import (
	"testing"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
	"github.com/aquasight/plant-visualizer/scene"
)

func newAlarmFixture(t *testing.T) (*ComponentIndex, *AlarmEngine) {
	t.Helper()
	s := scene.NewScene()
	for _, name := range []string{"RWT", "CST", "SCT_1", "SCT_2", "PPS"} {
		if err := s.AddNode("", scene.NewNode(name)); err != nil {
			t.Fatalf("AddNode(%q) failed: %v", name, err)
		}
	}
	ix := BuildComponentIndex(s)
	return ix, NewAlarmEngine(ix, DefaultAlarmConfig(), logging.Noop())
}

func TestHighAlarmAppliesSolidOverlay(t *testing.T) {
	ix, engine := newAlarmFixture(t)
	cfg := DefaultAlarmConfig()

	snap := model.DefaultSnapshot()
	snap.RWT.HighLevelAlarm = true
	engine.Update(&snap, 0.7)

	mat := ix.First("RWT").Material()
	if mat.Emissive != cfg.AlarmColor {
		t.Fatalf("overlay color = %v, want %v", mat.Emissive, cfg.AlarmColor)
	}
	if mat.EmissiveIntensity != cfg.SolidIntensity {
		t.Fatalf("overlay intensity = %v, want solid %v", mat.EmissiveIntensity, cfg.SolidIntensity)
	}
}

// Low-level alarms blink: across a sweep of times both phases must appear.
func TestLowAlarmBlinks(t *testing.T) {
	ix, engine := newAlarmFixture(t)
	cfg := DefaultAlarmConfig()

	snap := model.DefaultSnapshot()
	snap.CST.LowLevelAlarm = true

	seen := map[float64]bool{}
	for i := 0; i < 300; i++ {
		engine.Update(&snap, float64(i)/60)
		seen[ix.First("CST").Material().EmissiveIntensity] = true
	}
	if !seen[0] || !seen[cfg.BlinkIntensity] {
		t.Fatalf("blink phases observed: %v, want both 0 and %v", seen, cfg.BlinkIntensity)
	}
}

// When both flags are set the high alarm wins: always the solid overlay,
// never the blinking one.
func TestHighAlarmWinsOverLow(t *testing.T) {
	ix, engine := newAlarmFixture(t)
	cfg := DefaultAlarmConfig()

	snap := model.DefaultSnapshot()
	snap.RWT.HighLevelAlarm = true
	snap.RWT.LowLevelAlarm = true

	for i := 0; i < 120; i++ {
		engine.Update(&snap, float64(i)/60)
		if got := ix.First("RWT").Material().EmissiveIntensity; got != cfg.SolidIntensity {
			t.Fatalf("intensity = %v with both flags, want solid %v", got, cfg.SolidIntensity)
		}
	}
	if got := engine.ActiveAlarms(); len(got) != 1 || got[0] != "RWT high level alarm" {
		t.Fatalf("active alarms = %v, want only the high alarm", got)
	}
}

func TestAlarmClearedRemovesOverlay(t *testing.T) {
	ix, engine := newAlarmFixture(t)

	snap := model.DefaultSnapshot()
	snap.RWT.HighLevelAlarm = true
	engine.Update(&snap, 0)

	snap.RWT.HighLevelAlarm = false
	engine.Update(&snap, 1)

	mat := ix.First("RWT").Material()
	if mat.EmissiveIntensity != 0 {
		t.Fatalf("overlay intensity = %v after clear, want 0", mat.EmissiveIntensity)
	}
	if got := engine.ActiveAlarms(); len(got) != 0 {
		t.Fatalf("active alarms = %v after clear, want none", got)
	}
}

// Multi-instance tanks alarm independently and label themselves with their
// instance number.
func TestMultiInstanceAlarmLabels(t *testing.T) {
	ix, engine := newAlarmFixture(t)
	cfg := DefaultAlarmConfig()

	snap := model.DefaultSnapshot()
	snap.SCT[1].HighLevelAlarm = true
	engine.Update(&snap, 0)

	if got := ix.Nodes("SCT")[0].Material().EmissiveIntensity; got != 0 {
		t.Fatalf("SCT #1 overlay = %v, want untouched", got)
	}
	if got := ix.Nodes("SCT")[1].Material().EmissiveIntensity; got != cfg.SolidIntensity {
		t.Fatalf("SCT #2 overlay = %v, want solid", got)
	}
	if got := engine.ActiveAlarms(); len(got) != 1 || got[0] != "SCT #2 high level alarm" {
		t.Fatalf("active alarms = %v", got)
	}
}

// Alarm readings beyond the modelled instances still surface in the
// description list even though no node can be highlighted.
func TestAlarmBeyondModelledInstances(t *testing.T) {
	_, engine := newAlarmFixture(t)

	snap := model.DefaultSnapshot()
	snap.SCT = append(snap.SCT, model.TankReading{HighLevelAlarm: true})
	engine.Update(&snap, 0)

	if got := engine.ActiveAlarms(); len(got) != 1 || got[0] != "SCT #3 high level alarm" {
		t.Fatalf("active alarms = %v, want the unmodelled instance listed", got)
	}
}

// Pump coloring belongs to the actuator engine; the alarm pass must leave
// pump nodes alone even when everything else is alarming.
func TestAlarmEngineNeverTouchesPumps(t *testing.T) {
	ix, engine := newAlarmFixture(t)

	snap := model.DefaultSnapshot()
	snap.RWT.HighLevelAlarm = true
	snap.CST.LowLevelAlarm = true
	snap.PPS.Fault = true

	before := *ix.First("PPS").Material()
	engine.Update(&snap, 0.3)
	after := *ix.First("PPS").Material()
	if before != after {
		t.Fatalf("pump material changed by alarm engine: %+v -> %+v", before, after)
	}
}

func TestActiveAlarmListRebuiltEachPass(t *testing.T) {
	_, engine := newAlarmFixture(t)

	snap := model.DefaultSnapshot()
	snap.RWT.HighLevelAlarm = true
	snap.CST.LowLevelAlarm = true
	engine.Update(&snap, 0)
	if got := len(engine.ActiveAlarms()); got != 2 {
		t.Fatalf("active alarms = %d, want 2", got)
	}

	snap.CST.LowLevelAlarm = false
	engine.Update(&snap, 0)
	got := engine.ActiveAlarms()
	if len(got) != 1 || got[0] != "RWT high level alarm" {
		t.Fatalf("active alarms = %v, want only RWT", got)
	}
}

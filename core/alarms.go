package core

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
)

// AlarmConfig carries the overlay constants for tank alarm highlighting.
type AlarmConfig struct {
	AlarmColor     colorful.Color
	SolidIntensity float64
	BlinkIntensity float64
	BlinkFrequency float64 // rad/s, square wave on sin
}

// DefaultAlarmConfig returns the production alarm overlay constants.
func DefaultAlarmConfig() AlarmConfig {
	return AlarmConfig{
		AlarmColor:     colorful.Color{R: 0.9, G: 0.15, B: 0.1},
		SolidIntensity: 0.6,
		BlinkIntensity: 0.6,
		BlinkFrequency: 5,
	}
}

// AlarmEngine drives per-tank alarm overlays with priority high > low >
// normal, and rebuilds the active-alarm description list on every
// evaluation. Pump coloring is owned by the actuator engine and is never
// touched here.
type AlarmEngine struct {
	cfg AlarmConfig
	ix  *ComponentIndex
	log logging.Logger

	active []string
}

// NewAlarmEngine builds the engine over an already-built index.
func NewAlarmEngine(ix *ComponentIndex, cfg AlarmConfig, log logging.Logger) *AlarmEngine {
	if log == nil {
		log = logging.Noop()
	}
	return &AlarmEngine{cfg: cfg, ix: ix, log: log}
}

// Update evaluates every alarm-capable tank at elapsed time t and applies
// overlays. The active list is rebuilt from scratch; no incremental
// diffing.
func (e *AlarmEngine) Update(snap *model.PlantSnapshot, t float64) {
	e.active = e.active[:0]

	for _, key := range model.SingleTankKeys {
		reading, ok := singleTankReading(snap, key)
		if !ok {
			continue
		}
		e.applyTankAlarm(key, 0, reading, t, false)
	}
	for _, key := range model.MultiTankKeys {
		readings := multiTankReadings(snap, key)
		for i, reading := range readings {
			e.applyTankAlarm(key, i, reading, t, true)
		}
	}
}

func (e *AlarmEngine) applyTankAlarm(key string, index int, r model.TankReading, t float64, multi bool) {
	nodes := e.ix.Nodes(key)
	label := key
	if multi {
		label = fmt.Sprintf("%s #%d", key, index+1)
	}

	switch {
	case r.HighLevelAlarm:
		e.active = append(e.active, fmt.Sprintf("%s high level alarm", label))
	case r.LowLevelAlarm:
		e.active = append(e.active, fmt.Sprintf("%s low level alarm", label))
	}

	if index >= len(nodes) {
		return
	}
	mat := nodes[index].OwnMaterial()

	switch {
	case r.HighLevelAlarm:
		// High wins over low: solid overlay, never the blinking one.
		mat.Emissive = e.cfg.AlarmColor
		mat.EmissiveIntensity = e.cfg.SolidIntensity
	case r.LowLevelAlarm:
		mat.Emissive = e.cfg.AlarmColor
		if math.Sin(e.cfg.BlinkFrequency*t) > 0 {
			mat.EmissiveIntensity = e.cfg.BlinkIntensity
		} else {
			mat.EmissiveIntensity = 0
		}
	default:
		mat.ClearEmissive()
	}
}

// ActiveAlarms returns the ordered human-readable descriptions produced by
// the last Update. The slice is reused between evaluations; callers must
// copy if they retain it.
func (e *AlarmEngine) ActiveAlarms() []string {
	return e.active
}

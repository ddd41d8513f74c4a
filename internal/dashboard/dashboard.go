// Package dashboard formats a plant snapshot into flat display fields for
// the text dashboard sink.
package dashboard

import (
	"fmt"

	"github.com/aquasight/plant-visualizer/model"
)

// Placeholder is rendered for source values that carry no reading yet.
const Placeholder = "--"

// Status classifications understood by the display layer.
const (
	StatusOK      = "ok"
	StatusAlarm   = "alarm"
	StatusWarning = "warning"
)

// Field is one display cell: formatted text plus an optional status class.
type Field struct {
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

// Build produces the full key -> field map for a snapshot. The map is
// rebuilt from scratch on every call; there is no incremental diffing.
func Build(snap model.PlantSnapshot) map[string]Field {
	out := make(map[string]Field, 48)

	tank := func(key string, r model.TankReading) {
		out[key+"_Level"] = Field{
			Text:   fmt.Sprintf("%.1f %%", r.Level),
			Status: tankStatus(r),
		}
		out[key+"_pH"] = phField(r.PH)
		out[key+"_Turbidity"] = Field{Text: fmt.Sprintf("%.1f NTU", r.Turbidity)}
		out[key+"_Inflow"] = flowField(r.Inflow)
		out[key+"_Outflow"] = flowField(r.Outflow)
	}

	tank(model.KeyRWT, snap.RWT)
	tank(model.KeyCST, snap.CST)
	tank(model.KeyCFT, snap.CFT)
	tank(model.KeySLT, snap.SLT)
	for i, r := range snap.SCT {
		tank(fmt.Sprintf("%s_%d", model.KeySCT, i+1), r)
	}
	for i, r := range snap.CWT {
		tank(fmt.Sprintf("%s_%d", model.KeyCWT, i+1), r)
	}

	pump := func(key string, p model.PumpReading) {
		out[key+"_Status"] = pumpStatusField(p)
		out[key+"_Mode"] = Field{Text: string(p.Mode)}
		out[key+"_Flow_Rate"] = flowField(p.FlowRate)
		out[key+"_Pressure"] = Field{Text: fmt.Sprintf("%.2f bar", p.Pressure)}
	}
	pump(model.KeyCDP, snap.CDP)
	pump(model.KeyPPS, snap.PPS)

	out["Total_Inflow"] = flowField(snap.Plant.TotalInflow)
	out["Total_Outflow"] = flowField(snap.Plant.TotalOutflow)
	out["System_Mode"] = Field{Text: string(snap.Plant.SystemMode)}
	out["Alarm_Status"] = alarmStatusField(snap.Plant.AlarmStatus)

	return out
}

func tankStatus(r model.TankReading) string {
	switch {
	case r.HighLevelAlarm:
		return StatusAlarm
	case r.LowLevelAlarm:
		return StatusWarning
	default:
		return StatusOK
	}
}

// phField treats a zero pH as "no reading yet": real process water never
// sits at pH 0, so zero is the sentinel for absent.
func phField(ph float64) Field {
	if ph == 0 {
		return Field{Text: Placeholder}
	}
	f := Field{Text: fmt.Sprintf("%.1f", ph)}
	if ph < 6 || ph > 9 {
		f.Status = StatusWarning
	}
	return f
}

func flowField(rate float64) Field {
	return Field{Text: fmt.Sprintf("%.1f m3/h", rate)}
}

func pumpStatusField(p model.PumpReading) Field {
	switch {
	case p.Fault:
		return Field{Text: "FAULT", Status: StatusAlarm}
	case p.Status:
		return Field{Text: "RUNNING", Status: StatusOK}
	default:
		return Field{Text: "STOPPED"}
	}
}

func alarmStatusField(s string) Field {
	if s == "" {
		return Field{Text: Placeholder}
	}
	f := Field{Text: s}
	if s != "NORMAL" {
		f.Status = StatusAlarm
	}
	return f
}

package model

// SystemMode describes how a pump or the plant as a whole is being driven.
type SystemMode string

const (
	ModeAuto   SystemMode = "AUTO"
	ModeManual SystemMode = "MANUAL"
	ModeOff    SystemMode = "OFF"
)

// ParseSystemMode maps free-form mode strings onto the known modes.
// Unknown or empty values coerce to AUTO so a snapshot is never left
// with an unrenderable mode.
func ParseSystemMode(s string) SystemMode {
	switch SystemMode(s) {
	case ModeAuto, ModeManual, ModeOff:
		return SystemMode(s)
	default:
		return ModeAuto
	}
}

// TankReading is the telemetry group for one tank. JSON field names follow
// the SCADA tag convention used by the plant historian.
type TankReading struct {
	Level          float64 `json:"Level"`
	HighLevelAlarm bool    `json:"High_Level_Alarm"`
	LowLevelAlarm  bool    `json:"Low_Level_Alarm"`
	PH             float64 `json:"pH"`
	Turbidity      float64 `json:"Turbidity"`
	Inflow         float64 `json:"Inflow"`
	Outflow        float64 `json:"Outflow"`
	MixerStatus    bool    `json:"Mixer_Status"`
	ScraperStatus  bool    `json:"Scraper_Status"`
}

// PumpReading is the telemetry group for one pump station.
type PumpReading struct {
	Status   bool       `json:"Status"`
	Fault    bool       `json:"Fault"`
	Mode     SystemMode `json:"Mode"`
	FlowRate float64    `json:"Flow_Rate"`
	Pressure float64    `json:"Pressure"`
}

// PlantTotals is the plant-wide aggregate group.
type PlantTotals struct {
	TotalInflow  float64    `json:"Total_Inflow"`
	TotalOutflow float64    `json:"Total_Outflow"`
	SystemMode   SystemMode `json:"System_Mode"`
	AlarmStatus  string     `json:"Alarm_Status"`
}

// Subsystem keys. These are the semantic identities correlating payload
// groups, scene node groups, and animation state entries.
const (
	KeyRWT   = "RWT" // raw water tank
	KeyCST   = "CST" // clarifier / settling tank
	KeyCFT   = "CFT" // chemical flocculation tank
	KeySLT   = "SLT" // sludge holding tank (cone + cylinder)
	KeySCT   = "SCT" // secondary clarifier tanks (x2)
	KeyCWT   = "CWT" // clear water tanks (x2)
	KeyCDP   = "CDP" // chemical dosing pump
	KeyPPS   = "PPS" // primary pump station
	KeyPlant = "Plant"
)

// SingleTankKeys lists the single-instance tank subsystems in process order.
var SingleTankKeys = []string{KeyRWT, KeyCFT, KeyCST, KeySLT}

// MultiTankKeys lists the array-valued tank subsystems in process order.
var MultiTankKeys = []string{KeySCT, KeyCWT}

// PumpKeys lists the pump subsystems.
var PumpKeys = []string{KeyCDP, KeyPPS}

// PlantSnapshot is the full, currently-known plant state. Every field is
// always populated; absent payload data falls back to subsystem defaults so
// rendering never observes a partially-undefined snapshot.
type PlantSnapshot struct {
	RWT   TankReading   `json:"RWT"`
	CST   TankReading   `json:"CST"`
	CFT   TankReading   `json:"CFT"`
	SLT   TankReading   `json:"SLT"`
	SCT   []TankReading `json:"SCT"`
	CWT   []TankReading `json:"CWT"`
	CDP   PumpReading   `json:"CDP"`
	PPS   PumpReading   `json:"PPS"`
	Plant PlantTotals   `json:"Plant"`
}

// PartialPlantSnapshot is the incoming update shape. A nil subsystem means
// "leave unchanged"; a present subsystem fully replaces its counterpart.
// Callers are contractually required to submit complete subsystem objects,
// not field-level patches.
type PartialPlantSnapshot struct {
	RWT   *TankReading  `json:"RWT,omitempty"`
	CST   *TankReading  `json:"CST,omitempty"`
	CFT   *TankReading  `json:"CFT,omitempty"`
	SLT   *TankReading  `json:"SLT,omitempty"`
	SCT   []TankReading `json:"SCT,omitempty"`
	CWT   []TankReading `json:"CWT,omitempty"`
	CDP   *PumpReading  `json:"CDP,omitempty"`
	PPS   *PumpReading  `json:"PPS,omitempty"`
	Plant *PlantTotals  `json:"Plant,omitempty"`
}

// DefaultSnapshot returns the fixed startup snapshot: empty tanks, stopped
// pumps in AUTO, two instances for each array-valued subsystem.
func DefaultSnapshot() PlantSnapshot {
	return PlantSnapshot{
		SCT: make([]TankReading, 2),
		CWT: make([]TankReading, 2),
		CDP: PumpReading{Mode: ModeAuto},
		PPS: PumpReading{Mode: ModeAuto},
		Plant: PlantTotals{
			SystemMode:  ModeAuto,
			AlarmStatus: "NORMAL",
		},
	}
}

// Clone returns a deep copy; the array-valued subsystems get their own
// backing storage so callers can hold the copy without aliasing.
func (s PlantSnapshot) Clone() PlantSnapshot {
	out := s
	out.SCT = append([]TankReading(nil), s.SCT...)
	out.CWT = append([]TankReading(nil), s.CWT...)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalize clamps the reading into renderable ranges. Applied once at the
// merge boundary rather than at every read site.
func (t *TankReading) Normalize() {
	t.Level = clamp(t.Level, 0, 100)
	t.Turbidity = clamp(t.Turbidity, 0, 100)
	if t.PH < 0 {
		t.PH = 0
	}
	if t.Inflow < 0 {
		t.Inflow = 0
	}
	if t.Outflow < 0 {
		t.Outflow = 0
	}
}

// Normalize coerces the mode and clamps rates.
func (p *PumpReading) Normalize() {
	p.Mode = ParseSystemMode(string(p.Mode))
	if p.FlowRate < 0 {
		p.FlowRate = 0
	}
	if p.Pressure < 0 {
		p.Pressure = 0
	}
}

// Normalize coerces the plant-wide mode and clamps totals.
func (p *PlantTotals) Normalize() {
	p.SystemMode = ParseSystemMode(string(p.SystemMode))
	if p.TotalInflow < 0 {
		p.TotalInflow = 0
	}
	if p.TotalOutflow < 0 {
		p.TotalOutflow = 0
	}
}

// Package simfeed generates synthetic plant payloads at a fixed interval,
// driving the same update entry point as the real external feed.
package simfeed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
)

// Applier is the update entry point the feeder drives; satisfied by
// state.PlantState.
type Applier interface {
	Apply(ctx context.Context, p model.PartialPlantSnapshot, source string)
	Snapshot() model.PlantSnapshot
}

// Feeder drives random-walk telemetry into an Applier. One payload per
// interval, complete subsystem objects only, indistinguishable from a real
// poll loop to the consumer.
type Feeder struct {
	applier  Applier
	interval time.Duration
	log      logging.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeeder constructs a stopped feeder.
func NewFeeder(applier Applier, interval time.Duration, log logging.Logger) *Feeder {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Feeder{
		applier:  applier,
		interval: interval,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the feed goroutine. Starting an already-running feeder is
// a no-op.
func (f *Feeder) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(ctx, f.done)
	f.log.Info(ctx, "simulation feed started", logging.Duration("interval", f.interval))
}

// Stop halts payload generation. In-flight animation keeps converging
// toward the last applied targets; nothing decays back to defaults.
func (f *Feeder) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		f.log.Info(context.Background(), "simulation feed stopped")
	}
}

// Running reports whether the feed goroutine is active.
func (f *Feeder) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

func (f *Feeder) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.applier.Apply(ctx, f.nextPayload(), "simfeed")
		}
	}
}

// nextPayload random-walks the current snapshot. Subsystems are always
// emitted whole, per the merge contract.
func (f *Feeder) nextPayload() model.PartialPlantSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.applier.Snapshot()

	rwt := f.walkTank(snap.RWT)
	cft := f.walkTank(snap.CFT)
	cst := f.walkTank(snap.CST)
	slt := f.walkTank(snap.SLT)
	sct := []model.TankReading{f.walkTank(at(snap.SCT, 0)), f.walkTank(at(snap.SCT, 1))}
	cwt := []model.TankReading{f.walkTank(at(snap.CWT, 0)), f.walkTank(at(snap.CWT, 1))}

	cdp := f.walkPump(snap.CDP)
	pps := f.walkPump(snap.PPS)

	totalIn := rwt.Inflow
	totalOut := cwt[0].Outflow + cwt[1].Outflow
	alarmStatus := "NORMAL"
	if rwt.HighLevelAlarm || cst.HighLevelAlarm || cdp.Fault || pps.Fault {
		alarmStatus = "ALARM"
	}

	return model.PartialPlantSnapshot{
		RWT: &rwt, CFT: &cft, CST: &cst, SLT: &slt,
		SCT: sct, CWT: cwt,
		CDP: &cdp, PPS: &pps,
		Plant: &model.PlantTotals{
			TotalInflow:  totalIn,
			TotalOutflow: totalOut,
			SystemMode:   model.ModeAuto,
			AlarmStatus:  alarmStatus,
		},
	}
}

func (f *Feeder) walkTank(r model.TankReading) model.TankReading {
	r.Level = clampWalk(r.Level, f.rng.Float64()*8-4, 0, 100)
	r.Turbidity = clampWalk(r.Turbidity, f.rng.Float64()*4-2, 0, 100)
	if r.PH == 0 {
		r.PH = 7.0
	}
	r.PH = clampWalk(r.PH, f.rng.Float64()*0.2-0.1, 5.5, 9.5)
	r.Inflow = clampWalk(r.Inflow, f.rng.Float64()*10-5, 0, 200)
	r.Outflow = clampWalk(r.Outflow, f.rng.Float64()*10-5, 0, 200)
	r.HighLevelAlarm = r.Level > 95
	r.LowLevelAlarm = r.Level < 5
	r.MixerStatus = true
	r.ScraperStatus = r.Level > 10
	return r
}

func (f *Feeder) walkPump(p model.PumpReading) model.PumpReading {
	// Rare fault, and occasional start/stop toggling.
	switch {
	case p.Fault:
		if f.rng.Float64() < 0.2 {
			p.Fault = false
		}
	case f.rng.Float64() < 0.02:
		p.Fault = true
	}
	if f.rng.Float64() < 0.05 {
		p.Status = !p.Status
	}
	if p.Fault {
		p.Status = false
	}
	if p.Status {
		p.FlowRate = clampWalk(p.FlowRate, f.rng.Float64()*10-5, 20, 150)
		p.Pressure = clampWalk(p.Pressure, f.rng.Float64()*0.4-0.2, 1, 6)
	} else {
		p.FlowRate = 0
		p.Pressure = 0
	}
	p.Mode = model.ModeAuto
	return p
}

func clampWalk(v, delta, lo, hi float64) float64 {
	v += delta
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func at(readings []model.TankReading, i int) model.TankReading {
	if i < len(readings) {
		return readings[i]
	}
	return model.TankReading{}
}

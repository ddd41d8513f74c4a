// Package state owns the process-wide plant snapshot and its merge
// semantics.
package state

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aquasight/plant-visualizer/internal/logging"
	"github.com/aquasight/plant-visualizer/model"
)

const tracerName = "github.com/aquasight/plant-visualizer/internal/state"

// UpdateRecorder receives counters for applied snapshot updates.
type UpdateRecorder interface {
	RecordUpdate(source string)
}

// Option customises PlantState construction.
type Option func(*PlantState)

// WithUpdateRecorder attaches an optional metrics recorder.
func WithUpdateRecorder(r UpdateRecorder) Option {
	return func(s *PlantState) { s.metrics = r }
}

// PlantState holds the latest known full plant snapshot. Updates arrive
// from the HTTP surface and the synthetic feed concurrently with frame-loop
// reads, so access is guarded by an RWMutex. There is no queuing: a newer
// payload simply replaces the targets the animation is converging toward.
type PlantState struct {
	mu      sync.RWMutex
	snap    model.PlantSnapshot
	version uint64

	log     logging.Logger
	metrics UpdateRecorder
	subs    []subscriber
	nextSub uint64
}

type subscriber struct {
	id uint64
	fn func(model.PlantSnapshot)
}

// NewPlantState starts from the fixed default snapshot.
func NewPlantState(log logging.Logger, opts ...Option) *PlantState {
	if log == nil {
		log = logging.Noop()
	}
	s := &PlantState{
		snap:    model.DefaultSnapshot(),
		version: 1,
		log:     log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Apply merges a partial snapshot: every subsystem present in the payload
// fully replaces its counterpart, absent subsystems are left untouched.
// Readings are normalized at this boundary so no read site ever needs to.
// Applying the same payload twice yields an identical snapshot.
func (s *PlantState) Apply(ctx context.Context, p model.PartialPlantSnapshot, source string) {
	_, span := otel.Tracer(tracerName).Start(ctx, "PlantState.Apply")
	span.SetAttributes(attribute.String("update.source", source))
	defer span.End()

	s.mu.Lock()
	if p.RWT != nil {
		p.RWT.Normalize()
		s.snap.RWT = *p.RWT
	}
	if p.CST != nil {
		p.CST.Normalize()
		s.snap.CST = *p.CST
	}
	if p.CFT != nil {
		p.CFT.Normalize()
		s.snap.CFT = *p.CFT
	}
	if p.SLT != nil {
		p.SLT.Normalize()
		s.snap.SLT = *p.SLT
	}
	if p.SCT != nil {
		s.snap.SCT = normalizeAll(p.SCT)
	}
	if p.CWT != nil {
		s.snap.CWT = normalizeAll(p.CWT)
	}
	if p.CDP != nil {
		p.CDP.Normalize()
		s.snap.CDP = *p.CDP
	}
	if p.PPS != nil {
		p.PPS.Normalize()
		s.snap.PPS = *p.PPS
	}
	if p.Plant != nil {
		p.Plant.Normalize()
		s.snap.Plant = *p.Plant
	}
	s.version++
	snap := s.snap.Clone()
	subs := append([]subscriber{}, s.subs...)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordUpdate(source)
	}
	s.log.Debug(ctx, "plant update applied", logging.String("source", source))

	// Notify outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub.fn(snap)
	}
}

// Clear resets the snapshot to the fixed default and notifies subscribers
// so dependent display state refreshes immediately.
func (s *PlantState) Clear(ctx context.Context) {
	s.mu.Lock()
	s.snap = model.DefaultSnapshot()
	s.version++
	snap := s.snap.Clone()
	subs := append([]subscriber{}, s.subs...)
	s.mu.Unlock()

	s.log.Info(ctx, "plant state cleared")
	for _, sub := range subs {
		sub.fn(snap)
	}
}

// Snapshot returns a deep copy of the current snapshot.
func (s *PlantState) Snapshot() model.PlantSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Version returns the snapshot version; it increments on every Apply and
// Clear.
func (s *PlantState) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers a callback invoked with a snapshot copy after every
// applied update. It returns an unsubscribe function. Subscribers are keyed
// by id, not slice position, so unsubscribing one never disturbs the others.
func (s *PlantState) Subscribe(fn func(model.PlantSnapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func normalizeAll(readings []model.TankReading) []model.TankReading {
	out := append([]model.TankReading(nil), readings...)
	for i := range out {
		out[i].Normalize()
	}
	return out
}

package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/observability"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/entity"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
	"github.com/signalsfoundry/drone-delivery-sim/timectrl"
)

// TickRecorder receives per-tick loop measurements. The prometheus
// DeliveryCollector implements it.
type TickRecorder interface {
	ObserveTick(d time.Duration, queueDepth int)
}

// EngineOption customises a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithTickRecorder attaches loop metrics.
func WithTickRecorder(r TickRecorder) EngineOption {
	return func(se *SimulationEngine) {
		se.recorder = r
	}
}

// WithLogger sets the engine logger.
func WithLogger(log logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if log != nil {
			se.log = log
		}
	}
}

// WithClock stamps every tick with the clock's simulation time.
func WithClock(c timectrl.SimClock) EngineOption {
	return func(se *SimulationEngine) {
		se.clock = c
	}
}

// SimulationEngine ticks every registered entity in insertion order.
// It is driven from a single goroutine; entities are not safe for
// concurrent Update calls.
type SimulationEngine struct {
	Registry *kb.Registry

	entities      []entity.Entity
	recorder      TickRecorder
	clock         timectrl.SimClock
	log           logging.Logger
	tick          int64
	tickListeners []func(tick int64)
}

func NewSimulationEngine(reg *kb.Registry, opts ...EngineOption) *SimulationEngine {
	if reg == nil {
		reg = kb.NewRegistry()
	}
	se := &SimulationEngine{
		Registry: reg,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(se)
		}
	}
	return se
}

// AddEntity appends e to the update order.
func (se *SimulationEngine) AddEntity(e entity.Entity) {
	se.entities = append(se.entities, e)
}

// Entities returns the entities in update order.
func (se *SimulationEngine) Entities() []entity.Entity {
	return append([]entity.Entity(nil), se.entities...)
}

// RegisterTickListener adds fn to the callbacks run after every tick.
func (se *SimulationEngine) RegisterTickListener(fn func(tick int64)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// SimTime returns the clock's current simulation time, or the zero time
// when no clock is attached.
func (se *SimulationEngine) SimTime() time.Time {
	if se.clock == nil {
		return time.Time{}
	}
	return se.clock.Now()
}

// Ticks returns the number of completed ticks.
func (se *SimulationEngine) Ticks() int64 { return se.tick }

// Step advances the simulation by dt simulated seconds.
func (se *SimulationEngine) Step(ctx context.Context, dt float64) {
	se.tick++
	tick := se.tick

	ctx = logging.ContextWithTick(ctx, tick)
	ctx, span := observability.Tracer().Start(ctx, "sim.tick",
		trace.WithAttributes(
			attribute.Int64("sim.tick", tick),
			attribute.Float64("sim.dt", dt),
			attribute.Int("sim.entities", len(se.entities)),
		),
	)
	defer span.End()
	if se.clock != nil {
		span.SetAttributes(attribute.String("sim.time", se.clock.Now().Format(time.RFC3339Nano)))
	}

	started := time.Now()
	for _, e := range se.entities {
		e.Update(ctx, dt)
	}
	elapsed := time.Since(started)

	depth := se.Registry.Len()
	span.SetAttributes(attribute.Int("delivery.queue_depth", depth))
	if se.recorder != nil {
		se.recorder.ObserveTick(elapsed, depth)
	}
	se.log.Debug(ctx, "tick complete",
		logging.Int("queue_depth", depth),
		logging.Any("wall", elapsed),
	)

	for _, fn := range se.tickListeners {
		fn(tick)
	}
}

// Run executes ticks steps of dt, stopping early when ctx is cancelled.
func (se *SimulationEngine) Run(ctx context.Context, ticks int, dt float64) error {
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		se.Step(ctx, dt)
	}
	return nil
}

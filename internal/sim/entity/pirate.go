package entity

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/route"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// Pirate chases the newest dispatched package and steals it if it is
// still stealable on arrival.
type Pirate struct {
	agent

	registry Dispatcher
	target   *model.Package
	leg      route.Strategy
	thefts   int
}

var (
	_ Entity   = (*Pirate)(nil)
	_ kb.Rival = (*Pirate)(nil)
)

// NewPirate constructs a pirate with no target.
func NewPirate(def model.EntityDefinition, reg Dispatcher, log logging.Logger, opts ...Option) *Pirate {
	return &Pirate{
		agent:    newAgent(def, log, opts),
		registry: reg,
	}
}

// Target returns the package being chased, or nil.
func (p *Pirate) Target() *model.Package { return p.target }

// Thefts returns how many packages this pirate has stolen.
func (p *Pirate) Thefts() int { return p.thefts }

// RecomputeTarget retargets the pirate at the registry's newest delivery.
// A package that cannot be stolen clears the current chase.
func (p *Pirate) RecomputeTarget() {
	p.target = nil
	p.leg = nil
	if p.registry == nil {
		return
	}
	pkg := p.registry.NewestDelivery()
	if pkg == nil || pkg.Stolen() || !pkg.CanBeStolen() {
		return
	}
	p.target = pkg
	p.leg = route.NewBeeline(p.position, pkg.Position())
}

// Update moves the pirate toward its target and attempts the theft on arrival.
func (p *Pirate) Update(ctx context.Context, dt float64) {
	if p.leg == nil {
		return
	}
	p.leg.Advance(p, dt)
	if !p.leg.IsComplete() {
		return
	}

	target := p.target
	p.leg = nil
	p.target = nil
	if !target.TrySteal() {
		p.log.Debug(ctx, "theft failed; package no longer stealable", logging.String("package", target.Name))
		return
	}
	p.thefts++
	p.notify(fmt.Sprintf("%s stole: %s", p.name, target.Name))
	p.log.Info(ctx, "package stolen", logging.String("package", target.Name))
}

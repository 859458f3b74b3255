package entity

import (
	"context"
	"fmt"
	"slices"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/route"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// Robot is the receiving agent. A drone marks it eligible on drop-off; the
// robot then walks to the newest handed-off package and collects it.
type Robot struct {
	agent

	registry Dispatcher
	eligible bool

	target   *model.Package
	leg      route.Strategy
	received []*model.Package
}

var (
	_ Entity      = (*Robot)(nil)
	_ kb.Receiver = (*Robot)(nil)
)

// NewRobot constructs a robot that is not yet eligible to collect.
func NewRobot(def model.EntityDefinition, reg Dispatcher, log logging.Logger, opts ...Option) *Robot {
	return &Robot{
		agent:    newAgent(def, log, opts),
		registry: reg,
	}
}

// MarkEligible flags the robot as able to accept a package.
func (r *Robot) MarkEligible() { r.eligible = true }

// Eligible reports whether the robot is waiting to collect a package.
func (r *Robot) Eligible() bool { return r.eligible }

// Received returns the packages collected so far, oldest first.
func (r *Robot) Received() []*model.Package {
	return append([]*model.Package(nil), r.received...)
}

func (r *Robot) Update(ctx context.Context, dt float64) {
	if r.eligible && r.leg == nil {
		r.eligible = false
		r.claim(ctx)
	}
	if r.leg == nil {
		return
	}

	r.leg.Advance(r, dt)
	if !r.leg.IsComplete() {
		return
	}
	pkg := r.target
	r.leg = nil
	r.target = nil
	if pkg.Stolen() {
		r.log.Debug(ctx, "package stolen before collection", logging.String("package", pkg.Name))
		return
	}
	r.received = append(r.received, pkg)
	r.notify(fmt.Sprintf("%s received: %s", r.name, pkg.Name))
}

// claim picks the newest handed-off package not yet collected.
func (r *Robot) claim(ctx context.Context) {
	if r.registry == nil {
		return
	}
	pkg := r.registry.NewestDelivery()
	if pkg == nil || !pkg.HandedOff() || pkg.Stolen() || slices.Contains(r.received, pkg) {
		r.log.Debug(ctx, "nothing to collect")
		return
	}
	r.target = pkg
	r.leg = route.NewBeeline(r.position, pkg.Position())
}

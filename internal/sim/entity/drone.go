package entity

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/route"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// DroneState is the delivery lifecycle phase a drone is in.
type DroneState int

const (
	DroneIdle DroneState = iota
	DroneEnRouteToPickup
	DroneCarrying
)

func (s DroneState) String() string {
	switch s {
	case DroneEnRouteToPickup:
		return "en_route_to_pickup"
	case DroneCarrying:
		return "carrying"
	default:
		return "idle"
	}
}

// Drone pulls packages off the shared delivery queue, flies to them,
// carries them to their destination and hands them off. At most one of
// toPackage and toDestination is advanced per tick; both are replaced
// wholesale on every new assignment and dropped on completion or theft.
type Drone struct {
	agent

	registry Dispatcher

	available bool
	pickedUp  bool
	pkg       *model.Package

	toPackage     route.Strategy
	toDestination route.Strategy

	// simulated seconds since the current package was assigned
	elapsed float64
}

var _ Entity = (*Drone)(nil)

// NewDrone constructs an idle drone bound to the shared registry.
func NewDrone(def model.EntityDefinition, reg Dispatcher, log logging.Logger, opts ...Option) *Drone {
	return &Drone{
		agent:     newAgent(def, log, opts),
		registry:  reg,
		available: true,
	}
}

// Available reports whether the drone is idle and may take a new package.
func (d *Drone) Available() bool { return d.available }

// PickedUp reports whether the current package has been collected.
func (d *Drone) PickedUp() bool { return d.pickedUp }

// Package returns the package being handled, or nil.
func (d *Drone) Package() *model.Package { return d.pkg }

// State derives the lifecycle phase from the active leg.
func (d *Drone) State() DroneState {
	switch {
	case d.toPackage != nil:
		return DroneEnRouteToPickup
	case d.toDestination != nil:
		return DroneCarrying
	default:
		return DroneIdle
	}
}

// DestinationLeg returns the strategy chain driving the destination leg,
// or nil when no delivery is in progress.
func (d *Drone) DestinationLeg() route.Strategy { return d.toDestination }

// Update advances the drone's lifecycle by dt simulated seconds.
func (d *Drone) Update(ctx context.Context, dt float64) {
	if d.available {
		d.nextDelivery(ctx)
	}
	if d.pkg == nil {
		return
	}

	if d.pkg.Stolen() {
		d.abandon(ctx)
		return
	}
	if dt > 0 {
		d.elapsed += dt
	}

	if d.toPackage != nil {
		d.advancePickup(ctx, dt)
	} else if d.toDestination != nil {
		d.advanceDelivery(ctx, dt)
	}
}

// nextDelivery pops the head of the queue and plans both legs. An empty
// queue leaves the drone idle.
func (d *Drone) nextDelivery(ctx context.Context) {
	if d.registry == nil {
		return
	}
	pkg, ok := d.registry.PopFront()
	if !ok || pkg == nil {
		return
	}
	d.registry.RecordNewestDelivery(pkg)

	d.pkg = pkg
	d.available = false
	d.pickedUp = false
	d.elapsed = 0
	d.notify(fmt.Sprintf("%s heading to: %s", d.name, pkg.Name))

	pickup := pkg.Position()
	d.toPackage = route.NewBeeline(d.position, pickup)
	d.toDestination = route.Build(pkg.StrategyName, pickup, pkg.Destination(), d.registry.Graph())

	if d.recorder != nil {
		d.recorder.DeliveryAssigned(d.strategyLabel())
	}
	d.log.Info(ctx, "delivery assigned",
		logging.String("package", pkg.Name),
		logging.String("route", route.Describe(d.toDestination)),
	)
}

func (d *Drone) advancePickup(ctx context.Context, dt float64) {
	d.toPackage.Advance(d, dt)
	if !d.toPackage.IsComplete() || d.pkg.Stolen() {
		return
	}

	d.pkg.SetCanBeStolen(false)
	d.notify(fmt.Sprintf("%s picked up: %s", d.name, d.pkg.Name))
	d.toPackage = nil
	d.pickedUp = true

	if d.recorder != nil {
		d.recorder.PackagePickedUp(d.strategyLabel())
	}
	d.log.Debug(ctx, "package picked up", logging.String("package", d.pkg.Name))
}

func (d *Drone) advanceDelivery(ctx context.Context, dt float64) {
	d.toDestination.Advance(d, dt)
	if d.pickedUp {
		d.pkg.SetPosition(d.position)
		d.pkg.SetDirection(d.direction)
	}
	if !d.toDestination.IsComplete() {
		return
	}

	pkg := d.pkg
	pkg.SetCanBeStolen(true)
	d.notify(fmt.Sprintf("%s dropped off: %s", d.name, pkg.Name))
	d.notifyRivals(ctx)
	d.notifyReceiver(ctx)
	d.toDestination = nil
	pkg.HandOff()

	if d.recorder != nil {
		d.recorder.PackageDelivered(d.strategyLabel(), d.elapsed)
	}
	d.log.Info(ctx, "package delivered",
		logging.String("package", pkg.Name),
		logging.Float("sim_seconds", d.elapsed),
	)
	d.reset()
}

// abandon drops both legs after the package was stolen. No hand-off side
// effects run and no lifecycle notification is emitted.
func (d *Drone) abandon(ctx context.Context) {
	d.log.Warn(ctx, "package stolen; abandoning delivery",
		logging.String("package", d.pkg.Name),
		logging.String("state", d.State().String()),
	)
	if d.recorder != nil {
		d.recorder.PackageStolen()
	}
	d.toPackage = nil
	d.toDestination = nil
	d.reset()
}

func (d *Drone) reset() {
	d.pkg = nil
	d.available = true
	d.pickedUp = false
	d.elapsed = 0
}

func (d *Drone) notifyRivals(ctx context.Context) {
	rivals := d.registry.RivalAgents()
	for _, rv := range rivals {
		rv.RecomputeTarget()
	}
	d.log.Debug(ctx, "rivals notified", logging.Int("count", len(rivals)))
}

func (d *Drone) notifyReceiver(ctx context.Context) {
	rc := d.registry.ReceivingAgent()
	if rc == nil {
		return
	}
	rc.MarkEligible()
	d.log.Debug(ctx, "receiver notified")
}

func (d *Drone) strategyLabel() string {
	if d.pkg == nil {
		return route.NameBeeline
	}
	switch name := d.pkg.StrategyName; name {
	case route.NameAStar, route.NameDFS, route.NameBFS, route.NameDijkstra:
		return name
	default:
		return route.NameBeeline
	}
}

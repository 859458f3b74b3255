// Package entity implements the moving agents of the delivery simulation:
// the drone that carries packages, the pirates that steal them and the
// robot that receives them after drop-off.
package entity

import (
	"context"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/route"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// Entity is anything the simulation engine ticks.
type Entity interface {
	ID() string
	Name() string
	Update(ctx context.Context, dt float64)
}

// Observer receives fire-and-forget lifecycle notifications.
type Observer interface {
	Notify(agent, message string)
}

// Dispatcher is the slice of the shared registry that agents consult.
// *kb.Registry satisfies it.
type Dispatcher interface {
	PopFront() (*model.Package, bool)
	RecordNewestDelivery(*model.Package)
	NewestDelivery() *model.Package
	Graph() route.Graph
	RivalAgents() []kb.Rival
	ReceivingAgent() kb.Receiver
}

// DeliveryRecorder receives delivery lifecycle counts. The prometheus
// collector in internal/observability implements it.
type DeliveryRecorder interface {
	DeliveryAssigned(strategy string)
	PackagePickedUp(strategy string)
	PackageDelivered(strategy string, simSeconds float64)
	PackageStolen()
}

// Option customises agent construction.
type Option func(*agent)

// WithObserver routes notifications to o.
func WithObserver(o Observer) Option {
	return func(a *agent) {
		a.observer = o
	}
}

// WithRecorder attaches an optional delivery metrics recorder.
func WithRecorder(r DeliveryRecorder) Option {
	return func(a *agent) {
		a.recorder = r
	}
}

// agent holds the identity, pose and collaborators shared by every entity.
// It implements route.Mover.
type agent struct {
	id    string
	name  string
	speed float64

	position  model.Vec3
	direction model.Vec3

	observer Observer
	recorder DeliveryRecorder
	log      logging.Logger
}

func newAgent(def model.EntityDefinition, log logging.Logger, opts []Option) agent {
	if log == nil {
		log = logging.Noop()
	}
	dir := def.Direction
	if dir == (model.Vec3{}) {
		dir = model.Vec3{X: 1}
	}
	a := agent{
		id:        def.ID,
		name:      def.Name,
		speed:     def.Speed,
		position:  def.Position,
		direction: dir,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&a)
		}
	}
	a.log = log.With(
		logging.String("agent", def.Name),
		logging.String("kind", def.Kind.String()),
	)
	return a
}

func (a *agent) ID() string   { return a.id }
func (a *agent) Name() string { return a.name }

func (a *agent) Position() model.Vec3      { return a.position }
func (a *agent) SetPosition(v model.Vec3)  { a.position = v }
func (a *agent) Direction() model.Vec3     { return a.direction }
func (a *agent) SetDirection(v model.Vec3) { a.direction = v }
func (a *agent) Speed() float64            { return a.speed }

func (a *agent) notify(message string) {
	if a.observer != nil {
		a.observer.Notify(a.name, message)
	}
}

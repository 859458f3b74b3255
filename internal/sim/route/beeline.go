package route

import "github.com/signalsfoundry/drone-delivery-sim/model"

// Beeline flies straight from its start point to its goal.
type Beeline struct {
	From, To model.Vec3
	follower
}

// NewBeeline constructs a direct-line strategy between two points.
func NewBeeline(from, to model.Vec3) *Beeline {
	return &Beeline{
		From:     from,
		To:       to,
		follower: follower{waypoints: []model.Vec3{to}},
	}
}

// Advance moves m toward the goal at m.Speed() for dt seconds.
func (b *Beeline) Advance(m Mover, dt float64) { b.advance(m, dt) }

// IsComplete reports whether the goal has been reached.
func (b *Beeline) IsComplete() bool { return b.done() }

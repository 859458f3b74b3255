// Package route holds the movement strategies that drive an agent along a
// leg, the motion decorators layered on top of them, and the factory that
// maps a package's strategy name to a concrete chain.
package route

import (
	"errors"

	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// arrivalEpsilon is the distance under which a waypoint counts as reached.
const arrivalEpsilon = 1e-9

// ErrNoPath is returned by a Graph when no route connects the endpoints.
var ErrNoPath = errors.New("route: no path between endpoints")

// Mover is the pose an agent exposes to a strategy.
type Mover interface {
	Position() model.Vec3
	SetPosition(model.Vec3)
	Direction() model.Vec3
	SetDirection(model.Vec3)
	Speed() float64
}

// Strategy advances a Mover toward a goal and reports completion.
type Strategy interface {
	Advance(m Mover, dt float64)
	IsComplete() bool
}

// Algorithm selects the graph search a PathStrategy asks the Graph for.
type Algorithm int

const (
	BreadthFirst Algorithm = iota
	DepthFirst
	Dijkstra
	AStar
)

func (a Algorithm) String() string {
	switch a {
	case BreadthFirst:
		return "bfs"
	case DepthFirst:
		return "dfs"
	case Dijkstra:
		return "dijkstra"
	case AStar:
		return "astar"
	default:
		return "unknown"
	}
}

// Graph is the spatial graph owned by the simulation registry. Path
// finding itself lives with the graph implementation.
type Graph interface {
	FindPath(from, to model.Vec3, alg Algorithm) ([]model.Vec3, error)
}

// follower walks a waypoint list, spending speed*dt of travel per advance
// and carrying any leftover distance on to the next waypoint.
type follower struct {
	waypoints []model.Vec3
	next      int
}

func (f *follower) done() bool { return f.next >= len(f.waypoints) }

func (f *follower) advance(m Mover, dt float64) {
	if dt <= 0 || f.done() {
		return
	}
	budget := m.Speed() * dt
	pos := m.Position()
	for !f.done() {
		target := f.waypoints[f.next]
		delta := target.Sub(pos)
		remaining := delta.Norm()
		if remaining <= arrivalEpsilon {
			pos = target
			f.next++
			continue
		}
		if budget <= 0 {
			break
		}
		dir := delta.Scale(1 / remaining)
		m.SetDirection(dir)
		if budget >= remaining {
			pos = target
			budget -= remaining
			f.next++
			continue
		}
		pos = pos.Add(dir.Scale(budget))
		budget = 0
	}
	m.SetPosition(pos)
}

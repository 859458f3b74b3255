package route

import "github.com/signalsfoundry/drone-delivery-sim/model"

// PathStrategy follows the waypoints a Graph returns for one algorithm.
type PathStrategy struct {
	Algorithm Algorithm
	From, To  model.Vec3

	// Degraded is set when the graph could not supply a route and the
	// strategy fell back to the straight segment.
	Degraded bool

	follower
}

// NewPathStrategy asks g for a route from -> to using alg. A nil graph, a
// search error or an empty route yields the straight segment so the
// returned strategy is always usable. A route that does not end on the
// goal is extended to it.
func NewPathStrategy(from, to model.Vec3, g Graph, alg Algorithm) *PathStrategy {
	ps := &PathStrategy{Algorithm: alg, From: from, To: to}

	var waypoints []model.Vec3
	if g != nil {
		path, err := g.FindPath(from, to, alg)
		if err == nil {
			waypoints = append(waypoints, path...)
		}
	}
	if len(waypoints) == 0 {
		ps.Degraded = true
		waypoints = []model.Vec3{to}
	} else if waypoints[len(waypoints)-1].DistanceTo(to) > arrivalEpsilon {
		waypoints = append(waypoints, to)
	}

	ps.waypoints = waypoints
	return ps
}

// Waypoints returns a copy of the route being followed.
func (ps *PathStrategy) Waypoints() []model.Vec3 {
	return append([]model.Vec3(nil), ps.waypoints...)
}

func (ps *PathStrategy) Advance(m Mover, dt float64) { ps.advance(m, dt) }

func (ps *PathStrategy) IsComplete() bool { return ps.done() }

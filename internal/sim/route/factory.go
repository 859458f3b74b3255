package route

import (
	"fmt"

	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// Strategy names accepted on a package. Anything else, including the empty
// string, selects a plain beeline.
const (
	NameAStar    = "astar"
	NameDFS      = "dfs"
	NameBFS      = "bfs"
	NameDijkstra = "dijkstra"
	NameBeeline  = "beeline"
)

// Build returns the destination-leg strategy for name. It is total and
// deterministic: every name yields a usable strategy between from and to.
// Decorator nesting is part of the contract and is listed outer to inner.
func Build(name string, from, to model.Vec3, g Graph) Strategy {
	switch name {
	case NameAStar:
		return NewJumpDecorator(NewPathStrategy(from, to, g, AStar))
	case NameDFS:
		return NewSpinDecorator(NewJumpDecorator(NewPathStrategy(from, to, g, DepthFirst)))
	case NameBFS:
		return NewSpinDecorator(NewSpinDecorator(NewPathStrategy(from, to, g, BreadthFirst)))
	case NameDijkstra:
		return NewJumpDecorator(NewSpinDecorator(NewPathStrategy(from, to, g, Dijkstra)))
	default:
		return NewBeeline(from, to)
	}
}

// Describe renders a strategy chain outer to inner, e.g. "spin(jump(dfs))".
func Describe(s Strategy) string {
	switch v := s.(type) {
	case nil:
		return "none"
	case *JumpDecorator:
		return fmt.Sprintf("jump(%s)", Describe(v.Inner))
	case *SpinDecorator:
		return fmt.Sprintf("spin(%s)", Describe(v.Inner))
	case *PathStrategy:
		return v.Algorithm.String()
	case *Beeline:
		return NameBeeline
	default:
		return fmt.Sprintf("%T", s)
	}
}

package model

import "sync"

// Package is a delivery item shared between the registry, the drone that
// carries it and any rival that tries to steal it. All mutable state is
// guarded by mu so concurrent agents serialize flag updates.
type Package struct {
	ID           string
	Name         string
	StrategyName string // route algorithm key, e.g. "astar", "bfs"

	destination Vec3

	mu          sync.Mutex
	position    Vec3
	direction   Vec3
	stolen      bool
	canBeStolen bool
	carried     bool
	handedOff   bool
}

// NewPackage constructs a package waiting at position for delivery to
// destination. Fresh packages are stealable until a drone collects them.
func NewPackage(id, name string, position, destination Vec3, strategy string) *Package {
	return &Package{
		ID:           id,
		Name:         name,
		StrategyName: strategy,
		destination:  destination,
		position:     position,
		direction:    Vec3{X: 1},
		canBeStolen:  true,
	}
}

// Destination returns the drop-off point.
func (p *Package) Destination() Vec3 { return p.destination }

func (p *Package) Position() Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *Package) SetPosition(v Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = v
}

func (p *Package) Direction() Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.direction
}

func (p *Package) SetDirection(v Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.direction = v
}

// Stolen reports whether a rival has taken the package.
func (p *Package) Stolen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stolen
}

// MarkStolen flags the package as stolen. Any drone holding it abandons
// its current leg on its next tick.
func (p *Package) MarkStolen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stolen = true
}

// TrySteal marks the package stolen only if it is currently stealable
// and not already stolen. It reports whether the theft happened.
func (p *Package) TrySteal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.canBeStolen || p.stolen {
		return false
	}
	p.stolen = true
	return true
}

func (p *Package) CanBeStolen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canBeStolen
}

// SetCanBeStolen toggles stealability. Clearing it marks the package as
// physically carried.
func (p *Package) SetCanBeStolen(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canBeStolen = v
	if !v {
		p.carried = true
	}
}

// Carried reports whether the package is between pickup and hand-off.
func (p *Package) Carried() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.carried
}

// HandOff releases the carried state once the package reaches its destination.
func (p *Package) HandOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carried = false
	p.handedOff = true
}

// HandedOff reports whether the package has been delivered.
func (p *Package) HandedOff() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handedOff
}

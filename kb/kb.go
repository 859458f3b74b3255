package kb

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/route"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

var (
	// ErrPackageExists is returned when a package ID is registered twice.
	ErrPackageExists = errors.New("package already exists")
	// ErrUnknownPackage is returned when a package ID is not registered.
	ErrUnknownPackage = errors.New("unknown package")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventPackageScheduled EventType = iota
	EventPackageDequeued
	EventNewestDelivery
)

func (t EventType) String() string {
	switch t {
	case EventPackageScheduled:
		return "scheduled"
	case EventPackageDequeued:
		return "dequeued"
	case EventNewestDelivery:
		return "newest_delivery"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type    EventType
	Package *model.Package
}

// Rival is an agent that competes for packages and must be told when a
// package becomes available again.
type Rival interface {
	RecomputeTarget()
}

// Receiver is the single agent that accepts packages after drop-off.
type Receiver interface {
	MarkEligible()
}

// Registry is the shared, thread-safe simulation state agents consult:
// the FIFO delivery queue, the package store, the spatial graph and the
// rival and receiving agents. Agents hold non-owning references to it.
type Registry struct {
	mu sync.RWMutex

	packages map[string]*model.Package
	queue    []*model.Package
	newest   *model.Package

	graph    route.Graph
	rivals   []Rival
	receiver Receiver

	subs    []subscriber
	nextSub uint64
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		packages: make(map[string]*model.Package),
	}
}

// AddPackage stores p without scheduling it.
func (r *Registry) AddPackage(p *model.Package) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("add package: missing id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packages[p.ID]; exists {
		return fmt.Errorf("package %q: %w", p.ID, ErrPackageExists)
	}
	r.packages[p.ID] = p
	return nil
}

// GetPackage returns the package with the given ID, or nil if not found.
func (r *Registry) GetPackage(id string) *model.Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.packages[id]
}

// ListPackages returns a snapshot slice of all stored packages.
func (r *Registry) ListPackages() []*model.Package {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*model.Package, 0, len(r.packages))
	for _, p := range r.packages {
		res = append(res, p)
	}
	return res
}

// Schedule appends a stored package to the back of the delivery queue.
func (r *Registry) Schedule(id string) error {
	r.mu.Lock()
	p, ok := r.packages[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("schedule %q: %w", id, ErrUnknownPackage)
	}
	r.queue = append(r.queue, p)
	subs := r.snapshotSubsLocked()
	r.mu.Unlock()

	notify(subs, Event{Type: EventPackageScheduled, Package: p})
	return nil
}

// Enqueue stores p and schedules it in one call.
func (r *Registry) Enqueue(p *model.Package) error {
	if err := r.AddPackage(p); err != nil {
		return err
	}
	return r.Schedule(p.ID)
}

// IsEmpty reports whether the delivery queue has no pending packages.
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queue) == 0
}

// Len returns the number of pending packages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queue)
}

// PopFront removes and returns the head of the delivery queue. The check
// and removal happen under one lock so concurrent consumers never receive
// the same package.
func (r *Registry) PopFront() (*model.Package, bool) {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return nil, false
	}
	p := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	subs := r.snapshotSubsLocked()
	r.mu.Unlock()

	notify(subs, Event{Type: EventPackageDequeued, Package: p})
	return p, true
}

// RecordNewestDelivery remembers p as the most recently dispatched package.
func (r *Registry) RecordNewestDelivery(p *model.Package) {
	r.mu.Lock()
	r.newest = p
	subs := r.snapshotSubsLocked()
	r.mu.Unlock()

	notify(subs, Event{Type: EventNewestDelivery, Package: p})
}

// NewestDelivery returns the most recently dispatched package, or nil.
func (r *Registry) NewestDelivery() *model.Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.newest
}

// SetGraph installs the spatial graph used by graph-based strategies.
func (r *Registry) SetGraph(g route.Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph = g
}

// Graph returns the spatial graph, which may be nil.
func (r *Registry) Graph() route.Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph
}

// AddRival registers an agent to be told when packages become available.
func (r *Registry) AddRival(rv Rival) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rivals = append(r.rivals, rv)
}

// RivalAgents returns a snapshot of the registered rivals.
func (r *Registry) RivalAgents() []Rival {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rival(nil), r.rivals...)
}

// SetReceivingAgent installs the single receiving agent.
func (r *Registry) SetReceivingAgent(rc Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiver = rc
}

// ReceivingAgent returns the receiving agent, or nil if none is set.
func (r *Registry) ReceivingAgent() Receiver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.receiver
}

// Subscribe registers a callback for registry events. Subscribers are
// called in registration order. The returned function removes this
// subscriber only and is safe to call more than once.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.subs = append(r.subs, subscriber{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.subs = slices.DeleteFunc(r.subs, func(s subscriber) bool { return s.id == id })
	}
}

func (r *Registry) snapshotSubsLocked() []func(Event) {
	out := make([]func(Event), 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s.fn)
	}
	return out
}

// Subscribers run outside the lock so they may call back into the registry.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

package entity

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/route"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// eventLog records observer notifications and collaborator calls in one
// ordered slice so tests can assert cross-collaborator ordering.
type eventLog struct {
	entries []string
}

func (l *eventLog) Notify(agent, message string) {
	l.entries = append(l.entries, "notify:"+message)
}

func (l *eventLog) notifications() []string {
	var out []string
	for _, e := range l.entries {
		if msg, ok := strings.CutPrefix(e, "notify:"); ok {
			out = append(out, msg)
		}
	}
	return out
}

type loggingRival struct {
	name string
	log  *eventLog
}

func (r *loggingRival) RecomputeTarget() {
	r.log.entries = append(r.log.entries, "rival:"+r.name)
}

type loggingReceiver struct {
	log      *eventLog
	eligible bool
}

func (r *loggingReceiver) MarkEligible() {
	r.eligible = true
	r.log.entries = append(r.log.entries, "receiver")
}

type fakeRecorder struct {
	assigned, pickedUp, delivered, stolen int
	strategies                            []string
}

func (f *fakeRecorder) DeliveryAssigned(strategy string) {
	f.assigned++
	f.strategies = append(f.strategies, strategy)
}
func (f *fakeRecorder) PackagePickedUp(string)           { f.pickedUp++ }
func (f *fakeRecorder) PackageDelivered(string, float64) { f.delivered++ }
func (f *fakeRecorder) PackageStolen()                   { f.stolen++ }

type droneFixture struct {
	reg      *kb.Registry
	log      *eventLog
	receiver *loggingReceiver
	recorder *fakeRecorder
	drone    *Drone
}

func newDroneFixture(t *testing.T, pos model.Vec3, speed float64) *droneFixture {
	t.Helper()
	reg := kb.NewRegistry()
	log := &eventLog{}
	receiver := &loggingReceiver{log: log}
	recorder := &fakeRecorder{}
	reg.AddRival(&loggingRival{name: "a", log: log})
	reg.AddRival(&loggingRival{name: "b", log: log})
	reg.SetReceivingAgent(receiver)

	d := NewDrone(model.EntityDefinition{
		ID:       "drone-1",
		Name:     "Drone",
		Kind:     model.EntityKindDrone,
		Position: pos,
		Speed:    speed,
	}, reg, logging.Noop(), WithObserver(log), WithRecorder(recorder))

	return &droneFixture{reg: reg, log: log, receiver: receiver, recorder: recorder, drone: d}
}

func (f *droneFixture) enqueue(t *testing.T, id string, pickup, dest model.Vec3, strategy string) *model.Package {
	t.Helper()
	p := model.NewPackage(id, id, pickup, dest, strategy)
	if err := f.reg.Enqueue(p); err != nil {
		t.Fatalf("Enqueue(%s): %v", id, err)
	}
	return p
}

// tickUntilIdle runs ticks until the drone has finished a delivery cycle
// and returns how many ticks it took.
func (f *droneFixture) tickUntilIdle(t *testing.T, dt float64, maxTicks int) int {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= maxTicks; i++ {
		f.drone.Update(ctx, dt)
		if f.drone.Available() {
			return i
		}
	}
	t.Fatalf("drone did not finish within %d ticks (state=%s)", maxTicks, f.drone.State())
	return 0
}

func TestDroneStaysIdleOnEmptyQueue(t *testing.T) {
	f := newDroneFixture(t, model.Vec3{}, 1)
	for range 3 {
		f.drone.Update(context.Background(), 1)
	}
	if !f.drone.Available() || f.drone.Package() != nil || f.drone.State() != DroneIdle {
		t.Fatalf("drone should remain idle, state=%s", f.drone.State())
	}
	if len(f.log.entries) != 0 {
		t.Fatalf("unexpected notifications: %v", f.log.entries)
	}
}

func TestDroneTakesHeadOfQueue(t *testing.T) {
	f := newDroneFixture(t, model.Vec3{}, 1)
	first := f.enqueue(t, "P1", model.Vec3{X: 5}, model.Vec3{X: 9}, "astar")
	f.enqueue(t, "P2", model.Vec3{X: 6}, model.Vec3{X: 9}, "dfs")

	f.drone.Update(context.Background(), 1)

	if f.drone.Available() {
		t.Fatalf("drone should be busy after dequeue")
	}
	if f.drone.Package() != first {
		t.Fatalf("drone took %v, want head of queue", f.drone.Package())
	}
	if f.drone.PickedUp() {
		t.Fatalf("pickedUp should be false before reaching the package")
	}
	if f.drone.State() != DroneEnRouteToPickup {
		t.Fatalf("state = %s, want en_route_to_pickup", f.drone.State())
	}
	if f.reg.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", f.reg.Len())
	}
	if f.reg.NewestDelivery() != first {
		t.Fatalf("registry newest delivery not recorded")
	}
	if got := route.Describe(f.drone.DestinationLeg()); got != "jump(astar)" {
		t.Fatalf("destination leg = %s, want jump(astar)", got)
	}
	if got := f.log.notifications(); len(got) != 1 || got[0] != "Drone heading to: P1" {
		t.Fatalf("notifications = %v", got)
	}
	if f.recorder.assigned != 1 || f.recorder.strategies[0] != "astar" {
		t.Fatalf("recorder = %#v", f.recorder)
	}
}

func TestDroneEndToEndBFSDelivery(t *testing.T) {
	f := newDroneFixture(t, model.Vec3{}, 1)
	p := f.enqueue(t, "P", model.Vec3{}, model.Vec3{X: 10}, "bfs")

	ticks := f.tickUntilIdle(t, 1, 50)
	// one tick to reach the co-located pickup, ten to fly ten units.
	if ticks != 11 {
		t.Fatalf("delivery took %d ticks, want 11", ticks)
	}

	if f.drone.PickedUp() || f.drone.Package() != nil || f.drone.State() != DroneIdle {
		t.Fatalf("drone not reset: pickedUp=%v pkg=%v state=%s", f.drone.PickedUp(), f.drone.Package(), f.drone.State())
	}

	want := []string{
		"notify:Drone heading to: P",
		"notify:Drone picked up: P",
		"notify:Drone dropped off: P",
		"rival:a",
		"rival:b",
		"receiver",
	}
	if fmt.Sprint(f.log.entries) != fmt.Sprint(want) {
		t.Fatalf("event order = %v, want %v", f.log.entries, want)
	}

	if !p.HandedOff() || p.Carried() {
		t.Fatalf("package hand-off not finalised: handedOff=%v carried=%v", p.HandedOff(), p.Carried())
	}
	if !p.CanBeStolen() {
		t.Fatalf("package should be stealable again after drop-off")
	}
	if !f.receiver.eligible {
		t.Fatalf("receiver should be eligible after drop-off")
	}
	if p.Position().DistanceTo(model.Vec3{X: 10}) > 1e-9 {
		t.Fatalf("package final position = %#v, want destination", p.Position())
	}
	if f.recorder.pickedUp != 1 || f.recorder.delivered != 1 || f.recorder.stolen != 0 {
		t.Fatalf("recorder = %#v", f.recorder)
	}
}

func TestDronePickupMarksPackageUnstealable(t *testing.T) {
	f := newDroneFixture(t, model.Vec3{}, 2)
	p := f.enqueue(t, "P", model.Vec3{X: 3}, model.Vec3{X: 9}, "")
	ctx := context.Background()

	f.drone.Update(ctx, 1)
	if !p.CanBeStolen() {
		t.Fatalf("package should still be stealable before pickup")
	}
	f.drone.Update(ctx, 1)
	if !f.drone.PickedUp() || f.drone.State() != DroneCarrying {
		t.Fatalf("expected carrying after reaching pickup, state=%s", f.drone.State())
	}
	if p.CanBeStolen() || !p.Carried() {
		t.Fatalf("package should be carried and unstealable")
	}
	// destination leg starts from the pickup point on the next tick
	if f.drone.Position() != (model.Vec3{X: 3}) {
		t.Fatalf("drone position = %#v, want pickup point", f.drone.Position())
	}
}

func TestDroneZeroDtIsIdempotent(t *testing.T) {
	f := newDroneFixture(t, model.Vec3{}, 1)
	f.enqueue(t, "P", model.Vec3{}, model.Vec3{X: 4}, "dijkstra")
	ctx := context.Background()

	f.drone.Update(ctx, 0)
	state, avail, picked := f.drone.State(), f.drone.Available(), f.drone.PickedUp()
	if state != DroneEnRouteToPickup {
		t.Fatalf("state after assignment = %s", state)
	}
	for range 20 {
		f.drone.Update(ctx, 0)
	}
	if f.drone.State() != state || f.drone.Available() != avail || f.drone.PickedUp() != picked {
		t.Fatalf("dt=0 ticks changed lifecycle: state=%s available=%v pickedUp=%v", f.drone.State(), f.drone.Available(), f.drone.PickedUp())
	}

	f.drone.Update(ctx, 1)
	if f.drone.State() != DroneCarrying {
		t.Fatalf("state = %s, want carrying", f.drone.State())
	}
	pos := f.drone.Position()
	for range 20 {
		f.drone.Update(ctx, 0)
	}
	if f.drone.State() != DroneCarrying || !f.drone.PickedUp() || f.drone.Position() != pos {
		t.Fatalf("dt=0 ticks changed carrying state or pose")
	}
}

func TestDroneTheftInterruptsEitherLeg(t *testing.T) {
	cases := []struct {
		name       string
		ticksFirst int
		wantState  DroneState
	}{
		{"en route to pickup", 1, DroneEnRouteToPickup},
		{"carrying", 4, DroneCarrying},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newDroneFixture(t, model.Vec3{}, 1)
			p := f.enqueue(t, "P", model.Vec3{X: 2}, model.Vec3{X: 20}, "dfs")
			ctx := context.Background()

			for range tc.ticksFirst {
				f.drone.Update(ctx, 1)
			}
			if f.drone.State() != tc.wantState {
				t.Fatalf("state = %s, want %s", f.drone.State(), tc.wantState)
			}
			before := len(f.log.entries)

			p.MarkStolen()
			f.drone.Update(ctx, 1)

			if !f.drone.Available() || f.drone.PickedUp() || f.drone.Package() != nil {
				t.Fatalf("theft not handled: available=%v pickedUp=%v pkg=%v", f.drone.Available(), f.drone.PickedUp(), f.drone.Package())
			}
			if f.drone.State() != DroneIdle || f.drone.DestinationLeg() != nil {
				t.Fatalf("legs not cleared, state=%s", f.drone.State())
			}
			if len(f.log.entries) != before {
				t.Fatalf("theft emitted notifications: %v", f.log.entries[before:])
			}
			if p.HandedOff() {
				t.Fatalf("stolen package must not be handed off")
			}
			if f.recorder.stolen != 1 {
				t.Fatalf("recorder stolen = %d, want 1", f.recorder.stolen)
			}
		})
	}
}

func TestDroneCarriedPackageTracksPose(t *testing.T) {
	f := newDroneFixture(t, model.Vec3{}, 1.5)
	p := f.enqueue(t, "P", model.Vec3{}, model.Vec3{X: 6, Z: 6}, "dfs")
	ctx := context.Background()

	for range 30 {
		f.drone.Update(ctx, 0.5)
		if f.drone.PickedUp() && f.drone.DestinationLeg() != nil {
			if p.Position() != f.drone.Position() || p.Direction() != f.drone.Direction() {
				t.Fatalf("package pose (%v,%v) != drone pose (%v,%v)", p.Position(), p.Direction(), f.drone.Position(), f.drone.Direction())
			}
		}
		if f.drone.Available() {
			return
		}
	}
	t.Fatalf("delivery did not finish")
}

func TestDroneFallbackStrategiesMatchBeeline(t *testing.T) {
	ticksFor := func(strategy string) (int, string) {
		f := newDroneFixture(t, model.Vec3{}, 1)
		f.enqueue(t, "P", model.Vec3{X: 1}, model.Vec3{X: 8, Z: 3}, strategy)
		f.drone.Update(context.Background(), 0)
		desc := route.Describe(f.drone.DestinationLeg())
		return f.tickUntilIdle(t, 0.25, 200), desc
	}

	wantTicks, wantDesc := ticksFor("beeline")
	if wantDesc != "beeline" {
		t.Fatalf("beeline leg = %s", wantDesc)
	}
	for _, name := range []string{"", "warp", "bfs"} {
		got, desc := ticksFor(name)
		if got != wantTicks {
			t.Fatalf("strategy %q took %d ticks, beeline took %d", name, got, wantTicks)
		}
		if name != "bfs" && desc != "beeline" {
			t.Fatalf("strategy %q leg = %s, want undecorated beeline", name, desc)
		}
	}
}

func TestDroneProcessesQueueSequentially(t *testing.T) {
	f := newDroneFixture(t, model.Vec3{}, 2)
	f.enqueue(t, "P1", model.Vec3{X: 2}, model.Vec3{X: 4}, "astar")
	f.enqueue(t, "P2", model.Vec3{X: 4}, model.Vec3{X: 0}, "dijkstra")

	f.tickUntilIdle(t, 1, 50)
	f.tickUntilIdle(t, 1, 50)

	want := []string{
		"Drone heading to: P1", "Drone picked up: P1", "Drone dropped off: P1",
		"Drone heading to: P2", "Drone picked up: P2", "Drone dropped off: P2",
	}
	if fmt.Sprint(f.log.notifications()) != fmt.Sprint(want) {
		t.Fatalf("notifications = %v, want %v", f.log.notifications(), want)
	}
	if !f.reg.IsEmpty() {
		t.Fatalf("queue should be drained")
	}
}

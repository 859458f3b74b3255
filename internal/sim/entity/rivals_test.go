package entity

import (
	"context"
	"testing"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

func TestPirateStealsPackageAwaitingPickup(t *testing.T) {
	reg := kb.NewRegistry()
	log := &eventLog{}
	drone := NewDrone(model.EntityDefinition{Name: "Drone", Speed: 1}, reg, logging.Noop(), WithObserver(log))
	pirate := NewPirate(model.EntityDefinition{Name: "Pirate", Speed: 10, Position: model.Vec3{X: 10}}, reg, logging.Noop(), WithObserver(log))
	reg.AddRival(pirate)

	p := model.NewPackage("P", "P", model.Vec3{X: 10, Z: 5}, model.Vec3{}, "astar")
	if err := reg.Enqueue(p); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	ctx := context.Background()

	drone.Update(ctx, 1)
	pirate.RecomputeTarget()
	if pirate.Target() != p {
		t.Fatalf("pirate should target the newest delivery")
	}

	pirate.Update(ctx, 1)
	if !p.Stolen() || pirate.Thefts() != 1 {
		t.Fatalf("pirate failed to steal: stolen=%v thefts=%d", p.Stolen(), pirate.Thefts())
	}

	drone.Update(ctx, 1)
	if !drone.Available() || drone.Package() != nil {
		t.Fatalf("drone should abandon a stolen package")
	}

	want := []string{"Drone heading to: P", "Pirate stole: P"}
	got := log.notifications()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestPirateIgnoresCarriedPackage(t *testing.T) {
	reg := kb.NewRegistry()
	pirate := NewPirate(model.EntityDefinition{Name: "Pirate", Speed: 1}, reg, nil)

	p := model.NewPackage("P", "P", model.Vec3{}, model.Vec3{X: 3}, "")
	reg.RecordNewestDelivery(p)
	p.SetCanBeStolen(false)

	pirate.RecomputeTarget()
	if pirate.Target() != nil {
		t.Fatalf("pirate should not chase a carried package")
	}
}

func TestPirateTheftFailsIfPackagePickedUpFirst(t *testing.T) {
	reg := kb.NewRegistry()
	pirate := NewPirate(model.EntityDefinition{Name: "Pirate", Speed: 1}, reg, nil)

	p := model.NewPackage("P", "P", model.Vec3{X: 2}, model.Vec3{X: 3}, "")
	reg.RecordNewestDelivery(p)
	pirate.RecomputeTarget()
	p.SetCanBeStolen(false)

	ctx := context.Background()
	pirate.Update(ctx, 1)
	pirate.Update(ctx, 1)
	if p.Stolen() || pirate.Thefts() != 0 {
		t.Fatalf("carried package must not be stolen")
	}
	if pirate.Target() != nil {
		t.Fatalf("pirate should drop its target after arriving")
	}
}

func TestRobotCollectsDeliveredPackage(t *testing.T) {
	reg := kb.NewRegistry()
	log := &eventLog{}
	robot := NewRobot(model.EntityDefinition{Name: "Robot", Speed: 5, Position: model.Vec3{X: 10, Z: 10}}, reg, logging.Noop(), WithObserver(log))
	reg.SetReceivingAgent(robot)
	drone := NewDrone(model.EntityDefinition{Name: "Drone", Speed: 5}, reg, logging.Noop(), WithObserver(log))

	p := model.NewPackage("P", "P", model.Vec3{}, model.Vec3{X: 10}, "")
	if err := reg.Enqueue(p); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx := context.Background()
	for range 10 {
		drone.Update(ctx, 1)
		if drone.Available() {
			break
		}
	}
	if !p.HandedOff() || !robot.Eligible() {
		t.Fatalf("drop-off should mark the robot eligible: handedOff=%v eligible=%v", p.HandedOff(), robot.Eligible())
	}

	for range 10 {
		robot.Update(ctx, 1)
	}
	if robot.Eligible() {
		t.Fatalf("robot eligibility should be consumed")
	}
	received := robot.Received()
	if len(received) != 1 || received[0] != p {
		t.Fatalf("robot received %v, want [P]", received)
	}
	if robot.Position() != (model.Vec3{X: 10}) {
		t.Fatalf("robot position = %#v, want package position", robot.Position())
	}

	// A second eligibility flag for the same package is a no-op.
	robot.MarkEligible()
	robot.Update(ctx, 1)
	if len(robot.Received()) != 1 {
		t.Fatalf("robot collected the same package twice")
	}
	if got := log.notifications(); got[len(got)-1] != "Robot received: P" {
		t.Fatalf("last notification = %q", got[len(got)-1])
	}
}

package core

import (
	"fmt"

	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/entity"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
)

// RegistryAgent is the agent name used for registry change notifications.
const RegistryAgent = "registry"

// EventRecorder counts registry change events. The prometheus
// DeliveryCollector implements it.
type EventRecorder interface {
	RegistryEvent(event string)
}

// WatchRegistry forwards every registry event to rec and, as a
// "<event>: <package>" notification, to sink. Either may be nil. The
// returned function stops the forwarding.
func WatchRegistry(reg *kb.Registry, rec EventRecorder, sink entity.Observer) (stop func()) {
	return reg.Subscribe(func(ev kb.Event) {
		if rec != nil {
			rec.RegistryEvent(ev.Type.String())
		}
		if sink != nil && ev.Package != nil {
			sink.Notify(RegistryAgent, fmt.Sprintf("%s: %s", ev.Type, ev.Package.Name))
		}
	})
}

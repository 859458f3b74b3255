package model

// EntityKind indicates which simulation agent a definition describes.
type EntityKind int

const (
	EntityKindUnknown EntityKind = iota
	EntityKindDrone
	EntityKindPirate
	EntityKindRobot
)

func (k EntityKind) String() string {
	switch k {
	case EntityKindDrone:
		return "drone"
	case EntityKindPirate:
		return "pirate"
	case EntityKindRobot:
		return "robot"
	default:
		return "unknown"
	}
}

// EntityDefinition describes a moving agent before it is placed in the
// simulation. Construction from a definition happens in the scenario loader.
type EntityDefinition struct {
	ID   string
	Name string
	Kind EntityKind

	Position  Vec3
	Direction Vec3
	Speed     float64 // units per simulated second
}

// PackageDefinition describes a delivery to be scheduled at start-up.
type PackageDefinition struct {
	ID          string
	Name        string
	Position    Vec3
	Destination Vec3
	Strategy    string
}

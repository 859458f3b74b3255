package core

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/entity"
	"github.com/signalsfoundry/drone-delivery-sim/model"
)

// ErrInvalidScenario is wrapped by every validation failure from LoadScenario.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is the validated content of a scenario document.
type Scenario struct {
	Drones   []model.EntityDefinition
	Pirates  []model.EntityDefinition
	Robot    *model.EntityDefinition
	Packages []model.PackageDefinition
}

// Document shapes. JSON is a YAML subset, so JSON scenarios decode too.
type scenarioYAML struct {
	Drones   []entityYAML  `yaml:"drones"`
	Pirates  []entityYAML  `yaml:"pirates"`
	Robot    *entityYAML   `yaml:"robot"`
	Packages []packageYAML `yaml:"packages"`
}

type entityYAML struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Position  vecYAML  `yaml:"position"`
	Direction *vecYAML `yaml:"direction"`
	Speed     float64  `yaml:"speed"`
}

type packageYAML struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Position    vecYAML `yaml:"position"`
	Destination vecYAML `yaml:"destination"`
	Strategy    string  `yaml:"strategy"`
}

type vecYAML struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v vecYAML) vec() model.Vec3 { return model.Vec3{X: v.X, Y: v.Y, Z: v.Z} }

//go:embed scenario.schema.json
var scenarioSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func scenarioSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("scenario.schema.json", scenarioSchemaJSON)
	})
	return schema, schemaErr
}

// validateDocument checks raw against the embedded JSON schema. The YAML
// tree is round-tripped through encoding/json so the validator sees plain
// JSON values.
func validateDocument(raw []byte) error {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if tree == nil {
		return fmt.Errorf("LoadScenario: %w: empty document", ErrInvalidScenario)
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	s, err := scenarioSchema()
	if err != nil {
		return fmt.Errorf("LoadScenario: compile schema: %w", err)
	}
	if err := s.Validate(generic); err != nil {
		return fmt.Errorf("LoadScenario: %w: %v", ErrInvalidScenario, err)
	}
	return nil
}

// LoadScenario decodes and validates a scenario document. The document
// must satisfy scenario.schema.json; cross-references such as duplicate
// IDs are checked afterwards.
func LoadScenario(r io.Reader) (*Scenario, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: read: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var doc scenarioYAML
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	seen := make(map[string]string)
	claim := func(id, what string) error {
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("LoadScenario: %w: duplicate id %q (%s and %s)", ErrInvalidScenario, id, prev, what)
		}
		seen[id] = what
		return nil
	}

	sc := &Scenario{}
	for i, d := range doc.Drones {
		def, err := d.definition(model.EntityKindDrone, i)
		if err != nil {
			return nil, err
		}
		if err := claim(def.ID, "drone"); err != nil {
			return nil, err
		}
		sc.Drones = append(sc.Drones, def)
	}
	for i, p := range doc.Pirates {
		def, err := p.definition(model.EntityKindPirate, i)
		if err != nil {
			return nil, err
		}
		if err := claim(def.ID, "pirate"); err != nil {
			return nil, err
		}
		sc.Pirates = append(sc.Pirates, def)
	}
	if doc.Robot != nil {
		def, err := doc.Robot.definition(model.EntityKindRobot, 0)
		if err != nil {
			return nil, err
		}
		if err := claim(def.ID, "robot"); err != nil {
			return nil, err
		}
		sc.Robot = &def
	}

	pkgIDs := make(map[string]struct{}, len(doc.Packages))
	for i, p := range doc.Packages {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("LoadScenario: %w: package #%d has empty id", ErrInvalidScenario, i)
		}
		if _, dup := pkgIDs[id]; dup {
			return nil, fmt.Errorf("LoadScenario: %w: duplicate package id %q", ErrInvalidScenario, id)
		}
		pkgIDs[id] = struct{}{}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = id
		}
		sc.Packages = append(sc.Packages, model.PackageDefinition{
			ID:          id,
			Name:        name,
			Position:    p.Position.vec(),
			Destination: p.Destination.vec(),
			Strategy:    strings.TrimSpace(p.Strategy),
		})
	}
	if len(sc.Packages) > 0 && len(sc.Drones) == 0 {
		return nil, fmt.Errorf("LoadScenario: %w: packages scheduled but no drones defined", ErrInvalidScenario)
	}
	return sc, nil
}

func (e entityYAML) definition(kind model.EntityKind, idx int) (model.EntityDefinition, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return model.EntityDefinition{}, fmt.Errorf("LoadScenario: %w: %s #%d has empty id", ErrInvalidScenario, kind, idx)
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = id
	}
	if e.Speed <= 0 {
		return model.EntityDefinition{}, fmt.Errorf("LoadScenario: %w: %s %q speed must be positive, got %v", ErrInvalidScenario, kind, id, e.Speed)
	}
	def := model.EntityDefinition{
		ID:       id,
		Name:     name,
		Kind:     kind,
		Position: e.Position.vec(),
		Speed:    e.Speed,
	}
	if e.Direction != nil {
		def.Direction = e.Direction.vec()
	}
	return def, nil
}

// Populate constructs the scenario's agents, wires pirates and the robot
// into the engine's registry and schedules every package in document
// order. Entities are updated drones first, then pirates, then the robot.
func (s *Scenario) Populate(se *SimulationEngine, log logging.Logger, opts ...entity.Option) error {
	if se == nil {
		return fmt.Errorf("Populate: engine is nil")
	}
	if log == nil {
		log = logging.Noop()
	}
	reg := se.Registry

	for _, def := range s.Drones {
		se.AddEntity(entity.NewDrone(def, reg, log, opts...))
	}
	for _, def := range s.Pirates {
		p := entity.NewPirate(def, reg, log, opts...)
		reg.AddRival(p)
		se.AddEntity(p)
	}
	if s.Robot != nil {
		rb := entity.NewRobot(*s.Robot, reg, log, opts...)
		reg.SetReceivingAgent(rb)
		se.AddEntity(rb)
	}

	for _, def := range s.Packages {
		pkg := model.NewPackage(def.ID, def.Name, def.Position, def.Destination, def.Strategy)
		if err := reg.AddPackage(pkg); err != nil {
			return fmt.Errorf("Populate: %w", err)
		}
		if err := reg.Schedule(def.ID); err != nil {
			return fmt.Errorf("Populate: %w", err)
		}
	}
	return nil
}

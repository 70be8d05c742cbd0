package kb

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/planetary-survey/model"
	"gopkg.in/yaml.v3"
)

// Scenario is a small summary of what was loaded from YAML.
// It's mainly useful for logging from main().
type Scenario struct {
	Star   string
	Bodies []string // insertion order, star excluded
}

// internal YAML shapes – keep them unexported so we're free to evolve them.
type scenarioYAML struct {
	Star *bodyYAML `yaml:"star"`
}

type bodyYAML struct {
	Name        string     `yaml:"name"`
	Kind        string     `yaml:"kind"` // "planet" | "moon"; ignored for the star
	Temperature float64    `yaml:"temperature"`
	Pressure    float64    `yaml:"pressure"`
	Humidity    float64    `yaml:"humidity"`
	Radiation   float64    `yaml:"radiation"`
	Bodies      []bodyYAML `yaml:"bodies"`
}

// LoadScenario builds a PlanetarySystem from a YAML document describing a
// star and its nested bodies. Every body goes through the same checks as
// AddPlanet/AddSatellite, so a bad document fails with the matching sentinel.
func LoadScenario(r io.Reader, opts ...Option) (*PlanetarySystem, *Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("LoadScenario: empty document")
		}
		return nil, nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if payload.Star == nil {
		return nil, nil, fmt.Errorf("LoadScenario: star is required")
	}

	star := payload.Star
	sys, err := NewPlanetarySystem(star.Name, star.Temperature, star.Pressure, star.Humidity, star.Radiation, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadScenario: %w", err)
	}

	summary := &Scenario{Star: star.Name}
	if err := loadBodies(sys, star.Name, star.Bodies, summary); err != nil {
		return nil, nil, fmt.Errorf("LoadScenario: %w", err)
	}
	return sys, summary, nil
}

func loadBodies(sys *PlanetarySystem, parent string, bodies []bodyYAML, summary *Scenario) error {
	for _, b := range bodies {
		kind, err := parseKind(b.Kind)
		if err != nil {
			return fmt.Errorf("body %q: %w", b.Name, err)
		}

		switch kind {
		case model.KindPlanet:
			err = sys.AddPlanet(b.Name, parent, b.Temperature, b.Pressure, b.Humidity, b.Radiation)
		case model.KindMoon:
			err = sys.AddSatellite(b.Name, parent, b.Temperature, b.Pressure, b.Humidity, b.Radiation)
		}
		if err != nil {
			return err
		}
		summary.Bodies = append(summary.Bodies, b.Name)

		if err := loadBodies(sys, b.Name, b.Bodies, summary); err != nil {
			return err
		}
	}
	return nil
}

func parseKind(raw string) (model.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "planet":
		return model.KindPlanet, nil
	case "moon", "satellite":
		return model.KindMoon, nil
	default:
		return "", fmt.Errorf("unsupported kind %q (want planet or moon)", raw)
	}
}

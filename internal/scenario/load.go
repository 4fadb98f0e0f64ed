package scenario

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/smileynet/barista/internal/dispense"
	"github.com/smileynet/barista/internal/source"
)

// stepYAML is the YAML representation of a Step. Exactly one of RefillAll,
// Refill, or Prepare must be set.
type stepYAML struct {
	RefillAll *int        `yaml:"refill_all,omitempty"`
	Refill    *refillYAML `yaml:"refill,omitempty"`
	Prepare   []string    `yaml:"prepare,omitempty"`
	Expect    []string    `yaml:"expect,omitempty"` // Positional, one per prepared beverage.
}

type refillYAML struct {
	Ingredient string `yaml:"ingredient"`
	Amount     int    `yaml:"amount"`
}

// scenarioYAML is the YAML representation of a Scenario.
type scenarioYAML struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Outlets     int            `yaml:"outlets"`
	Capacity    int            `yaml:"capacity,omitempty"`
	Steps       []stepYAML     `yaml:"steps"`
	Stock       map[string]int `yaml:"stock,omitempty"`
}

// scenariosFile is the top-level YAML structure for a scenarios file.
type scenariosFile struct {
	Scenarios []scenarioYAML `yaml:"scenarios"`
}

// Load reads and parses a scenarios document.
func Load(src source.Source) ([]Scenario, error) {
	data, err := src.Read()
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes scenarios from YAML bytes.
func Parse(data []byte) ([]Scenario, error) {
	var file scenariosFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("scenario: parsing YAML: %w", err)
	}

	if len(file.Scenarios) == 0 {
		return nil, errors.New("scenario: no scenarios defined")
	}

	names := make(map[string]bool, len(file.Scenarios))
	scenarios := make([]Scenario, len(file.Scenarios))
	for i, sy := range file.Scenarios {
		s, err := convertScenarioYAML(sy)
		if err != nil {
			return nil, fmt.Errorf("scenario: scenarios[%d] %q: %w", i, sy.Name, err)
		}
		if names[s.Name] {
			return nil, fmt.Errorf("scenario: duplicate name %q", s.Name)
		}
		names[s.Name] = true
		scenarios[i] = s
	}
	return scenarios, nil
}

func convertScenarioYAML(sy scenarioYAML) (Scenario, error) {
	if sy.Name == "" {
		return Scenario{}, errors.New("name is required")
	}
	if sy.Outlets < 1 {
		return Scenario{}, fmt.Errorf("outlets must be positive, got %d", sy.Outlets)
	}
	if sy.Capacity < 0 {
		return Scenario{}, fmt.Errorf("capacity cannot be negative, got %d", sy.Capacity)
	}
	if len(sy.Steps) == 0 {
		return Scenario{}, errors.New("at least one step is required")
	}

	s := Scenario{
		Name:        sy.Name,
		Description: sy.Description,
		Outlets:     sy.Outlets,
		Capacity:    sy.Capacity,
		Stock:       sy.Stock,
		Steps:       make([]Step, len(sy.Steps)),
	}
	for i, st := range sy.Steps {
		step, err := convertStepYAML(st)
		if err != nil {
			return Scenario{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		s.Steps[i] = step
	}
	return s, nil
}

func convertStepYAML(st stepYAML) (Step, error) {
	set := 0
	if st.RefillAll != nil {
		set++
	}
	if st.Refill != nil {
		set++
	}
	if len(st.Prepare) > 0 {
		set++
	}
	if set != 1 {
		return Step{}, errors.New("exactly one of refill_all, refill, or prepare is required")
	}

	switch {
	case st.RefillAll != nil:
		if len(st.Expect) > 0 {
			return Step{}, errors.New("expect is only valid on prepare steps")
		}
		if *st.RefillAll < 0 {
			return Step{}, fmt.Errorf("refill_all amount cannot be negative, got %d", *st.RefillAll)
		}
		return Step{Kind: RefillAll, Amount: *st.RefillAll}, nil

	case st.Refill != nil:
		if len(st.Expect) > 0 {
			return Step{}, errors.New("expect is only valid on prepare steps")
		}
		if st.Refill.Ingredient == "" {
			return Step{}, errors.New("refill ingredient is required")
		}
		if st.Refill.Amount < 0 {
			return Step{}, fmt.Errorf("refill amount cannot be negative, got %d", st.Refill.Amount)
		}
		return Step{Kind: Refill, Ingredient: st.Refill.Ingredient, Amount: st.Refill.Amount}, nil
	}

	step := Step{Kind: Prepare, Beverages: st.Prepare}
	if len(st.Expect) == 0 {
		return step, nil
	}
	if len(st.Expect) != len(st.Prepare) {
		return Step{}, fmt.Errorf("expect has %d entries for %d beverages", len(st.Expect), len(st.Prepare))
	}
	step.Expect = make([]dispense.Status, len(st.Expect))
	for i, e := range st.Expect {
		status := dispense.Status(e)
		switch status {
		case dispense.StatusPrepared, dispense.StatusUnknownBeverage,
			dispense.StatusUnavailable, dispense.StatusInsufficient:
		default:
			return Step{}, fmt.Errorf("expect[%d]: invalid status %q", i, e)
		}
		step.Expect[i] = status
	}
	return step, nil
}

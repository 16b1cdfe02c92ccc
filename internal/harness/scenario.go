// Package harness runs conformance scenarios against the engine: each
// scenario records a scripted call sequence, replays it, and verifies the
// replayed outcomes are identical. Golden files pin the resulting trace
// structure.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one record/replay conformance case.
type Scenario struct {
	// Name uniquely identifies this scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Tags are stored in the trace metadata for the recorded session.
	Tags []string `yaml:"tags,omitempty"`

	// Steps is the call sequence: each step's request is issued in order,
	// and its scripted outcome is what the "network" returns during the
	// record pass.
	Steps []Step `yaml:"steps"`

	// Expect optionally pins the call identity the recorder must assign.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step is one live call and the outcome the real network would produce.
type Step struct {
	Method  string            `yaml:"method"`
	Target  string            `yaml:"target"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`

	Outcome StepOutcome `yaml:"outcome"`
}

// StepOutcome is the scripted result of a step.
type StepOutcome struct {
	// Case is "Success" or "Failure".
	Case string `yaml:"case"`

	// Success arm
	Status  int               `yaml:"status,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`

	// Failure arm
	Kind    string `yaml:"kind,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Expect pins recorder-assigned identity, index-aligned with Steps.
type Expect struct {
	CallIDs  []int64 `yaml:"call_ids,omitempty"`
	Attempts []int   `yaml:"attempts,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}

	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("no steps")
	}
	for i, step := range s.Steps {
		if step.Method == "" || step.Target == "" {
			return fmt.Errorf("step %d: method and target are required", i)
		}
		switch step.Outcome.Case {
		case "Success", "Failure":
		default:
			return fmt.Errorf("step %d: outcome case must be Success or Failure, got %q", i, step.Outcome.Case)
		}
	}
	if s.Expect != nil {
		if len(s.Expect.CallIDs) > 0 && len(s.Expect.CallIDs) != len(s.Steps) {
			return fmt.Errorf("expect.call_ids length %d != %d steps", len(s.Expect.CallIDs), len(s.Steps))
		}
		if len(s.Expect.Attempts) > 0 && len(s.Expect.Attempts) != len(s.Steps) {
			return fmt.Errorf("expect.attempts length %d != %d steps", len(s.Expect.Attempts), len(s.Steps))
		}
	}
	return nil
}

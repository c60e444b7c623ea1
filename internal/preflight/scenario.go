package preflight

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/driftline/sitefn/internal/fndef"
)

// Scenario is one authored sample: the globals a hypothetical event would
// produce, plus the expected filter outcome.
type Scenario struct {
	Name        string         `yaml:"name"`
	Event       map[string]any `yaml:"event"`
	Person      map[string]any `yaml:"person,omitempty"`
	Groups      map[string]any `yaml:"groups,omitempty"`
	ExpectMatch bool           `yaml:"expect_match"`
}

// scenarioFile is the on-disk YAML document shape.
type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads a YAML scenario file.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios: %w", err)
	}
	return ParseScenarios(data)
}

// ParseScenarios parses a YAML scenario document.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenarios: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file declares no scenarios")
	}
	for i, s := range file.Scenarios {
		if s.Name == "" {
			return nil, fmt.Errorf("scenario %d has no name", i)
		}
		if s.Event == nil {
			return nil, fmt.Errorf("scenario %q has no event", s.Name)
		}
	}
	return file.Scenarios, nil
}

// GlobalsJSON assembles the scenario's globals document in the layout the
// evaluator (and the generated program) reads.
func (s *Scenario) GlobalsJSON() ([]byte, error) {
	globals := map[string]any{"event": s.Event}
	if s.Person != nil {
		globals["person"] = s.Person
	}
	if s.Groups != nil {
		globals["groups"] = s.Groups
	}
	data, err := json.Marshal(globals)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return data, nil
}

// ScenarioResult is the outcome of running one scenario against a
// definition's filter.
type ScenarioResult struct {
	Scenario string            `json:"scenario"`
	Expected bool              `json:"expected"`
	Actual   bool              `json:"actual"`
	Trace    []ConditionResult `json:"trace,omitempty"`
}

// Pass reports whether the scenario's expectation held.
func (r ScenarioResult) Pass() bool { return r.Expected == r.Actual }

// RunScenarios evaluates a definition's top-level filter against every
// scenario. Evaluation errors abort the run: a tree the evaluator cannot
// process would also fail compilation.
func RunScenarios(def *fndef.FunctionDefinition, testAccounts []fndef.Condition, scenarios []Scenario) ([]ScenarioResult, error) {
	results := make([]ScenarioResult, 0, len(scenarios))
	for i := range scenarios {
		s := &scenarios[i]
		globals, err := s.GlobalsJSON()
		if err != nil {
			return nil, err
		}
		res, err := Evaluate(def.Filters, testAccounts, globals)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		results = append(results, ScenarioResult{
			Scenario: s.Name,
			Expected: s.ExpectMatch,
			Actual:   res.Matched,
			Trace:    res.Trace,
		})
	}
	return results, nil
}

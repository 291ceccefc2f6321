// Package automation runs scripted batches of simulations: scenarios read
// from YAML and one-parameter sweeps such as an equation-of-state scan.
package automation

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/experiment"
	"github.com/san-kum/mdcore/internal/sim"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run: a preset (or the defaults) with overrides.
type ScenarioStep struct {
	Preset    string             `yaml:"preset"`
	Mode      string             `yaml:"mode"`
	Evaluator string             `yaml:"evaluator"`
	Params    map[string]float64 `yaml:"params"`
	SaveAs    string             `yaml:"save_as"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}

	return &scenario, nil
}

// Config resolves the step into a full configuration.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		if cfg = config.GetPreset(s.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", s.Preset)
		}
	}
	if s.Mode != "" {
		cfg.Mode = s.Mode
	}
	if s.Evaluator != "" {
		cfg.Evaluator = s.Evaluator
	}
	for k, v := range s.Params {
		if err := cfg.SetParam(k, v); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// StepResult pairs a finished step with its configuration.
type StepResult struct {
	Config   *config.Config
	Result   *sim.Result
	Pressure float64
}

// RunScenario executes all steps in a scenario
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		logrus.Infof("running step %d/%d: %s %s with %d atoms", i+1, len(scenario.Steps), cfg.Mode, cfg.Evaluator, cfg.Atoms)

		exp, err := experiment.Build(cfg, registry, nil)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		results = append(results, StepResult{Config: cfg, Result: result, Pressure: exp.Pressure()})
	}

	return results, nil
}

// ParameterSweep runs simulations across a range of parameter values
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepResult holds results from a parameter sweep
type SweepResult struct {
	ParamValue       float64 `json:"value"`
	PotentialPerAtom float64 `json:"potential_per_atom"`
	Pressure         float64 `json:"pressure"`
	Acceptance       float64 `json:"acceptance,omitempty"`
	Errors           int     `json:"errors"`
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		cfg := sweep.Base.Clone()
		if err := cfg.SetParam(sweep.ParamName, paramVal); err != nil {
			return nil, err
		}

		exp, err := experiment.Build(cfg, registry, nil)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		results = append(results, SweepResult{
			ParamValue:       paramVal,
			PotentialPerAtom: result.Metrics["potential_per_atom"],
			Pressure:         result.Metrics["pressure"],
			Acceptance:       result.Metrics["acceptance"],
			Errors:           len(result.Errors),
		})

		logrus.Infof("sweep %d/%d: %s=%.4f", i+1, sweep.NumSteps, sweep.ParamName, paramVal)
	}

	return results, nil
}

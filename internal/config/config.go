package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAtoms       = 256
	DefaultDensity     = 0.8
	DefaultTemperature = 1.0
	DefaultSteps       = 1000
	DefaultDt          = 0.002
	DefaultStepSize    = 0.1
	DefaultCutoff      = 2.5
	DefaultNbrRange    = 2.8
	DefaultSampleEvery = 10
)

var (
	ErrInvalidMode      = errors.New("config: mode must be md or mc")
	ErrInvalidEvaluator = errors.New("config: evaluator must be brute, cell or list")
	ErrInvalidSystem    = errors.New("config: atoms, density and temperature must be positive")
	ErrInvalidRun       = errors.New("config: steps, dt and step size must be positive")
	ErrInvalidPotential = errors.New("config: invalid potential")
	ErrInvalidRange     = errors.New("config: invalid cell or neighbor range")
)

type Config struct {
	Mode        string          `yaml:"mode"`
	Evaluator   string          `yaml:"evaluator"`
	Atoms       int             `yaml:"atoms"`
	Density     float64         `yaml:"density"`
	Temperature float64         `yaml:"temperature"`
	Steps       int             `yaml:"steps"`
	SampleEvery int             `yaml:"sample_every"`
	Seed        int64           `yaml:"seed"`
	Dt          float64         `yaml:"dt"`
	StepSize    float64         `yaml:"step_size"`
	Jitter      float64         `yaml:"jitter"`
	Potential   PotentialConfig `yaml:"potential"`
	CellRange   int             `yaml:"cell_range"`
	NbrRange    float64         `yaml:"nbr_range"`
	DoDownNbrs  bool            `yaml:"do_down_nbrs"`
	CheckEvery  int             `yaml:"check_every"`
}

type PotentialConfig struct {
	Type       string  `yaml:"type"`
	Epsilon    float64 `yaml:"epsilon"`
	Sigma      float64 `yaml:"sigma"`
	Cutoff     float64 `yaml:"cutoff"`
	Truncation string  `yaml:"truncation"`
	Exponent   int     `yaml:"exponent"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode:        "md",
		Evaluator:   "list",
		Atoms:       DefaultAtoms,
		Density:     DefaultDensity,
		Temperature: DefaultTemperature,
		Steps:       DefaultSteps,
		SampleEvery: DefaultSampleEvery,
		Seed:        1,
		Dt:          DefaultDt,
		StepSize:    DefaultStepSize,
		Potential: PotentialConfig{
			Type:       "lj",
			Epsilon:    1,
			Sigma:      1,
			Cutoff:     DefaultCutoff,
			Truncation: "force-shift",
			Exponent:   12,
		},
		CellRange: 2,
		NbrRange:  DefaultNbrRange,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// BoxEdge returns the cubic box edge for the configured atoms and density.
func (c *Config) BoxEdge() float64 {
	return math.Cbrt(float64(c.Atoms) / c.Density)
}

// Validate checks the config for values no component can run with. The
// box-size precondition is left to the engine, which knows the range.
func (c *Config) Validate() error {
	switch c.Mode {
	case "md", "mc":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	switch c.Evaluator {
	case "brute", "cell", "list":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEvaluator, c.Evaluator)
	}
	if c.Atoms <= 0 || c.Density <= 0 || c.Temperature <= 0 {
		return ErrInvalidSystem
	}
	if c.Steps <= 0 || c.SampleEvery < 0 {
		return ErrInvalidRun
	}
	if c.Mode == "md" && c.Dt <= 0 {
		return ErrInvalidRun
	}
	if c.Mode == "mc" && c.StepSize <= 0 {
		return ErrInvalidRun
	}

	p := c.Potential
	switch p.Type {
	case "lj", "soft-sphere", "hard-sphere":
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPotential, p.Type)
	}
	if p.Sigma <= 0 || (p.Type != "hard-sphere" && p.Epsilon <= 0) {
		return fmt.Errorf("%w: epsilon and sigma must be positive", ErrInvalidPotential)
	}
	if p.Type != "hard-sphere" && p.Cutoff <= 0 {
		return fmt.Errorf("%w: cutoff must be positive", ErrInvalidPotential)
	}
	if p.Type == "soft-sphere" && p.Exponent <= 0 {
		return fmt.Errorf("%w: exponent must be positive", ErrInvalidPotential)
	}
	if p.Type == "hard-sphere" && c.Mode == "md" {
		return fmt.Errorf("%w: hard spheres need mc", ErrInvalidPotential)
	}

	if c.Evaluator != "brute" && c.CellRange < 1 {
		return fmt.Errorf("%w: cell range %d", ErrInvalidRange, c.CellRange)
	}
	if c.Evaluator == "list" && c.NbrRange <= c.InteractionRange() {
		return fmt.Errorf("%w: neighbor range %g must exceed %g", ErrInvalidRange, c.NbrRange, c.InteractionRange())
	}
	return nil
}

// InteractionRange returns the pair cutoff the potential block implies.
func (c *Config) InteractionRange() float64 {
	if c.Potential.Type == "hard-sphere" {
		return c.Potential.Sigma
	}
	return c.Potential.Cutoff
}

// SetParam sets a numeric field by its yaml name, for sweeps and searches.
func (c *Config) SetParam(name string, v float64) error {
	switch name {
	case "atoms":
		c.Atoms = int(v)
	case "density":
		c.Density = v
	case "temperature":
		c.Temperature = v
	case "steps":
		c.Steps = int(v)
	case "dt":
		c.Dt = v
	case "step_size":
		c.StepSize = v
	case "jitter":
		c.Jitter = v
	case "cutoff":
		c.Potential.Cutoff = v
	case "nbr_range":
		c.NbrRange = v
	default:
		return fmt.Errorf("config: unknown parameter %q", name)
	}
	return nil
}

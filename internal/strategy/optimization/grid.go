package optimization

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"riskBacktester/internal/domain"
)

// Grid is a parameter sweep: a base parameter set plus the ranges to vary.
type Grid struct {
	Base   domain.StrategyParameters `yaml:"base" json:"base"`
	Ranges []ParameterRange          `yaml:"ranges" json:"ranges"`
}

// DefaultGrid sweeps the classic 4x4x4x4x4 grid around base.
func DefaultGrid(base domain.StrategyParameters) Grid {
	return Grid{
		Base: base,
		Ranges: []ParameterRange{
			{Name: ParamMaxRiskPerTrade, Values: []float64{0.005, 0.01, 0.015, 0.02}},
			{Name: ParamStopLossPct, Values: []float64{0.01, 0.02, 0.03, 0.04}},
			{Name: ParamTakeProfitPct, Values: []float64{0.02, 0.03, 0.04, 0.05}},
			{Name: ParamTrailingStopPct, Values: []float64{0.005, 0.01, 0.015, 0.02}},
			{Name: ParamEntryThresholdPct, Values: []float64{0.003, 0.005, 0.007, 0.01}},
		},
	}
}

// LoadGrid loads a sweep definition from a YAML or JSON file.
func LoadGrid(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grid file: %w", err)
	}

	grid := &Grid{Base: domain.DefaultStrategyParameters()}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, grid); err != nil {
		if jsonErr := json.Unmarshal(data, grid); jsonErr != nil {
			return nil, fmt.Errorf("parse grid (tried YAML and JSON): %w", err)
		}
	}

	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	return grid, nil
}

// Validate checks that every range names a known parameter and expands to values.
func (g Grid) Validate() error {
	seen := make(map[string]bool)
	for _, r := range g.Ranges {
		if !knownParameter(r.Name) {
			return fmt.Errorf("unknown parameter %q", r.Name)
		}
		if seen[r.Name] {
			return fmt.Errorf("parameter %q listed twice", r.Name)
		}
		seen[r.Name] = true
		if _, err := r.Expand(); err != nil {
			return err
		}
	}
	return nil
}

// Combinations returns the cartesian product of the ranges, first range varying slowest.
func (g Grid) Combinations() ([]map[string]float64, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	expanded := make([][]float64, len(g.Ranges))
	for i, r := range g.Ranges {
		values, err := r.Expand()
		if err != nil {
			return nil, err
		}
		expanded[i] = values
	}

	var combinations []map[string]float64
	current := make(map[string]float64, len(g.Ranges))

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(g.Ranges) {
			combination := make(map[string]float64, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}
		for _, v := range expanded[paramIndex] {
			current[g.Ranges[paramIndex].Name] = v
			generate(paramIndex + 1)
		}
	}
	generate(0)
	return combinations, nil
}

// Apply overlays the given values on the base parameters.
func (g Grid) Apply(values map[string]float64) (domain.StrategyParameters, error) {
	p := g.Base
	for name, v := range values {
		switch name {
		case ParamMaxRiskPerTrade:
			p.MaxRiskPerTrade = v
		case ParamStopLossPct:
			p.StopLossPct = v
		case ParamTakeProfitPct:
			p.TakeProfitPct = v
		case ParamTrailingStopPct:
			p.TrailingStopPct = v
		case ParamEntryThresholdPct:
			p.EntryThresholdPct = v
		default:
			return p, fmt.Errorf("unknown parameter %q", name)
		}
	}
	return p, nil
}

func knownParameter(name string) bool {
	switch name {
	case ParamMaxRiskPerTrade, ParamStopLossPct, ParamTakeProfitPct, ParamTrailingStopPct, ParamEntryThresholdPct:
		return true
	}
	return false
}

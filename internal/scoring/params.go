package scoring

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Band maps a minimum score onto a grade label
type Band struct {
	Min   float64 `yaml:"min"`
	Label string  `yaml:"label"`
}

// Params controls the distance weighting and grade bands
type Params struct {
	MaxScore   float64 `yaml:"max_score"`
	Tolerance  float64 `yaml:"tolerance"`
	WeightY    float64 `yaml:"weight_y"`
	WeightX    float64 `yaml:"weight_x"`
	CentreBand float64 `yaml:"centre_band"`
	Bands      []Band  `yaml:"bands"`
}

// DefaultParams returns the stock 0-5 scale
func DefaultParams() Params {
	return Params{
		MaxScore:   5,
		Tolerance:  0.5,
		WeightY:    1.0,
		WeightX:    0.25,
		CentreBand: 0.05,
		Bands: []Band{
			{Min: 4.75, Label: "Perfect G"},
			{Min: 4.0, Label: "Great split"},
			{Min: 3.0, Label: "Solid effort"},
			{Min: 1.5, Label: "Close"},
			{Min: 0, Label: "Missed the G"},
		},
	}
}

// LoadParams reads overrides from a YAML file on top of the defaults.
// Fields missing from the file keep their default value.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read scoring config: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Params{}, fmt.Errorf("parse scoring config: %w", err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params.normalized(), nil
}

// Validate rejects parameters that would make the scale meaningless
func (p Params) Validate() error {
	if p.MaxScore <= 0 {
		return fmt.Errorf("max_score must be > 0 (got %g)", p.MaxScore)
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be > 0 (got %g)", p.Tolerance)
	}
	if p.WeightY < 0 || p.WeightX < 0 || p.WeightY+p.WeightX == 0 {
		return fmt.Errorf("weights must be non-negative and not both zero")
	}
	if p.CentreBand < 0 {
		return fmt.Errorf("centre_band must be >= 0 (got %g)", p.CentreBand)
	}
	if len(p.Bands) == 0 {
		return fmt.Errorf("at least one grade band is required")
	}
	for _, b := range p.Bands {
		if b.Label == "" {
			return fmt.Errorf("grade band at %g has no label", b.Min)
		}
	}
	return nil
}

// normalized sorts bands from the highest minimum down
func (p Params) normalized() Params {
	bands := make([]Band, len(p.Bands))
	copy(bands, p.Bands)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].Min > bands[j].Min })
	p.Bands = bands
	return p
}

func (p Params) grade(score float64) string {
	for _, b := range p.Bands {
		if score >= b.Min {
			return b.Label
		}
	}
	// below every band
	return p.Bands[len(p.Bands)-1].Label
}

// Package scoring turns the vision model's boxes into a split grade.
//
// The ideal pour leaves the boundary between the black body and the white
// head exactly on the crossbar of the G printed on the glass, which sits at
// the vertical centre of the logo's bounding box. The score falls off
// linearly with the weighted, logo-normalised distance from that line.
package scoring

import (
	"errors"
	"math"

	"split-the-g/pkg/models"
)

const (
	ClassLogo  = "G"
	ClassSplit = "split"
	ClassGlass = "glass"
)

// Verdicts describe which side of the crossbar the split landed on
const (
	VerdictCentred = "centred"
	VerdictHigh    = "high"
	VerdictLow     = "low"
)

var (
	ErrNoLogo  = errors.New("no G logo found on the glass")
	ErrNoSplit = errors.New("no split line found on the glass")
)

// Result is the outcome of scoring one photo
type Result struct {
	Score   float64 `json:"score"`
	Grade   string  `json:"grade"`
	Verdict string  `json:"verdict"`
	OffsetY float64 `json:"offset_y"`
	OffsetX float64 `json:"offset_x"`
	// Distance is the weighted distance before it is mapped onto the scale
	Distance float64 `json:"distance"`
}

type Scorer struct {
	params Params
}

func NewScorer(params Params) (*Scorer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{params: params.normalized()}, nil
}

// Params returns the effective parameters
func (s *Scorer) Params() Params {
	return s.params
}

// Score grades a set of predictions
func (s *Scorer) Score(preds []models.Prediction) (Result, error) {
	logo, ok := Best(preds, ClassLogo)
	if !ok || logo.Width <= 0 || logo.Height <= 0 {
		return Result{}, ErrNoLogo
	}
	split, ok := Best(preds, ClassSplit)
	if !ok {
		return Result{}, ErrNoSplit
	}

	dy := (split.Y - logo.Y) / logo.Height
	dx := (split.X - logo.X) / logo.Width
	d := math.Hypot(s.params.WeightY*dy, s.params.WeightX*dx)

	closeness := 1 - d/s.params.Tolerance
	closeness = math.Max(0, math.Min(1, closeness))
	score := round2(s.params.MaxScore * closeness)

	return Result{
		Score:    score,
		Grade:    s.params.grade(score),
		Verdict:  s.verdict(dy),
		OffsetY:  round4(dy),
		OffsetX:  round4(dx),
		Distance: round4(d),
	}, nil
}

func (s *Scorer) verdict(dy float64) string {
	switch {
	case math.Abs(dy) <= s.params.CentreBand:
		return VerdictCentred
	case dy < 0:
		// image y grows downwards: a split above the crossbar
		return VerdictHigh
	default:
		return VerdictLow
	}
}

// Best returns the highest-confidence prediction of a class
func Best(preds []models.Prediction, class string) (models.Prediction, bool) {
	var (
		out   models.Prediction
		found bool
	)
	for _, p := range preds {
		if p.Class != class {
			continue
		}
		if !found || p.Confidence > out.Confidence {
			out = p
			found = true
		}
	}
	return out, found
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"split-the-g/pkg/models"
)

func logo(conf float64) models.Prediction {
	return models.Prediction{X: 100, Y: 200, Width: 80, Height: 100, Confidence: conf, Class: ClassLogo}
}

func splitAt(x, y float64) models.Prediction {
	return models.Prediction{X: x, Y: y, Width: 90, Height: 6, Confidence: 0.8, Class: ClassSplit}
}

func newDefaultScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultParams())
	require.NoError(t, err)
	return s
}

func TestScore_Table(t *testing.T) {
	scorer := newDefaultScorer(t)

	tests := []struct {
		name    string
		split   models.Prediction
		score   float64
		grade   string
		verdict string
	}{
		{"dead centre", splitAt(100, 200), 5, "Perfect G", VerdictCentred},
		{"slightly low", splitAt(100, 210), 4, "Great split", VerdictLow},
		{"off to the side", splitAt(140, 200), 3.75, "Solid effort", VerdictCentred},
		{"quarter low", splitAt(100, 225), 2.5, "Close", VerdictLow},
		{"too high", splitAt(100, 170), 2, "Close", VerdictHigh},
		{"below the logo", splitAt(100, 260), 0, "Missed the G", VerdictLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := scorer.Score([]models.Prediction{logo(0.9), tt.split})
			require.NoError(t, err)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
			assert.Equal(t, tt.grade, res.Grade)
			assert.Equal(t, tt.verdict, res.Verdict)
		})
	}
}

func TestScore_UsesMostConfidentBoxes(t *testing.T) {
	scorer := newDefaultScorer(t)

	weakLogo := models.Prediction{X: 500, Y: 500, Width: 80, Height: 100, Confidence: 0.3, Class: ClassLogo}
	weakSplit := models.Prediction{X: 100, Y: 290, Confidence: 0.2, Class: ClassSplit}

	res, err := scorer.Score([]models.Prediction{weakLogo, weakSplit, logo(0.95), splitAt(100, 200)})
	require.NoError(t, err)
	assert.InDelta(t, 5, res.Score, 1e-9)
}

func TestScore_MissingClasses(t *testing.T) {
	scorer := newDefaultScorer(t)

	_, err := scorer.Score([]models.Prediction{splitAt(100, 200)})
	assert.ErrorIs(t, err, ErrNoLogo)

	_, err = scorer.Score([]models.Prediction{logo(0.9)})
	assert.ErrorIs(t, err, ErrNoSplit)

	flat := logo(0.9)
	flat.Height = 0
	_, err = scorer.Score([]models.Prediction{flat, splitAt(100, 200)})
	assert.ErrorIs(t, err, ErrNoLogo)

	_, err = scorer.Score(nil)
	assert.ErrorIs(t, err, ErrNoLogo)
}

func TestScore_StaysInRange(t *testing.T) {
	scorer := newDefaultScorer(t)

	for y := -400.0; y <= 800; y += 13 {
		for x := -200.0; x <= 400; x += 37 {
			res, err := scorer.Score([]models.Prediction{logo(0.9), splitAt(x, y)})
			require.NoError(t, err)
			if res.Score < 0 || res.Score > 5 {
				t.Fatalf("score %f out of range at (%f, %f)", res.Score, x, y)
			}
		}
	}
}

func TestLoadParams_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	yamlDoc := `
max_score: 10
tolerance: 0.25
bands:
  - {min: 0, label: "Try again"}
  - {min: 9, label: "Flawless"}
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	params, err := LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, 10.0, params.MaxScore)
	assert.Equal(t, 1.0, params.WeightY, "unset fields keep defaults")
	assert.Equal(t, "Flawless", params.Bands[0].Label, "bands are sorted high to low")

	scorer, err := NewScorer(params)
	require.NoError(t, err)
	res, err := scorer.Score([]models.Prediction{logo(0.9), splitAt(100, 200)})
	require.NoError(t, err)
	assert.InDelta(t, 10, res.Score, 1e-9)
	assert.Equal(t, "Flawless", res.Grade)
}

func TestLoadParams_Errors(t *testing.T) {
	_, err := LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tolerance: -1\n"), 0o644))
	_, err = LoadParams(path)
	assert.Error(t, err)

	params, err := LoadParams("")
	require.NoError(t, err)
	assert.Equal(t, DefaultParams().MaxScore, params.MaxScore)
}

func TestNewScorer_RejectsEmptyBands(t *testing.T) {
	params := DefaultParams()
	params.Bands = nil
	_, err := NewScorer(params)
	assert.Error(t, err)
}

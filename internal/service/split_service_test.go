package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"split-the-g/internal/detection"
	apperrors "split-the-g/internal/errors"
	"split-the-g/internal/inference"
	"split-the-g/internal/observer"
	"split-the-g/internal/precheck"
	"split-the-g/internal/repository"
	"split-the-g/internal/scoring"
	"split-the-g/pkg/models"
)

type passPreparer struct{ err error }

func (p passPreparer) Prepare(data []byte) (*precheck.Prepared, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &precheck.Prepared{JPEG: data, Width: 640, Height: 960, Format: "jpeg"}, nil
}

type fakeInference struct {
	splitY    float64
	noLogo    bool
	noImages  bool
	detectHit bool
	err       error
}

func (f *fakeInference) Analyze(_ context.Context, _ []byte) (*inference.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	preds := []models.Prediction{
		{Class: "glass", X: 100, Y: 150, Width: 120, Height: 300, Confidence: 0.95},
		{Class: "split", X: 100, Y: f.splitY, Width: 110, Height: 4, Confidence: 0.9},
	}
	if !f.noLogo {
		preds = append(preds, models.Prediction{Class: "G", X: 100, Y: 100, Width: 50, Height: 100, Confidence: 0.9})
	}
	a := &inference.Analysis{Predictions: preds}
	if !f.noImages {
		a.SplitImage = []byte("split-jpeg")
		a.LogoImage = []byte("logo-jpeg")
	}
	return a, nil
}

func (f *fakeInference) Detect(_ context.Context, _ []byte) (*inference.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.detectHit {
		return &inference.Detection{}, nil
	}
	return &inference.Detection{Predictions: []models.Prediction{
		{Class: "G", Confidence: 0.9, Width: 10, Height: 10},
		{Class: "glass", Confidence: 0.9, Width: 10, Height: 10},
	}}, nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memoryStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[name] = data
	return "https://cdn.example.com/" + name, nil
}

type recorder struct {
	mu    sync.Mutex
	types []observer.EventType
}

func (r *recorder) OnEvent(_ context.Context, e observer.SplitEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.EventType)
}

func (r *recorder) GetObserverName() string { return "recorder" }

type fixture struct {
	svc       *splitService
	inference *fakeInference
	store     *memoryStore
	repo      *repository.SQLiteRepository
	events    *observer.EventPublisher
	recorder  *recorder
	sessions  *detection.Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "splits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	scorer, err := scoring.NewScorer(scoring.DefaultParams())
	require.NoError(t, err)

	f := &fixture{
		inference: &fakeInference{splitY: 100},
		store:     &memoryStore{},
		repo:      repo,
		events:    observer.NewEventPublisher(),
		recorder:  &recorder{},
		sessions:  detection.NewSessions(3, 2, time.Minute),
	}
	f.events.Subscribe(f.recorder)

	svc := NewSplitService(passPreparer{}, f.inference, scorer, f.store, repo, f.sessions, f.events,
		Options{PublicBaseURL: "https://splitg.example.com/", MinConfidence: 0.5})
	f.svc = svc.(*splitService)

	ids := 0
	f.svc.newID = func() string {
		ids++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", ids)
	}
	return f
}

func (f *fixture) eventTypes() []observer.EventType {
	f.events.Wait()
	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	return append([]observer.EventType(nil), f.recorder.types...)
}

func TestSubmit_PerfectSplit(t *testing.T) {
	f := newFixture(t)

	split, err := f.svc.Submit(context.Background(), SubmitRequest{
		Image:    []byte("photo"),
		Username: "  Niamh  ",
		PubName:  "The Long Hall",
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, split.Score)
	assert.Equal(t, "Perfect G", split.Grade)
	assert.Equal(t, scoring.VerdictCentred, split.Verdict)
	assert.Equal(t, "Niamh", split.Username)
	assert.Equal(t, "https://cdn.example.com/splits/"+split.ID+"/split.jpg", split.SplitImageURL)
	assert.Equal(t, "https://cdn.example.com/splits/"+split.ID+"/logo.jpg", split.LogoImageURL)
	assert.Equal(t, []byte("split-jpeg"), f.store.objects["splits/"+split.ID+"/split.jpg"])
	assert.Equal(t, []byte("logo-jpeg"), f.store.objects["splits/"+split.ID+"/logo.jpg"])

	stored, err := f.repo.Get(context.Background(), split.ID)
	require.NoError(t, err)
	assert.Equal(t, split.Score, stored.Score)

	assert.ElementsMatch(t, []observer.EventType{observer.SplitSubmitted, observer.SplitScored}, f.eventTypes())
}

func TestSubmit_DefaultsAndTruncation(t *testing.T) {
	f := newFixture(t)

	split, err := f.svc.Submit(context.Background(), SubmitRequest{
		Image:   []byte("photo"),
		PubName: strings.Repeat("ü", 80),
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultUsername, split.Username)
	assert.Equal(t, MaxPubNameLength, len([]rune(split.PubName)))
}

func TestSubmit_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		errorType apperrors.ErrorType
	}{
		{
			name:      "no logo",
			setup:     func(f *fixture) { f.inference.noLogo = true },
			errorType: apperrors.ErrorTypeUnprocessable,
		},
		{
			name:      "upstream down",
			setup:     func(f *fixture) { f.inference.err = apperrors.NewNetworkError("inference API unavailable", nil) },
			errorType: apperrors.ErrorTypeNetwork,
		},
		{
			name:      "missing derived images",
			setup:     func(f *fixture) { f.inference.noImages = true },
			errorType: apperrors.ErrorTypeNetwork,
		},
		{
			name:      "upload fails",
			setup:     func(f *fixture) { f.store.err = errors.New("container gone") },
			errorType: apperrors.ErrorTypeNetwork,
		},
		{
			name: "precheck rejects",
			setup: func(f *fixture) {
				f.svc.checker = passPreparer{err: apperrors.NewValidationError("photo is too blurry", nil)}
			},
			errorType: apperrors.ErrorTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.svc.Submit(context.Background(), SubmitRequest{Image: []byte("photo")})
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errorType), "got %v", err)

			top, err := f.repo.Top(context.Background(), repository.PeriodAll, 10)
			require.NoError(t, err)
			assert.Empty(t, top, "failed submissions are not stored")

			assert.ElementsMatch(t, []observer.EventType{observer.SplitSubmitted, observer.SplitFailed}, f.eventTypes())
		})
	}
}

func TestResult_RankAndShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{Image: []byte("a"), Username: "ace"})
	require.NoError(t, err)

	f.inference.splitY = 120
	second, err := f.svc.Submit(ctx, SubmitRequest{Image: []byte("b"), Username: "bo", PubName: "Kehoe's"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, second.Score)
	assert.Equal(t, scoring.VerdictLow, second.Verdict)

	card, err := f.svc.Result(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, card.Rank)
	assert.Equal(t, 2, card.Total)
	assert.Equal(t, "https://splitg.example.com/api/splits/"+second.ID, card.ShareURL)
	assert.Equal(t, "bo scored 3.00/5 splitting the G (Solid effort) at Kehoe's. Can you beat it?", card.ShareText)
}

func TestResult_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Result(context.Background(), "00000000-0000-4000-8000-999999999999")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = f.svc.Result(context.Background(), "../../etc/passwd")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, y := range []float64{120, 100, 110} {
		f.inference.splitY = y
		_, err := f.svc.Submit(ctx, SubmitRequest{Image: []byte("x")})
		require.NoError(t, err)
	}

	board, err := f.svc.Leaderboard(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "all", board.Period)
	require.Len(t, board.Entries, 3)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 5.0, board.Entries[0].Split.Score)
	assert.Equal(t, 3.0, board.Entries[2].Split.Score)

	board, err = f.svc.Leaderboard(ctx, "week", 2)
	require.NoError(t, err)
	assert.Len(t, board.Entries, 2)

	_, err = f.svc.Leaderboard(ctx, "century", 10)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestDetect_MajorityVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	frame := pngFrame(t)

	_, err := f.svc.Detect(ctx, "", frame)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.svc.Detect(ctx, "s1", []byte("garbage"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	f.inference.detectHit = true
	d, err := f.svc.Detect(ctx, "s1", frame)
	require.NoError(t, err)
	assert.False(t, d.Capture)

	f.inference.detectHit = false
	f.inference.err = errors.New("timeout")
	d, err = f.svc.Detect(ctx, "s1", frame)
	require.NoError(t, err, "detect failures count as misses")
	assert.Equal(t, 1, d.Hits)

	f.inference.err = nil
	f.inference.detectHit = true
	d, err = f.svc.Detect(ctx, "s1", frame)
	require.NoError(t, err)
	assert.True(t, d.Capture)

	assert.Contains(t, f.eventTypes(), observer.FrameCaptured)

	f.svc.Forget("s1")
	assert.Equal(t, 0, f.sessions.Len())
}

func TestDetect_SessionIDLength(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	frame := pngFrame(t)

	_, err := f.svc.Detect(ctx, strings.Repeat("s", MaxSessionIDLength+1), frame)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, f.sessions.Len())

	_, err = f.svc.Detect(ctx, strings.Repeat("s", MaxSessionIDLength), frame)
	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "abc", cleanText("  abc ", 5))
	assert.Equal(t, "abcde", cleanText("abcdefgh", 5))
	assert.Equal(t, "ab", cleanText("ab   cd", 4))
	assert.Equal(t, "", cleanText("   ", 5))
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32))))
	return buf.Bytes()
}

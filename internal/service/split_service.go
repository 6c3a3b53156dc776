package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"split-the-g/internal/detection"
	apperrors "split-the-g/internal/errors"
	"split-the-g/internal/inference"
	"split-the-g/internal/logger"
	"split-the-g/internal/observer"
	"split-the-g/internal/precheck"
	"split-the-g/internal/repository"
	"split-the-g/internal/scoring"
	"split-the-g/internal/storage"
	"split-the-g/pkg/models"
)

const (
	DefaultUsername      = "Anonymous"
	MaxUsernameLength    = 32
	MaxPubNameLength     = 64
	MaxSessionIDLength   = 64
	DefaultLeaderboardN  = 10
	MaxLeaderboardN      = 100
	splitImageName       = "split.jpg"
	logoImageName        = "logo.jpg"
	imageContentTypeJPEG = "image/jpeg"
)

// SubmitRequest is one photographed pour
type SubmitRequest struct {
	Image    []byte
	Username string
	PubName  string
}

// SplitService is the application layer behind the HTTP handlers and the CLI
type SplitService interface {
	// Submit scores a photo, stores its derived images and records the result
	Submit(ctx context.Context, req SubmitRequest) (*models.Split, error)
	// Score runs precheck, inference and scoring without storing anything
	Score(ctx context.Context, image []byte) (*scoring.Result, error)
	Result(ctx context.Context, id string) (*models.ResultCard, error)
	Leaderboard(ctx context.Context, period string, limit int) (*models.Leaderboard, error)
	// Detect feeds one live camera frame into the session's vote
	Detect(ctx context.Context, session string, frame []byte) (*detection.Decision, error)
	// Forget drops a detection session
	Forget(session string)
}

// Preparer validates and normalises an uploaded photo
type Preparer interface {
	Prepare(data []byte) (*precheck.Prepared, error)
}

// Options holds the service settings that do not come with a dependency
type Options struct {
	PublicBaseURL string
	MinConfidence float64
}

type splitService struct {
	checker   Preparer
	inference inference.Client
	scorer    *scoring.Scorer
	store     storage.ImageStore
	repo      repository.SplitRepository
	sessions  *detection.Sessions
	events    observer.Subject
	opts      Options
	now       func() time.Time
	newID     func() string
}

// NewSplitService creates a new split service
func NewSplitService(
	checker Preparer,
	client inference.Client,
	scorer *scoring.Scorer,
	store storage.ImageStore,
	repo repository.SplitRepository,
	sessions *detection.Sessions,
	events observer.Subject,
	opts Options,
) SplitService {
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &splitService{
		checker:   checker,
		inference: client,
		scorer:    scorer,
		store:     store,
		repo:      repo,
		sessions:  sessions,
		events:    events,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *splitService) Submit(ctx context.Context, req SubmitRequest) (*models.Split, error) {
	start := s.now()
	id := s.newID()
	username := cleanText(req.Username, MaxUsernameLength)
	if username == "" {
		username = DefaultUsername
	}
	pubName := cleanText(req.PubName, MaxPubNameLength)

	s.publish(ctx, observer.SplitEvent{
		EventType: observer.SplitSubmitted,
		SplitID:   id,
		Username:  username,
		Metadata:  map[string]interface{}{"bytes": len(req.Image)},
	})

	split, err := s.submit(ctx, id, username, pubName, req.Image)
	if err != nil {
		s.publish(ctx, observer.SplitEvent{
			EventType:      observer.SplitFailed,
			SplitID:        id,
			Username:       username,
			ProcessingTime: s.now().Sub(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	s.publish(ctx, observer.SplitEvent{
		EventType:      observer.SplitScored,
		SplitID:        id,
		Username:       username,
		Score:          split.Score,
		ProcessingTime: s.now().Sub(start),
		Success:        true,
		Metadata:       map[string]interface{}{"grade": split.Grade, "verdict": split.Verdict},
	})
	return split, nil
}

func (s *splitService) submit(ctx context.Context, id, username, pubName string, image []byte) (*models.Split, error) {
	analysis, result, err := s.analyze(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(analysis.SplitImage) == 0 || len(analysis.LogoImage) == 0 {
		return nil, apperrors.NewNetworkError("inference API returned no derived images", nil)
	}

	split := &models.Split{
		ID:        id,
		CreatedAt: s.now().UTC(),
		Username:  username,
		PubName:   pubName,
		Score:     result.Score,
		Grade:     result.Grade,
		Verdict:   result.Verdict,
		OffsetY:   result.OffsetY,
		OffsetX:   result.OffsetX,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := s.store.Put(gctx, objectName(id, splitImageName), imageContentTypeJPEG, analysis.SplitImage)
		if err != nil {
			return err
		}
		split.SplitImageURL = url
		return nil
	})
	g.Go(func() error {
		url, err := s.store.Put(gctx, objectName(id, logoImageName), imageContentTypeJPEG, analysis.LogoImage)
		if err != nil {
			return err
		}
		split.LogoImageURL = url
		return nil
	})
	if err := g.Wait(); err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewNetworkError("failed to upload split images", err)
	}

	if err := s.repo.Save(ctx, split); err != nil {
		return nil, apperrors.NewInternalError("failed to save split", err)
	}

	logger.WithFields(map[string]interface{}{
		"split_id": split.ID,
		"score":    split.Score,
		"grade":    split.Grade,
	}).Info("Split stored")
	return split, nil
}

func (s *splitService) Score(ctx context.Context, image []byte) (*scoring.Result, error) {
	_, result, err := s.analyze(ctx, image)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *splitService) analyze(ctx context.Context, image []byte) (*inference.Analysis, *scoring.Result, error) {
	prepared, err := s.checker.Prepare(image)
	if err != nil {
		return nil, nil, err
	}

	analysis, err := s.inference.Analyze(ctx, prepared.JPEG)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.scorer.Score(analysis.Predictions)
	if err != nil {
		return nil, nil, scoringError(err)
	}
	return analysis, &result, nil
}

func (s *splitService) Result(ctx context.Context, id string) (*models.ResultCard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("split not found", err)
	}

	split, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repositoryError(err)
	}

	rank, total, err := s.repo.Rank(ctx, split.Score, repository.PeriodAll)
	if err != nil {
		return nil, repositoryError(err)
	}

	return &models.ResultCard{
		Split:     *split,
		Rank:      rank,
		Total:     total,
		ShareURL:  s.shareURL(split.ID),
		ShareText: shareText(split),
	}, nil
}

func (s *splitService) Leaderboard(ctx context.Context, period string, limit int) (*models.Leaderboard, error) {
	p, err := repository.ParsePeriod(period)
	if err != nil {
		return nil, repositoryError(err)
	}

	switch {
	case limit <= 0:
		limit = DefaultLeaderboardN
	case limit > MaxLeaderboardN:
		limit = MaxLeaderboardN
	}

	splits, err := s.repo.Top(ctx, p, limit)
	if err != nil {
		return nil, repositoryError(err)
	}

	board := &models.Leaderboard{Period: string(p), Entries: make([]models.LeaderboardEntry, 0, len(splits))}
	for i, split := range splits {
		board.Entries = append(board.Entries, models.LeaderboardEntry{Rank: i + 1, Split: split})
	}
	return board, nil
}

func (s *splitService) Detect(ctx context.Context, session string, frame []byte) (*detection.Decision, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, apperrors.NewValidationError("session is required", nil)
	}
	if len(session) > MaxSessionIDLength {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("session must be at most %d bytes", MaxSessionIDLength), nil)
	}
	if _, _, err := precheck.Decode(frame); err != nil {
		return nil, err
	}

	hit := false
	det, err := s.inference.Detect(ctx, frame)
	if err != nil {
		// a failed frame is a miss; the client keeps polling
		logger.WithError(err).WithField("session", session).Warn("Frame detection failed")
	} else {
		hit = detection.IsHit(det, s.opts.MinConfidence)
	}

	decision := s.sessions.Observe(session, hit)
	if decision.Capture {
		s.publish(ctx, observer.SplitEvent{
			EventType: observer.FrameCaptured,
			Success:   true,
			Metadata:  map[string]interface{}{"session": session, "hits": decision.Hits},
		})
	}
	return &decision, nil
}

func (s *splitService) Forget(session string) {
	s.sessions.Forget(session)
}

func (s *splitService) publish(ctx context.Context, event observer.SplitEvent) {
	if s.events == nil {
		return
	}
	event.Timestamp = s.now()
	s.events.NotifyObservers(ctx, event)
}

func (s *splitService) shareURL(id string) string {
	return fmt.Sprintf("%s/api/splits/%s", s.opts.PublicBaseURL, id)
}

func shareText(split *models.Split) string {
	text := fmt.Sprintf("%s scored %.2f/5 splitting the G (%s)", split.Username, split.Score, split.Grade)
	if split.PubName != "" {
		text += " at " + split.PubName
	}
	return text + ". Can you beat it?"
}

func objectName(id, file string) string {
	return "splits/" + id + "/" + file
}

// cleanText trims s and cuts it to at most n runes
func cleanText(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

func scoringError(err error) error {
	switch {
	case errors.Is(err, scoring.ErrNoLogo):
		return apperrors.NewUnprocessableError("couldn't find the G on the glass, try a straighter photo", err)
	case errors.Is(err, scoring.ErrNoSplit):
		return apperrors.NewUnprocessableError("couldn't find the split line, let the pint settle first", err)
	default:
		return apperrors.NewInternalError("failed to score split", err)
	}
}

func repositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSplitNotFound):
		return apperrors.NewNotFoundError("split not found", err)
	case errors.Is(err, repository.ErrInvalidPeriod):
		return apperrors.NewValidationError("period must be one of all, week, day", err)
	default:
		return apperrors.NewInternalError("database error", err)
	}
}

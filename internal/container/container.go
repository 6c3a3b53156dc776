package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"split-the-g/internal/config"
	"split-the-g/internal/detection"
	"split-the-g/internal/factory"
	"split-the-g/internal/inference"
	"split-the-g/internal/logger"
	"split-the-g/internal/observer"
	"split-the-g/internal/precheck"
	"split-the-g/internal/repository"
	"split-the-g/internal/scoring"
	"split-the-g/internal/service"
	"split-the-g/internal/storage"
	"split-the-g/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	imageFetcher storage.ImageFetcher
	imageStore   storage.ImageStore
	inference    inference.Client
	splitRepo    repository.SplitRepository
	sessions     *detection.Sessions
	events       *observer.EventPublisher
	metrics      *observer.MetricsObserver
	splitService service.SplitService
	handler      http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	params := scoring.DefaultParams()
	if cfg.ScoringConfig != "" {
		loaded, err := scoring.LoadParams(cfg.ScoringConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load scoring config: %w", err)
		}
		params = loaded
	}
	scorer, err := scoring.NewScorer(params)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}

	imageFetcher := storage.NewHTTPImageFetcher()
	client, err := inference.NewClient(inference.Options{
		BaseURL:       cfg.Inference.BaseURL,
		APIKey:        cfg.Inference.APIKey,
		Workspace:     cfg.Inference.Workspace,
		Workflow:      cfg.Inference.Workflow,
		DetectModel:   cfg.Inference.DetectModel,
		MinConfidence: cfg.Detect.MinConfidence,
	}, &http.Client{Timeout: cfg.InferenceTimeout}, imageFetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	imageStore, err := factory.NewImageStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create image store: %w", err)
	}

	splitRepo, err := repository.NewSQLiteRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sessions := detection.NewSessions(cfg.Detect.Window, cfg.Detect.MinVotes, cfg.Detect.SessionTTL)

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	checker := precheck.NewChecker(precheck.Thresholds{
		MinSide:      cfg.Precheck.MinSide,
		MinSharpness: cfg.Precheck.MinSharpness,
		MaxSide:      cfg.Precheck.MaxSide,
	})

	splitService := service.NewSplitService(checker, client, scorer, imageStore, splitRepo, sessions, events, service.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		MinConfidence: cfg.Detect.MinConfidence,
	})
	handler := transport.NewHandler(splitService, metrics, cfg)

	return &Container{
		config:       cfg,
		imageFetcher: imageFetcher,
		imageStore:   imageStore,
		inference:    client,
		splitRepo:    splitRepo,
		sessions:     sessions,
		events:       events,
		metrics:      metrics,
		splitService: splitService,
		handler:      handler,
	}, nil
}

// StartBackground starts the detection session janitor
func (c *Container) StartBackground() {
	interval := c.config.Detect.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	c.sessions.StartJanitor(interval)
}

// Close stops background work and releases the database
func (c *Container) Close() error {
	c.sessions.Close()
	c.events.Wait()
	if err := c.splitRepo.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the split service
func (c *Container) Service() service.SplitService {
	return c.splitService
}

// Inference returns the vision API client
func (c *Container) Inference() inference.Client {
	return c.inference
}

// Fetcher returns the HTTP image fetcher
func (c *Container) Fetcher() storage.ImageFetcher {
	return c.imageFetcher
}

// Repository returns the split repository
func (c *Container) Repository() repository.SplitRepository {
	return c.splitRepo
}

// Metrics returns the event counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

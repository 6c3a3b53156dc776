package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"split-the-g/internal/config"
)

func localConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Port:               "8080",
		PublicBaseURL:      "http://localhost:8080",
		RequestTimeout:     5 * time.Second,
		InferenceTimeout:   5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		Inference: config.InferenceConfig{
			BaseURL:     "http://127.0.0.1:9001",
			Workspace:   "pub",
			Workflow:    "split-the-g",
			DetectModel: "guinness/3",
		},
		Storage:      config.StorageConfig{Backend: config.StorageBackendLocal, LocalDir: filepath.Join(dir, "media")},
		Detect:       config.DetectConfig{Window: 5, MinVotes: 3, MinConfidence: 0.5, SessionTTL: time.Minute},
		Precheck:     config.PrecheckConfig{MinSide: 256, MinSharpness: 10, MaxSide: 1280},
		DatabasePath: filepath.Join(dir, "db", "splits.db"),
	}
}

func TestNewContainer_LocalBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := localConfig(t)

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	c.StartBackground()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	board, err := c.Service().Leaderboard(context.Background(), "all", 10)
	require.NoError(t, err)
	assert.Empty(t, board.Entries)

	assert.Same(t, cfg, c.Config())
	assert.NotNil(t, c.Metrics())
	require.NoError(t, c.Close())
}

func TestNewContainer_ScoringConfig(t *testing.T) {
	cfg := localConfig(t)

	cfg.ScoringConfig = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewContainer(context.Background(), cfg)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tolerance: 0.4\n"), 0o644))
	cfg.ScoringConfig = path

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

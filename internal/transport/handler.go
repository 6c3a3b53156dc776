package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"split-the-g/internal/config"
	apperrors "split-the-g/internal/errors"
	"split-the-g/internal/logger"
	"split-the-g/internal/service"
	"split-the-g/pkg/models"
)

const version = "1.0.0"

// MetricsProvider exposes the counters shown on /health
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
}

func NewHandler(svc service.SplitService, metrics MetricsProvider, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck(metrics))

	api := r.Group("/api")
	api.POST("/splits", submitSplit(svc, cfg))
	api.GET("/splits/:id", getSplit(svc, cfg))
	api.GET("/leaderboard", getLeaderboard(svc, cfg))
	api.POST("/detect", detectFrame(svc, cfg))
	api.DELETE("/detect/:session", forgetSession(svc))

	if cfg.Storage.Backend == config.StorageBackendLocal && cfg.Storage.LocalDir != "" {
		r.Static("/media", cfg.Storage.LocalDir)
	}

	return r
}

func submitSplit(svc service.SplitService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing split submission")

		image, err := readFormFile(c, "image")
		if err != nil {
			respondError(c, "invalid photo upload", err)
			return
		}

		split, err := svc.Submit(ctx, service.SubmitRequest{
			Image:    image,
			Username: c.PostForm("username"),
			PubName:  c.PostForm("pub_name"),
		})
		if err != nil {
			respondError(c, "failed to score split", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"split_id":           split.ID,
			"score":              split.Score,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Split submission completed successfully")

		location := "/api/splits/" + split.ID
		if !wantsJSON(c) {
			c.Redirect(http.StatusSeeOther, location)
			return
		}

		card, err := svc.Result(ctx, split.ID)
		if err != nil {
			respondError(c, "failed to load result", err)
			return
		}
		c.Header("Location", location)
		c.JSON(http.StatusCreated, card)
	}
}

func getSplit(svc service.SplitService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		card, err := svc.Result(ctx, c.Param("id"))
		if err != nil {
			respondError(c, "failed to load result", err)
			return
		}
		c.JSON(http.StatusOK, card)
	}
}

func getLeaderboard(svc service.SplitService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				respondError(c, "invalid leaderboard query", apperrors.NewValidationError("limit must be a number", err))
				return
			}
			limit = n
		}

		board, err := svc.Leaderboard(ctx, c.Query("period"), limit)
		if err != nil {
			respondError(c, "invalid leaderboard query", err)
			return
		}
		c.JSON(http.StatusOK, board)
	}
}

func detectFrame(svc service.SplitService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		frame, err := readFormFile(c, "frame")
		if err != nil {
			respondError(c, "invalid frame upload", err)
			return
		}

		session := c.PostForm("session")
		decision, err := svc.Detect(ctx, session, frame)
		if err != nil {
			respondError(c, "frame detection failed", err)
			return
		}

		if decision.Capture {
			logger.WithFields(logrus.Fields{
				"session": session,
				"hits":    decision.Hits,
				"ip":      c.ClientIP(),
			}).Debug("Auto-capture triggered")
		}

		c.JSON(http.StatusOK, models.DetectResponse{
			Session: session,
			Hit:     decision.Hit,
			Hits:    decision.Hits,
			Seen:    decision.Seen,
			Window:  decision.Window,
			Capture: decision.Capture,
		})
	}
}

func forgetSession(svc service.SplitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.Forget(c.Param("session"))
		c.Status(http.StatusNoContent)
	}
}

func healthCheck(metrics MetricsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:  "available",
			Version: version,
			Time:    time.Now().UTC().Format(time.RFC3339),
		}
		if metrics != nil {
			resp.Metrics = metrics.GetMetrics()
		}
		c.JSON(http.StatusOK, resp)
	}
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON)
}

func readFormFile(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if isTooLarge(err) {
			return nil, err
		}
		return nil, apperrors.NewValidationError(fmt.Sprintf("multipart field %q with an image file is required", field), err)
	}
	return readAll(header)
}

func readAll(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot read uploaded file", err)
	}
	return data, nil
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, "request processing failed", c.Errors.Last().Err)
		}
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func determineStatusCode(err error) int {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	switch {
	case isTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, message string, err error) {
	code := determineStatusCode(err)

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	// AppError messages are written for the person holding the pint
	detail := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		detail = appErr.Message
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %s", message, detail),
	})
}

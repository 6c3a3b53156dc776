package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"split-the-g/pkg/models"
)

// SplitRepository defines the data access operations for scored splits
type SplitRepository interface {
	// Save inserts a new split
	Save(ctx context.Context, split *models.Split) error

	// Get retrieves a split by id
	Get(ctx context.Context, id string) (*models.Split, error)

	// Top returns the best splits in a period, best first
	Top(ctx context.Context, period Period, limit int) ([]models.Split, error)

	// Rank returns the 1-based position a score holds in a period and the
	// number of splits in that period
	Rank(ctx context.Context, score float64, period Period) (rank int, total int, err error)

	Close() error
}

// Period is a leaderboard time window
type Period string

const (
	PeriodAll  Period = "all"
	PeriodWeek Period = "week"
	PeriodDay  Period = "day"
)

// ParsePeriod maps a query value onto a Period; empty means all time
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodWeek, PeriodDay:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// Since returns the start of the window ending at now
func (p Period) Since(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.Add(-24 * time.Hour)
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	default:
		return time.Unix(0, 0)
	}
}

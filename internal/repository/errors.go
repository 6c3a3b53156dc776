package repository

import "errors"

var (
	// ErrSplitNotFound indicates no split exists with the requested id
	ErrSplitNotFound = errors.New("split not found")

	// ErrInvalidPeriod indicates an unknown leaderboard period
	ErrInvalidPeriod = errors.New("invalid leaderboard period")
)

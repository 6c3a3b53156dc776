package models

import "time"

// Prediction is one object found by the vision model. X and Y are the box
// centre in source-image pixels.
type Prediction struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Confidence  float64 `json:"confidence"`
	Class       string  `json:"class"`
	ClassID     int     `json:"class_id"`
	DetectionID string  `json:"detection_id,omitempty"`
}

// ImageSize is the size of the image the model saw
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Split is a scored pour as stored in the database
type Split struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Username      string    `json:"username"`
	PubName       string    `json:"pub_name,omitempty"`
	Score         float64   `json:"score"`
	Grade         string    `json:"grade"`
	Verdict       string    `json:"verdict"`
	OffsetY       float64   `json:"offset_y"`
	OffsetX       float64   `json:"offset_x"`
	SplitImageURL string    `json:"split_image_url"`
	LogoImageURL  string    `json:"logo_image_url"`
}

// ResultCard is the shareable view of a single split
type ResultCard struct {
	Split     Split  `json:"split"`
	Rank      int    `json:"rank"`
	Total     int    `json:"total"`
	ShareURL  string `json:"share_url"`
	ShareText string `json:"share_text"`
}

type LeaderboardEntry struct {
	Rank  int   `json:"rank"`
	Split Split `json:"split"`
}

type Leaderboard struct {
	Period  string             `json:"period"`
	Entries []LeaderboardEntry `json:"entries"`
}

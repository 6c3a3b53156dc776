package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DetectResponse reports the state of the auto-capture vote after one frame
type DetectResponse struct {
	Session string `json:"session"`
	Hit     bool   `json:"hit"`
	Hits    int    `json:"hits"`
	Seen    int    `json:"seen"`
	Window  int    `json:"window"`
	Capture bool   `json:"capture"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Time    string         `json:"time"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

// Package detection decides when a live camera feed shows a glass worth
// capturing. Each frame is reduced to a hit or a miss and a short majority
// vote over the most recent frames triggers the capture, which keeps a single
// lucky or unlucky frame from deciding.
package detection

import (
	"split-the-g/internal/inference"
	"split-the-g/internal/scoring"
)

// Decision is the vote state after observing a frame
type Decision struct {
	Hit     bool `json:"hit"`
	Hits    int  `json:"hits"`
	Seen    int  `json:"seen"`
	Window  int  `json:"window"`
	Capture bool `json:"capture"`
}

// Voter keeps the last Window verdicts in a ring. It is not safe for
// concurrent use; Sessions serialises access per session.
type Voter struct {
	window   int
	minVotes int
	ring     []bool
	next     int
	seen     int
	hits     int
}

// NewVoter panics on a window below 1 or minVotes outside 1..window; config
// validation rejects those before a voter is built.
func NewVoter(window, minVotes int) *Voter {
	if window < 1 || minVotes < 1 || minVotes > window {
		panic("detection: invalid voter window")
	}
	return &Voter{
		window:   window,
		minVotes: minVotes,
		ring:     make([]bool, window),
	}
}

// Observe records one frame verdict
func (v *Voter) Observe(hit bool) Decision {
	if v.seen == v.window {
		// evict the oldest verdict
		if v.ring[v.next] {
			v.hits--
		}
	} else {
		v.seen++
	}
	v.ring[v.next] = hit
	if hit {
		v.hits++
	}
	v.next = (v.next + 1) % v.window

	d := Decision{
		Hit:    hit,
		Hits:   v.hits,
		Seen:   v.seen,
		Window: v.window,
	}
	if v.seen == v.window && v.hits >= v.minVotes {
		d.Capture = true
		v.Reset()
	}
	return d
}

// Reset forgets every observed frame
func (v *Voter) Reset() {
	for i := range v.ring {
		v.ring[i] = false
	}
	v.next, v.seen, v.hits = 0, 0, 0
}

// IsHit reports whether a frame shows the G logo together with a glass or a
// visible split, each at or above minConfidence.
func IsHit(det *inference.Detection, minConfidence float64) bool {
	if det == nil {
		return false
	}
	confident := func(class string) bool {
		p, ok := scoring.Best(det.Predictions, class)
		return ok && p.Confidence >= minConfidence
	}
	return confident(scoring.ClassLogo) && (confident(scoring.ClassGlass) || confident(scoring.ClassSplit))
}

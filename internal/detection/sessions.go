package detection

import (
	"sync"
	"time"
)

// DefaultMaxSessions bounds live sessions; at the cap the least recently
// seen one is evicted to make room.
const DefaultMaxSessions = 10000

type session struct {
	voter    *Voter
	lastSeen time.Time
}

// Sessions holds one voter per browser session for the HTTP detect endpoint.
// Idle sessions are swept after ttl.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	window   int
	minVotes int
	ttl      time.Duration
	limit    int
	now      func() time.Time

	stop    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
}

func NewSessions(window, minVotes int, ttl time.Duration) *Sessions {
	return &Sessions{
		sessions: make(map[string]*session),
		window:   window,
		minVotes: minVotes,
		ttl:      ttl,
		limit:    DefaultMaxSessions,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Observe feeds one frame verdict into the session's voter, creating it on first use
func (s *Sessions) Observe(id string, hit bool) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		if s.limit > 0 && len(s.sessions) >= s.limit {
			s.evictOldest()
		}
		sess = &session{voter: NewVoter(s.window, s.minVotes)}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess.voter.Observe(hit)
}

// evictOldest drops the least recently seen session. Callers hold mu.
func (s *Sessions) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
		found    bool
	)
	for id, sess := range s.sessions {
		if !found || sess.lastSeen.Before(oldest) {
			oldestID, oldest, found = id, sess.lastSeen, true
		}
	}
	if found {
		delete(s.sessions, oldestID)
	}
}

// Forget drops a session, e.g. after its photo was submitted
func (s *Sessions) Forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now-ttl and returns how many went
func (s *Sessions) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps on the given interval until Close
func (s *Sessions) StartJanitor(interval time.Duration) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(s.now())
			}
		}
	}()
}

// Close stops the janitor and waits for it to exit
func (s *Sessions) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
	})
}

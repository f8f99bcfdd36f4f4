package sync

import (
	gosync "sync"
	"time"
)

// SessionState is the lifecycle state of one endpoint's poll session.
type SessionState string

const (
	// SessionStarting means the session exists but has not completed a
	// poll yet.
	SessionStarting SessionState = "starting"

	// SessionPolling means the last poll succeeded and the session is on
	// its regular interval.
	SessionPolling SessionState = "polling"

	// SessionBackoff means the last poll failed and the session is
	// waiting out an exponential backoff delay.
	SessionBackoff SessionState = "backoff"

	// SessionClosed means the session has stopped and will not poll
	// again.
	SessionClosed SessionState = "closed"
)

// SessionInfo is a point-in-time snapshot of one session, exported for
// the operational API.
type SessionInfo struct {
	EndpointID          string       `json:"endpoint_id"`
	State               SessionState `json:"state"`
	Generation          uint64       `json:"generation"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastError           string       `json:"last_error,omitempty"`
	LastPollAt          time.Time    `json:"last_poll_at"`
	NextRetryAt         time.Time    `json:"next_retry_at,omitzero"`
}

// session tracks the mutable state of one endpoint's poll loop.
// The loop goroutine writes it; API snapshots read it.
type session struct {
	endpointID string

	mu          gosync.Mutex
	state       SessionState
	generation  uint64
	failures    int
	lastError   string
	lastPollAt  time.Time
	nextRetryAt time.Time

	// prunedWarned tracks which dropped paths have already been logged,
	// so a recurring tree does not warn every poll.
	prunedWarned map[string]bool
}

func newSession(endpointID string) *session {
	return &session{
		endpointID:   endpointID,
		state:        SessionStarting,
		prunedWarned: make(map[string]bool),
	}
}

func (s *session) snapshot() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		EndpointID:          s.endpointID,
		State:               s.state,
		Generation:          s.generation,
		ConsecutiveFailures: s.failures,
		LastError:           s.lastError,
		LastPollAt:          s.lastPollAt,
		NextRetryAt:         s.nextRetryAt,
	}
}

func (s *session) currentState() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// recordSuccess notes a completed poll and returns the new generation.
func (s *session) recordSuccess() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.failures = 0
	s.lastError = ""
	s.state = SessionPolling
	s.lastPollAt = time.Now().UTC()
	s.nextRetryAt = time.Time{}
	return s.generation
}

// recordFailure notes a failed poll and returns the consecutive failure
// count.
func (s *session) recordFailure(err error, retryAt time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	s.lastError = err.Error()
	s.state = SessionBackoff
	s.lastPollAt = time.Now().UTC()
	s.nextRetryAt = retryAt
	return s.failures
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionClosed
	s.nextRetryAt = time.Time{}
}

// shouldWarnPrune reports whether a pruned path has not been logged yet,
// marking it logged as a side effect.
func (s *session) shouldWarnPrune(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prunedWarned[path] {
		return false
	}
	s.prunedWarned[path] = true
	return true
}

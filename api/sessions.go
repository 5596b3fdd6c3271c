package api

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/timeline"
)

// =============================================================================
// TIMELINE SESSIONS - One Window per open viewer
// =============================================================================

type session struct {
	id       string
	window   *timeline.Window
	lastUsed time.Time
}

// Sessions keeps the windows opened through POST /api/timelines so that
// extend/jump calls continue the same range and selection token.
type Sessions struct {
	loader *timeline.Loader
	opts   timeline.Options
	log    logrus.FieldLogger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessions(loader *timeline.Loader, opts timeline.Options, log logrus.FieldLogger) *Sessions {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		loader:   loader,
		opts:     opts,
		log:      log,
		now:      now,
		sessions: make(map[string]*session),
	}
}

// Open registers a new window for employeeID. The caller initializes it.
func (s *Sessions) Open(employeeID string) (string, *timeline.Window) {
	id := core.NewID()
	w := timeline.NewWindow(s.loader, employeeID, s.opts, s.log.WithField("session_id", id))

	s.mu.Lock()
	s.sessions[id] = &session{id: id, window: w, lastUsed: s.now()}
	s.mu.Unlock()
	return id, w
}

// Get returns the window and marks the session used.
func (s *Sessions) Get(id string) (*timeline.Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess.window, true
}

func (s *Sessions) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ReapIdle drops sessions unused for longer than ttl and returns their ids.
func (s *Sessions) ReapIdle(ttl time.Duration) []string {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []string
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			reaped = append(reaped, id)
		}
	}
	sort.Strings(reaped)
	return reaped
}

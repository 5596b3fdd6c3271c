/*
scheduler.go - Idle timeline session reaper

PURPOSE:
  Timeline sessions hold a full window of DayRecords in memory. Viewers
  rarely close them explicitly, so a background goroutine drops sessions
  that have been idle for longer than the configured TTL.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reaps once on start, then on every tick
  - Stop waits for the goroutine to exit

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - TTL: Idle time after which a session is dropped (default: 30 minutes)
  - Enabled: Whether the reaper is active (default: true)

USAGE:
  reaper := NewSessionReaper(sessions, logger)
  reaper.Start()
  // ... later
  reaper.Stop()

SEE ALSO:
  - sessions.go: the registry being reaped
  - handlers.go: OpenTimeline, CloseTimeline
*/
package api

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionReaper drops idle timeline sessions.
type SessionReaper struct {
	Sessions      *Sessions
	CheckInterval time.Duration
	TTL           time.Duration
	Enabled       bool

	log    logrus.FieldLogger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSessionReaper(sessions *Sessions, log logrus.FieldLogger) *SessionReaper {
	return &SessionReaper{
		Sessions:      sessions,
		CheckInterval: time.Minute,
		TTL:           30 * time.Minute,
		Enabled:       true,
		log:           log.WithField("component", "session_reaper"),
	}
}

// Start begins the reaper. Calling it twice is a no-op.
func (sr *SessionReaper) Start() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if !sr.Enabled {
		sr.log.Info("disabled, not starting")
		return
	}
	if sr.ticker != nil {
		return
	}
	if sr.CheckInterval <= 0 {
		sr.log.WithField("interval", sr.CheckInterval.String()).Warn("non-positive interval, not starting")
		return
	}

	sr.ticker = time.NewTicker(sr.CheckInterval)
	sr.stop = make(chan struct{})
	sr.wg.Add(1)

	go sr.run(sr.ticker, sr.stop)

	sr.log.WithFields(logrus.Fields{
		"interval": sr.CheckInterval.String(),
		"ttl":      sr.TTL.String(),
	}).Info("started")
}

// Stop stops the reaper and waits for it to exit.
func (sr *SessionReaper) Stop() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.ticker != nil {
		sr.ticker.Stop()
		close(sr.stop)
		sr.wg.Wait()
		sr.ticker = nil
		sr.log.Info("stopped")
	}
}

func (sr *SessionReaper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer sr.wg.Done()

	sr.reap()

	for {
		select {
		case <-ticker.C:
			sr.reap()
		case <-stop:
			return
		}
	}
}

func (sr *SessionReaper) reap() int {
	reaped := sr.Sessions.ReapIdle(sr.TTL)
	if len(reaped) > 0 {
		sr.log.WithFields(logrus.Fields{
			"reaped":    len(reaped),
			"remaining": sr.Sessions.Len(),
		}).Info("reaped idle timeline sessions")
	}
	return len(reaped)
}

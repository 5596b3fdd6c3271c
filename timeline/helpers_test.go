package timeline_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/core/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fixedNow is Wednesday 2024-01-17 10:00 UTC, so yesterday is 2024-01-16.
func fixedNow() time.Time { return time.Date(2024, time.January, 17, 10, 0, 0, 0, time.UTC) }

// gatedSources wraps the memory store. Per-source failures can be injected
// and ListTasks for blockFor parks on gate until it is closed.
type gatedSources struct {
	*store.Memory

	mu          sync.Mutex
	failTasks   error
	failLeaves  error
	failEvents  error
	blockFor    string
	gate        chan struct{}
	entered     chan struct{}
	taskCalls   int
	saveFailure error
}

func newGatedSources() *gatedSources {
	return &gatedSources{Memory: store.NewMemory()}
}

// block makes the next ListTasks for employeeID wait until release is called.
func (g *gatedSources) block(employeeID string) (entered <-chan struct{}, release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockFor = employeeID
	g.gate = make(chan struct{})
	g.entered = make(chan struct{}, 1)
	gate := g.gate
	return g.entered, func() { close(gate) }
}

func (g *gatedSources) ListTasks(ctx context.Context, employeeID string) ([]core.Task, error) {
	g.mu.Lock()
	g.taskCalls++
	fail := g.failTasks
	var gate chan struct{}
	if g.gate != nil && employeeID == g.blockFor {
		gate = g.gate
		g.entered <- struct{}{}
		g.gate = nil
	}
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail != nil {
		return nil, fail
	}
	return g.Memory.ListTasks(ctx, employeeID)
}

func (g *gatedSources) ListApprovedLeaves(ctx context.Context, employeeID string) ([]core.Leave, error) {
	g.mu.Lock()
	fail := g.failLeaves
	g.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return g.Memory.ListApprovedLeaves(ctx, employeeID)
}

func (g *gatedSources) ListCalendarEvents(ctx context.Context) ([]core.CalendarEvent, error) {
	g.mu.Lock()
	fail := g.failEvents
	g.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return g.Memory.ListCalendarEvents(ctx)
}

func (g *gatedSources) SaveTimesheetDay(ctx context.Context, day core.TimesheetDay) (core.TimesheetDay, error) {
	g.mu.Lock()
	fail := g.saveFailure
	g.mu.Unlock()
	if fail != nil {
		return core.TimesheetDay{}, fail
	}
	return g.Memory.SaveTimesheetDay(ctx, day)
}

func (g *gatedSources) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.taskCalls
}

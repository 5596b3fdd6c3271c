/*
scenarios.go - Demo seed data for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data relative to today, so the default window (ending yesterday) always
	shows something. Each scenario exercises specific timeline features.

AVAILABLE SCENARIOS:

	sprint-week:     On-time, overdue and upcoming tasks with logged hours
	leave-and-holiday: Approved leave overlapping a holiday, a rejected leave
	ambiguous-log:   Entries without task links, one of them ambiguous

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create tasks
 3. Create timesheet days with entries (some soft-deleted)
 4. Add leaves and calendar events

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sprint-week"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: the endpoints that render this data
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/worklog-timeline/core"
)

// DemoEmployee owns every task the scenarios create.
const DemoEmployee = "emp-demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sprint-week",
		Name:        "Sprint Week",
		Description: "On-time, overdue and upcoming tasks with hours logged against them",
	},
	{
		ID:          "leave-and-holiday",
		Name:        "Leave and Holiday",
		Description: "Approved leave spanning a holiday; the holiday wins",
	},
	{
		ID:          "ambiguous-log",
		Name:        "Ambiguous Log",
		Description: "Entries linked by content only, one matching two tasks",
	},
}

var scenarioLoaders = map[string]func(ctx context.Context, h *Handler) error{
	"sprint-week":       loadSprintWeek,
	"leave-and-holiday": loadLeaveAndHoliday,
	"ambiguous-log":     loadAmbiguousLog,
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx, h); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "loaded",
		"scenario_id": req.ScenarioID,
		"employee_id": DemoEmployee,
	})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seeder offsets every date from today and collects the first error.
type seeder struct {
	ctx     context.Context
	store   Store
	today   core.TimePoint
	created time.Time
	n       int
	err     error
}

func newSeeder(ctx context.Context, h *Handler) *seeder {
	return &seeder{ctx: ctx, store: h.Store, today: h.today(), created: h.now().UTC().AddDate(0, 0, -30)}
}

func (s *seeder) date(offset int) string { return s.today.AddDays(offset).String() }

func (s *seeder) task(id, content string, plannedOffset, eta int) core.Task {
	t := core.Task{
		ID:          id,
		OwnerID:     DemoEmployee,
		Content:     content,
		PlannedDate: s.date(plannedOffset),
		EtaMinutes:  eta,
		CreatedAt:   s.created.Add(time.Duration(s.n) * time.Minute),
	}
	s.n++
	if s.err == nil {
		s.err = s.store.SaveTask(s.ctx, t)
	}
	return t
}

func (s *seeder) complete(t core.Task, offset int) {
	if s.err != nil {
		return
	}
	if s.err = t.Complete(s.date(offset)); s.err == nil {
		s.err = s.store.SaveTask(s.ctx, t)
	}
}

func (s *seeder) day(offset int, entries ...core.TimesheetEntry) {
	if s.err != nil {
		return
	}
	day, err := core.NewTimesheetDay(DemoEmployee, s.date(offset))
	if err != nil {
		s.err = err
		return
	}
	for _, e := range entries {
		deleted := e.IsDeleted
		added, err := day.AppendEntry(e)
		if err != nil {
			s.err = err
			return
		}
		if deleted {
			s.err = day.SoftDeleteEntry(added.ID)
		}
	}
	_, s.err = s.store.SaveTimesheetDay(s.ctx, day)
}

func (s *seeder) leave(from, to int, status core.LeaveStatus, kind, reason string) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveLeave(s.ctx, core.Leave{
		ID:         core.NewID(),
		EmployeeID: DemoEmployee,
		StartDate:  s.date(from),
		EndDate:    s.date(to),
		Status:     status,
		Type:       kind,
		Reason:     reason,
	})
}

func (s *seeder) holiday(offset int, title string) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveCalendarEvent(s.ctx, core.CalendarEvent{
		ID:        core.NewID(),
		Date:      s.date(offset),
		Title:     title,
		Type:      core.EventHoliday,
		IsHoliday: true,
	})
}

// workingOffset returns the latest offset <= from that is not a Sunday.
func (s *seeder) workingOffset(from int) int {
	for s.today.AddDays(from).IsSunday() {
		from--
	}
	return from
}

func loadSprintWeek(ctx context.Context, h *Handler) error {
	s := newSeeder(ctx, h)
	d1, d2, d3 := s.workingOffset(-1), s.workingOffset(-3), s.workingOffset(-5)

	ship := s.task("task-api", "Ship timeline API", d3, 240)
	s.complete(ship, d2)
	review := s.task("task-review", "Code review", d2, 60)
	docs := s.task("task-docs", "Write docs", d1, 90)
	s.task("task-next", "Plan next sprint", 2, 45)

	s.day(d3,
		core.TimesheetEntry{TaskID: ship.ID, Description: "handlers", DurationHours: 3},
		core.TimesheetEntry{Description: "standup", DurationHours: 0.25},
	)
	s.day(d2,
		core.TimesheetEntry{TaskID: ship.ID, Description: "tests", DurationHours: 1.5},
		core.TimesheetEntry{TaskID: review.ID, Description: "review", DurationHours: 2, IsDeleted: true},
	)
	s.day(d1,
		core.TimesheetEntry{TaskID: docs.ID, Description: "outline", DurationHours: 1},
		core.TimesheetEntry{Description: "Code review", DurationHours: 0.75},
	)
	return s.err
}

func loadLeaveAndHoliday(ctx context.Context, h *Handler) error {
	s := newSeeder(ctx, h)

	s.task("task-report", "Quarterly report", -6, 120)
	s.leave(-5, -2, core.LeaveApproved, "Annual", "family trip")
	s.leave(-9, -8, core.LeaveRejected, "Annual", "conflict with release")
	s.holiday(-2, "Founders Day")
	s.day(-7, core.TimesheetEntry{Description: "Quarterly report", DurationHours: 4})
	return s.err
}

func loadAmbiguousLog(ctx context.Context, h *Handler) error {
	s := newSeeder(ctx, h)
	d := s.workingOffset(-1)

	s.task("task-sync-a", "Sync with design", d, 30)
	s.task("task-sync-b", "sync  with DESIGN", d, 30)
	s.task("task-bugfix", "Fix login bug", d, 60)
	s.day(d,
		core.TimesheetEntry{Description: "Sync with design", DurationHours: 0.5},
		core.TimesheetEntry{Description: "Fix login bug", DurationHours: 1.25},
		core.TimesheetEntry{TaskID: "task-gone", Description: "Fix login bug", DurationHours: 0.25},
	)
	return s.err
}

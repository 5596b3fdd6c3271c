/*
handlers.go - HTTP API handlers for the worklog timeline

PURPOSE:
  Exposes the reconciliation timeline via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the reconcile
  and timeline packages.

ENDPOINTS:
  Timeline:
    GET    /api/employees/{id}/timeline                    Stateless range (?start&end or ?month)
    GET    /api/employees/{id}/tasks/{taskID}/reconciliation

  Sessions (server-held windows):
    POST   /api/timelines                Open a window
    GET    /api/timelines/{sid}          Current window
    POST   /api/timelines/{sid}/extend   Prepend older days
    POST   /api/timelines/{sid}/jump     Hard reset to a month
    POST   /api/timelines/{sid}/refresh  Re-fetch and rebuild
    POST   /api/timelines/{sid}/select   Switch employee
    DELETE /api/timelines/{sid}          Close

  Remarks:
    GET    /api/employees/{id}/remarks/{date}
    PUT    /api/employees/{id}/remarks/{date}   (admin)

  Tasks, timesheets, leaves, calendar:
    POST   /api/employees/{id}/tasks
    PUT    /api/employees/{id}/tasks/{taskID}
    POST   /api/employees/{id}/tasks/{taskID}/complete
    DELETE /api/employees/{id}/tasks/{taskID}
    POST   /api/employees/{id}/timesheets
    POST   /api/employees/{id}/timesheets/{date}/submit
    POST   /api/employees/{id}/timesheets/{date}/entries
    PUT    /api/employees/{id}/timesheets/{date}/entries/{entryID}
    DELETE /api/employees/{id}/timesheets/{date}/entries/{entryID}
    POST   /api/employees/{id}/leaves
    GET    /api/calendar/events
    POST   /api/calendar/events

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401/403: Missing token, wrong role
  - 404: Resource not found
  - 409: Conflict (duplicate day, stale selection, uninitialized or full window)
  - 500: Internal errors
  A failed source is NOT an error: the timeline is built without it and
  the response carries partial=true with the failed source names.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo seed data
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/reconcile"
	"github.com/warp/worklog-timeline/timeline"
)

// maxRangeDays bounds the stateless timeline endpoint.
const maxRangeDays = 366

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is what the HTTP layer needs from persistence.
type Store interface {
	core.Store
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
	// InsertTimesheetDay fails with core.ErrDuplicateDay when the day exists.
	InsertTimesheetDay(ctx context.Context, day core.TimesheetDay) (core.TimesheetDay, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Store
	Sessions    *Sessions
	loader      *timeline.Loader
	annotations *timeline.Annotations
	opts        timeline.Options
	log         logrus.FieldLogger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the loader, remark store and session registry on top of
// store. opts.Now is the clock for every "today" the API computes.
func NewHandler(store Store, opts timeline.Options, log logrus.FieldLogger) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	loader := timeline.NewLoader(store, log)
	return &Handler{
		Store:       store,
		Sessions:    NewSessions(loader, opts, log),
		loader:      loader,
		annotations: timeline.NewAnnotations(store, log),
		opts:        opts,
		log:         log,
	}
}

func (h *Handler) now() time.Time         { return h.opts.Now() }
func (h *Handler) today() core.TimePoint { return core.TodayAt(h.now()) }

// Health reports whether the database answers.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: h.Sessions.Len()})
}

// =============================================================================
// TIMELINE HANDLERS
// =============================================================================

// GetTimeline builds a range without keeping any server state.
// GET /api/employees/{id}/timeline?start=YYYY-MM-DD&end=YYYY-MM-DD
// GET /api/employees/{id}/timeline?month=YYYY-MM
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	period, err := h.periodFromQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if period.Len() > maxRangeDays {
		writeError(w, http.StatusBadRequest, "Range too long", fmt.Errorf("%d days requested, at most %d", period.Len(), maxRangeDays))
		return
	}

	src, err := h.loader.Load(r.Context(), employeeID)
	partial := sourceError(err)
	if err != nil && partial == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load sources", err)
		return
	}

	today := h.today()
	records := reconcile.BuildRange(period, src, today)
	resp := TimelineResponse{
		EmployeeID:  employeeID,
		Start:       period.Start.String(),
		End:         period.End.String(),
		AnchorIndex: anchorIndex(period, today.AddDays(anchorOffset(h.opts))),
		Days:        toDayDTOs(records, src, today),
	}
	setPartial(&resp.Partial, &resp.FailedSources, partial)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) periodFromQuery(r *http.Request) (core.Period, error) {
	q := r.URL.Query()
	if month := q.Get("month"); month != "" {
		year, m, err := parseMonth(month)
		if err != nil {
			return core.Period{}, err
		}
		return core.MonthPeriod(year, m), nil
	}

	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		anchor := h.today().AddDays(anchorOffset(h.opts))
		days := h.opts.InitialDays
		if days <= 0 {
			days = timeline.DefaultOptions().InitialDays
		}
		return core.Period{Start: anchor.AddDays(-(days - 1)), End: anchor}, nil
	}

	s, ok := core.ParseDate(start)
	if !ok {
		return core.Period{}, &core.ValidationError{Field: "start", Value: start, Err: core.ErrInvalidDate}
	}
	e, ok := core.ParseDate(end)
	if !ok {
		return core.Period{}, &core.ValidationError{Field: "end", Value: end, Err: core.ErrInvalidDate}
	}
	return core.NewPeriod(s, e)
}

// GetTaskReconciliation classifies one task and computes its deltas over
// every timesheet the employee ever logged.
// GET /api/employees/{id}/tasks/{taskID}/reconciliation
func (h *Handler) GetTaskReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	days, err := h.Store.ListTimesheets(ctx, task.OwnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load timesheets", err)
		return
	}
	writeJSON(w, http.StatusOK, reconcile.NewEntryIndex(days).Reconcile(*task, h.today()))
}

// =============================================================================
// TIMELINE SESSION HANDLERS
// =============================================================================

// OpenTimeline creates a server-held window and initializes it.
// POST /api/timelines
func (h *Handler) OpenTimeline(w http.ResponseWriter, r *http.Request) {
	var req OpenTimelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	sid, win := h.Sessions.Open(req.EmployeeID)

	var snap timeline.Snapshot
	var err error
	if req.Month != "" {
		year, month, perr := parseMonth(req.Month)
		if perr != nil {
			h.Sessions.Close(sid)
			writeDomainError(w, perr)
			return
		}
		snap, err = win.JumpToMonth(r.Context(), year, month)
	} else {
		snap, err = win.Initialize(r.Context())
	}
	if err != nil {
		h.Sessions.Close(sid)
		writeDomainError(w, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"session_id":  sid,
		"employee_id": req.EmployeeID,
		"period":      snap.Period.String(),
	}).Info("timeline session opened")

	writeJSON(w, http.StatusCreated, h.sessionDTO(sid, win, snap))
}

// GetTimelineSession returns the current window.
// GET /api/timelines/{sid}
func (h *Handler) GetTimelineSession(w http.ResponseWriter, r *http.Request) {
	sid, win, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.sessionDTO(sid, win, win.Snapshot()))
}

// ExtendTimeline prepends older days. A call made while another extension
// is in flight answers ignored=true and changes nothing.
// POST /api/timelines/{sid}/extend
func (h *Handler) ExtendTimeline(w http.ResponseWriter, r *http.Request) {
	_, win, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ExtendRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Days < 0 || req.Days > maxRangeDays {
		writeError(w, http.StatusBadRequest, "Invalid request", fmt.Errorf("days must be between 0 and %d", maxRangeDays))
		return
	}

	var ext timeline.Extension
	var err error
	if req.FirstVisibleRow != nil {
		var extended bool
		ext, extended, err = win.MaybeExtend(r.Context(), *req.FirstVisibleRow, timeline.Sentinel{Threshold: req.Threshold})
		if err == nil && !extended && !ext.Ignored {
			writeJSON(w, http.StatusOK, ExtensionResponse{Ignored: true, Added: []DayDTO{}})
			return
		}
	} else {
		ext, err = win.ExtendBackward(r.Context(), req.Days)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ExtensionResponse{
		Ignored:        ext.Ignored,
		PrependedRows:  ext.PrependedRows,
		Rebuilt:        ext.Rebuilt,
		PreserveScroll: ext.PreserveScroll,
		Added:          []DayDTO{},
	}
	if !ext.Ignored {
		resp.Start = ext.Period.Start.String()
		resp.End = ext.Period.End.String()
		resp.Added = toDayDTOs(ext.Added, win.Sources(), h.today())
		if req.Scroll != nil && req.NewHeight > 0 {
			top := req.Scroll.Restore(req.NewHeight)
			resp.ScrollTop = &top
		}
	}
	setPartial(&resp.Partial, &resp.FailedSources, ext.Partial)
	writeJSON(w, http.StatusOK, resp)
}

// JumpTimeline replaces the window with a whole month.
// POST /api/timelines/{sid}/jump
func (h *Handler) JumpTimeline(w http.ResponseWriter, r *http.Request) {
	sid, win, ok := h.session(w, r)
	if !ok {
		return
	}

	var req JumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	year, month, err := parseMonth(req.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := win.JumpToMonth(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionDTO(sid, win, snap))
}

// RefreshTimeline re-fetches every source and rebuilds the current range.
// POST /api/timelines/{sid}/refresh
func (h *Handler) RefreshTimeline(w http.ResponseWriter, r *http.Request) {
	sid, win, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := win.Refresh(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionDTO(sid, win, snap))
}

// SelectEmployee points the window at another employee.
// POST /api/timelines/{sid}/select
func (h *Handler) SelectEmployee(w http.ResponseWriter, r *http.Request) {
	sid, win, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", err)
		return
	}
	snap, err := win.SelectEmployee(r.Context(), req.EmployeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionDTO(sid, win, snap))
}

// CloseTimeline drops the session.
// DELETE /api/timelines/{sid}
func (h *Handler) CloseTimeline(w http.ResponseWriter, r *http.Request) {
	if !h.Sessions.Close(chi.URLParam(r, "sid")) {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *timeline.Window, bool) {
	sid := chi.URLParam(r, "sid")
	win, ok := h.Sessions.Get(sid)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return "", nil, false
	}
	return sid, win, true
}

func (h *Handler) sessionDTO(sid string, win *timeline.Window, snap timeline.Snapshot) TimelineSessionDTO {
	dto := TimelineSessionDTO{
		SessionID:      sid,
		PreserveScroll: snap.PreserveScroll,
		TimelineResponse: TimelineResponse{
			EmployeeID:  snap.EmployeeID,
			AnchorIndex: snap.AnchorIndex,
			Days:        toDayDTOs(snap.Records, win.Sources(), h.today()),
		},
	}
	if !snap.Period.Start.IsZero() {
		dto.Start = snap.Period.Start.String()
		dto.End = snap.Period.End.String()
	}
	setPartial(&dto.Partial, &dto.FailedSources, snap.Partial)
	return dto
}

// =============================================================================
// REMARK HANDLERS
// =============================================================================

// GetRemark returns the admin remark of a day; remark is null if none was
// ever written.
// GET /api/employees/{id}/remarks/{date}
func (h *Handler) GetRemark(w http.ResponseWriter, r *http.Request) {
	employeeID, date := chi.URLParam(r, "id"), chi.URLParam(r, "date")

	remark, err := h.annotations.GetRemark(r.Context(), employeeID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	key, _ := core.DateKey(date)
	writeJSON(w, http.StatusOK, RemarkDTO{EmployeeID: employeeID, Date: key, Remark: remark})
}

// PutRemark overwrites the remark. The caller's name becomes the prefix.
// PUT /api/employees/{id}/remarks/{date}
func (h *Handler) PutRemark(w http.ResponseWriter, r *http.Request) {
	employeeID, date := chi.URLParam(r, "id"), chi.URLParam(r, "date")

	var req RemarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	author := ""
	if user := UserFromContext(r.Context()); user != nil {
		author = user.Name
	}

	day, err := h.annotations.SetRemark(r.Context(), employeeID, date, author, req.Remark)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RemarkDTO{EmployeeID: employeeID, Date: day.Date, Remark: day.AdminRemark})
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// CreateTask plans a new task for the employee.
// POST /api/employees/{id}/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required", nil)
		return
	}

	task := core.Task{
		ID:          core.NewID(),
		OwnerID:     chi.URLParam(r, "id"),
		Content:     req.Content,
		PlannedDate: req.PlannedDate,
		EtaMinutes:  req.EtaMinutes,
		FrameworkID: req.FrameworkID,
		CreatedAt:   h.now().UTC(),
	}
	if key, ok := core.DateKey(req.PlannedDate); ok {
		task.PlannedDate = key
	}
	if err := h.Store.SaveTask(r.Context(), task); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTask edits content, date and ETA within TaskEditWindow of creation.
// PUT /api/employees/{id}/tasks/{taskID}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !task.EditableAt(h.now()) {
		writeDomainError(w, core.ErrEditWindowClosed)
		return
	}

	if req.Content != "" {
		task.Content = req.Content
	}
	if req.PlannedDate != "" {
		key, ok := core.DateKey(req.PlannedDate)
		if !ok {
			writeDomainError(w, &core.ValidationError{Field: "planned_date", Value: req.PlannedDate, Err: core.ErrInvalidDate})
			return
		}
		task.PlannedDate = key
	}
	if req.EtaMinutes > 0 {
		task.EtaMinutes = req.EtaMinutes
	}
	if req.FrameworkID != "" {
		task.FrameworkID = req.FrameworkID
	}

	if err := h.Store.SaveTask(r.Context(), *task); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CompleteTask marks the task done (today unless a date is given) or
// reopens it.
// POST /api/employees/{id}/tasks/{taskID}/complete
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}

	var req CompleteTaskRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Reopen {
		task.Reopen()
	} else {
		date := req.CompletedDate
		if date == "" {
			date = h.today().String()
		}
		if err := task.Complete(date); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if err := h.Store.SaveTask(r.Context(), *task); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask removes a task. Entries logged against it stay.
// DELETE /api/employees/{id}/tasks/{taskID}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.ownedTask(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteTask(r.Context(), task.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ownedTask(w http.ResponseWriter, r *http.Request) (*core.Task, bool) {
	task, err := h.Store.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load task", err)
		return nil, false
	}
	if task == nil || task.OwnerID != chi.URLParam(r, "id") {
		writeError(w, http.StatusNotFound, "Task not found", nil)
		return nil, false
	}
	return task, true
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// CreateTimesheetDay opens an empty draft day. A second day for the same
// date is a conflict.
// POST /api/employees/{id}/timesheets
func (h *Handler) CreateTimesheetDay(w http.ResponseWriter, r *http.Request) {
	var req CreateDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day, err := core.NewTimesheetDay(chi.URLParam(r, "id"), req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	saved, err := h.Store.InsertTimesheetDay(r.Context(), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// SubmitTimesheetDay moves a day from draft to submitted. Entries can
// still be appended and edited afterwards.
// POST /api/employees/{id}/timesheets/{date}/submit
func (h *Handler) SubmitTimesheetDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, ok := h.existingDay(w, r)
	if !ok {
		return
	}
	day.Submit()

	saved, err := h.Store.SaveTimesheetDay(ctx, *day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// AddEntry appends an entry, creating the day if needed.
// POST /api/employees/{id}/timesheets/{date}/entries
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employeeID, date := chi.URLParam(r, "id"), chi.URLParam(r, "date")

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day, err := h.loadOrNewDay(ctx, employeeID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := day.AppendEntry(core.TimesheetEntry{
		TaskID:        req.TaskID,
		Description:   req.Description,
		DurationHours: req.DurationHours,
	}); err != nil {
		writeDomainError(w, err)
		return
	}

	saved, err := h.Store.SaveTimesheetDay(ctx, day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// EditEntry replaces description, task link and duration of a live entry.
// PUT /api/employees/{id}/timesheets/{date}/entries/{entryID}
func (h *Handler) EditEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day, ok := h.existingDay(w, r)
	if !ok {
		return
	}
	if err := day.EditEntry(core.TimesheetEntry{
		ID:            chi.URLParam(r, "entryID"),
		TaskID:        req.TaskID,
		Description:   req.Description,
		DurationHours: req.DurationHours,
	}); err != nil {
		writeDomainError(w, err)
		return
	}

	saved, err := h.Store.SaveTimesheetDay(ctx, *day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// DeleteEntry soft-deletes an entry; the row stays for audit.
// DELETE /api/employees/{id}/timesheets/{date}/entries/{entryID}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day, ok := h.existingDay(w, r)
	if !ok {
		return
	}
	if err := day.SoftDeleteEntry(chi.URLParam(r, "entryID")); err != nil {
		writeDomainError(w, err)
		return
	}

	saved, err := h.Store.SaveTimesheetDay(ctx, *day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) existingDay(w http.ResponseWriter, r *http.Request) (*core.TimesheetDay, bool) {
	day, err := h.Store.GetTimesheetDay(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "date"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	if day == nil {
		writeError(w, http.StatusNotFound, "Timesheet day not found", nil)
		return nil, false
	}
	return day, true
}

func (h *Handler) loadOrNewDay(ctx context.Context, employeeID, date string) (core.TimesheetDay, error) {
	day, err := h.Store.GetTimesheetDay(ctx, employeeID, date)
	if err != nil {
		return core.TimesheetDay{}, err
	}
	if day != nil {
		return *day, nil
	}
	return core.NewTimesheetDay(employeeID, date)
}

// =============================================================================
// LEAVE AND CALENDAR HANDLERS
// =============================================================================

// CreateLeave records an absence span. Status defaults to pending.
// POST /api/employees/{id}/leaves
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, ok := core.ParseDate(req.StartDate)
	if !ok {
		writeDomainError(w, &core.ValidationError{Field: "start_date", Value: req.StartDate, Err: core.ErrInvalidDate})
		return
	}
	end, ok := core.ParseDate(req.EndDate)
	if !ok {
		writeDomainError(w, &core.ValidationError{Field: "end_date", Value: req.EndDate, Err: core.ErrInvalidDate})
		return
	}
	if _, err := core.NewPeriod(start, end); err != nil {
		writeDomainError(w, err)
		return
	}

	status := req.Status
	switch status {
	case "":
		status = core.LeavePending
	case core.LeavePending, core.LeaveApproved, core.LeaveRejected:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown leave status %q", status))
		return
	}

	leave := core.Leave{
		ID:         core.NewID(),
		EmployeeID: chi.URLParam(r, "id"),
		StartDate:  start.String(),
		EndDate:    end.String(),
		Status:     status,
		Type:       req.Type,
		Reason:     req.Reason,
	}
	if err := h.Store.SaveLeave(r.Context(), leave); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, leave)
}

// ListCalendarEvents returns the company calendar.
// GET /api/calendar/events
func (h *Handler) ListCalendarEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListCalendarEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calendar events", err)
		return
	}
	if events == nil {
		events = []core.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// CreateCalendarEvent adds an event. Type holiday implies is_holiday.
// POST /api/calendar/events
func (h *Handler) CreateCalendarEvent(w http.ResponseWriter, r *http.Request) {
	var req CalendarEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	key, ok := core.DateKey(req.Date)
	if !ok {
		writeDomainError(w, &core.ValidationError{Field: "date", Value: req.Date, Err: core.ErrInvalidDate})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required", nil)
		return
	}

	event := core.CalendarEvent{
		ID:        core.NewID(),
		Date:      key,
		Title:     req.Title,
		Type:      req.Type,
		IsHoliday: req.IsHoliday || req.Type == core.EventHoliday,
	}
	if event.Type == "" {
		event.Type = core.EventOther
		if event.IsHoliday {
			event.Type = core.EventHoliday
		}
	}
	if err := h.Store.SaveCalendarEvent(r.Context(), event); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// =============================================================================
// HELPERS
// =============================================================================

func toDayDTOs(records []reconcile.DayRecord, src reconcile.Sources, today core.TimePoint) []DayDTO {
	idx := reconcile.NewEntryIndex(src.Timesheets)
	days := make([]DayDTO, len(records))
	for i, rec := range records {
		tasks := make([]reconcile.TaskReconciliation, len(rec.Tasks))
		for j, t := range rec.Tasks {
			tasks[j] = idx.Reconcile(t, today)
		}
		days[i] = DayDTO{DayRecord: rec, Tasks: tasks}
	}
	return days
}

func anchorOffset(opts timeline.Options) int {
	if opts.AnchorOffsetDays == 0 {
		return timeline.DefaultOptions().AnchorOffsetDays
	}
	return opts.AnchorOffsetDays
}

func anchorIndex(period core.Period, anchor core.TimePoint) int {
	if !period.Contains(anchor) {
		return -1
	}
	return core.DaysBetween(period.Start, anchor)
}

func setPartial(partial *bool, failed *[]timeline.SourceName, se *timeline.SourceError) {
	if se == nil {
		return
	}
	*partial = true
	*failed = se.Sources()
}

func sourceError(err error) *timeline.SourceError {
	var se *timeline.SourceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// parseMonth accepts "YYYY-MM".
func parseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, &core.ValidationError{Field: "month", Value: s, Err: core.ErrInvalidDate}
	}
	return t.Year(), t.Month(), nil
}

// decodeOptional decodes a JSON body that may be empty.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps core errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case core.IsConflict(err), errors.Is(err, timeline.ErrNotInitialized), errors.Is(err, timeline.ErrWindowFull):
		writeError(w, http.StatusConflict, "Conflict", err)
	case core.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

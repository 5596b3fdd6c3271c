/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. DayRecords and tasks
  are wrapped so the response carries the classification and deltas the
  renderer needs, without the renderer recomputing them.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Timeline:
    TimelineResponse, DayDTO, ExtensionResponse, TimelineSessionDTO

  Tasks:
    TaskRequest, CompleteTaskRequest

  Timesheets:
    EntryRequest, RemarkDTO, RemarkRequest

  Leaves and calendar:
    LeaveRequest, CalendarEventRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - reconcile/merger.go: DayRecord
*/
package api

import (
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/reconcile"
	"github.com/warp/worklog-timeline/timeline"
)

// =============================================================================
// TIMELINE
// =============================================================================

// DayDTO is a DayRecord whose tasks carry their reconciliation.
type DayDTO struct {
	reconcile.DayRecord
	Tasks []reconcile.TaskReconciliation `json:"tasks"`
}

// TimelineResponse is a contiguous range of days, oldest first.
type TimelineResponse struct {
	EmployeeID  string   `json:"employee_id"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	AnchorIndex int      `json:"anchor_index"`
	Days        []DayDTO `json:"days"`

	// Partial is set when a source failed; its days are built without it.
	Partial       bool                  `json:"partial"`
	FailedSources []timeline.SourceName `json:"failed_sources,omitempty"`
}

// TimelineSessionDTO is a server-held window.
type TimelineSessionDTO struct {
	SessionID      string `json:"session_id"`
	PreserveScroll bool   `json:"preserve_scroll"`
	TimelineResponse
}

// OpenTimelineRequest opens a window session.
type OpenTimelineRequest struct {
	EmployeeID string `json:"employee_id"`
	// Month ("YYYY-MM") opens on a whole month instead of the default range.
	Month string `json:"month,omitempty"`
}

// ExtendRequest asks for older days. Days 0 uses the configured chunk; at most 366.
// With FirstVisibleRow set the extension only happens near the top.
type ExtendRequest struct {
	Days            int                    `json:"days,omitempty"`
	FirstVisibleRow *int                   `json:"first_visible_row,omitempty"`
	Threshold       int                    `json:"threshold,omitempty"`
	Scroll          *timeline.ScrollAnchor `json:"scroll,omitempty"`
	NewHeight       float64                `json:"new_content_height,omitempty"`
}

// ExtensionResponse lists the newly exposed days, oldest first. When
// Rebuilt is set the client must replace every row, not only prepend.
type ExtensionResponse struct {
	Ignored        bool     `json:"ignored"`
	Start          string   `json:"start,omitempty"`
	End            string   `json:"end,omitempty"`
	PrependedRows  int      `json:"prepended_rows"`
	Rebuilt        bool     `json:"rebuilt"`
	PreserveScroll bool     `json:"preserve_scroll"`
	Added          []DayDTO `json:"added"`
	// ScrollTop is the restored offset when the request carried a ScrollAnchor.
	ScrollTop     *float64              `json:"scroll_top,omitempty"`
	Partial       bool                  `json:"partial"`
	FailedSources []timeline.SourceName `json:"failed_sources,omitempty"`
}

// JumpRequest replaces the window with a month.
type JumpRequest struct {
	Month string `json:"month"`
}

// SelectRequest switches the viewed employee of a session.
type SelectRequest struct {
	EmployeeID string `json:"employee_id"`
}

// =============================================================================
// TASKS AND TIMESHEETS
// =============================================================================

type TaskRequest struct {
	Content     string `json:"content"`
	PlannedDate string `json:"planned_date"`
	EtaMinutes  int    `json:"eta_minutes"`
	FrameworkID string `json:"framework_id,omitempty"`
}

type CompleteTaskRequest struct {
	// CompletedDate defaults to today. Reopen clears completion instead.
	CompletedDate string `json:"completed_date,omitempty"`
	Reopen        bool   `json:"reopen,omitempty"`
}

type EntryRequest struct {
	TaskID        string  `json:"task_id,omitempty"`
	Description   string  `json:"description"`
	DurationHours float64 `json:"duration_hours"`
}

// CreateDayRequest opens an empty draft day.
type CreateDayRequest struct {
	Date string `json:"date"`
}

type RemarkDTO struct {
	EmployeeID string  `json:"employee_id"`
	Date       string  `json:"date"`
	Remark     *string `json:"remark"`
}

type RemarkRequest struct {
	Remark string `json:"remark"`
}

// =============================================================================
// LEAVES AND CALENDAR
// =============================================================================

type LeaveRequest struct {
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Status    core.LeaveStatus `json:"status"`
	Type      string           `json:"type"`
	Reason    string           `json:"reason"`
}

type CalendarEventRequest struct {
	Date      string         `json:"date"`
	Title     string         `json:"title"`
	Type      core.EventType `json:"type"`
	IsHoliday bool           `json:"is_holiday"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

package timeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/reconcile"
)

// =============================================================================
// WINDOW MANAGER
// =============================================================================

// ErrNotInitialized is returned when extending a window that has no range yet.
var ErrNotInitialized = errors.New("window not initialized")

// ErrWindowFull is returned when the window already spans MaxDays.
var ErrWindowFull = errors.New("window at maximum length")

// Options size the window. Zero values fall back to DefaultOptions.
type Options struct {
	// InitialDays is how many days Initialize shows, ending at the anchor.
	InitialDays int
	// ChunkDays is how far ExtendBackward reaches when called with 0.
	ChunkDays int
	// MaxDays caps the window length; extensions are clamped to it.
	MaxDays int
	// AnchorOffsetDays places the anchor relative to today; -1 is yesterday.
	AnchorOffsetDays int
	Now              func() time.Time
}

func DefaultOptions() Options {
	return Options{InitialDays: 14, ChunkDays: 14, MaxDays: 366, AnchorOffsetDays: -1, Now: time.Now}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.InitialDays <= 0 {
		o.InitialDays = def.InitialDays
	}
	if o.ChunkDays <= 0 {
		o.ChunkDays = def.ChunkDays
	}
	if o.MaxDays <= 0 {
		o.MaxDays = def.MaxDays
	}
	if o.InitialDays > o.MaxDays {
		o.InitialDays = o.MaxDays
	}
	if o.AnchorOffsetDays == 0 {
		o.AnchorOffsetDays = def.AnchorOffsetDays
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	return o
}

// Snapshot is a copy of the window after a reset.
type Snapshot struct {
	EmployeeID string
	Period     core.Period
	Records    []reconcile.DayRecord
	// AnchorIndex is the row of the anchor day, -1 if outside the window.
	AnchorIndex int
	// PreserveScroll is false for every reset; only extensions keep the viewport.
	PreserveScroll bool
	Partial        *SourceError
}

// Extension reports what ExtendBackward did.
type Extension struct {
	// Ignored is set when another extension was still in flight.
	Ignored bool
	Period  core.Period
	// Added are the newly exposed rows, oldest first.
	Added         []reconcile.DayRecord
	PrependedRows int
	// Rebuilt is set when the sources changed and every row was re-merged.
	Rebuilt        bool
	PreserveScroll bool
	Partial        *SourceError
}

// Window owns the [Start, End] range for one viewed employee.
//
// Fetches run outside the lock. Every reset bumps a generation counter;
// a fetch that resolves under an older generation is discarded.
type Window struct {
	loader *Loader
	opts   Options
	log    logrus.FieldLogger

	mu         sync.Mutex
	employeeID string
	gen        uint64
	period     core.Period
	records    []reconcile.DayRecord
	sources    reconcile.Sources
	partial    *SourceError
	extending  bool
	// degraded is set while any row was built with a source missing.
	degraded bool
}

func NewWindow(loader *Loader, employeeID string, opts Options, log logrus.FieldLogger) *Window {
	return &Window{
		loader:     loader,
		opts:       opts.withDefaults(),
		log:        log,
		employeeID: employeeID,
	}
}

func (w *Window) today() core.TimePoint { return core.TodayAt(w.opts.Now()) }

// Anchor is the day the viewport opens on, yesterday by default.
func (w *Window) Anchor() core.TimePoint {
	return w.today().AddDays(w.opts.AnchorOffsetDays)
}

// Initialize opens the window on [anchor - InitialDays + 1, anchor].
func (w *Window) Initialize(ctx context.Context) (Snapshot, error) {
	anchor := w.Anchor()
	return w.reset(ctx, core.Period{Start: anchor.AddDays(-(w.opts.InitialDays - 1)), End: anchor})
}

// SelectEmployee switches the viewed employee and reloads the current range.
// Responses still in flight for the previous employee are dropped.
func (w *Window) SelectEmployee(ctx context.Context, employeeID string) (Snapshot, error) {
	w.mu.Lock()
	w.employeeID = employeeID
	period := w.period
	w.mu.Unlock()

	if period.Start.IsZero() {
		return w.Initialize(ctx)
	}
	return w.reset(ctx, period)
}

// JumpToMonth replaces the window with the whole month. It is a hard reset:
// the viewport is not preserved.
func (w *Window) JumpToMonth(ctx context.Context, year int, month time.Month) (Snapshot, error) {
	return w.reset(ctx, core.MonthPeriod(year, month))
}

// Refresh re-fetches all sources and rebuilds the current range.
func (w *Window) Refresh(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	period := w.period
	w.mu.Unlock()

	if period.Start.IsZero() {
		return w.Initialize(ctx)
	}
	return w.reset(ctx, period)
}

func (w *Window) reset(ctx context.Context, period core.Period) (Snapshot, error) {
	w.mu.Lock()
	w.gen++
	gen, employeeID := w.gen, w.employeeID
	w.extending = false
	w.mu.Unlock()

	src, err := w.loader.Load(ctx, employeeID)
	partial := asSourceError(err)

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.gen {
		w.log.WithField("employee_id", employeeID).Debug("discarding stale window load")
		return Snapshot{}, core.ErrStaleSelection
	}

	w.period = period
	w.sources = src
	w.partial = partial
	w.degraded = partial != nil
	w.records = reconcile.BuildRange(period, src, w.today())

	w.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"period":      period.String(),
		"rows":        len(w.records),
	}).Debug("window rebuilt")

	return w.snapshotLocked(), nil
}

// ExtendBackward prepends days (ChunkDays when days <= 0) before Start,
// clamped so the window never exceeds MaxDays.
//
// At most one extension is in flight; a second call made before the first
// resolves is ignored. Only the newly exposed dates are merged unless the
// refetched sources differ from the ones the window was built from, or some
// rows were built while a source was failing. A failed source leaves the
// window degraded until a complete load rebuilds every row.
func (w *Window) ExtendBackward(ctx context.Context, days int) (Extension, error) {
	if days <= 0 {
		days = w.opts.ChunkDays
	}

	w.mu.Lock()
	if w.period.Start.IsZero() {
		w.mu.Unlock()
		return Extension{}, ErrNotInitialized
	}
	if w.extending {
		w.mu.Unlock()
		w.log.Debug("extension already in flight, ignoring")
		return Extension{Ignored: true}, nil
	}
	room := w.opts.MaxDays - w.period.Len()
	if room <= 0 {
		w.mu.Unlock()
		return Extension{}, ErrWindowFull
	}
	if days > room {
		days = room
	}
	w.extending = true
	gen, employeeID := w.gen, w.employeeID
	exposed := core.Period{Start: w.period.Start.AddDays(-days), End: w.period.Start.AddDays(-1)}
	previous := w.sources
	w.mu.Unlock()

	src, err := w.loader.Load(ctx, employeeID)
	partial := asSourceError(err)

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.gen {
		return Extension{}, core.ErrStaleSelection
	}
	w.extending = false

	today := w.today()
	full := core.Period{Start: exposed.Start, End: w.period.End}
	ext := Extension{
		Period:         full,
		PrependedRows:  exposed.Len(),
		PreserveScroll: true,
		Partial:        partial,
	}

	if partial == nil && (w.degraded || !reflect.DeepEqual(previous, src)) {
		w.sources = src
		w.partial = nil
		w.degraded = false
		w.records = reconcile.BuildRange(full, src, today)
		ext.Added = append([]reconcile.DayRecord(nil), w.records[:exposed.Len()]...)
		ext.Rebuilt = true
	} else {
		if partial != nil {
			w.partial = partial
			w.degraded = true
		}
		added := reconcile.BuildRange(exposed, src, today)
		records := make([]reconcile.DayRecord, 0, len(added)+len(w.records))
		records = append(records, added...)
		w.records = append(records, w.records...)
		ext.Added = added
	}
	w.period = full

	w.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"period":      full.String(),
		"prepended":   ext.PrependedRows,
		"rebuilt":     ext.Rebuilt,
	}).Debug("window extended")

	return ext, nil
}

// MaybeExtend extends when the sentinel says the top row is close.
// extended is false when the sentinel did not fire or the call was ignored.
func (w *Window) MaybeExtend(ctx context.Context, firstVisibleRow int, s Sentinel) (ext Extension, extended bool, err error) {
	if !s.NearTop(firstVisibleRow) {
		return Extension{}, false, nil
	}
	ext, err = w.ExtendBackward(ctx, 0)
	return ext, err == nil && !ext.Ignored, err
}

// Snapshot returns a copy of the current state.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Sources returns the collections the window was last built from.
func (w *Window) Sources() reconcile.Sources {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sources
}

func (w *Window) EmployeeID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.employeeID
}

func (w *Window) snapshotLocked() Snapshot {
	anchor := w.Anchor()
	anchorIndex := -1
	if w.period.Contains(anchor) {
		anchorIndex = core.DaysBetween(w.period.Start, anchor)
	}
	return Snapshot{
		EmployeeID:  w.employeeID,
		Period:      w.period,
		Records:     append([]reconcile.DayRecord(nil), w.records...),
		AnchorIndex: anchorIndex,
		Partial:     w.partial,
	}
}

func asSourceError(err error) *SourceError {
	var se *SourceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

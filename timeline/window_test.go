package timeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/worklog-timeline/core"
	"github.com/warp/worklog-timeline/reconcile"
	"github.com/warp/worklog-timeline/timeline"
)

func newTestWindow(t *testing.T, src *gatedSources, employeeID string) *timeline.Window {
	t.Helper()
	opts := timeline.Options{InitialDays: 7, ChunkDays: 14, AnchorOffsetDays: -1, Now: fixedNow}
	return timeline.NewWindow(timeline.NewLoader(src, quietLogger()), employeeID, opts, quietLogger())
}

func seedTask(t *testing.T, src *gatedSources, id, owner, planned string) {
	t.Helper()
	require.NoError(t, src.SaveTask(context.Background(), core.Task{
		ID: id, OwnerID: owner, Content: "task " + id, PlannedDate: planned, EtaMinutes: 60,
		CreatedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}))
}

// =============================================================================
// LOADER
// =============================================================================

func TestLoader_AllSourcesSettled(t *testing.T) {
	src := newGatedSources()
	seedTask(t, src, "t1", "emp-1", "2024-01-16")
	require.NoError(t, src.SaveCalendarEvent(context.Background(), core.CalendarEvent{ID: "h1", Date: "2024-01-15", Title: "Holiday", IsHoliday: true}))

	out, err := timeline.NewLoader(src, quietLogger()).Load(context.Background(), "emp-1")

	require.NoError(t, err)
	assert.Len(t, out.Tasks, 1)
	assert.Len(t, out.Events, 1)
}

func TestLoader_FailedSourceIsEmpty_AndRetryable(t *testing.T) {
	src := newGatedSources()
	seedTask(t, src, "t1", "emp-1", "2024-01-16")
	src.failLeaves = errors.New("leave service down")
	src.failEvents = errors.New("calendar timeout")

	out, err := timeline.NewLoader(src, quietLogger()).Load(context.Background(), "emp-1")

	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	var se *timeline.SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []timeline.SourceName{timeline.SourceLeaves, timeline.SourceCalendar}, se.Sources())
	assert.Len(t, out.Tasks, 1, "healthy sources still load")
	assert.Nil(t, out.Leaves)
	assert.Nil(t, out.Events)
}

// =============================================================================
// INITIALIZE / EXTEND / JUMP
// =============================================================================

func TestWindow_Initialize_AnchorsAtYesterday(t *testing.T) {
	src := newGatedSources()
	w := newTestWindow(t, src, "emp-1")

	snap, err := w.Initialize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", snap.Period.Start.String())
	assert.Equal(t, "2024-01-16", snap.Period.End.String())
	require.Len(t, snap.Records, 7)
	assert.Equal(t, 6, snap.AnchorIndex)
	assert.Equal(t, "2024-01-16", snap.Records[snap.AnchorIndex].Date)
	assert.Nil(t, snap.Partial)
}

func TestWindow_ExtendBackward_PrependsChunk(t *testing.T) {
	src := newGatedSources()
	seedTask(t, src, "t1", "emp-1", "2024-01-02")
	w := newTestWindow(t, src, "emp-1")
	_, err := w.Initialize(context.Background())
	require.NoError(t, err)

	ext, err := w.ExtendBackward(context.Background(), 0)

	require.NoError(t, err)
	assert.False(t, ext.Ignored)
	assert.False(t, ext.Rebuilt)
	assert.True(t, ext.PreserveScroll)
	assert.Equal(t, 14, ext.PrependedRows)
	require.Len(t, ext.Added, 14)
	assert.Equal(t, "2023-12-27", ext.Added[0].Date)
	assert.Equal(t, "2024-01-09", ext.Added[13].Date)

	snap := w.Snapshot()
	require.Len(t, snap.Records, 21)
	for i, r := range snap.Records {
		assert.Equal(t, snap.Period.Start.AddDays(i).String(), r.Date)
	}
	assert.Equal(t, 20, snap.AnchorIndex)

	jan2 := snap.Records[core.DaysBetween(snap.Period.Start, core.NewTimePoint(2024, 1, 2))]
	require.Len(t, jan2.Tasks, 1)
	assert.Equal(t, "t1", jan2.Tasks[0].ID)
}

func TestWindow_ExtendBackward_ConcurrentCallsExtendOnce(t *testing.T) {
	// GIVEN: an extension stuck waiting on its fetch
	// WHEN: a second extension is requested before the first resolves
	// THEN: the second is ignored and the range grows by one chunk only
	src := newGatedSources()
	w := newTestWindow(t, src, "emp-1")
	_, err := w.Initialize(context.Background())
	require.NoError(t, err)

	entered, release := src.block("emp-1")
	type result struct {
		ext timeline.Extension
		err error
	}
	first := make(chan result, 1)
	go func() {
		ext, err := w.ExtendBackward(context.Background(), 0)
		first <- result{ext, err}
	}()
	<-entered

	second, err := w.ExtendBackward(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, second.Ignored)

	release()
	got := <-first
	require.NoError(t, got.err)
	assert.False(t, got.ext.Ignored)

	snap := w.Snapshot()
	assert.Len(t, snap.Records, 7+14)
	assert.Equal(t, "2023-12-27", snap.Period.Start.String())
}

func TestWindow_ExtendBackward_SourceChange_RebuildsAll(t *testing.T) {
	src := newGatedSources()
	w := newTestWindow(t, src, "emp-1")
	_, err := w.Initialize(context.Background())
	require.NoError(t, err)

	seedTask(t, src, "t-new", "emp-1", "2024-01-16")
	ext, err := w.ExtendBackward(context.Background(), 3)

	require.NoError(t, err)
	assert.True(t, ext.Rebuilt)
	assert.Len(t, ext.Added, 3)
	snap := w.Snapshot()
	require.Len(t, snap.Records, 10)
	last := snap.Records[len(snap.Records)-1]
	require.Len(t, last.Tasks, 1, "existing row picks up the new task")
}

func TestWindow_ExtendBackward_NotInitialized(t *testing.T) {
	w := newTestWindow(t, newGatedSources(), "emp-1")

	_, err := w.ExtendBackward(context.Background(), 0)

	assert.ErrorIs(t, err, timeline.ErrNotInitialized)
}

func TestWindow_JumpToMonth_HardReset(t *testing.T) {
	src := newGatedSources()
	w := newTestWindow(t, src, "emp-1")
	_, err := w.Initialize(context.Background())
	require.NoError(t, err)

	snap, err := w.JumpToMonth(context.Background(), 2024, time.February)

	require.NoError(t, err)
	assert.False(t, snap.PreserveScroll)
	assert.Equal(t, "2024-02-01", snap.Period.Start.String())
	assert.Equal(t, "2024-02-29", snap.Period.End.String())
	assert.Len(t, snap.Records, 29)
	assert.Equal(t, -1, snap.AnchorIndex)
}

func TestWindow_PartialLoad_StillBuilds(t *testing.T) {
	src := newGatedSources()
	seedTask(t, src, "t1", "emp-1", "2024-01-16")
	src.failEvents = errors.New("calendar down")
	w := newTestWindow(t, src, "emp-1")

	snap, err := w.Initialize(context.Background())

	require.NoError(t, err)
	require.NotNil(t, snap.Partial)
	assert.Equal(t, []timeline.SourceName{timeline.SourceCalendar}, snap.Partial.Sources())
	require.Len(t, snap.Records, 7)
	assert.Len(t, snap.Records[6].Tasks, 1)

	src.mu.Lock()
	src.failEvents = nil
	src.mu.Unlock()
	snap, err = w.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Partial)
}

func TestWindow_ExtendBackward_FailedSourceHealsOnNextCompleteLoad(t *testing.T) {
	// GIVEN: a healthy window and a holiday on 2024-01-08, just before it
	// WHEN: the calendar fails while extending over that date, then recovers
	// THEN: the window reports the failure, and the next extension rebuilds
	//       every row so the holiday shows again
	ctx := context.Background()
	src := newGatedSources()
	require.NoError(t, src.SaveCalendarEvent(ctx, core.CalendarEvent{ID: "h", Date: "2024-01-08", Title: "Founders Day", IsHoliday: true}))
	w := newTestWindow(t, src, "emp-1")
	_, err := w.Initialize(ctx)
	require.NoError(t, err)

	src.mu.Lock()
	src.failEvents = errors.New("calendar timeout")
	src.mu.Unlock()

	ext, err := w.ExtendBackward(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, ext.Partial)
	assert.False(t, ext.Rebuilt)
	snap := w.Snapshot()
	require.NotNil(t, snap.Partial, "failure stays visible on the window")
	assert.Equal(t, []timeline.SourceName{timeline.SourceCalendar}, snap.Partial.Sources())
	assert.Equal(t, "2024-01-08", snap.Records[1].Date)
	assert.Equal(t, reconcile.KindWorking, snap.Records[1].Kind)

	src.mu.Lock()
	src.failEvents = nil
	src.mu.Unlock()

	ext, err = w.ExtendBackward(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ext.Rebuilt)
	assert.Nil(t, ext.Partial)

	snap = w.Snapshot()
	assert.Nil(t, snap.Partial)
	assert.Equal(t, "2024-01-06", snap.Period.Start.String())
	require.Equal(t, "2024-01-08", snap.Records[2].Date)
	assert.Equal(t, reconcile.KindHoliday, snap.Records[2].Kind)
	assert.Equal(t, "Founders Day", snap.Records[2].HolidayTitle)
}

func TestWindow_ExtendBackward_ClampedToMaxDays(t *testing.T) {
	ctx := context.Background()
	src := newGatedSources()
	opts := timeline.Options{InitialDays: 7, ChunkDays: 14, MaxDays: 10, AnchorOffsetDays: -1, Now: fixedNow}
	w := timeline.NewWindow(timeline.NewLoader(src, quietLogger()), "emp-1", opts, quietLogger())
	_, err := w.Initialize(ctx)
	require.NoError(t, err)

	ext, err := w.ExtendBackward(ctx, 20000)
	require.NoError(t, err)
	assert.Equal(t, 3, ext.PrependedRows)
	assert.Len(t, ext.Added, 3)
	assert.Equal(t, "2024-01-07", ext.Period.Start.String())

	_, err = w.ExtendBackward(ctx, 0)
	assert.ErrorIs(t, err, timeline.ErrWindowFull)
	assert.Len(t, w.Snapshot().Records, 10)
}

func TestWindow_HolidayAndSundayRowsInWindow(t *testing.T) {
	src := newGatedSources()
	require.NoError(t, src.SaveCalendarEvent(context.Background(), core.CalendarEvent{ID: "h", Date: "2024-01-15", Title: "MLK Day", IsHoliday: true}))
	w := newTestWindow(t, src, "emp-1")

	snap, err := w.Initialize(context.Background())

	require.NoError(t, err)
	byDate := map[string]reconcile.DayRecord{}
	for _, r := range snap.Records {
		byDate[r.Date] = r
	}
	assert.Equal(t, reconcile.KindSunday, byDate["2024-01-14"].Kind)
	assert.Equal(t, reconcile.KindHoliday, byDate["2024-01-15"].Kind)
	assert.Equal(t, reconcile.KindWorking, byDate["2024-01-16"].Kind)
}

// =============================================================================
// SELECTION TOKEN
// =============================================================================

func TestWindow_SelectEmployee_DiscardsLateResponse(t *testing.T) {
	// GIVEN: a refresh for emp-1 whose fetch is still pending
	// WHEN: the viewer switches to emp-2 and emp-1's response arrives later
	// THEN: emp-1's response is dropped and the window shows emp-2
	src := newGatedSources()
	seedTask(t, src, "t1", "emp-1", "2024-01-16")
	seedTask(t, src, "t2", "emp-2", "2024-01-16")
	w := newTestWindow(t, src, "emp-1")
	_, err := w.Initialize(context.Background())
	require.NoError(t, err)

	entered, release := src.block("emp-1")
	stale := make(chan error, 1)
	go func() {
		_, err := w.Refresh(context.Background())
		stale <- err
	}()
	<-entered

	snap, err := w.SelectEmployee(context.Background(), "emp-2")
	require.NoError(t, err)
	assert.Equal(t, "emp-2", snap.EmployeeID)

	release()
	assert.ErrorIs(t, <-stale, core.ErrStaleSelection)

	final := w.Snapshot()
	assert.Equal(t, "emp-2", final.EmployeeID)
	require.Len(t, final.Records[6].Tasks, 1)
	assert.Equal(t, "t2", final.Records[6].Tasks[0].ID)
}

// =============================================================================
// SCROLL
// =============================================================================

func TestScrollAnchor_RestoreKeepsContentStationary(t *testing.T) {
	anchor := timeline.ScrollAnchor{ContentHeight: 1000, ScrollTop: 40}

	assert.Equal(t, 640.0, anchor.Restore(1600))
	assert.Equal(t, 40.0, anchor.Restore(1000))
}

func TestWindow_MaybeExtend_OnlyNearTop(t *testing.T) {
	src := newGatedSources()
	w := newTestWindow(t, src, "emp-1")
	_, err := w.Initialize(context.Background())
	require.NoError(t, err)
	sentinel := timeline.Sentinel{Threshold: 2}

	_, extended, err := w.MaybeExtend(context.Background(), 5, sentinel)
	require.NoError(t, err)
	assert.False(t, extended)
	assert.Len(t, w.Snapshot().Records, 7)

	ext, extended, err := w.MaybeExtend(context.Background(), 1, sentinel)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, 14, ext.PrependedRows)
}

package reconcile

import (
	"strings"

	"github.com/warp/worklog-timeline/core"
)

// =============================================================================
// TASK/ENTRY RESOLVER - Two tiers: TaskID, then content
// =============================================================================

type Match string

const (
	MatchByID      Match = "id"
	MatchByContent Match = "content"
	MatchAmbiguous Match = "ambiguous"
	MatchNone      Match = "none"
)

// Resolution links an entry to the task it was logged against.
// Task is set only for MatchByID and MatchByContent. For MatchAmbiguous
// every candidate is listed and none is chosen.
type Resolution struct {
	Match      Match       `json:"match"`
	Task       *core.Task  `json:"task,omitempty"`
	Candidates []core.Task `json:"candidates,omitempty"`
}

// Confident reports whether the link can be used without review.
func (r Resolution) Confident() bool {
	return r.Match == MatchByID || r.Match == MatchByContent
}

// Resolver links legacy entries that lack a TaskID by description.
type Resolver struct {
	byID      map[string]core.Task
	byContent map[string][]core.Task
}

func NewResolver(tasks []core.Task) *Resolver {
	r := &Resolver{
		byID:      make(map[string]core.Task, len(tasks)),
		byContent: make(map[string][]core.Task),
	}
	for _, t := range tasks {
		r.byID[t.ID] = t
		if key := normalizeContent(t.Content); key != "" {
			r.byContent[key] = append(r.byContent[key], t)
		}
	}
	return r
}

// Resolve tries the TaskID first. A dangling TaskID (task since deleted)
// falls through to the content tier.
func (r *Resolver) Resolve(e core.TimesheetEntry) Resolution {
	if e.TaskID != "" {
		if t, ok := r.byID[e.TaskID]; ok {
			return Resolution{Match: MatchByID, Task: &t}
		}
	}

	candidates := r.byContent[normalizeContent(e.Description)]
	switch len(candidates) {
	case 0:
		return Resolution{Match: MatchNone}
	case 1:
		t := candidates[0]
		return Resolution{Match: MatchByContent, Task: &t}
	default:
		list := make([]core.Task, len(candidates))
		copy(list, candidates)
		return Resolution{Match: MatchAmbiguous, Candidates: list}
	}
}

func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

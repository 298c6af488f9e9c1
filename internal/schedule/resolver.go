package schedule

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"confsched/internal/model"
)

// Scope selects which items take part in conflict detection.
type Scope string

const (
	// ScopeAll lets every item participate.
	ScopeAll Scope = "all"

	// ScopeScheduledFilter drops sessions the user has not scheduled before
	// resolving. Non-session blocks are kept and participate.
	ScopeScheduledFilter Scope = "scheduled-filter"

	// ScopeScheduledAware keeps every item but only scheduled sessions
	// participate. Other items are ordered and never flagged.
	ScopeScheduledAware Scope = "scheduled-aware"
)

// DefaultScope matches how the mobile client only compared sessions the
// user had added.
const DefaultScope = ScopeScheduledAware

// ParseScope parses a config value. Empty means DefaultScope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultScope, nil
	case ScopeAll:
		return ScopeAll, nil
	case ScopeScheduledFilter:
		return ScopeScheduledFilter, nil
	case ScopeScheduledAware:
		return ScopeScheduledAware, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownScope, s)
}

// Options tune Resolve. The zero value resolves with ScopeAll and strict
// overlap. Any other Scope outside the three constants is rejected.
type Options struct {
	Scope Scope

	// AllowedOverlap is how far an item may start before the running end of
	// the previous run without being flagged.
	AllowedOverlap time.Duration
}

func (o Options) validate() error {
	switch o.Scope {
	case "", ScopeAll, ScopeScheduledFilter, ScopeScheduledAware:
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownScope, string(o.Scope))
}

func (o Options) participates(it model.Item) bool {
	if o.Scope == ScopeScheduledAware {
		return it.Type == model.TypeSession && it.InSchedule
	}
	return true
}

// FilterScheduled returns the items that survive ScopeScheduledFilter.
func FilterScheduled(items []model.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.Type == model.TypeSession && !it.InSchedule {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Resolve validates items, orders them by start time and annotates
// conflicts. The input slice is not modified; the result holds copies that
// differ from the input only in Flags.
//
// Items are walked in start order keeping the maximum end of the current
// overlapping run. A participating item that starts before that end is
// flagged FlagConflictsWithPrevious and extends the run; otherwise it opens
// a new run. The item holding the run's maximum end is flagged
// FlagConflictsWithNext whenever a later item conflicts with it.
func Resolve(items []model.Item, opts Options) ([]model.Item, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := Validate(items); err != nil {
		return nil, err
	}

	var out []model.Item
	if opts.Scope == ScopeScheduledFilter {
		out = FilterScheduled(items)
	} else {
		out = slices.Clone(items)
	}
	if len(out) == 0 {
		return []model.Item{}, nil
	}

	for i := range out {
		out[i].Flags &^= model.FlagConflicts
	}

	slices.SortStableFunc(out, func(a, b model.Item) int {
		return a.Start.Compare(b.Start)
	})

	anchor := -1
	var runEnd time.Time
	for i := range out {
		if !opts.participates(out[i]) {
			continue
		}
		if anchor >= 0 && out[i].Start.Add(opts.AllowedOverlap).Before(runEnd) {
			out[i].Flags |= model.FlagConflictsWithPrevious
			out[anchor].Flags |= model.FlagConflictsWithNext
			if out[i].End.After(runEnd) {
				runEnd = out[i].End
				anchor = i
			}
			continue
		}
		anchor = i
		runEnd = out[i].End
	}

	return out, nil
}

// Conflicting returns, for each item flagged FlagConflictsWithPrevious, the
// pair (index of the item placed before it, its own index).
func Conflicting(resolved []model.Item) [][2]int {
	var pairs [][2]int
	for i := 1; i < len(resolved); i++ {
		if resolved[i].Flags.Has(model.FlagConflictsWithPrevious) {
			pairs = append(pairs, [2]int{i - 1, i})
		}
	}
	return pairs
}

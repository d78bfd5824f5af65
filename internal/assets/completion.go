package assets

import "context"

// Tracker derives progress from a store's current state. It keeps no state of its own.
type Tracker struct {
	registry *Registry
	store    Store
}

// NewTracker binds a tracker to one store.
func NewTracker(reg *Registry, store Store) *Tracker {
	return &Tracker{registry: reg, store: store}
}

// Counts resolves every registered slot and reports how many are Resolved.
func (t *Tracker) Counts(ctx context.Context) (resolved, total int) {
	return t.count(ctx, t.registry.slots)
}

// PageCounts is Counts restricted to the slots placed on page.
func (t *Tracker) PageCounts(ctx context.Context, page string) (resolved, total int) {
	return t.count(ctx, t.registry.SlotsForPage(page))
}

// Progress returns resolved/total in [0,1].
func (t *Tracker) Progress(ctx context.Context) float64 {
	return Ratio(t.Counts(ctx))
}

// IsComplete reports whether every registered slot is Resolved.
func (t *Tracker) IsComplete(ctx context.Context) bool {
	resolved, total := t.Counts(ctx)
	return resolved == total
}

func (t *Tracker) count(ctx context.Context, slots []Slot) (resolved, total int) {
	for _, slot := range slots {
		total++
		state, err := t.store.Resolve(ctx, slot.Key)
		if err != nil {
			continue
		}
		if state.IsResolved() {
			resolved++
		}
	}
	return resolved, total
}

// Ratio turns a resolved/total pair into a fraction; an empty set counts as zero.
func Ratio(resolved, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(resolved) / float64(total)
}

package appointment

import (
	"slices"

	"github.com/google/uuid"
)

type mergeEntry struct {
	slot  Slot
	parts []Slot
}

// Merge combines exactly contiguous slots into single longer slots, left to
// right. A merged slot is a new value (ID uuid.Nil) whose price is the sum of
// its parts. absorbed lists every input consumed by a merge, once.
func Merge(slots []Slot) (merged, absorbed []Slot) {
	if len(slots) < 2 {
		return slices.Clone(slots), nil
	}

	sorted := sortedByStart(slots)

	stack := []mergeEntry{{slot: sorted[0], parts: []Slot{sorted[0]}}}
	for _, app := range sorted[1:] {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !top.slot.End().Equal(app.Start) {
			stack = append(stack, top, mergeEntry{slot: app, parts: []Slot{app}})
			continue
		}

		combined := Slot{
			PractitionerID:    app.PractitionerID,
			Start:             top.slot.Start,
			Length:            top.slot.Length + app.Length,
			Price:             top.slot.Price.Add(app.Price),
			PractitionerNotes: top.slot.PractitionerNotes,
		}
		parts := append(append([]Slot(nil), top.parts...), app)
		stack = append(stack, mergeEntry{slot: combined, parts: parts})
	}

	merged = make([]Slot, 0, len(stack))
	for _, e := range stack {
		merged = append(merged, e.slot)
		if len(e.parts) > 1 {
			absorbed = append(absorbed, e.parts...)
		}
	}

	return merged, dedupe(absorbed)
}

func dedupe(slots []Slot) []Slot {
	if len(slots) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(slots))
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.IsPersisted() {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
		}
		out = append(out, s)
	}
	return out
}

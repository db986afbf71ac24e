package appointment

import (
	"fmt"
	"slices"
	"time"
)

// Overlap is a pair of slots, adjacent in start order, whose ranges intersect.
type Overlap struct {
	First  Slot
	Second Slot
}

func (o Overlap) String() string {
	return fmt.Sprintf("%s and %s", o.First, o.Second)
}

// FindOverlaps reports overlapping pairs among slots. Only neighbours in start
// order are compared, and only when the later slot ends on the same calendar
// day the earlier one starts.
func FindOverlaps(slots []Slot) []Overlap {
	if len(slots) < 2 {
		return nil
	}

	sorted := sortedByStart(slots)

	var overlaps []Overlap
	for i := 0; i < len(sorted)-1; i++ {
		cur, next := sorted[i], sorted[i+1]
		if !sameDay(cur.Start, next.End()) {
			continue
		}
		if intersects(cur, next) {
			overlaps = append(overlaps, Overlap{First: cur, Second: next})
		}
	}

	return overlaps
}

func intersects(cur, next Slot) bool {
	curStart, curEnd := cur.Start, cur.End()
	nextStart, nextEnd := next.Start, next.End()

	switch {
	case nextStart.Before(curEnd) && !curEnd.After(nextEnd):
		return true
	case curStart.Before(nextEnd) && nextEnd.Before(curEnd):
		return true
	case !nextStart.Before(curStart) && nextEnd.Before(curEnd):
		return true
	case !curStart.Before(nextStart) && curEnd.Before(nextEnd):
		return true
	case curStart.Equal(nextStart):
		return true
	}
	return false
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sortedByStart(slots []Slot) []Slot {
	sorted := slices.Clone(slots)
	slices.SortStableFunc(sorted, func(a, b Slot) int {
		return a.Start.Compare(b.Start)
	})
	return sorted
}

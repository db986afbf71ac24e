package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func slotAt(start time.Time, length time.Duration) Slot {
	return Slot{ID: uuid.New(), Start: start, Length: length, Price: DefaultSlotPrice}
}

func TestFindOverlaps(t *testing.T) {
	base := time.Date(2018, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		slots []Slot
		want  int
	}{
		{
			name: "identical slots",
			slots: []Slot{
				slotAt(base, time.Hour),
				slotAt(base, time.Hour),
				slotAt(base, time.Hour),
				slotAt(base, time.Hour),
			},
			want: 3,
		},
		{
			name: "staggered slots",
			slots: []Slot{
				slotAt(base, time.Hour),
				slotAt(base.Add(15*time.Minute), time.Hour),
				slotAt(base.Add(30*time.Minute), time.Hour),
				slotAt(base.Add(45*time.Minute), time.Hour),
			},
			want: 3,
		},
		{
			name: "back to back with one minute overlap at the end",
			slots: []Slot{
				slotAt(base, time.Hour),
				slotAt(base.Add(time.Hour), time.Hour),
				slotAt(base.Add(time.Hour+59*time.Minute), time.Hour),
			},
			want: 1,
		},
		{
			name: "touching slots",
			slots: []Slot{
				slotAt(base, 30*time.Minute),
				slotAt(base.Add(30*time.Minute), 30*time.Minute),
				slotAt(base.Add(time.Hour), 30*time.Minute),
			},
			want: 0,
		},
		{
			name: "disjoint slots",
			slots: []Slot{
				slotAt(base, time.Hour),
				slotAt(base.Add(2*time.Hour), time.Hour),
				slotAt(base.Add(4*time.Hour), time.Hour),
			},
			want: 0,
		},
		{
			name: "same start different lengths",
			slots: []Slot{
				slotAt(base, 30*time.Minute),
				slotAt(base, time.Hour),
				slotAt(base, 90*time.Minute),
				slotAt(base, 2*time.Hour),
			},
			want: 3,
		},
		{
			name: "containment",
			slots: []Slot{
				slotAt(base, 3*time.Hour),
				slotAt(base.Add(time.Hour), time.Hour),
			},
			want: 1,
		},
		{
			name: "identical afternoon pair",
			slots: []Slot{
				slotAt(time.Date(2018, 3, 2, 14, 20, 0, 0, time.UTC), 3*time.Hour),
				slotAt(time.Date(2018, 3, 2, 14, 20, 0, 0, time.UTC), 3*time.Hour),
			},
			want: 1,
		},
		{
			name: "later slot ending on the next day is not compared",
			slots: []Slot{
				slotAt(time.Date(2018, 3, 2, 23, 0, 0, 0, time.UTC), time.Hour),
				slotAt(time.Date(2018, 3, 2, 23, 30, 0, 0, time.UTC), time.Hour),
			},
			want: 0,
		},
		{
			name:  "single slot",
			slots: []Slot{slotAt(base, time.Hour)},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindOverlaps(tt.slots)
			if len(got) != tt.want {
				t.Fatalf("expected %d overlaps, got %d: %v", tt.want, len(got), got)
			}
		})
	}
}

func TestFindOverlapsIgnoresInputOrder(t *testing.T) {
	base := time.Date(2018, 3, 2, 9, 0, 0, 0, time.UTC)
	late := slotAt(base.Add(time.Hour+59*time.Minute), time.Hour)
	mid := slotAt(base.Add(time.Hour), time.Hour)
	early := slotAt(base, time.Hour)

	input := []Slot{late, early, mid}
	got := FindOverlaps(input)

	if len(got) != 1 {
		t.Fatalf("expected 1 overlap, got %d", len(got))
	}
	if got[0].First.ID != mid.ID || got[0].Second.ID != late.ID {
		t.Fatalf("unexpected pair: %v", got[0])
	}
	if input[0].ID != late.ID {
		t.Fatal("input slice was reordered")
	}
}

func TestFindOverlapsUsesStartLocationForDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	// 21:30 UTC is 23:30 local, so the second slot ends on the next local day.
	first := slotAt(time.Date(2018, 3, 2, 21, 0, 0, 0, time.UTC).In(loc), time.Hour)
	second := slotAt(time.Date(2018, 3, 2, 21, 30, 0, 0, time.UTC).In(loc), time.Hour)

	if got := FindOverlaps([]Slot{first, second}); len(got) != 0 {
		t.Fatalf("expected no overlaps across the local day boundary, got %d", len(got))
	}

	first.Start = first.Start.UTC()
	second.Start = second.Start.UTC()
	if got := FindOverlaps([]Slot{first, second}); len(got) != 1 {
		t.Fatalf("expected 1 overlap within the UTC day, got %d", len(got))
	}
}

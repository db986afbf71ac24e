package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		length  time.Duration
		lengths []time.Duration
	}{
		{name: "one and a half hours", length: 90 * time.Minute, lengths: []time.Duration{30 * time.Minute, 30 * time.Minute, 30 * time.Minute}},
		{name: "three hours", length: 3 * time.Hour, lengths: []time.Duration{
			30 * time.Minute, 30 * time.Minute, 30 * time.Minute,
			30 * time.Minute, 30 * time.Minute, 30 * time.Minute,
		}},
		{name: "remainder", length: 70 * time.Minute, lengths: []time.Duration{30 * time.Minute, 30 * time.Minute, 10 * time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patient := uuid.New()
			slot := Slot{
				ID:             uuid.New(),
				PractitionerID: uuid.New(),
				PatientID:      &patient,
				Start:          at(12, 0),
				Length:         tt.length,
				Price:          price("150"),
			}

			parts := Split(slot, DefaultSlotDefaults())

			if len(parts) != len(tt.lengths) {
				t.Fatalf("expected %d parts, got %d", len(tt.lengths), len(parts))
			}
			if parts[0].ID != slot.ID {
				t.Error("first part should keep the original id")
			}

			next := slot.Start
			var total time.Duration
			for i, p := range parts {
				if i > 0 && p.IsPersisted() {
					t.Errorf("part %d should be new", i)
				}
				if !p.Start.Equal(next) {
					t.Errorf("part %d starts at %s, want %s", i, p.Start, next)
				}
				if p.Length != tt.lengths[i] {
					t.Errorf("part %d length %s, want %s", i, p.Length, tt.lengths[i])
				}
				if !p.Price.Equal(DefaultSlotPrice) {
					t.Errorf("part %d price %s, want default", i, p.Price)
				}
				if !p.IsOpen() {
					t.Errorf("part %d should be open", i)
				}
				if p.PractitionerID != slot.PractitionerID {
					t.Errorf("part %d has wrong practitioner", i)
				}
				next = p.End()
				total += p.Length
			}
			if total != slot.Length {
				t.Errorf("length not conserved: %s != %s", total, slot.Length)
			}
		})
	}
}

func TestSplitDefaultLengthIsNoop(t *testing.T) {
	slot := slotAt(at(12, 0), 30*time.Minute)
	slot.Price = price("80")

	parts := Split(slot, DefaultSlotDefaults())

	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0].ID != slot.ID || !parts[0].Price.Equal(price("80")) {
		t.Errorf("slot changed: %s price %s", parts[0], parts[0].Price)
	}
}

func TestSplitUsesConfiguredGrain(t *testing.T) {
	slot := slotAt(at(12, 0), time.Hour)

	parts := Split(slot, SlotDefaults{Length: 15 * time.Minute, Price: price("20")})

	if len(parts) != 4 {
		t.Fatalf("expected 4 parts, got %d", len(parts))
	}
	if !parts[3].Price.Equal(price("20")) {
		t.Errorf("unexpected price %s", parts[3].Price)
	}
}

func TestSplitUndoesMerge(t *testing.T) {
	practitioner := uuid.New()
	var slots []Slot
	for i := 0; i < 4; i++ {
		s := slotAt(at(9, 0).Add(time.Duration(i)*30*time.Minute), 30*time.Minute)
		s.PractitionerID = practitioner
		slots = append(slots, s)
	}

	merged, _ := Merge(slots)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged slot, got %d", len(merged))
	}

	parts := Split(merged[0], DefaultSlotDefaults())
	if len(parts) != len(slots) {
		t.Fatalf("expected %d parts, got %d", len(slots), len(parts))
	}
	for i := range parts {
		if !parts[i].Start.Equal(slots[i].Start) || parts[i].Length != slots[i].Length {
			t.Errorf("part %d is %s, want %s", i, parts[i], slots[i])
		}
	}
}

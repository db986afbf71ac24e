package appointment

import "time"

// Split breaks a (possibly merged) slot back into open slots of the default
// length, each at the default price. The first result keeps the original ID;
// the rest are new. A slot already at the default length is returned as is.
// Total length is conserved: a remainder shorter than the grain becomes a
// final shorter slot.
func Split(slot Slot, defaults SlotDefaults) []Slot {
	grain := defaults.Length
	if grain <= 0 {
		grain = DefaultSlotLength
	}
	if slot.Length <= grain {
		return []Slot{slot}
	}

	first := slot
	first.Length = grain
	first.PatientID = nil
	first.Price = defaults.Price

	count := int(slot.Length / grain)
	out := make([]Slot, 0, count+1)
	out = append(out, first)

	for i := 1; i < count; i++ {
		out = append(out, Slot{
			PractitionerID: slot.PractitionerID,
			Start:          slot.Start.Add(time.Duration(i) * grain),
			Length:         grain,
			Price:          defaults.Price,
		})
	}

	if rem := slot.Length % grain; rem > 0 {
		out = append(out, Slot{
			PractitionerID: slot.PractitionerID,
			Start:          slot.Start.Add(time.Duration(count) * grain),
			Length:         rem,
			Price:          defaults.Price,
		})
	}

	return out
}

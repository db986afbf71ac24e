package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSlotIsLive(t *testing.T) {
	slot := slotAt(at(10, 0), time.Hour)

	tests := []struct {
		now  time.Time
		want bool
	}{
		{now: at(9, 54), want: false},
		{now: at(9, 55), want: true},
		{now: at(10, 30), want: true},
		{now: at(10, 59), want: true},
		{now: at(11, 0), want: false},
	}

	for _, tt := range tests {
		if got := slot.IsLive(tt.now); got != tt.want {
			t.Errorf("IsLive(%s) = %v, want %v", tt.now.Format("15:04"), got, tt.want)
		}
	}
}

func TestSlotBookedBy(t *testing.T) {
	patient := uuid.New()
	slot := slotAt(at(10, 0), time.Hour)

	if !slot.IsOpen() || slot.BookedBy(patient) {
		t.Fatal("new slot should be open")
	}

	slot.PatientID = patientRef(patient)
	if slot.IsOpen() || !slot.BookedBy(patient) || slot.BookedBy(uuid.New()) {
		t.Fatal("slot should be booked by the patient only")
	}
	if !slot.End().Equal(at(11, 0)) {
		t.Errorf("unexpected end %s", slot.End())
	}
}

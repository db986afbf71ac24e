package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

func TestLogNotifier(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := NewLogNotifier(log)
	ctx := context.Background()

	patient := uuid.New()
	booked := testSlot()
	booked.PatientID = &patient

	n.AppointmentsBooked(ctx, []appointment.Slot{booked, booked})
	if len(hook.Entries) != 2 {
		t.Fatalf("expected one entry per slot, got %d", len(hook.Entries))
	}
	if hook.LastEntry().Data["patient_id"] != patient {
		t.Errorf("missing patient id: %v", hook.LastEntry().Data)
	}
	hook.Reset()

	n.AppointmentCancelledByPatient(ctx, booked, true)
	if entry := hook.LastEntry(); entry == nil || entry.Data["under_24h"] != true {
		t.Fatalf("unexpected entry %v", entry)
	}
	hook.Reset()

	n.AppointmentCancelledByPractitioner(ctx, testSlot())
	if len(hook.Entries) != 0 {
		t.Error("open slots have nobody to notify")
	}
	n.AppointmentCancelledByPractitioner(ctx, booked)
	if len(hook.Entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(hook.Entries))
	}
}

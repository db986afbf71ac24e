package notification

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

type recorder struct {
	mu        sync.Mutex
	booked    int
	cancelled []bool
	reminders int
	panicOn   bool
}

func (r *recorder) AppointmentsBooked(ctx context.Context, slots []appointment.Slot) {
	if r.panicOn {
		panic("mail server exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.booked += len(slots)
}

func (r *recorder) AppointmentCancelledByPatient(ctx context.Context, slot appointment.Slot, underDay bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, underDay)
}

func (r *recorder) AppointmentCancelledByPractitioner(ctx context.Context, slot appointment.Slot) {}

func (r *recorder) AppointmentReminder(ctx context.Context, slot appointment.Slot) {
	if _, ok := ctx.Deadline(); !ok {
		panic("reminder delivered without a deadline")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders++
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testSlot() appointment.Slot {
	return appointment.Slot{
		ID:             uuid.New(),
		PractitionerID: uuid.New(),
		Start:          time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Length:         30 * time.Minute,
	}
}

func TestDispatcherDeliversBeforeClose(t *testing.T) {
	next := &recorder{}
	d := NewDispatcher(next, quietLogger(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.AppointmentsBooked(ctx, []appointment.Slot{testSlot(), testSlot()})
	d.AppointmentCancelledByPatient(ctx, testSlot(), true)
	d.AppointmentReminder(ctx, testSlot())
	d.Close()

	if next.booked != 2 {
		t.Errorf("expected 2 booked, got %d", next.booked)
	}
	if len(next.cancelled) != 1 || !next.cancelled[0] {
		t.Errorf("unexpected cancellations %v", next.cancelled)
	}
	if next.reminders != 1 {
		t.Errorf("expected 1 reminder, got %d", next.reminders)
	}
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	next := &recorder{}
	d := NewDispatcher(next, quietLogger(), 0)
	d.Close()

	d.AppointmentsBooked(context.Background(), []appointment.Slot{testSlot()})
	d.Close()

	if next.booked != 0 {
		t.Errorf("expected nothing delivered, got %d", next.booked)
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	next := &recorder{panicOn: true}
	d := NewDispatcher(next, quietLogger(), time.Second)

	d.AppointmentsBooked(context.Background(), []appointment.Slot{testSlot()})
	d.Close()
}

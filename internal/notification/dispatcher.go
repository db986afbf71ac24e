package notification

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

// Dispatcher hands notifications to another Notifier on background goroutines
// so callers never block on delivery. Close waits for in-flight deliveries.
type Dispatcher struct {
	next    appointment.Notifier
	log     *logrus.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(next appointment.Notifier, log *logrus.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{next: next, log: log, timeout: timeout}
}

func (d *Dispatcher) AppointmentsBooked(ctx context.Context, slots []appointment.Slot) {
	d.dispatch("booked", func(ctx context.Context) {
		d.next.AppointmentsBooked(ctx, slots)
	})
}

func (d *Dispatcher) AppointmentCancelledByPatient(ctx context.Context, slot appointment.Slot, underDay bool) {
	d.dispatch("cancelled_by_patient", func(ctx context.Context) {
		d.next.AppointmentCancelledByPatient(ctx, slot, underDay)
	})
}

func (d *Dispatcher) AppointmentCancelledByPractitioner(ctx context.Context, slot appointment.Slot) {
	d.dispatch("cancelled_by_practitioner", func(ctx context.Context) {
		d.next.AppointmentCancelledByPractitioner(ctx, slot)
	})
}

func (d *Dispatcher) AppointmentReminder(ctx context.Context, slot appointment.Slot) {
	d.dispatch("reminder", func(ctx context.Context) {
		d.next.AppointmentReminder(ctx, slot)
	})
}

// dispatch runs fn detached from the request context, which is usually
// cancelled as soon as the response is written.
func (d *Dispatcher) dispatch(kind string, fn func(ctx context.Context)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warnf("notification %s dropped: dispatcher closed", kind)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Errorf("notification %s panicked: %v", kind, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		fn(ctx)
	}()
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

package appointment

import "context"

// Notifier tells patients and practitioners about booking changes. Delivery
// failures are the implementation's concern; the service never waits on them.
type Notifier interface {
	AppointmentsBooked(ctx context.Context, slots []Slot)
	AppointmentCancelledByPatient(ctx context.Context, slot Slot, underDay bool)
	AppointmentCancelledByPractitioner(ctx context.Context, slot Slot)
	AppointmentReminder(ctx context.Context, slot Slot)
}

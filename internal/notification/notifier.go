package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

// LogNotifier records notifications in the log instead of delivering them.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AppointmentsBooked(ctx context.Context, slots []appointment.Slot) {
	for _, slot := range slots {
		n.entry(slot).Info("appointment booked")
	}
}

func (n *LogNotifier) AppointmentCancelledByPatient(ctx context.Context, slot appointment.Slot, underDay bool) {
	n.entry(slot).WithField("under_24h", underDay).Info("appointment cancelled by patient")
}

func (n *LogNotifier) AppointmentCancelledByPractitioner(ctx context.Context, slot appointment.Slot) {
	if slot.IsOpen() {
		return
	}
	n.entry(slot).Info("appointment cancelled by practitioner")
}

func (n *LogNotifier) AppointmentReminder(ctx context.Context, slot appointment.Slot) {
	n.entry(slot).Info("appointment reminder")
}

func (n *LogNotifier) entry(slot appointment.Slot) *logrus.Entry {
	fields := logrus.Fields{
		"slot_id":         slot.ID,
		"practitioner_id": slot.PractitionerID,
		"start":           slot.Start,
		"length":          slot.Length.String(),
	}
	if slot.PatientID != nil {
		fields["patient_id"] = *slot.PatientID
	}
	return n.log.WithFields(fields)
}

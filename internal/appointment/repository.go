package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrSlotUnavailable      = errors.New("slot is no longer available")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	// LockPatient loads the patient and, inside a transaction, holds a row
	// lock on it so bookings for one patient are checked one at a time.
	LockPatient(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Queries
	ListOpenSlots(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Slot, error)
	// ListPatientSlots returns the patient's bookings still running at or after from.
	ListPatientSlots(ctx context.Context, patientID uuid.UUID, from time.Time) ([]Slot, error)
	ListPractitionerSlots(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Slot, error)
	ListBookedSlots(ctx context.Context, from, to time.Time) ([]Slot, error)
	// ListSlotsFor returns every slot of a practitioner, or every booking of a
	// patient, latest start first.
	ListSlotsFor(ctx context.Context, who Party, id uuid.UUID) ([]Slot, error)

	// LockSlots loads the given slots and, inside a transaction, holds row
	// locks on them until the transaction ends. Missing ids are skipped.
	LockSlots(ctx context.Context, ids []uuid.UUID) ([]Slot, error)

	// Writes
	CreateSlot(ctx context.Context, s Slot) (*Slot, error)
	UpdateSlot(ctx context.Context, s Slot) (*Slot, error)
	// BookSlot assigns an open slot to a patient. ErrSlotUnavailable is
	// returned when the slot is missing or already booked.
	BookSlot(ctx context.Context, id, patientID uuid.UUID) (*Slot, error)
	DeleteSlots(ctx context.Context, ids []uuid.UUID) error
	// SetPractitionerNotes and SetPatientNotes only touch the notes columns
	// and only while the slot is still booked by the expected party.
	// ErrSlotUnavailable is returned otherwise.
	SetPractitionerNotes(ctx context.Context, id, practitionerID uuid.UUID, notes, patientNotes string) (*Slot, error)
	SetPatientNotes(ctx context.Context, id, patientID uuid.UUID, notes string) (*Slot, error)
	// ClaimReminder marks the booking as reminded and reports whether this
	// call was the one that marked it.
	ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// WithTx runs fn against a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultSlotLength is the atomic grain merges and splits operate in.
	DefaultSlotLength = 30 * time.Minute

	// liveLead is how long before the start a session can be joined.
	liveLead = 5 * time.Minute
)

// DefaultSlotPrice is the price of one open slot of DefaultSlotLength.
var DefaultSlotPrice = decimal.RequireFromString("50.00")

// SlotDefaults carries the per-slot length and price restored by a split.
type SlotDefaults struct {
	Length time.Duration
	Price  decimal.Decimal
}

func DefaultSlotDefaults() SlotDefaults {
	return SlotDefaults{
		Length: DefaultSlotLength,
		Price:  DefaultSlotPrice,
	}
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Mobile    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Mobile    *string
	Bio       *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is one bookable or booked unit of practitioner time.
// ID is uuid.Nil until the slot is persisted; PatientID is nil while the slot is open.
type Slot struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	PatientID      *uuid.UUID
	Start          time.Time
	Length         time.Duration
	Price          decimal.Decimal

	PractitionerNotes          string
	PatientNotesByPractitioner string
	PatientNotesBeforeMeeting  string

	// RemindedAt is set once the reminder for the current booking went out.
	RemindedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Slot) End() time.Time {
	return s.Start.Add(s.Length)
}

func (s Slot) IsOpen() bool {
	return s.PatientID == nil
}

func (s Slot) IsPersisted() bool {
	return s.ID != uuid.Nil
}

// BookedBy reports whether the slot is booked by the given patient.
func (s Slot) BookedBy(patientID uuid.UUID) bool {
	return s.PatientID != nil && *s.PatientID == patientID
}

// IsLive reports whether the session can be joined: from five minutes
// before the start until the end.
func (s Slot) IsLive(now time.Time) bool {
	return !now.Before(s.Start.Add(-liveLead)) && now.Before(s.End())
}

func (s Slot) String() string {
	return fmt.Sprintf("%s - %s for %s", s.PractitionerID, s.Start.Format("2006-01-02 15:04:05"), s.Length)
}

// Party selects whose appointments are listed.
type Party string

const (
	PartyPatient      Party = "patient"
	PartyPractitioner Party = "practitioner"
)

// Appointments splits a party's slots around now, newest first in both lists.
type Appointments struct {
	Upcoming []Slot
	Past     []Slot
}

type EventLog struct {
	ID        int64
	EventType string
	SlotID    *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// release reopens a booking. Notes and the reminder mark belong to the
// booking, not the slot, so they go with it.
func release(slot Slot) Slot {
	slot.PatientID = nil
	slot.PractitionerNotes = ""
	slot.PatientNotesByPractitioner = ""
	slot.PatientNotesBeforeMeeting = ""
	slot.RemindedAt = nil
	return slot
}

func slotIDs(slots []Slot) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(slots))
	for _, s := range slots {
		if s.IsPersisted() {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func patientRef(id uuid.UUID) *uuid.UUID {
	return &id
}

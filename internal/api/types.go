package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

type DefineSlotRequest struct {
	Start  string `json:"start" validate:"required"`
	Length string `json:"length" validate:"required"`
}

type ReviewRequest struct {
	PatientID      string   `json:"patient_id" validate:"required,uuid"`
	PractitionerID string   `json:"practitioner_id" validate:"required,uuid"`
	AppointmentIDs []string `json:"appointment_ids" validate:"required,min=1,dive,uuid"`
}

type PatientRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
}

type PractitionerNotesRequest struct {
	PractitionerNotes string `json:"practitioner_notes" validate:"max=5000"`
	PatientNotes      string `json:"patient_notes" validate:"max=5000"`
}

type PatientNotesRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	Notes     string `json:"notes" validate:"max=5000"`
}

type SlotResponse struct {
	ID             uuid.UUID  `json:"id"`
	PractitionerID uuid.UUID  `json:"practitioner_id"`
	PatientID      *uuid.UUID `json:"patient_id,omitempty"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	Length         string     `json:"length"`
	Price          string     `json:"price"`
	Live           bool       `json:"live"`
}

func newSlotResponse(s appointment.Slot, now time.Time) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		PractitionerID: s.PractitionerID,
		PatientID:      s.PatientID,
		Start:          s.Start,
		End:            s.End(),
		Length:         appointment.FormatLength(s.Length),
		Price:          s.Price.StringFixed(2),
		Live:           s.IsLive(now),
	}
}

func newSlotResponses(slots []appointment.Slot, now time.Time) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, newSlotResponse(s, now))
	}
	return out
}

// AppointmentResponse is a slot as its patient or practitioner sees it.
// Practitioner notes are only shown to the practitioner.
type AppointmentResponse struct {
	SlotResponse
	PractitionerNotes          string `json:"practitioner_notes,omitempty"`
	PatientNotesByPractitioner string `json:"patient_notes_by_practitioner,omitempty"`
	PatientNotesBeforeMeeting  string `json:"patient_notes_before_meeting,omitempty"`
}

func newAppointmentResponse(s appointment.Slot, who appointment.Party, now time.Time) AppointmentResponse {
	resp := AppointmentResponse{
		SlotResponse:               newSlotResponse(s, now),
		PatientNotesByPractitioner: s.PatientNotesByPractitioner,
		PatientNotesBeforeMeeting:  s.PatientNotesBeforeMeeting,
	}
	if who == appointment.PartyPractitioner {
		resp.PractitionerNotes = s.PractitionerNotes
	}
	return resp
}

func newAppointmentResponses(slots []appointment.Slot, who appointment.Party, now time.Time) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, newAppointmentResponse(s, who, now))
	}
	return out
}

type AppointmentsResponse struct {
	Upcoming []AppointmentResponse `json:"upcoming"`
	Past     []AppointmentResponse `json:"past"`
}

type AvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type BasketResponse struct {
	SessionID      string                   `json:"session_id"`
	PatientID      uuid.UUID                `json:"patient_id"`
	PractitionerID uuid.UUID                `json:"practitioner_id"`
	Bookable       []appointment.BasketItem `json:"bookable_appointments"`
	Absorbed       []appointment.BasketItem `json:"merged_appointments"`
	Total          string                   `json:"total"`
}

func newBasketResponse(sessionID string, b appointment.Basket) BasketResponse {
	total := decimal.Zero
	for _, item := range b.Bookable {
		if p, err := decimal.NewFromString(item.Price); err == nil {
			total = total.Add(p)
		}
	}

	bookable := b.Bookable
	if bookable == nil {
		bookable = []appointment.BasketItem{}
	}
	absorbed := b.Absorbed
	if absorbed == nil {
		absorbed = []appointment.BasketItem{}
	}

	return BasketResponse{
		SessionID:      sessionID,
		PatientID:      b.PatientID,
		PractitionerID: b.PractitionerID,
		Bookable:       bookable,
		Absorbed:       absorbed,
		Total:          total.StringFixed(2),
	}
}

type BookingResponse struct {
	Booked []SlotResponse `json:"booked"`
}

type OverlapPair struct {
	First  SlotResponse `json:"first"`
	Second SlotResponse `json:"second"`
}

type ErrorResponse struct {
	Error    string            `json:"error"`
	Details  string            `json:"details,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Overlaps []OverlapPair     `json:"overlaps,omitempty"`
}

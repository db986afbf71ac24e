package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

// SchedulingService is the part of appointment.Service the HTTP layer uses.
type SchedulingService interface {
	GetValidAppointments(ctx context.Context, date time.Time, practitionerID uuid.UUID) ([]appointment.Slot, error)
	DefineAvailability(ctx context.Context, practitionerID uuid.UUID, start time.Time, length time.Duration) (*appointment.Slot, error)
	DeletePractitionerSlot(ctx context.Context, slotID, practitionerID uuid.UUID) error
	ReviewSelection(ctx context.Context, sessionID string, patientID, practitionerID uuid.UUID, ids []uuid.UUID) (*appointment.Review, error)
	GetBasket(ctx context.Context, sessionID string) (*appointment.Basket, error)
	RemoveBasketItem(ctx context.Context, sessionID, lineID string) (*appointment.Basket, error)
	Checkout(ctx context.Context, sessionID string, patientID uuid.UUID) ([]appointment.Slot, error)
	CancelByPatient(ctx context.Context, slotID, patientID uuid.UUID) ([]appointment.Slot, error)
	UpdatePractitionerNotes(ctx context.Context, slotID, practitionerID uuid.UUID, notes, patientNotes string) (*appointment.Slot, error)
	UpdatePatientNotes(ctx context.Context, slotID, patientID uuid.UUID, notes string) (*appointment.Slot, error)
	ListAppointments(ctx context.Context, who appointment.Party, id uuid.UUID) (*appointment.Appointments, error)
}

type Handler struct {
	svc      SchedulingService
	validate *Validator
	log      *logrus.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewHandler(svc SchedulingService, log *logrus.Logger, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		svc:      svc,
		validate: NewValidator(),
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	practitionerID, ok := h.pathUUID(w, r, "id", "invalid_practitioner_id")
	if !ok {
		return
	}

	raw := r.URL.Query().Get("date")
	if raw == "" {
		raw = h.now().In(h.loc).Format(time.DateOnly)
	}
	date, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.svc.GetValidAppointments(r.Context(), date, practitionerID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Date:  date.Format(time.DateOnly),
		Slots: newSlotResponses(slots, h.now()),
	})
}

func (h *Handler) defineSlot(w http.ResponseWriter, r *http.Request) {
	practitionerID, ok := h.pathUUID(w, r, "id", "invalid_practitioner_id")
	if !ok {
		return
	}

	var req DefineSlotRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 timestamp")
		return
	}
	length, err := appointment.ParseLength(req.Length)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_length", err.Error())
		return
	}

	slot, err := h.svc.DefineAvailability(r.Context(), practitionerID, start, length)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, newSlotResponse(*slot, h.now()))
}

func (h *Handler) deleteSlot(w http.ResponseWriter, r *http.Request) {
	practitionerID, ok := h.pathUUID(w, r, "id", "invalid_practitioner_id")
	if !ok {
		return
	}
	slotID, ok := h.pathUUID(w, r, "slotID", "invalid_slot_id")
	if !ok {
		return
	}

	if err := h.svc.DeletePractitionerSlot(r.Context(), slotID, practitionerID); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")

	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	// already validated as uuids
	patientID := uuid.MustParse(req.PatientID)
	practitionerID := uuid.MustParse(req.PractitionerID)
	ids := make([]uuid.UUID, 0, len(req.AppointmentIDs))
	for _, raw := range req.AppointmentIDs {
		ids = append(ids, uuid.MustParse(raw))
	}

	review, err := h.svc.ReviewSelection(r.Context(), sessionID, patientID, practitionerID, ids)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newBasketResponse(sessionID, review.Basket))
}

func (h *Handler) getBasket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")

	basket, err := h.svc.GetBasket(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newBasketResponse(sessionID, *basket))
}

func (h *Handler) removeBasketItem(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	lineID := chi.URLParam(r, "line")

	basket, err := h.svc.RemoveBasketItem(r.Context(), sessionID, lineID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newBasketResponse(sessionID, *basket))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")

	var req PatientRequest
	if !h.decode(w, r, &req) {
		return
	}

	booked, err := h.svc.Checkout(r.Context(), sessionID, uuid.MustParse(req.PatientID))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookingResponse{Booked: newSlotResponses(booked, h.now())})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	slotID, ok := h.pathUUID(w, r, "id", "invalid_slot_id")
	if !ok {
		return
	}

	var req PatientRequest
	if !h.decode(w, r, &req) {
		return
	}

	released, err := h.svc.CancelByPatient(r.Context(), slotID, uuid.MustParse(req.PatientID))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newSlotResponses(released, h.now()))
}

func (h *Handler) practitionerNotes(w http.ResponseWriter, r *http.Request) {
	practitionerID, ok := h.pathUUID(w, r, "id", "invalid_practitioner_id")
	if !ok {
		return
	}
	slotID, ok := h.pathUUID(w, r, "slotID", "invalid_slot_id")
	if !ok {
		return
	}

	var req PractitionerNotesRequest
	if !h.decode(w, r, &req) {
		return
	}

	slot, err := h.svc.UpdatePractitionerNotes(r.Context(), slotID, practitionerID, req.PractitionerNotes, req.PatientNotes)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newAppointmentResponse(*slot, appointment.PartyPractitioner, h.now()))
}

func (h *Handler) patientNotes(w http.ResponseWriter, r *http.Request) {
	slotID, ok := h.pathUUID(w, r, "id", "invalid_slot_id")
	if !ok {
		return
	}

	var req PatientNotesRequest
	if !h.decode(w, r, &req) {
		return
	}

	slot, err := h.svc.UpdatePatientNotes(r.Context(), slotID, uuid.MustParse(req.PatientID), req.Notes)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newAppointmentResponse(*slot, appointment.PartyPatient, h.now()))
}

// appointments lists the upcoming and past appointments of the party named
// by who, identified by the {id} path parameter.
func (h *Handler) appointments(who appointment.Party) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathUUID(w, r, "id", "invalid_"+string(who)+"_id")
		if !ok {
			return
		}

		list, err := h.svc.ListAppointments(r.Context(), who, id)
		if err != nil {
			writeServiceError(w, r, h.log, err)
			return
		}

		now := h.now()
		writeJSON(w, http.StatusOK, AppointmentsResponse{
			Upcoming: newAppointmentResponses(list.Upcoming, who, now),
			Past:     newAppointmentResponses(list.Past, who, now),
		})
	}
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into dst and validates it, writing the error
// response itself when either step fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Validate(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation_failed",
			Fields: h.validate.FormatValidationErrors(err),
		})
		return false
	}
	return true
}

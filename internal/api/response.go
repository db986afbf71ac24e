package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps service errors to a status and error code.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logrus.Logger, err error) {
	var overlapErr *appointment.OverlapError
	if errors.As(err, &overlapErr) {
		now := time.Now()
		pairs := make([]OverlapPair, 0, len(overlapErr.Overlaps))
		for _, o := range overlapErr.Overlaps {
			pairs = append(pairs, OverlapPair{
				First:  newSlotResponse(o.First, now),
				Second: newSlotResponse(o.Second, now),
			})
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:    "overlap_detected",
			Details:  "the selection overlaps existing appointments",
			Overlaps: pairs,
		})
		return
	}

	switch {
	case errors.Is(err, appointment.ErrInvalidSelection):
		writeError(w, http.StatusUnprocessableEntity, "invalid_selection", err.Error())
	case errors.Is(err, appointment.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, appointment.ErrBasketEmpty):
		writeError(w, http.StatusNotFound, "basket_empty", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
	case errors.Is(err, appointment.ErrCancelTooLate):
		writeError(w, http.StatusConflict, "cancel_too_late", err.Error())
	case errors.Is(err, appointment.ErrSlotNotBooked):
		writeError(w, http.StatusConflict, "slot_not_booked", err.Error())
	case errors.Is(err, appointment.ErrNotSlotOwner),
		errors.Is(err, appointment.ErrNotBasketOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrInvalidLength),
		errors.Is(err, appointment.ErrStartInPast):
		writeError(w, http.StatusUnprocessableEntity, "invalid_slot", err.Error())
	default:
		log.WithFields(logrus.Fields{
			"request_id": GetRequestID(r.Context()),
			"path":       r.URL.Path,
		}).Errorf("unhandled service error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}

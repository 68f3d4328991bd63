package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicq/token-service/internal/token"
)

func createTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		res, err := svc.Allocate(r.Context(), slotID, patientID, token.Category(req.Category))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		if res.Waiting != nil {
			entry := waitingResponse(res.Waiting)
			writeJSON(w, http.StatusAccepted, AllocationResponse{Outcome: "waitlisted", Waiting: &entry})
			return
		}
		tok := tokenResponse(res.Token)
		writeJSON(w, http.StatusCreated, AllocationResponse{Outcome: "confirmed", Token: &tok})
	}
}

func emergencyTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EmergencyTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		res, err := svc.InsertEmergency(r.Context(), slotID, patientID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		shifted := make([]TokenResponse, 0, len(res.Shifted))
		for i := range res.Shifted {
			shifted = append(shifted, tokenResponse(&res.Shifted[i]))
		}
		writeJSON(w, http.StatusCreated, EmergencyResponse{
			Token:   tokenResponse(res.Token),
			Shifted: shifted,
			Message: "emergency patient inserted at position 1",
		})
	}
}

func getTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_token_id", "id must be a valid UUID")
			return
		}

		tok, err := svc.GetToken(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse(tok))
	}
}

func cancelTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_token_id", "id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "token cancelled successfully"})
	}
}

func noShowTokenHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_token_id", "id must be a valid UUID")
			return
		}

		if err := svc.MarkNoShow(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "token marked as no-show"})
	}
}

func createSlotHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		slot, err := svc.CreateSlot(r.Context(), doctorID, req.StartTime, req.EndTime, req.MaxCapacity)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, slotResponse(slot))
	}
}

func listSlotsHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListSlots(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, slotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getSlotHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		slot, err := svc.GetSlot(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slotResponse(slot))
	}
}

func delaySlotHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		var req DelaySlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.DelaySlot(r.Context(), id, req.DelayMinutes)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DelaySlotResponse{
			Message: "slot delayed",
			Slot:    slotResponse(slot),
		})
	}
}

func listSlotTokensHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		tokens, err := svc.ListSlotTokens(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]TokenResponse, 0, len(tokens))
		for i := range tokens {
			resp = append(resp, tokenResponse(&tokens[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listWaitingHandler(svc *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		entries, err := svc.ListWaiting(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]WaitingEntryResponse, 0, len(entries))
		for i := range entries {
			resp = append(resp, waitingResponse(&entries[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, token.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, token.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, token.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found", err.Error())
	case errors.Is(err, token.ErrSlotNotActive):
		writeError(w, http.StatusConflict, "slot_not_active", err.Error())
	case errors.Is(err, token.ErrTokenNotConfirmed):
		writeError(w, http.StatusConflict, "token_not_confirmed", err.Error())
	case errors.Is(err, token.ErrDuplicateBooking):
		writeError(w, http.StatusConflict, "duplicate_booking", err.Error())
	case errors.Is(err, token.ErrInvalidCategory),
		errors.Is(err, token.ErrNegativeDelay),
		errors.Is(err, token.ErrInvalidCapacity),
		errors.Is(err, token.ErrInvalidSlotWindow):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, token.ErrSlotBusy):
		writeError(w, http.StatusServiceUnavailable, "slot_busy", "slot is currently being modified, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicq/token-service/internal/token"
)

type CreateTokenRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
	Category  string `json:"category"`
}

type EmergencyTokenRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
}

type DelaySlotRequest struct {
	DelayMinutes int `json:"delay_minutes"`
}

type CreateSlotRequest struct {
	DoctorID    string    `json:"doctor_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	MaxCapacity int       `json:"max_capacity"`
}

type TokenResponse struct {
	ID            uuid.UUID  `json:"id"`
	SlotID        uuid.UUID  `json:"slot_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	TokenNumber   int        `json:"token_number"`
	Priority      float64    `json:"priority"`
	Category      string     `json:"category"`
	Status        string     `json:"status"`
	EstimatedTime time.Time  `json:"estimated_time"`
	ActualTime    *time.Time `json:"actual_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type WaitingEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Category  string    `json:"category"`
	Priority  float64   `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// AllocationResponse reports a booking outcome: "confirmed" with the token,
// or "waitlisted" with the waiting list entry.
type AllocationResponse struct {
	Outcome string                `json:"outcome"`
	Token   *TokenResponse        `json:"token,omitempty"`
	Waiting *WaitingEntryResponse `json:"waiting_entry,omitempty"`
}

type EmergencyResponse struct {
	Token   TokenResponse   `json:"token"`
	Shifted []TokenResponse `json:"affected_tokens"`
	Message string          `json:"message"`
}

type SlotResponse struct {
	ID                uuid.UUID `json:"id"`
	DoctorID          uuid.UUID `json:"doctor_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	MaxCapacity       int       `json:"max_capacity"`
	CurrentCapacity   int       `json:"current_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	Status            string    `json:"status"`
	DelayMinutes      int       `json:"delay_minutes"`
}

type DelaySlotResponse struct {
	Message string       `json:"message"`
	Slot    SlotResponse `json:"slot"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func tokenResponse(t *token.Token) TokenResponse {
	return TokenResponse{
		ID:            t.ID,
		SlotID:        t.SlotID,
		PatientID:     t.PatientID,
		TokenNumber:   t.TokenNumber,
		Priority:      t.Priority,
		Category:      string(t.Category),
		Status:        string(t.Status),
		EstimatedTime: t.EstimatedTime,
		ActualTime:    t.ActualTime,
		CreatedAt:     t.CreatedAt,
	}
}

func waitingResponse(e *token.WaitingEntry) WaitingEntryResponse {
	return WaitingEntryResponse{
		ID:        e.ID,
		SlotID:    e.SlotID,
		PatientID: e.PatientID,
		Category:  string(e.Category),
		Priority:  e.Priority,
		CreatedAt: e.CreatedAt,
	}
}

func slotResponse(s *token.Slot) SlotResponse {
	avail := s.MaxCapacity - s.CurrentCapacity
	if avail < 0 {
		avail = 0
	}
	return SlotResponse{
		ID:                s.ID,
		DoctorID:          s.DoctorID,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		MaxCapacity:       s.MaxCapacity,
		CurrentCapacity:   s.CurrentCapacity,
		AvailableCapacity: avail,
		Status:            string(s.Status),
		DelayMinutes:      s.DelayMinutes,
	}
}

package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicq/token-service/internal/lock"
)

const (
	EventTokenAllocated    = "TOKEN_ALLOCATED"
	EventTokenWaitlisted   = "TOKEN_WAITLISTED"
	EventTokenCancelled    = "TOKEN_CANCELLED"
	EventTokenNoShow       = "TOKEN_NO_SHOW"
	EventEmergencyInserted = "EMERGENCY_INSERTED"
	EventSlotDelayed       = "SLOT_DELAYED"
	EventWaitlistPromoted  = "WAITLIST_PROMOTED"
)

var (
	// ErrSlotBusy means another request holds the slot lock; retryable.
	ErrSlotBusy = errors.New("slot is currently being modified, please retry")

	ErrInvalidCapacity   = errors.New("max capacity must be at least 1")
	ErrInvalidSlotWindow = errors.New("slot end time must be after start time")
)

// Service is the token allocation engine. Every mutating operation runs under
// the per-slot lock and inside a single ledger transaction, so concurrent
// requests against one slot serialize and a crash mid-resequencing never
// leaves token numbers with gaps or duplicates.
type Service struct {
	repo  Repository
	locks lock.Provider
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(repo Repository, locks lock.Provider, logger zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		locks: locks,
		log:   logger,
		now:   time.Now,
	}
}

// AllocationResult carries the outcome of a booking: exactly one of Token
// (confirmed) or Waiting (slot was full) is set.
type AllocationResult struct {
	Token   *Token
	Waiting *WaitingEntry
}

// EmergencyResult is the outcome of an emergency insertion: the new token at
// position 1 and every existing token that shifted down one place.
type EmergencyResult struct {
	Token   *Token
	Shifted []Token
}

// withSlot serializes on the slot lock and opens the ledger transaction.
func (s *Service) withSlot(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context, led Ledger) error) error {
	err := s.locks.WithSlotLock(ctx, slotID, func(ctx context.Context) error {
		return s.repo.InSlotTx(ctx, slotID, fn)
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrSlotBusy
	}
	return err
}

// Allocate books a patient into a slot. When the slot is full the patient is
// placed on the waiting list instead; that is a defined outcome, not an error.
func (s *Service) Allocate(ctx context.Context, slotID, patientID uuid.UUID, category Category) (*AllocationResult, error) {
	if !ValidCategory(category) {
		return nil, ErrInvalidCategory
	}

	var res *AllocationResult
	err := s.withSlot(ctx, slotID, func(ctx context.Context, led Ledger) error {
		r, err := s.allocateLocked(ctx, led, patientID, category)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Token != nil {
		s.logEvent(ctx, EventTokenAllocated, &res.Token.ID, &slotID, map[string]any{
			"patient_id":   patientID.String(),
			"category":     category,
			"token_number": res.Token.TokenNumber,
			"priority":     res.Token.Priority,
		})
	} else {
		s.logEvent(ctx, EventTokenWaitlisted, nil, &slotID, map[string]any{
			"patient_id": patientID.String(),
			"category":   category,
		})
	}
	return res, nil
}

// allocateLocked places one booking against the slot held by led. Callers
// hold the slot lock and the ledger transaction; the waiting-list promotion
// path reuses it after a cancellation frees capacity.
func (s *Service) allocateLocked(ctx context.Context, led Ledger, patientID uuid.UUID, category Category) (*AllocationResult, error) {
	slot := led.Slot()
	if slot.Status != SlotActive {
		return nil, ErrSlotNotActive
	}

	now := s.now()

	if slot.CurrentCapacity >= slot.MaxCapacity {
		entry := &WaitingEntry{
			ID:        uuid.New(),
			SlotID:    slot.ID,
			PatientID: patientID,
			Category:  category,
			Priority:  PriorityFor(category, now, now),
			CreatedAt: now,
		}
		if err := led.EnqueueWaiting(ctx, entry); err != nil {
			return nil, fmt.Errorf("enqueue waiting entry: %w", err)
		}
		return &AllocationResult{Waiting: entry}, nil
	}

	// Patient validation sits on the confirmed path only; an overflow booking
	// is vetted again at promotion time.
	if _, err := led.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	booked, err := led.HasBookingOnDate(ctx, patientID, slot.StartTime)
	if err != nil {
		return nil, fmt.Errorf("check duplicate booking: %w", err)
	}
	if booked {
		return nil, ErrDuplicateBooking
	}

	priority := PriorityFor(category, now, now)

	existing, err := led.ConfirmedTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("load confirmed tokens: %w", err)
	}

	// The new token goes after every existing token of equal or smaller
	// priority, so ties resolve in arrival order.
	position := 1
	for _, t := range existing {
		if priority < t.Priority {
			break
		}
		position++
	}

	// Shift the tail up by one place, highest numbers first, so the
	// (slot, token_number) uniqueness constraint holds at every step.
	for i := len(existing) - 1; i >= position-1; i-- {
		t := existing[i]
		num := t.TokenNumber + 1
		if err := led.SetTokenPosition(ctx, t.ID, num, EstimateTime(slot.StartTime, slot.DelayMinutes, num)); err != nil {
			return nil, fmt.Errorf("shift token %s: %w", t.ID, err)
		}
	}

	tok := &Token{
		ID:            uuid.New(),
		SlotID:        slot.ID,
		PatientID:     patientID,
		TokenNumber:   position,
		Priority:      priority,
		Category:      category,
		Status:        StatusConfirmed,
		EstimatedTime: EstimateTime(slot.StartTime, slot.DelayMinutes, position),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := led.CreateToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	if err := led.AdjustCapacity(ctx, 1); err != nil {
		return nil, fmt.Errorf("increment capacity: %w", err)
	}

	return &AllocationResult{Token: tok}, nil
}

// InsertEmergency forces a token in at position 1 regardless of occupancy.
// Existing tokens all shift down one place. The capacity counter keeps
// tracking the real CONFIRMED count, so a full slot goes past its maximum;
// emergencies are never capacity-blocked.
func (s *Service) InsertEmergency(ctx context.Context, slotID, patientID uuid.UUID) (*EmergencyResult, error) {
	var res *EmergencyResult
	err := s.withSlot(ctx, slotID, func(ctx context.Context, led Ledger) error {
		slot := led.Slot()
		if slot.Status != SlotActive {
			return ErrSlotNotActive
		}
		if _, err := led.GetPatient(ctx, patientID); err != nil {
			return err
		}

		existing, err := led.ConfirmedTokens(ctx)
		if err != nil {
			return fmt.Errorf("load confirmed tokens: %w", err)
		}

		for i := len(existing) - 1; i >= 0; i-- {
			num := existing[i].TokenNumber + 1
			est := EstimateTime(slot.StartTime, slot.DelayMinutes, num)
			if err := led.SetTokenPosition(ctx, existing[i].ID, num, est); err != nil {
				return fmt.Errorf("shift token %s: %w", existing[i].ID, err)
			}
			existing[i].TokenNumber = num
			existing[i].EstimatedTime = est
		}

		now := s.now()
		tok := &Token{
			ID:            uuid.New(),
			SlotID:        slot.ID,
			PatientID:     patientID,
			TokenNumber:   1,
			Priority:      1.0,
			Category:      CategoryEmergency,
			Status:        StatusConfirmed,
			EstimatedTime: EstimateTime(slot.StartTime, slot.DelayMinutes, 1),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := led.CreateToken(ctx, tok); err != nil {
			return fmt.Errorf("create emergency token: %w", err)
		}
		if err := led.AdjustCapacity(ctx, 1); err != nil {
			return fmt.Errorf("increment capacity: %w", err)
		}

		res = &EmergencyResult{Token: tok, Shifted: existing}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, EventEmergencyInserted, &res.Token.ID, &slotID, map[string]any{
		"patient_id": patientID.String(),
		"shifted":    len(res.Shifted),
	})
	return res, nil
}

// Cancel releases a CONFIRMED token. The freed capacity goes to the waiting
// list head when one exists; otherwise the remaining tokens are compacted.
func (s *Service) Cancel(ctx context.Context, tokenID uuid.UUID) error {
	return s.release(ctx, tokenID, StatusCancelled, EventTokenCancelled)
}

// MarkNoShow releases a token whose patient did not turn up. Treated as an
// immediate cancellation; there is no grace period before reallocation.
func (s *Service) MarkNoShow(ctx context.Context, tokenID uuid.UUID) error {
	return s.release(ctx, tokenID, StatusNoShow, EventTokenNoShow)
}

func (s *Service) release(ctx context.Context, tokenID uuid.UUID, to TokenStatus, event string) error {
	tok, err := s.repo.GetTokenByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if tok.Status != StatusConfirmed {
		return ErrTokenNotConfirmed
	}

	var promoted *WaitingEntry
	err = s.withSlot(ctx, tok.SlotID, func(ctx context.Context, led Ledger) error {
		// The status may have changed between the unlocked read and here.
		if err := led.SetTokenStatus(ctx, tokenID, StatusConfirmed, to); err != nil {
			return err
		}
		if err := led.AdjustCapacity(ctx, -1); err != nil {
			return fmt.Errorf("decrement capacity: %w", err)
		}
		// Close the gap before any promotion so token numbers stay dense.
		if err := s.compact(ctx, led); err != nil {
			return err
		}

		head, err := led.WaitingHead(ctx)
		if err != nil {
			return fmt.Errorf("read waiting list head: %w", err)
		}
		if head == nil {
			return nil
		}

		res, err := s.allocateLocked(ctx, led, head.PatientID, head.Category)
		if err != nil {
			// A head that can no longer be placed (patient gone, booked
			// elsewhere that day, slot no longer active) stays queued and
			// does not fail the release.
			if errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrDuplicateBooking) || errors.Is(err, ErrSlotNotActive) {
				s.log.Warn().Err(err).
					Stringer("slot_id", tok.SlotID).
					Stringer("patient_id", head.PatientID).
					Msg("waiting list promotion skipped")
				return nil
			}
			return fmt.Errorf("promote waiting entry: %w", err)
		}
		if err := led.RemoveWaiting(ctx, head.ID); err != nil {
			return fmt.Errorf("remove promoted waiting entry: %w", err)
		}
		if res.Token != nil {
			promoted = head
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logEvent(ctx, event, &tokenID, &tok.SlotID, map[string]any{
		"patient_id": tok.PatientID.String(),
	})
	if promoted != nil {
		s.logEvent(ctx, EventWaitlistPromoted, nil, &tok.SlotID, map[string]any{
			"patient_id": promoted.PatientID.String(),
			"category":   promoted.Category,
		})
	}
	return nil
}

// compact renumbers the CONFIRMED tokens to 1..n in their current
// (priority, token_number) order. Numbers only move down, so applying in
// ascending order never collides with an existing number.
func (s *Service) compact(ctx context.Context, led Ledger) error {
	slot := led.Slot()
	tokens, err := led.ConfirmedTokens(ctx)
	if err != nil {
		return fmt.Errorf("load confirmed tokens: %w", err)
	}
	for i, t := range tokens {
		want := i + 1
		if t.TokenNumber == want {
			continue
		}
		if err := led.SetTokenPosition(ctx, t.ID, want, EstimateTime(slot.StartTime, slot.DelayMinutes, want)); err != nil {
			return fmt.Errorf("renumber token %s: %w", t.ID, err)
		}
	}
	return nil
}

// DelaySlot adds minutes to the slot's cumulative delay, marks it DELAYED and
// pushes every CONFIRMED token's estimate back accordingly. Delay accumulates
// across repeated calls.
func (s *Service) DelaySlot(ctx context.Context, slotID uuid.UUID, minutes int) (*Slot, error) {
	if minutes < 0 {
		return nil, ErrNegativeDelay
	}

	var snapshot *Slot
	err := s.withSlot(ctx, slotID, func(ctx context.Context, led Ledger) error {
		if err := led.AddDelay(ctx, minutes, SlotDelayed); err != nil {
			return fmt.Errorf("add delay: %w", err)
		}

		slot := led.Slot()
		tokens, err := led.ConfirmedTokens(ctx)
		if err != nil {
			return fmt.Errorf("load confirmed tokens: %w", err)
		}
		for _, t := range tokens {
			est := EstimateTime(slot.StartTime, slot.DelayMinutes, t.TokenNumber)
			if err := led.SetTokenPosition(ctx, t.ID, t.TokenNumber, est); err != nil {
				return fmt.Errorf("update estimate for token %s: %w", t.ID, err)
			}
		}

		cp := *slot
		snapshot = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, EventSlotDelayed, nil, &slotID, map[string]any{
		"added_minutes": minutes,
		"total_minutes": snapshot.DelayMinutes,
	})
	return snapshot, nil
}

// CreateSlot registers a new time window for a doctor.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, maxCapacity int) (*Slot, error) {
	if maxCapacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if !end.After(start) {
		return nil, ErrInvalidSlotWindow
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	slot := &Slot{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		StartTime:   start,
		EndTime:     end,
		MaxCapacity: maxCapacity,
		Status:      SlotActive,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

// Read surfaces. These take no slot lock; they observe committed state only.

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetSlotByID(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context) ([]Slot, error) {
	return s.repo.ListSlots(ctx)
}

func (s *Service) GetToken(ctx context.Context, id uuid.UUID) (*Token, error) {
	return s.repo.GetTokenByID(ctx, id)
}

// ListSlotTokens returns every token for the slot ordered by token_number.
func (s *Service) ListSlotTokens(ctx context.Context, slotID uuid.UUID) ([]Token, error) {
	if _, err := s.repo.GetSlotByID(ctx, slotID); err != nil {
		return nil, err
	}
	return s.repo.ListTokensBySlot(ctx, slotID)
}

// ListWaiting returns the slot's waiting list ordered by (priority, created_at).
func (s *Service) ListWaiting(ctx context.Context, slotID uuid.UUID) ([]WaitingEntry, error) {
	if _, err := s.repo.GetSlotByID(ctx, slotID); err != nil {
		return nil, err
	}
	return s.repo.ListWaitingBySlot(ctx, slotID)
}

func (s *Service) logEvent(ctx context.Context, eventType string, tokenID, slotID *uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		TokenID:   tokenID,
		SlotID:    slotID,
		Payload:   data,
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("insert event log")
	}
}

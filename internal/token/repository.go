package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrTokenNotFound     = errors.New("token not found")
	ErrSlotNotActive     = errors.New("slot is not active")
	ErrTokenNotConfirmed = errors.New("token is not in confirmed status")
	ErrDuplicateBooking  = errors.New("patient already has a booking for this day")
	ErrInvalidCategory   = errors.New("unknown booking category")
	ErrNegativeDelay     = errors.New("delay minutes must not be negative")
)

// Repository contains all DB interactions needed by the allocation service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetTokenByID(ctx context.Context, id uuid.UUID) (*Token, error)

	CreateSlot(ctx context.Context, s *Slot) error
	ListSlots(ctx context.Context) ([]Slot, error)

	// Read surfaces for the API layer.
	ListTokensBySlot(ctx context.Context, slotID uuid.UUID) ([]Token, error)
	ListWaitingBySlot(ctx context.Context, slotID uuid.UUID) ([]WaitingEntry, error)

	// InSlotTx runs fn inside a single storage transaction with the slot row
	// write-locked for its duration. A failed fn rolls the transaction back;
	// partial resequencing is never visible outside it.
	InSlotTx(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context, led Ledger) error) error

	// Event logging, best effort.
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Ledger is the transactional view of one slot: the authoritative capacity
// counters and the ordered CONFIRMED token sequence. Every mutation applies
// within the transaction opened by InSlotTx. Implementations must keep the
// snapshot returned by Slot() current as capacity and delay mutations go
// through the ledger.
type Ledger interface {
	// Slot returns the locked slot row.
	Slot() *Slot

	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)

	// ConfirmedTokens returns the slot's CONFIRMED tokens ordered by
	// (priority, token_number).
	ConfirmedTokens(ctx context.Context) ([]Token, error)

	CreateToken(ctx context.Context, t *Token) error

	// SetTokenPosition renumbers one token and stores its recomputed estimate.
	// Callers shift overlapping ranges in descending token_number order so the
	// (slot, token_number) uniqueness constraint holds at every step.
	SetTokenPosition(ctx context.Context, id uuid.UUID, number int, estimated time.Time) error

	// SetTokenStatus transitions a token from one status to another, failing
	// with ErrTokenNotConfirmed when the token is no longer in `from`.
	SetTokenStatus(ctx context.Context, id uuid.UUID, from, to TokenStatus) error

	AdjustCapacity(ctx context.Context, delta int) error
	AddDelay(ctx context.Context, minutes int, status SlotStatus) error

	// HasBookingOnDate reports whether the patient holds a CONFIRMED token in
	// any slot starting on the same calendar day.
	HasBookingOnDate(ctx context.Context, patientID uuid.UUID, day time.Time) (bool, error)

	EnqueueWaiting(ctx context.Context, e *WaitingEntry) error
	// WaitingHead returns the entry with the lowest (priority, created_at),
	// or nil when the waiting list is empty.
	WaitingHead(ctx context.Context) (*WaitingEntry, error)
	RemoveWaiting(ctx context.Context, id uuid.UUID) error
}

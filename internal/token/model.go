package token

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryEmergency    Category = "EMERGENCY"
	CategoryPriorityPaid Category = "PRIORITY_PAID"
	CategoryFollowup     Category = "FOLLOWUP"
	CategoryOnline       Category = "ONLINE"
	CategoryWalkin       Category = "WALKIN"
)

// ValidCategory reports whether c is one of the five booking categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryEmergency, CategoryPriorityPaid, CategoryFollowup, CategoryOnline, CategoryWalkin:
		return true
	}
	return false
}

type TokenStatus string

const (
	StatusConfirmed TokenStatus = "CONFIRMED"
	StatusCancelled TokenStatus = "CANCELLED"
	StatusNoShow    TokenStatus = "NO_SHOW"
	StatusCompleted TokenStatus = "COMPLETED"
)

type SlotStatus string

const (
	SlotActive    SlotStatus = "ACTIVE"
	SlotDelayed   SlotStatus = "DELAYED"
	SlotCancelled SlotStatus = "CANCELLED"
)

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	CreatedAt      time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Email     *string
	CreatedAt time.Time
}

// Slot is a doctor's fixed time window with bounded patient capacity.
// CurrentCapacity tracks the number of CONFIRMED tokens; emergency
// insertions may push it above MaxCapacity.
type Slot struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	StartTime       time.Time
	EndTime         time.Time
	MaxCapacity     int
	CurrentCapacity int
	Status          SlotStatus
	DelayMinutes    int
	CreatedAt       time.Time
}

// Token is a queue reservation for one patient in one slot. TokenNumber is
// 1-based and dense across the slot's CONFIRMED tokens, ordered consistently
// with ascending Priority (lower priority value is served sooner).
type Token struct {
	ID            uuid.UUID
	SlotID        uuid.UUID
	PatientID     uuid.UUID
	TokenNumber   int
	Priority      float64
	Category      Category
	Status        TokenStatus
	EstimatedTime time.Time
	ActualTime    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WaitingEntry is an overflow reservation created when a slot is full at
// booking time. Entries are served in (Priority, CreatedAt) order and are
// deleted exactly once, on promotion.
type WaitingEntry struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	PatientID uuid.UUID
	Category  Category
	Priority  float64
	CreatedAt time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	TokenID   *uuid.UUID
	SlotID    *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

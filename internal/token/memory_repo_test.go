package token

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository used to drive the allocation engine in
// tests. It applies ledger mutations directly; the engine's error paths fail
// before mutating, so rollback support is not needed here.
type memRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
	slots    map[uuid.UUID]*Slot
	tokens   map[uuid.UUID]*Token
	waiting  map[uuid.UUID]*WaitingEntry
	events   []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
		slots:    make(map[uuid.UUID]*Slot),
		tokens:   make(map[uuid.UUID]*Token),
		waiting:  make(map[uuid.UUID]*WaitingEntry),
	}
}

func (r *memRepo) addDoctor(d Doctor) { r.doctors[d.ID] = &d }

func (r *memRepo) addPatient(p Patient) { r.patients[p.ID] = &p }

func (r *memRepo) addSlot(s Slot) { r.slots[s.ID] = &s }

func (r *memRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getPatientLocked(id)
}

func (r *memRepo) getPatientLocked(id uuid.UUID) (*Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) GetTokenByID(ctx context.Context, id uuid.UUID) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRepo) CreateSlot(ctx context.Context, s *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.slots[s.ID] = &cp
	return nil
}

func (r *memRepo) ListSlots(ctx context.Context) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Slot
	for _, s := range r.slots {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (r *memRepo) ListTokensBySlot(ctx context.Context, slotID uuid.UUID) ([]Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Token
	for _, t := range r.tokens {
		if t.SlotID == slotID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TokenNumber < result[j].TokenNumber })
	return result, nil
}

func (r *memRepo) ListWaitingBySlot(ctx context.Context, slotID uuid.UUID) ([]WaitingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitingOrderedLocked(slotID), nil
}

func (r *memRepo) waitingOrderedLocked(slotID uuid.UUID) []WaitingEntry {
	var result []WaitingEntry
	for _, e := range r.waiting {
		if e.SlotID == slotID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *memRepo) InSlotTx(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context, led Ledger) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	return fn(ctx, &memLedger{repo: r, slot: slot})
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type memLedger struct {
	repo *memRepo
	slot *Slot
}

func (l *memLedger) Slot() *Slot { return l.slot }

func (l *memLedger) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return l.repo.getPatientLocked(id)
}

func (l *memLedger) ConfirmedTokens(ctx context.Context) ([]Token, error) {
	var result []Token
	for _, t := range l.repo.tokens {
		if t.SlotID == l.slot.ID && t.Status == StatusConfirmed {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].TokenNumber < result[j].TokenNumber
	})
	return result, nil
}

func (l *memLedger) CreateToken(ctx context.Context, t *Token) error {
	cp := *t
	l.repo.tokens[t.ID] = &cp
	return nil
}

func (l *memLedger) SetTokenPosition(ctx context.Context, id uuid.UUID, number int, estimated time.Time) error {
	t, ok := l.repo.tokens[id]
	if !ok {
		return ErrTokenNotFound
	}
	t.TokenNumber = number
	t.EstimatedTime = estimated
	return nil
}

func (l *memLedger) SetTokenStatus(ctx context.Context, id uuid.UUID, from, to TokenStatus) error {
	t, ok := l.repo.tokens[id]
	if !ok {
		return ErrTokenNotFound
	}
	if t.Status != from {
		return ErrTokenNotConfirmed
	}
	t.Status = to
	return nil
}

func (l *memLedger) AdjustCapacity(ctx context.Context, delta int) error {
	l.slot.CurrentCapacity += delta
	return nil
}

func (l *memLedger) AddDelay(ctx context.Context, minutes int, status SlotStatus) error {
	l.slot.DelayMinutes += minutes
	l.slot.Status = status
	return nil
}

func (l *memLedger) HasBookingOnDate(ctx context.Context, patientID uuid.UUID, day time.Time) (bool, error) {
	y, m, d := day.Date()
	for _, t := range l.repo.tokens {
		if t.PatientID != patientID || t.Status != StatusConfirmed {
			continue
		}
		slot, ok := l.repo.slots[t.SlotID]
		if !ok {
			continue
		}
		sy, sm, sd := slot.StartTime.Date()
		if sy == y && sm == m && sd == d {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) EnqueueWaiting(ctx context.Context, e *WaitingEntry) error {
	cp := *e
	l.repo.waiting[e.ID] = &cp
	return nil
}

func (l *memLedger) WaitingHead(ctx context.Context) (*WaitingEntry, error) {
	ordered := l.repo.waitingOrderedLocked(l.slot.ID)
	if len(ordered) == 0 {
		return nil, nil
	}
	head := ordered[0]
	return &head, nil
}

func (l *memLedger) RemoveWaiting(ctx context.Context, id uuid.UUID) error {
	delete(l.repo.waiting, id)
	return nil
}

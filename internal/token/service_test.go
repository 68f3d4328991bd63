package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicq/token-service/internal/lock"
)

var testClock = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	svc := NewService(repo, lock.NewMemoryProvider(time.Second), zerolog.Nop())
	svc.now = func() time.Time { return testClock }
	return svc, repo
}

func addPatient(repo *memRepo) uuid.UUID {
	id := uuid.New()
	repo.addPatient(Patient{ID: id, Name: "patient " + id.String()[:8], Phone: "555-0100"})
	return id
}

func addSlot(repo *memRepo, maxCapacity int) uuid.UUID {
	id := uuid.New()
	repo.addSlot(Slot{
		ID:          id,
		DoctorID:    uuid.New(),
		StartTime:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		MaxCapacity: maxCapacity,
		Status:      SlotActive,
	})
	return id
}

// assertLedgerInvariants checks that the slot's CONFIRMED token numbers are
// exactly 1..current_capacity with no gaps or duplicates, and that lower
// numbers never carry higher priority.
func assertLedgerInvariants(t *testing.T, repo *memRepo, slotID uuid.UUID) {
	t.Helper()

	slot, err := repo.GetSlotByID(context.Background(), slotID)
	if err != nil {
		t.Fatalf("load slot: %v", err)
	}

	all, err := repo.ListTokensBySlot(context.Background(), slotID)
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}

	var confirmed []Token
	for _, tok := range all {
		if tok.Status == StatusConfirmed {
			confirmed = append(confirmed, tok)
		}
	}

	if len(confirmed) != slot.CurrentCapacity {
		t.Fatalf("current_capacity=%d but %d confirmed tokens", slot.CurrentCapacity, len(confirmed))
	}

	seen := make(map[int]bool)
	for _, tok := range confirmed {
		if tok.TokenNumber < 1 || tok.TokenNumber > len(confirmed) {
			t.Fatalf("token_number %d outside 1..%d", tok.TokenNumber, len(confirmed))
		}
		if seen[tok.TokenNumber] {
			t.Fatalf("duplicate token_number %d", tok.TokenNumber)
		}
		seen[tok.TokenNumber] = true
	}

	for i := 1; i < len(confirmed); i++ {
		if confirmed[i-1].TokenNumber < confirmed[i].TokenNumber && confirmed[i-1].Priority > confirmed[i].Priority {
			t.Fatalf("token #%d priority %v exceeds token #%d priority %v",
				confirmed[i-1].TokenNumber, confirmed[i-1].Priority,
				confirmed[i].TokenNumber, confirmed[i].Priority)
		}
	}
}

func TestAllocateFirstToken(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 3)
	patientID := addPatient(repo)

	res, err := svc.Allocate(context.Background(), slotID, patientID, CategoryWalkin)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.Token == nil {
		t.Fatal("expected confirmed token")
	}
	if res.Token.TokenNumber != 1 {
		t.Fatalf("token_number=%d, want 1", res.Token.TokenNumber)
	}
	if res.Token.Priority != 5 {
		t.Fatalf("priority=%v, want 5", res.Token.Priority)
	}
	wantEst := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if !res.Token.EstimatedTime.Equal(wantEst) {
		t.Fatalf("estimated_time=%v, want %v", res.Token.EstimatedTime, wantEst)
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestAllocateInsertsByPriority(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 5)

	walkin := addPatient(repo)
	followup := addPatient(repo)
	paid := addPatient(repo)

	if _, err := svc.Allocate(context.Background(), slotID, walkin, CategoryWalkin); err != nil {
		t.Fatalf("allocate walkin: %v", err)
	}
	if _, err := svc.Allocate(context.Background(), slotID, followup, CategoryFollowup); err != nil {
		t.Fatalf("allocate followup: %v", err)
	}
	resPaid, err := svc.Allocate(context.Background(), slotID, paid, CategoryPriorityPaid)
	if err != nil {
		t.Fatalf("allocate priority paid: %v", err)
	}

	// Lower priority values come first; earlier arrivals keep their place on ties.
	if resPaid.Token.TokenNumber != 1 {
		t.Fatalf("priority paid token_number=%d, want 1", resPaid.Token.TokenNumber)
	}

	tokens, _ := svc.ListSlotTokens(context.Background(), slotID)
	byPatient := make(map[uuid.UUID]Token)
	for _, tok := range tokens {
		byPatient[tok.PatientID] = tok
	}
	if byPatient[followup].TokenNumber != 2 {
		t.Fatalf("followup token_number=%d, want 2", byPatient[followup].TokenNumber)
	}
	if byPatient[walkin].TokenNumber != 3 {
		t.Fatalf("walkin token_number=%d, want 3", byPatient[walkin].TokenNumber)
	}

	// The shifted walkin's estimate moved with it.
	if want := time.Date(2025, 6, 2, 9, 20, 0, 0, time.UTC); !byPatient[walkin].EstimatedTime.Equal(want) {
		t.Fatalf("walkin estimated_time=%v, want %v", byPatient[walkin].EstimatedTime, want)
	}

	assertLedgerInvariants(t, repo, slotID)
}

func TestAllocateTieGoesAfterEarlierArrival(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 5)

	first := addPatient(repo)
	second := addPatient(repo)

	resFirst, _ := svc.Allocate(context.Background(), slotID, first, CategoryWalkin)
	resSecond, err := svc.Allocate(context.Background(), slotID, second, CategoryWalkin)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if resFirst.Token.TokenNumber != 1 || resSecond.Token.TokenNumber != 2 {
		t.Fatalf("tie-break violated: first=%d second=%d, want 1 and 2",
			resFirst.Token.TokenNumber, resSecond.Token.TokenNumber)
	}
}

func TestAllocateFullSlotGoesToWaitingList(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 1)

	booked := addPatient(repo)
	overflow := addPatient(repo)

	if _, err := svc.Allocate(context.Background(), slotID, booked, CategoryOnline); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	res, err := svc.Allocate(context.Background(), slotID, overflow, CategoryWalkin)
	if err != nil {
		t.Fatalf("allocate overflow: %v", err)
	}
	if res.Token != nil {
		t.Fatal("expected waiting list outcome, got confirmed token")
	}
	if res.Waiting == nil {
		t.Fatal("expected waiting entry")
	}
	if res.Waiting.PatientID != overflow {
		t.Fatalf("waiting entry patient=%s, want %s", res.Waiting.PatientID, overflow)
	}

	entries, _ := svc.ListWaiting(context.Background(), slotID)
	if len(entries) != 1 {
		t.Fatalf("waiting list length=%d, want 1", len(entries))
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestAllocateErrors(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 2)
	patientID := addPatient(repo)

	cases := []struct {
		name     string
		slot     uuid.UUID
		patient  uuid.UUID
		category Category
		want     error
	}{
		{"unknown slot", uuid.New(), patientID, CategoryWalkin, ErrSlotNotFound},
		{"unknown patient", slotID, uuid.New(), CategoryWalkin, ErrPatientNotFound},
		{"bad category", slotID, patientID, Category("VIP"), ErrInvalidCategory},
	}

	for _, tt := range cases {
		if _, err := svc.Allocate(context.Background(), tt.slot, tt.patient, tt.category); !errors.Is(err, tt.want) {
			t.Fatalf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestAllocateInactiveSlot(t *testing.T) {
	svc, repo := newTestService(t)
	patientID := addPatient(repo)

	slotID := uuid.New()
	repo.addSlot(Slot{
		ID:          slotID,
		DoctorID:    uuid.New(),
		StartTime:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		MaxCapacity: 2,
		Status:      SlotCancelled,
	})

	if _, err := svc.Allocate(context.Background(), slotID, patientID, CategoryWalkin); !errors.Is(err, ErrSlotNotActive) {
		t.Fatalf("got %v, want ErrSlotNotActive", err)
	}
}

func TestDuplicateBookingSameDay(t *testing.T) {
	svc, repo := newTestService(t)
	patientID := addPatient(repo)

	// Two different slots on the same calendar date.
	morning := addSlot(repo, 2)
	afternoon := uuid.New()
	repo.addSlot(Slot{
		ID:          afternoon,
		DoctorID:    uuid.New(),
		StartTime:   time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
		MaxCapacity: 2,
		Status:      SlotActive,
	})

	if _, err := svc.Allocate(context.Background(), morning, patientID, CategoryOnline); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := svc.Allocate(context.Background(), afternoon, patientID, CategoryOnline); !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("second booking: got %v, want ErrDuplicateBooking", err)
	}
}

func TestCancelLastTokenDoesNotRenumber(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 3)

	var tokens []*Token
	for i := 0; i < 3; i++ {
		res, err := svc.Allocate(context.Background(), slotID, addPatient(repo), CategoryWalkin)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		tokens = append(tokens, res.Token)
	}

	if err := svc.Cancel(context.Background(), tokens[2].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slot, _ := svc.GetSlot(context.Background(), slotID)
	if slot.CurrentCapacity != 2 {
		t.Fatalf("current_capacity=%d, want 2", slot.CurrentCapacity)
	}

	remaining, _ := svc.ListSlotTokens(context.Background(), slotID)
	for _, tok := range remaining {
		if tok.Status != StatusConfirmed {
			continue
		}
		want := 0
		switch tok.ID {
		case tokens[0].ID:
			want = 1
		case tokens[1].ID:
			want = 2
		default:
			t.Fatalf("unexpected confirmed token %s", tok.ID)
		}
		if tok.TokenNumber != want {
			t.Fatalf("token %s renumbered to %d, want %d", tok.ID, tok.TokenNumber, want)
		}
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestCancelMiddleTokenCompacts(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 3)

	var tokens []*Token
	for i := 0; i < 3; i++ {
		res, err := svc.Allocate(context.Background(), slotID, addPatient(repo), CategoryWalkin)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		tokens = append(tokens, res.Token)
	}

	if err := svc.Cancel(context.Background(), tokens[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	remaining, _ := svc.ListSlotTokens(context.Background(), slotID)
	got := make(map[uuid.UUID]int)
	for _, tok := range remaining {
		if tok.Status == StatusConfirmed {
			got[tok.ID] = tok.TokenNumber
		}
	}
	if got[tokens[1].ID] != 1 || got[tokens[2].ID] != 2 {
		t.Fatalf("compaction wrong: %v", got)
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestCancelTwiceFails(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 1)

	res, err := svc.Allocate(context.Background(), slotID, addPatient(repo), CategoryWalkin)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := svc.Cancel(context.Background(), res.Token.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := svc.Cancel(context.Background(), res.Token.ID); !errors.Is(err, ErrTokenNotConfirmed) {
		t.Fatalf("second cancel: got %v, want ErrTokenNotConfirmed", err)
	}
	if err := svc.Cancel(context.Background(), uuid.New()); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("unknown token: got %v, want ErrTokenNotFound", err)
	}
}

func TestCancelPromotesWaitingHead(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 2)

	first := addPatient(repo)
	second := addPatient(repo)
	waitingWalkin := addPatient(repo)
	waitingPaid := addPatient(repo)

	resFirst, _ := svc.Allocate(context.Background(), slotID, first, CategoryWalkin)
	if _, err := svc.Allocate(context.Background(), slotID, second, CategoryWalkin); err != nil {
		t.Fatalf("allocate second: %v", err)
	}

	// Overflow two patients; the paid one arrives later but has the lower
	// priority value, so it is the head.
	if _, err := svc.Allocate(context.Background(), slotID, waitingWalkin, CategoryWalkin); err != nil {
		t.Fatalf("overflow walkin: %v", err)
	}
	if _, err := svc.Allocate(context.Background(), slotID, waitingPaid, CategoryPriorityPaid); err != nil {
		t.Fatalf("overflow paid: %v", err)
	}

	if err := svc.Cancel(context.Background(), resFirst.Token.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slot, _ := svc.GetSlot(context.Background(), slotID)
	if slot.CurrentCapacity != slot.MaxCapacity {
		t.Fatalf("current_capacity=%d, want %d", slot.CurrentCapacity, slot.MaxCapacity)
	}

	entries, _ := svc.ListWaiting(context.Background(), slotID)
	if len(entries) != 1 {
		t.Fatalf("waiting list length=%d, want 1", len(entries))
	}
	if entries[0].PatientID != waitingWalkin {
		t.Fatal("wrong entry promoted, head should have been the priority paid patient")
	}

	tokens, _ := svc.ListSlotTokens(context.Background(), slotID)
	promotedFound := false
	for _, tok := range tokens {
		if tok.PatientID == waitingPaid && tok.Status == StatusConfirmed {
			promotedFound = true
			// Paid beats the remaining walkin on priority.
			if tok.TokenNumber != 1 {
				t.Fatalf("promoted token_number=%d, want 1", tok.TokenNumber)
			}
		}
	}
	if !promotedFound {
		t.Fatal("promoted patient has no confirmed token")
	}
	assertLedgerInvariants(t, repo, slotID)
}

// The walkthrough scenario: X walkin, Y emergency-category booking, Z walkin
// overflow, then Y cancels and Z is promoted behind X (priority tie, X was
// there first).
func TestWalkinEmergencyWaitlistScenario(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 2)

	x := addPatient(repo)
	y := addPatient(repo)
	z := addPatient(repo)

	resX, err := svc.Allocate(context.Background(), slotID, x, CategoryWalkin)
	if err != nil {
		t.Fatalf("book X: %v", err)
	}
	if resX.Token.TokenNumber != 1 {
		t.Fatalf("X token_number=%d, want 1", resX.Token.TokenNumber)
	}

	resY, err := svc.Allocate(context.Background(), slotID, y, CategoryEmergency)
	if err != nil {
		t.Fatalf("book Y: %v", err)
	}
	if resY.Token.TokenNumber != 1 {
		t.Fatalf("Y token_number=%d, want 1", resY.Token.TokenNumber)
	}

	tokens, _ := svc.ListSlotTokens(context.Background(), slotID)
	for _, tok := range tokens {
		if tok.PatientID == x && tok.TokenNumber != 2 {
			t.Fatalf("X shifted to %d, want 2", tok.TokenNumber)
		}
	}

	resZ, err := svc.Allocate(context.Background(), slotID, z, CategoryWalkin)
	if err != nil {
		t.Fatalf("book Z: %v", err)
	}
	if resZ.Waiting == nil {
		t.Fatal("Z should have landed on the waiting list")
	}

	if err := svc.Cancel(context.Background(), resY.Token.ID); err != nil {
		t.Fatalf("cancel Y: %v", err)
	}

	tokens, _ = svc.ListSlotTokens(context.Background(), slotID)
	positions := make(map[uuid.UUID]int)
	for _, tok := range tokens {
		if tok.Status == StatusConfirmed {
			positions[tok.PatientID] = tok.TokenNumber
		}
	}
	// Equal priority: X keeps its earlier place, Z joins behind.
	if positions[x] != 1 {
		t.Fatalf("X token_number=%d, want 1", positions[x])
	}
	if positions[z] != 2 {
		t.Fatalf("Z token_number=%d, want 2", positions[z])
	}

	entries, _ := svc.ListWaiting(context.Background(), slotID)
	if len(entries) != 0 {
		t.Fatalf("waiting list length=%d, want 0", len(entries))
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestEmergencyInsertIntoFullSlot(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 2)

	for i := 0; i < 2; i++ {
		if _, err := svc.Allocate(context.Background(), slotID, addPatient(repo), CategoryWalkin); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}

	emergency := addPatient(repo)
	res, err := svc.InsertEmergency(context.Background(), slotID, emergency)
	if err != nil {
		t.Fatalf("emergency insert: %v", err)
	}

	if res.Token.TokenNumber != 1 {
		t.Fatalf("emergency token_number=%d, want 1", res.Token.TokenNumber)
	}
	if res.Token.Priority != 1.0 {
		t.Fatalf("emergency priority=%v, want 1.0", res.Token.Priority)
	}
	if res.Token.Category != CategoryEmergency {
		t.Fatalf("emergency category=%s", res.Token.Category)
	}
	if len(res.Shifted) != 2 {
		t.Fatalf("shifted %d tokens, want 2", len(res.Shifted))
	}
	for _, tok := range res.Shifted {
		if tok.TokenNumber < 2 || tok.TokenNumber > 3 {
			t.Fatalf("shifted token_number=%d, want 2 or 3", tok.TokenNumber)
		}
	}

	// Occupancy goes past the maximum; emergencies are never blocked.
	slot, _ := svc.GetSlot(context.Background(), slotID)
	if slot.CurrentCapacity != 3 {
		t.Fatalf("current_capacity=%d, want 3", slot.CurrentCapacity)
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestEmergencyInsertIntoEmptySlot(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 2)

	res, err := svc.InsertEmergency(context.Background(), slotID, addPatient(repo))
	if err != nil {
		t.Fatalf("emergency insert: %v", err)
	}
	if res.Token.TokenNumber != 1 || len(res.Shifted) != 0 {
		t.Fatalf("token_number=%d shifted=%d, want 1 and 0", res.Token.TokenNumber, len(res.Shifted))
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestMarkNoShowReleasesCapacity(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 1)

	res, err := svc.Allocate(context.Background(), slotID, addPatient(repo), CategoryOnline)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	waiting := addPatient(repo)
	if _, err := svc.Allocate(context.Background(), slotID, waiting, CategoryWalkin); err != nil {
		t.Fatalf("overflow: %v", err)
	}

	if err := svc.MarkNoShow(context.Background(), res.Token.ID); err != nil {
		t.Fatalf("no-show: %v", err)
	}

	tok, _ := svc.GetToken(context.Background(), res.Token.ID)
	if tok.Status != StatusNoShow {
		t.Fatalf("status=%s, want NO_SHOW", tok.Status)
	}

	// The waiting patient took over the freed place.
	slot, _ := svc.GetSlot(context.Background(), slotID)
	if slot.CurrentCapacity != 1 {
		t.Fatalf("current_capacity=%d, want 1", slot.CurrentCapacity)
	}
	entries, _ := svc.ListWaiting(context.Background(), slotID)
	if len(entries) != 0 {
		t.Fatalf("waiting list length=%d, want 0", len(entries))
	}
	assertLedgerInvariants(t, repo, slotID)
}

func TestDelayAccumulatesAndPropagates(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 3)

	var tokenIDs []uuid.UUID
	for i := 0; i < 2; i++ {
		res, err := svc.Allocate(context.Background(), slotID, addPatient(repo), CategoryWalkin)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		tokenIDs = append(tokenIDs, res.Token.ID)
	}

	if _, err := svc.DelaySlot(context.Background(), slotID, 15); err != nil {
		t.Fatalf("first delay: %v", err)
	}
	slot, err := svc.DelaySlot(context.Background(), slotID, 10)
	if err != nil {
		t.Fatalf("second delay: %v", err)
	}

	if slot.DelayMinutes != 25 {
		t.Fatalf("delay_minutes=%d, want 25", slot.DelayMinutes)
	}
	if slot.Status != SlotDelayed {
		t.Fatalf("status=%s, want DELAYED", slot.Status)
	}

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range tokenIDs {
		tok, _ := svc.GetToken(context.Background(), id)
		want := start.Add(time.Duration(25+i*AvgConsultationMinutes) * time.Minute)
		if !tok.EstimatedTime.Equal(want) {
			t.Fatalf("token %d estimated_time=%v, want %v", i+1, tok.EstimatedTime, want)
		}
	}
}

func TestDelayValidation(t *testing.T) {
	svc, repo := newTestService(t)
	slotID := addSlot(repo, 1)

	if _, err := svc.DelaySlot(context.Background(), slotID, -5); !errors.Is(err, ErrNegativeDelay) {
		t.Fatalf("got %v, want ErrNegativeDelay", err)
	}
	if _, err := svc.DelaySlot(context.Background(), uuid.New(), 5); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("got %v, want ErrSlotNotFound", err)
	}
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return lock.ErrNotAcquired
}

func TestLockContentionSurfacesAsSlotBusy(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, busyLocker{}, zerolog.Nop())
	svc.now = func() time.Time { return testClock }

	slotID := addSlot(repo, 2)
	patientID := addPatient(repo)

	if _, err := svc.Allocate(context.Background(), slotID, patientID, CategoryWalkin); !errors.Is(err, ErrSlotBusy) {
		t.Fatalf("got %v, want ErrSlotBusy", err)
	}
}

func TestCreateSlotValidation(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	repo.addDoctor(Doctor{ID: doctorID, Name: "Dr. Test", Specialization: "General Practice"})

	start := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)

	if _, err := svc.CreateSlot(context.Background(), doctorID, start, start.Add(time.Hour), 0); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("got %v, want ErrInvalidCapacity", err)
	}
	if _, err := svc.CreateSlot(context.Background(), doctorID, start, start, 3); !errors.Is(err, ErrInvalidSlotWindow) {
		t.Fatalf("got %v, want ErrInvalidSlotWindow", err)
	}
	if _, err := svc.CreateSlot(context.Background(), uuid.New(), start, start.Add(time.Hour), 3); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("got %v, want ErrDoctorNotFound", err)
	}

	slot, err := svc.CreateSlot(context.Background(), doctorID, start, start.Add(time.Hour), 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if slot.Status != SlotActive || slot.CurrentCapacity != 0 {
		t.Fatalf("new slot status=%s capacity=%d", slot.Status, slot.CurrentCapacity)
	}
}

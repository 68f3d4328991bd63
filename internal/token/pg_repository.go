package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository implements Repository on Postgres. The ledger transaction
// takes a FOR UPDATE lock on the slot row, a second safety net under the
// application-level slot lock, and relies on a partial unique index on
// (slot_id, token_number) over CONFIRMED tokens.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialization, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.MaxCapacity,
		&s.CurrentCapacity,
		&s.Status,
		&s.DelayMinutes,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(
		&t.ID,
		&t.SlotID,
		&t.PatientID,
		&t.TokenNumber,
		&t.Priority,
		&t.Category,
		&t.Status,
		&t.EstimatedTime,
		&t.ActualTime,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanWaiting(row pgx.Row) (*WaitingEntry, error) {
	var e WaitingEntry
	err := row.Scan(&e.ID, &e.SlotID, &e.PatientID, &e.Category, &e.Priority, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const tokenColumns = `id, slot_id, patient_id, token_number, priority, category, status, estimated_time, actual_time, created_at, updated_at`
const slotColumns = `id, doctor_id, start_time, end_time, max_capacity, current_capacity, status, delay_minutes, created_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, created_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetTokenByID(ctx context.Context, id uuid.UUID) (*Token, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE id = $1
	`, id)
	return scanToken(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slots (id, doctor_id, start_time, end_time, max_capacity, current_capacity, status, delay_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, 0, $7)
	`, s.ID, s.DoctorID, s.StartTime, s.EndTime, s.MaxCapacity, s.Status, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *PgRepository) ListSlots(ctx context.Context) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListTokensBySlot(ctx context.Context, slotID uuid.UUID) ([]Token, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE slot_id = $1
		ORDER BY token_number
	`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListWaitingBySlot(ctx context.Context, slotID uuid.UUID) ([]WaitingEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_id, patient_id, category, priority, created_at
		FROM waiting_list
		WHERE slot_id = $1
		ORDER BY priority, created_at
	`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WaitingEntry
	for rows.Next() {
		e, err := scanWaiting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func (r *PgRepository) InSlotTx(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context, led Ledger) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin slot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
		FOR UPDATE
	`, slotID)
	slot, err := scanSlot(row)
	if err != nil {
		return err
	}

	if err := fn(ctx, &pgLedger{tx: tx, slot: slot}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, token_id, slot_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.TokenID, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// pgLedger is the transactional view of one slot; the slot row stays locked
// until InSlotTx commits or rolls back.
type pgLedger struct {
	tx   pgx.Tx
	slot *Slot
}

func (l *pgLedger) Slot() *Slot { return l.slot }

func (l *pgLedger) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := l.tx.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (l *pgLedger) ConfirmedTokens(ctx context.Context) ([]Token, error) {
	rows, err := l.tx.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE slot_id = $1 AND status = 'CONFIRMED'
		ORDER BY priority, token_number
	`, l.slot.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (l *pgLedger) CreateToken(ctx context.Context, t *Token) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO tokens (id, slot_id, patient_id, token_number, priority, category, status, estimated_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.SlotID, t.PatientID, t.TokenNumber, t.Priority, t.Category, t.Status, t.EstimatedTime, t.CreatedAt, t.UpdatedAt)
	return err
}

func (l *pgLedger) SetTokenPosition(ctx context.Context, id uuid.UUID, number int, estimated time.Time) error {
	_, err := l.tx.Exec(ctx, `
		UPDATE tokens
		SET token_number = $2,
		    estimated_time = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, number, estimated)
	return err
}

func (l *pgLedger) SetTokenStatus(ctx context.Context, id uuid.UUID, from, to TokenStatus) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE tokens
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing token from a stale status.
		var exists bool
		if err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTokenNotFound
		}
		return ErrTokenNotConfirmed
	}
	return nil
}

func (l *pgLedger) AdjustCapacity(ctx context.Context, delta int) error {
	err := l.tx.QueryRow(ctx, `
		UPDATE slots
		SET current_capacity = current_capacity + $2
		WHERE id = $1
		RETURNING current_capacity
	`, l.slot.ID, delta).Scan(&l.slot.CurrentCapacity)
	return err
}

func (l *pgLedger) AddDelay(ctx context.Context, minutes int, status SlotStatus) error {
	err := l.tx.QueryRow(ctx, `
		UPDATE slots
		SET delay_minutes = delay_minutes + $2,
		    status = $3
		WHERE id = $1
		RETURNING delay_minutes
	`, l.slot.ID, minutes, status).Scan(&l.slot.DelayMinutes)
	if err != nil {
		return err
	}
	l.slot.Status = status
	return nil
}

func (l *pgLedger) HasBookingOnDate(ctx context.Context, patientID uuid.UUID, day time.Time) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM tokens t
			JOIN slots s ON s.id = t.slot_id
			WHERE t.patient_id = $1
			  AND t.status = 'CONFIRMED'
			  AND s.start_time::date = $2::date
		)
	`, patientID, day).Scan(&exists)
	return exists, err
}

func (l *pgLedger) EnqueueWaiting(ctx context.Context, e *WaitingEntry) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO waiting_list (id, slot_id, patient_id, category, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.SlotID, e.PatientID, e.Category, e.Priority, e.CreatedAt)
	return err
}

func (l *pgLedger) WaitingHead(ctx context.Context) (*WaitingEntry, error) {
	row := l.tx.QueryRow(ctx, `
		SELECT id, slot_id, patient_id, category, priority, created_at
		FROM waiting_list
		WHERE slot_id = $1
		ORDER BY priority, created_at
		LIMIT 1
	`, l.slot.ID)
	e, err := scanWaiting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (l *pgLedger) RemoveWaiting(ctx context.Context, id uuid.UUID) error {
	_, err := l.tx.Exec(ctx, `
		DELETE FROM waiting_list
		WHERE id = $1
	`, id)
	return err
}

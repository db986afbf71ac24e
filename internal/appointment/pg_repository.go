package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

const slotColumns = `id, practitioner_id, patient_id, start_time, length_seconds, price::text,
	practitioner_notes, patient_notes_by_practitioner, patient_notes_before_meeting,
	reminded_at, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Mobile,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Mobile,
		&p.Bio,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		s       Slot
		seconds int64
		price   string
	)

	err := row.Scan(
		&s.ID,
		&s.PractitionerID,
		&s.PatientID,
		&s.Start,
		&seconds,
		&price,
		&s.PractitionerNotes,
		&s.PatientNotesByPractitioner,
		&s.PatientNotesBeforeMeeting,
		&s.RemindedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Length = time.Duration(seconds) * time.Second
	s.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}

	return &s, nil
}

func collectSlots(rows pgx.Rows, err error) ([]Slot, error) {
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

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, mobile, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, mobile, bio, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) LockPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, mobile, created_at, updated_at
		FROM patients
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	return collectSlots(r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE practitioner_id = $1
		  AND patient_id IS NULL
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, practitionerID, from, to))
}

func (r *PgRepository) ListPatientSlots(ctx context.Context, patientID uuid.UUID, from time.Time) ([]Slot, error) {
	return collectSlots(r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE patient_id = $1
		  AND start_time + make_interval(secs => length_seconds) > $2
		ORDER BY start_time
	`, patientID, from))
}

func (r *PgRepository) ListPractitionerSlots(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	return collectSlots(r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE practitioner_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, practitionerID, from, to))
}

func (r *PgRepository) ListBookedSlots(ctx context.Context, from, to time.Time) ([]Slot, error) {
	return collectSlots(r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE patient_id IS NOT NULL
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
	`, from, to))
}

func (r *PgRepository) ListSlotsFor(ctx context.Context, who Party, id uuid.UUID) ([]Slot, error) {
	var column string
	switch who {
	case PartyPatient:
		column = "patient_id"
	case PartyPractitioner:
		column = "practitioner_id"
	default:
		return nil, fmt.Errorf("unknown party %q", who)
	}

	return collectSlots(r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE `+column+` = $1
		ORDER BY start_time DESC
	`, id))
}

func (r *PgRepository) LockSlots(ctx context.Context, ids []uuid.UUID) ([]Slot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectSlots(r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids))
}

func (r *PgRepository) CreateSlot(ctx context.Context, s Slot) (*Slot, error) {
	id := s.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointment_slots (
			id, practitioner_id, patient_id, start_time, length_seconds, price,
			practitioner_notes, patient_notes_by_practitioner, patient_notes_before_meeting,
			reminded_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, now(), now())
		RETURNING `+slotColumns,
		id, s.PractitionerID, s.PatientID, s.Start, int64(s.Length/time.Second), s.Price.String(),
		s.PractitionerNotes, s.PatientNotesByPractitioner, s.PatientNotesBeforeMeeting, s.RemindedAt)

	return scanSlot(row)
}

func (r *PgRepository) UpdateSlot(ctx context.Context, s Slot) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointment_slots
		SET practitioner_id = $2,
		    patient_id = $3,
		    start_time = $4,
		    length_seconds = $5,
		    price = $6::numeric,
		    practitioner_notes = $7,
		    patient_notes_by_practitioner = $8,
		    patient_notes_before_meeting = $9,
		    reminded_at = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns,
		s.ID, s.PractitionerID, s.PatientID, s.Start, int64(s.Length/time.Second), s.Price.String(),
		s.PractitionerNotes, s.PatientNotesByPractitioner, s.PatientNotesBeforeMeeting, s.RemindedAt)

	return scanSlot(row)
}

func (r *PgRepository) BookSlot(ctx context.Context, id, patientID uuid.UUID) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointment_slots
		SET patient_id = $2,
		    reminded_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND patient_id IS NULL
		RETURNING `+slotColumns,
		id, patientID)

	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrSlotUnavailable
	}
	return s, err
}

func (r *PgRepository) SetPractitionerNotes(ctx context.Context, id, practitionerID uuid.UUID, notes, patientNotes string) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointment_slots
		SET practitioner_notes = $3,
		    patient_notes_by_practitioner = $4,
		    updated_at = now()
		WHERE id = $1
		  AND practitioner_id = $2
		  AND patient_id IS NOT NULL
		RETURNING `+slotColumns,
		id, practitionerID, notes, patientNotes)

	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrSlotUnavailable
	}
	return s, err
}

func (r *PgRepository) SetPatientNotes(ctx context.Context, id, patientID uuid.UUID, notes string) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointment_slots
		SET patient_notes_before_meeting = $3,
		    updated_at = now()
		WHERE id = $1
		  AND patient_id = $2
		RETURNING `+slotColumns,
		id, patientID, notes)

	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrSlotUnavailable
	}
	return s, err
}

func (r *PgRepository) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointment_slots
		SET reminded_at = $2
		WHERE id = $1
		  AND patient_id IS NOT NULL
		  AND reminded_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) DeleteSlots(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		DELETE FROM appointment_slots
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}
	return nil
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PgRepository{pool: r.pool, q: tx, inTx: true})
	})
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, slot_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
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

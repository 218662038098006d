package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
)

const appointmentColumns = `
	id, patient_id, doctor_id, date, time, status, reason, notes,
	follow_up, follow_up_date, version, created_at, updated_at
`

// CreateScheduled inserts a new scheduled appointment. The partial unique
// index appointments_slot_unique on (doctor_id, date, time) WHERE
// status = 'scheduled' makes the insert the authoritative conflict check:
// two concurrent inserts for the same slot cannot both commit.
func (r *appointmentRepository) CreateScheduled(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, date, time, status, reason, notes,
			follow_up, follow_up_date, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.DoctorID,
		apt.Date,
		apt.Time,
		apt.Status,
		apt.Reason,
		apt.Notes,
		apt.FollowUp,
		apt.FollowUpDate,
		apt.Version,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "appointments_slot_unique") {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	if err := r.db.GetContext(ctx, &apt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

// SlotTaken is the fast pre-check before insert; the unique index remains
// the guard that matters under races.
func (r *appointmentRepository) SlotTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND time = $3 AND status = 'scheduled'
		)
	`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, doctorID, date, slot); err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return taken, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if filters.Date != nil {
		query += fmt.Sprintf(" AND date = $%d", argCount)
		args = append(args, *filters.Date)
		argCount++
	}
	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}

	// Deterministic ordering keeps pagination stable.
	query += " ORDER BY date ASC, time ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// UpdateVersioned is a compare-and-swap on version. A zero row count means
// either the record is gone or another writer got there first; the follow-up
// existence probe tells the two apart.
func (r *appointmentRepository) UpdateVersioned(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, notes = $2, follow_up = $3, follow_up_date = $4,
			version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7
	`
	apt.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		apt.Status,
		apt.Notes,
		apt.FollowUp,
		apt.FollowUpDate,
		apt.UpdatedAt,
		apt.ID,
		apt.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, apt.ID); err != nil {
			return fmt.Errorf("failed to check appointment existence: %w", err)
		}
		if !exists {
			return ErrNoRows
		}
		return ErrStaleVersion
	}

	apt.Version++
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
)

const consultationColumns = `
	id, patient_id, doctor_id, date, time, complaints, note,
	blood_pressure, pulse, temperature, weight, created_at, updated_at
`

func (r *consultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, patient_id, doctor_id, date, time, complaints, note,
			blood_pressure, pulse, temperature, weight, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.PatientID,
		c.DoctorID,
		c.Date,
		c.Time,
		c.Complaints,
		c.Note,
		c.BloodPressure,
		c.Pulse,
		c.Temperature,
		c.Weight,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`

	var c model.Consultation
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to get consultation: %w", err)
	}
	return &c, nil
}

func (r *consultationRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	return r.list(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
}

func (r *consultationRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Consultation, error) {
	return r.list(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE doctor_id = $1 ORDER BY created_at DESC`, doctorID)
}

func (r *consultationRepository) ListAll(ctx context.Context) ([]*model.Consultation, error) {
	var consultations []*model.Consultation
	query := `SELECT ` + consultationColumns + ` FROM consultations ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &consultations, query); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

func (r *consultationRepository) list(ctx context.Context, query string, arg interface{}) ([]*model.Consultation, error) {
	var consultations []*model.Consultation
	if err := r.db.SelectContext(ctx, &consultations, query, arg); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
)

const prescriptionColumns = `
	id, name, patient_id, doctor_id, assign_date, amount, duration_days,
	dose_morning, dose_afternoon, dose_night, notes, status,
	created_at, updated_at
`

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, name, patient_id, doctor_id, assign_date, amount, duration_days,
			dose_morning, dose_afternoon, dose_night, notes, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.PatientID,
		p.DoctorID,
		p.AssignDate,
		p.Amount,
		p.DurationDays,
		p.Dose.Morning,
		p.Dose.Afternoon,
		p.Dose.Night,
		p.Notes,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1`

	var p model.Prescription
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	restoreDose(&p)
	return &p, nil
}

func (r *prescriptionRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	return r.list(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE patient_id = $1 ORDER BY assign_date DESC`, patientID)
}

func (r *prescriptionRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Prescription, error) {
	return r.list(ctx, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE doctor_id = $1 ORDER BY assign_date DESC`, doctorID)
}

func (r *prescriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PrescriptionStatus) error {
	query := `UPDATE prescriptions SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update prescription status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *prescriptionRepository) list(ctx context.Context, query string, arg interface{}) ([]*model.Prescription, error) {
	var prescriptions []*model.Prescription
	if err := r.db.SelectContext(ctx, &prescriptions, query, arg); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	for _, p := range prescriptions {
		restoreDose(p)
	}
	return prescriptions, nil
}

func restoreDose(p *model.Prescription) {
	p.Dose = model.DoseSchedule{
		Morning:   p.DoseMorning,
		Afternoon: p.DoseNoon,
		Night:     p.DoseNight,
	}
}

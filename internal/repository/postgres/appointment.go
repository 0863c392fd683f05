package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/pkg/errors"
)

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, date, start_time, end_time, status, notes, created_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, errors.Transient("failed to get appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, notes = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		appointment.Status,
		appointment.Notes,
		appointment.ID,
	)
	if err != nil {
		return errors.Transient("failed to update appointment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Transient("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, userID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT a.id, a.patient_id, a.date, a.start_time, a.end_time, a.status, a.notes, a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE p.user_id = $1
	`
	args := []interface{}{userID}
	argCount := 2

	if filters != nil {
		if filters.PatientID != nil {
			query += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
			args = append(args, *filters.PatientID)
			argCount++
		}
		if filters.Status != nil {
			query += fmt.Sprintf(" AND a.status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
		if filters.StartDate != nil {
			query += fmt.Sprintf(" AND a.date >= $%d", argCount)
			args = append(args, *filters.StartDate)
			argCount++
		}
		if filters.EndDate != nil {
			query += fmt.Sprintf(" AND a.date <= $%d", argCount)
			args = append(args, *filters.EndDate)
			argCount++
		}
	}

	query += " ORDER BY a.start_time ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, errors.Transient("failed to list appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListBookedForAccount(ctx context.Context, userID uuid.UUID, startDate, endDate time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT a.id, a.patient_id, a.date, a.start_time, a.end_time, a.status, a.notes, a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE p.user_id = $1
		AND a.date >= $2
		AND a.date <= $3
		AND a.status != 'cancelled'
		ORDER BY a.start_time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, userID, startDate, endDate); err != nil {
		return nil, errors.Transient("failed to list booked appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, date, start_time, end_time, status, notes, created_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, patientID); err != nil {
		return nil, errors.Transient("failed to list patient appointments", err)
	}
	return appointments, nil
}

// Schedule locks the patient row, re-checks for an overlapping non-cancelled
// appointment on the same date and inserts, all in one transaction. The row
// lock serializes concurrent scheduling attempts for the same patient.
func (r *appointmentRepository) Schedule(ctx context.Context, appointment *model.Appointment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Transient("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var patientID uuid.UUID
	err = tx.GetContext(ctx, &patientID,
		`SELECT id FROM patients WHERE id = $1 FOR UPDATE`, appointment.PatientID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("patient", err)
	}
	if err != nil {
		return errors.Transient("failed to lock patient", err)
	}

	var hasConflict bool
	err = tx.GetContext(ctx, &hasConflict, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			AND date = $2
			AND status != 'cancelled'
			AND start_time <= $3
			AND end_time > $4
		)
	`, appointment.PatientID, appointment.Date, appointment.EndTime, appointment.StartTime)
	if err != nil {
		return errors.Transient("failed to check conflicts", err)
	}
	if hasConflict {
		return errors.Conflict("scheduling conflict detected", nil)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (id, patient_id, date, start_time, end_time, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		appointment.ID,
		appointment.PatientID,
		appointment.Date,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
	)
	if err != nil {
		return errors.Transient("failed to create appointment", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Transient("failed to commit appointment", err)
	}
	return nil
}

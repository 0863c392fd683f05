package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/pkg/errors"
)

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, user_id, first_name, last_name, date_of_birth,
			ssn, gender, phone_number, address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.SSN,
		patient.Gender,
		patient.PhoneNumber,
		patient.Address,
		patient.CreatedAt,
	)
	if err != nil {
		return errors.Transient("failed to create patient", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, user_id, first_name, last_name, date_of_birth,
			   ssn, gender, phone_number, address, created_at
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("patient", err)
	}
	if err != nil {
		return nil, errors.Transient("failed to get patient", err)
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, userID uuid.UUID) ([]*model.Patient, error) {
	query := `
		SELECT id, user_id, first_name, last_name, date_of_birth,
			   ssn, gender, phone_number, address, created_at
		FROM patients
		WHERE user_id = $1
		ORDER BY last_name, first_name
	`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, userID); err != nil {
		return nil, errors.Transient("failed to list patients", err)
	}
	return patients, nil
}

// Search matches a name fragment against first or last name together with
// the date of birth or the last 4 digits of the government ID.
func (r *patientRepository) Search(ctx context.Context, q *model.SearchPatientsQuery) (*model.Patient, error) {
	query := `
		SELECT id, user_id, first_name, last_name, date_of_birth,
			   ssn, gender, phone_number, address, created_at
		FROM patients
		WHERE (first_name ILIKE $1 OR last_name ILIKE $1)
	`
	args := []interface{}{"%" + q.Name + "%"}

	if q.SSNLast4 != "" {
		query += ` AND (date_of_birth = $2 OR ssn LIKE $3)`
		args = append(args, q.DateOfBirth, "%"+q.SSNLast4)
	} else {
		query += ` AND date_of_birth = $2`
		args = append(args, q.DateOfBirth)
	}

	query += ` LIMIT 1`

	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, args...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("patient", err)
	}
	if err != nil {
		return nil, errors.Transient("failed to search patients", err)
	}
	return &patient, nil
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avahealth/scheduling-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository handles appointment persistence. Schedule is the
	// only write path that creates appointments: it serializes the conflict
	// check and the insert per patient so concurrent overlapping requests
	// cannot both succeed.
	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, userID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error)

		// ListBookedForAccount returns every non-cancelled appointment of any
		// patient under userID whose date falls within [startDate, endDate].
		ListBookedForAccount(ctx context.Context, userID uuid.UUID, startDate, endDate time.Time) ([]*model.Appointment, error)

		// Schedule atomically re-checks for an overlapping non-cancelled
		// appointment of the same patient on the same date and inserts. It
		// returns a conflict error when the check fails; nothing is written.
		Schedule(ctx context.Context, appointment *model.Appointment) error

		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		List(ctx context.Context, userID uuid.UUID) ([]*model.Patient, error)
		Search(ctx context.Context, query *model.SearchPatientsQuery) (*model.Patient, error)
	}

	UserRepository interface {
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	}
)

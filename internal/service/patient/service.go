package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/internal/repository"
	"github.com/avahealth/scheduling-api/pkg/calendar"
	"github.com/avahealth/scheduling-api/pkg/errors"
)

// Service resolves and manages patient identity records. The agent calls
// Search to turn a caller's spoken name, date of birth and last 4 of their
// government ID into a patient ID before any scheduling operation.
type Service struct {
	repo         repository.PatientRepository
	appointments repository.AppointmentRepository
	loc          *time.Location
	now          func() time.Time
}

func NewService(repo repository.PatientRepository, appointments repository.AppointmentRepository, loc *time.Location) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		loc:          loc,
		now:          time.Now,
	}
}

// Search finds the first patient matching a name fragment plus date of
// birth (or last 4 of government ID) and returns it with its appointments,
// government ID masked.
func (s *Service) Search(ctx context.Context, name, dob, ssnLast4 string) (*model.PatientResponse, error) {
	if name == "" || dob == "" {
		return nil, errors.Validation("patient name and date of birth are required", nil)
	}

	dateOfBirth, err := calendar.ParseDate(dob, time.UTC)
	if err != nil {
		return nil, err
	}

	patient, err := s.repo.Search(ctx, &model.SearchPatientsQuery{
		Name:        name,
		DateOfBirth: dateOfBirth,
		SSNLast4:    ssnLast4,
	})
	if err != nil {
		return nil, err
	}

	appointments, err := s.appointments.ListForPatient(ctx, patient.ID)
	if err != nil {
		return nil, err
	}

	resp := model.NewPatientResponse(patient)
	resp.Appointments = appointments
	return resp, nil
}

// Create registers a new patient under the given account.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *model.CreatePatientRequest) (*model.PatientResponse, error) {
	dateOfBirth, err := calendar.ParseDate(req.DateOfBirth, time.UTC)
	if err != nil {
		return nil, err
	}

	patient := &model.Patient{
		ID:          uuid.New(),
		UserID:      userID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: dateOfBirth,
		SSN:         req.SSN,
		Gender:      req.Gender,
		CreatedAt:   s.now(),
	}
	if req.PhoneNumber != "" {
		patient.PhoneNumber = &req.PhoneNumber
	}
	if req.Address != "" {
		patient.Address = &req.Address
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return model.NewPatientResponse(patient), nil
}

// Get returns one patient, government ID masked.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.PatientResponse, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.NewPatientResponse(patient), nil
}

// List returns the account's patients, government IDs masked.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*model.PatientResponse, error) {
	patients, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.PatientResponse, 0, len(patients))
	for _, p := range patients {
		out = append(out, model.NewPatientResponse(p))
	}
	return out, nil
}

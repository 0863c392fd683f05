package schedule

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/avahealth/scheduling-api/internal/email"
	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/internal/repository"
	"github.com/avahealth/scheduling-api/pkg/calendar"
	"github.com/avahealth/scheduling-api/pkg/errors"
	"github.com/avahealth/scheduling-api/pkg/messaging"
	"github.com/avahealth/scheduling-api/pkg/metrics"
)

const (
	accountCacheTTL     = 5 * time.Minute
	accountCacheCleanup = 15 * time.Minute
)

// Service implements availability listing, conflict-checked scheduling and
// cancellation over the practice calendar. Availability is scoped to the
// whole account a patient belongs to; the scheduling conflict check is
// scoped to the target patient and excludes cancelled appointments.
type Service struct {
	repo     repository.AppointmentRepository
	patients repository.PatientRepository
	users    repository.UserRepository
	mailer   email.Service
	broker   messaging.Broker
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	loc    *time.Location
	tzName string

	// patient -> owning account. Identity records only; appointment and
	// slot state is never cached.
	accounts *cache.Cache

	now func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	mailer email.Service,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	loc *time.Location,
) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		users:    users,
		mailer:   mailer,
		broker:   broker,
		metrics:  m,
		logger:   logger,
		loc:      loc,
		tzName:   loc.String(),
		accounts: cache.New(accountCacheTTL, accountCacheCleanup),
		now:      time.Now,
	}
}

// ListAvailableSlots returns the ordered open slots in [startDate, endDate]
// for the account the patient belongs to.
func (s *Service) ListAvailableSlots(ctx context.Context, patientID uuid.UUID, startDate, endDate string) (*model.SlotList, error) {
	startDay, err := calendar.ParseDate(startDate, s.loc)
	if err != nil {
		return nil, err
	}
	endDay, err := calendar.ParseDate(endDate, s.loc)
	if err != nil {
		return nil, err
	}

	if startDay.After(endDay) {
		return nil, errors.Validation("startDate must be before endDate", nil)
	}

	spanDays := int(math.Round(endDay.Sub(startDay).Hours()/24)) + 1
	if spanDays > maxRangeDays {
		return nil, errors.Validation(fmt.Sprintf("date range cannot exceed %d days", maxRangeDays), nil)
	}

	userID, err := s.resolveAccount(ctx, patientID)
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.ListBookedForAccount(ctx, userID, startDay, endDay)
	if err != nil {
		return nil, err
	}

	slots := generateOpenSlots(startDay, endDay, booked, s.now(), s.loc)

	if s.metrics != nil {
		s.metrics.SlotQueries.Inc()
		s.metrics.SlotsGenerated.Observe(float64(len(slots)))
	}

	return &model.SlotList{
		StartDate:      calendar.FormatDate(startDay, s.loc),
		EndDate:        calendar.FormatDate(endDay, s.loc),
		Timezone:       s.tzName,
		AvailableSlots: slots,
	}, nil
}

// ScheduleAppointment validates and persists a new appointment. The conflict
// check and the insert run as one unit inside the repository so concurrent
// overlapping requests for the same patient cannot both succeed.
func (s *Service) ScheduleAppointment(ctx context.Context, req *model.ScheduleAppointmentRequest) (*model.AppointmentResponse, error) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, errors.Validation("invalid patient ID", err)
	}

	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	date, err := calendar.ParseDate(req.Date, s.loc)
	if err != nil {
		return nil, err
	}
	start, err := calendar.ParseInstant(req.StartTime, date, s.loc)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseInstant(req.EndTime, date, s.loc)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, errors.Validation("endTime must be after startTime", nil)
	}

	appt := &model.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		// date is derived from the start instant so the two can never
		// disagree, even when startTime arrived as a full timestamp.
		Date:      calendar.StartOfDay(start, s.loc),
		StartTime: start,
		EndTime:   end,
		Status:    model.AppointmentStatusScheduled,
		CreatedAt: s.now(),
	}
	if req.Notes != "" {
		notes := req.Notes
		appt.Notes = &notes
	}

	if err := s.repo.Schedule(ctx, appt); err != nil {
		if errors.IsKind(err, errors.KindConflict) && s.metrics != nil {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentsBooked.Inc()
	}

	// The appointment is committed; everything below is best-effort and must
	// not hide that from the caller.
	s.publishEvent(ctx, messaging.EventAppointmentBooked, appt)
	s.notifyOwner(ctx, patient, appt, true)

	return s.localize(appt), nil
}

// CancelAppointment transitions an owned appointment to cancelled, appending
// the reason to its notes.
func (s *Service) CancelAppointment(ctx context.Context, req *model.CancelAppointmentRequest) (*model.AppointmentResponse, error) {
	appointmentID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		return nil, errors.Validation("invalid appointment ID", err)
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, errors.Validation("invalid patient ID", err)
	}

	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appt.PatientID != patientID {
		s.denyCancellation("ownership")
		return nil, errors.Authorization("appointment does not belong to the given patient", nil)
	}
	if appt.Status == model.AppointmentStatusCancelled {
		s.denyCancellation("already_cancelled")
		return nil, errors.Conflict("appointment is already cancelled", nil)
	}
	if appt.Status == model.AppointmentStatusCompleted {
		s.denyCancellation("completed")
		return nil, errors.Conflict("cannot cancel a completed appointment", nil)
	}

	appt.Status = model.AppointmentStatusCancelled
	if req.CancellationReason != "" {
		var existing string
		if appt.Notes != nil && *appt.Notes != "" {
			existing = *appt.Notes + "\n\n"
		}
		notes := existing + "Cancellation reason: " + req.CancellationReason
		appt.Notes = &notes
	}

	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Cancellations.Inc()
	}

	s.publishEvent(ctx, messaging.EventAppointmentCancelled, appt)
	if patient, perr := s.patients.Get(ctx, appt.PatientID); perr == nil {
		s.notifyOwner(ctx, patient, appt, false)
	}

	return s.localize(appt), nil
}

// GetAppointment returns one appointment, localized.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.AppointmentResponse, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.localize(appt), nil
}

// ListAppointments returns the account's appointments matching the filters.
func (s *Service) ListAppointments(ctx context.Context, userID uuid.UUID, filters *model.AppointmentFilters) ([]*model.AppointmentResponse, error) {
	appointments, err := s.repo.List(ctx, userID, filters)
	if err != nil {
		return nil, err
	}
	out := make([]*model.AppointmentResponse, 0, len(appointments))
	for _, appt := range appointments {
		out = append(out, s.localize(appt))
	}
	return out, nil
}

func (s *Service) resolveAccount(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	key := patientID.String()
	if v, ok := s.accounts.Get(key); ok {
		return v.(uuid.UUID), nil
	}

	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return uuid.Nil, err
	}

	s.accounts.Set(key, patient.UserID, cache.DefaultExpiration)
	return patient.UserID, nil
}

func (s *Service) localize(appt *model.Appointment) *model.AppointmentResponse {
	return &model.AppointmentResponse{
		Appointment: appt,
		LocalDate:   calendar.FormatDate(appt.StartTime, s.loc),
		LocalStart:  appt.StartTime.In(s.loc).Format(slotTimeLayout),
		LocalEnd:    appt.EndTime.In(s.loc).Format(slotTimeLayout),
	}
}

func (s *Service) publishEvent(ctx context.Context, eventType string, appt *model.Appointment) {
	if s.broker == nil {
		return
	}
	event := messaging.Event{
		Type:          eventType,
		AppointmentID: appt.ID.String(),
		PatientID:     appt.PatientID.String(),
		Date:          calendar.FormatDate(appt.StartTime, s.loc),
	}
	if err := s.broker.Publish(ctx, messaging.ChannelAppointments, event); err != nil {
		if s.metrics != nil {
			s.metrics.EventsFailed.WithLabelValues(eventType).Inc()
		}
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish appointment event")
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

func (s *Service) notifyOwner(ctx context.Context, patient *model.Patient, appt *model.Appointment, booked bool) {
	if s.mailer == nil {
		return
	}
	owner, err := s.users.Get(ctx, patient.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to resolve account owner for notification")
		return
	}

	name := patient.FirstName + " " + patient.LastName
	date := calendar.FormatDate(appt.StartTime, s.loc)
	timeRange := calendar.FormatTimeRange(appt.StartTime, appt.EndTime, s.loc)

	if booked {
		err = s.mailer.SendBookingConfirmation(ctx, owner.Email, name, date, timeRange)
	} else {
		err = s.mailer.SendCancellationNotice(ctx, owner.Email, name, date, timeRange)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to send notification email")
	}
}

func (s *Service) denyCancellation(reason string) {
	if s.metrics != nil {
		s.metrics.CancellationDenied.WithLabelValues(reason).Inc()
	}
}

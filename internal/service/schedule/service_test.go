package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/pkg/errors"
	"github.com/avahealth/scheduling-api/pkg/messaging"
)

// fakeAppointmentRepo keeps appointments in memory and enforces the same
// conflict predicate as the SQL implementation, serialized by a mutex.
type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment", nil)
	}
	cp := *appt
	return &cp, nil
}

func (r *fakeAppointmentRepo) Update(_ context.Context, appt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[appt.ID]; !ok {
		return errors.NotFound("appointment", nil)
	}
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, _ uuid.UUID, _ *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range r.appointments {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListBookedForAccount(_ context.Context, _ uuid.UUID, startDate, endDate time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range r.appointments {
		if a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if a.Date.Before(startDate) || a.Date.After(endDate) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) Schedule(_ context.Context, appt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.PatientID != appt.PatientID {
			continue
		}
		if existing.Status == model.AppointmentStatusCancelled {
			continue
		}
		if !existing.Date.Equal(appt.Date) {
			continue
		}
		if !existing.StartTime.After(appt.EndTime) && existing.EndTime.After(appt.StartTime) {
			return errors.Conflict("scheduling conflict detected", nil)
		}
	}
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) ListForPatient(_ context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Appointment{}
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*model.Patient
}

func (r *fakePatientRepo) Create(_ context.Context, p *model.Patient) error {
	r.patients[p.ID] = p
	return nil
}

func (r *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, errors.NotFound("patient", nil)
	}
	return p, nil
}

func (r *fakePatientRepo) List(_ context.Context, userID uuid.UUID) ([]*model.Patient, error) {
	out := []*model.Patient{}
	for _, p := range r.patients {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePatientRepo) Search(_ context.Context, _ *model.SearchPatientsQuery) (*model.Patient, error) {
	return nil, errors.NotFound("patient", nil)
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.NotFound("user", nil)
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	return u, nil
}

type fakeBroker struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (b *fakeBroker) Publish(_ context.Context, _ string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, message.(messaging.Event))
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

type fixture struct {
	svc     *Service
	repo    *fakeAppointmentRepo
	broker  *fakeBroker
	userID  uuid.UUID
	patient *model.Patient
	loc     *time.Location
}

// newFixture builds a service with one account and one patient, with the
// clock pinned to Sunday 2025-06-01 noon Eastern.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	userID := uuid.New()
	patient := &model.Patient{
		ID:        uuid.New(),
		UserID:    userID,
		FirstName: "Jordan",
		LastName:  "Reyes",
	}

	repo := newFakeAppointmentRepo()
	patients := &fakePatientRepo{patients: map[uuid.UUID]*model.Patient{patient.ID: patient}}
	users := &fakeUserRepo{users: map[uuid.UUID]*model.User{userID: {ID: userID, Email: "owner@example.com"}}}
	broker := &fakeBroker{}

	svc := NewService(repo, patients, users, nil, broker, nil, zerolog.Nop(), loc)
	svc.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	}

	return &fixture{svc: svc, repo: repo, broker: broker, userID: userID, patient: patient, loc: loc}
}

func (f *fixture) at(day int, hour, minute int) time.Time {
	return time.Date(2025, 6, day, hour, minute, 0, 0, f.loc)
}

// book inserts an appointment directly, bypassing the service.
func (f *fixture) book(t *testing.T, patientID uuid.UUID, start, end time.Time, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	appt := &model.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		Date:      time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, f.loc),
		StartTime: start,
		EndTime:   end,
		Status:    status,
	}
	f.repo.mu.Lock()
	f.repo.appointments[appt.ID] = appt
	f.repo.mu.Unlock()
	return appt
}

func TestListAvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Monday 2025-06-02 and Tuesday 2025-06-03, fully free: 18 slots per day.
	list, err := f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-02", "2025-06-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", list.StartDate)
	assert.Equal(t, "2025-06-03", list.EndDate)
	assert.Equal(t, "America/New_York", list.Timezone)
	require.Len(t, list.AvailableSlots, 36)

	assert.Equal(t, "2025-06-02T08:00:00", list.AvailableSlots[0].StartTime)
	assert.Equal(t, "2025-06-02T08:30:00", list.AvailableSlots[0].EndTime)
	assert.Equal(t, "8:00 AM - 8:30 AM", list.AvailableSlots[0].FormattedTime)
	last := list.AvailableSlots[len(list.AvailableSlots)-1]
	assert.Equal(t, "2025-06-03T16:30:00", last.StartTime)
	assert.Equal(t, "2025-06-03T17:00:00", last.EndTime)

	// Identical request returns identical slots.
	again, err := f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-02", "2025-06-03")
	require.NoError(t, err)
	assert.Equal(t, list.AvailableSlots, again.AvailableSlots)
}

func TestListAvailableSlotsSkipsWeekends(t *testing.T) {
	f := newFixture(t)

	// Saturday 2025-06-07 through Sunday 2025-06-08.
	list, err := f.svc.ListAvailableSlots(context.Background(), f.patient.ID, "2025-06-07", "2025-06-08")
	require.NoError(t, err)
	assert.Empty(t, list.AvailableSlots)
}

func TestListAvailableSlotsSkipsPast(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return f.at(2, 12, 0) }

	list, err := f.svc.ListAvailableSlots(context.Background(), f.patient.ID, "2025-06-02", "2025-06-02")
	require.NoError(t, err)
	// 12:00 through 16:30: a slot starting exactly now is still offered.
	require.Len(t, list.AvailableSlots, 10)
	assert.Equal(t, "2025-06-02T12:00:00", list.AvailableSlots[0].StartTime)
}

func TestListAvailableSlotsExcludesBooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 9:00-10:00 booking removes the 9:00 slot by overlap and the 9:30 slot
	// by end-boundary coincidence.
	f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 10, 0), model.AppointmentStatusScheduled)

	list, err := f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-02", "2025-06-02")
	require.NoError(t, err)
	require.Len(t, list.AvailableSlots, 16)
	for _, slot := range list.AvailableSlots {
		assert.NotEqual(t, "2025-06-02T09:00:00", slot.StartTime)
		assert.NotEqual(t, "2025-06-02T09:30:00", slot.StartTime)
	}
}

func TestListAvailableSlotsAccountWide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A sibling patient under the same account holds 10:00-10:30; the slot
	// must disappear from this patient's availability too.
	sibling := uuid.New()
	f.book(t, sibling, f.at(2, 10, 0), f.at(2, 10, 30), model.AppointmentStatusScheduled)

	list, err := f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-02", "2025-06-02")
	require.NoError(t, err)
	for _, slot := range list.AvailableSlots {
		assert.NotEqual(t, "2025-06-02T10:00:00", slot.StartTime)
	}
}

func TestListAvailableSlotsIgnoresCancelled(t *testing.T) {
	f := newFixture(t)

	f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 9, 30), model.AppointmentStatusCancelled)

	list, err := f.svc.ListAvailableSlots(context.Background(), f.patient.ID, "2025-06-02", "2025-06-02")
	require.NoError(t, err)
	assert.Len(t, list.AvailableSlots, 18)
}

func TestListAvailableSlotsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListAvailableSlots(ctx, f.patient.ID, "06/02/2025", "2025-06-03")
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-03", "2025-06-02")
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	// 31 calendar days inclusive is over the limit, 30 is not.
	_, err = f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-01", "2025-07-01")
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-01", "2025-06-30")
	assert.NoError(t, err)

	_, err = f.svc.ListAvailableSlots(ctx, uuid.New(), "2025-06-02", "2025-06-03")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestScheduleAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ScheduleAppointment(ctx, &model.ScheduleAppointmentRequest{
		PatientID: f.patient.ID.String(),
		Date:      "2025-06-02",
		StartTime: "09:00",
		EndTime:   "09:30",
		Notes:     "annual checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, resp.Status)
	assert.Equal(t, "2025-06-02", resp.LocalDate)
	assert.Equal(t, "2025-06-02T09:00:00", resp.LocalStart)
	assert.Equal(t, "2025-06-02T09:30:00", resp.LocalEnd)
	require.NotNil(t, resp.Notes)
	assert.Equal(t, "annual checkup", *resp.Notes)
	assert.True(t, resp.Date.Equal(f.at(2, 0, 0)))

	// Booked event went out after commit.
	require.Len(t, f.broker.events, 1)
	assert.Equal(t, messaging.EventAppointmentBooked, f.broker.events[0].Type)
	assert.Equal(t, resp.ID.String(), f.broker.events[0].AppointmentID)

	// The booked slot is gone from availability.
	list, err := f.svc.ListAvailableSlots(ctx, f.patient.ID, "2025-06-02", "2025-06-02")
	require.NoError(t, err)
	for _, slot := range list.AvailableSlots {
		assert.NotEqual(t, "2025-06-02T09:00:00", slot.StartTime)
	}
}

func TestScheduleAppointmentAcceptsFullTimestamps(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.ScheduleAppointment(context.Background(), &model.ScheduleAppointmentRequest{
		PatientID: f.patient.ID.String(),
		Date:      "2025-06-02",
		StartTime: "2025-06-02T14:00:00",
		EndTime:   "2025-06-02T14:30:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02T14:00:00", resp.LocalStart)
	assert.Nil(t, resp.Notes)
}

func TestScheduleAppointmentConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 9, 30), model.AppointmentStatusScheduled)

	cases := []struct {
		name       string
		start, end string
		conflict   bool
	}{
		{"identical interval", "09:00", "09:30", true},
		{"overlapping sub-interval", "09:15", "09:45", true},
		{"containing interval", "08:30", "10:00", true},
		{"abutting after", "09:30", "10:00", false},
		{"abutting before", "08:30", "09:00", true},
		{"disjoint later", "11:00", "11:30", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ScheduleAppointment(ctx, &model.ScheduleAppointmentRequest{
				PatientID: f.patient.ID.String(),
				Date:      "2025-06-02",
				StartTime: tc.start,
				EndTime:   tc.end,
			})
			if tc.conflict {
				assert.True(t, errors.IsKind(err, errors.KindConflict), "expected conflict, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduleAppointmentIgnoresCancelledConflict(t *testing.T) {
	f := newFixture(t)

	f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 9, 30), model.AppointmentStatusCancelled)

	_, err := f.svc.ScheduleAppointment(context.Background(), &model.ScheduleAppointmentRequest{
		PatientID: f.patient.ID.String(),
		Date:      "2025-06-02",
		StartTime: "09:00",
		EndTime:   "09:30",
	})
	assert.NoError(t, err)
}

func TestScheduleAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ScheduleAppointment(ctx, &model.ScheduleAppointmentRequest{
		PatientID: "not-a-uuid", Date: "2025-06-02", StartTime: "09:00", EndTime: "09:30",
	})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.ScheduleAppointment(ctx, &model.ScheduleAppointmentRequest{
		PatientID: uuid.New().String(), Date: "2025-06-02", StartTime: "09:00", EndTime: "09:30",
	})
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	_, err = f.svc.ScheduleAppointment(ctx, &model.ScheduleAppointmentRequest{
		PatientID: f.patient.ID.String(), Date: "2025-06-02", StartTime: "09:30", EndTime: "09:00",
	})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.ScheduleAppointment(ctx, &model.ScheduleAppointmentRequest{
		PatientID: f.patient.ID.String(), Date: "2025-06-02", StartTime: "09:00", EndTime: "09:00",
	})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

// Concurrent identical requests must produce exactly one appointment.
func TestScheduleAppointmentConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ScheduleAppointment(ctx, &model.ScheduleAppointmentRequest{
				PatientID: f.patient.ID.String(),
				Date:      "2025-06-02",
				StartTime: "09:00",
				EndTime:   "09:30",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.IsKind(err, errors.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt := f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 9, 30), model.AppointmentStatusScheduled)

	resp, err := f.svc.CancelAppointment(ctx, &model.CancelAppointmentRequest{
		AppointmentID:      appt.ID.String(),
		PatientID:          f.patient.ID.String(),
		CancellationReason: "feeling better",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, resp.Status)
	require.NotNil(t, resp.Notes)
	assert.Equal(t, "Cancellation reason: feeling better", *resp.Notes)

	stored, err := f.repo.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)

	require.Len(t, f.broker.events, 1)
	assert.Equal(t, messaging.EventAppointmentCancelled, f.broker.events[0].Type)
}

func TestCancelAppointmentAppendsToNotes(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 9, 30), model.AppointmentStatusScheduled)
	notes := "annual checkup"
	appt.Notes = &notes

	resp, err := f.svc.CancelAppointment(context.Background(), &model.CancelAppointmentRequest{
		AppointmentID:      appt.ID.String(),
		PatientID:          f.patient.ID.String(),
		CancellationReason: "conflict came up",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Notes)
	assert.Equal(t, "annual checkup\n\nCancellation reason: conflict came up", *resp.Notes)
}

func TestCancelAppointmentWithoutReasonKeepsNotes(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 9, 30), model.AppointmentStatusScheduled)
	notes := "annual checkup"
	appt.Notes = &notes

	resp, err := f.svc.CancelAppointment(context.Background(), &model.CancelAppointmentRequest{
		AppointmentID: appt.ID.String(),
		PatientID:     f.patient.ID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Notes)
	assert.Equal(t, "annual checkup", *resp.Notes)
}

func TestCancelAppointmentGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CancelAppointment(ctx, &model.CancelAppointmentRequest{
		AppointmentID: uuid.New().String(),
		PatientID:     f.patient.ID.String(),
	})
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	appt := f.book(t, f.patient.ID, f.at(2, 9, 0), f.at(2, 9, 30), model.AppointmentStatusScheduled)
	_, err = f.svc.CancelAppointment(ctx, &model.CancelAppointmentRequest{
		AppointmentID: appt.ID.String(),
		PatientID:     uuid.New().String(),
	})
	assert.True(t, errors.IsKind(err, errors.KindAuthorization))

	cancelled := f.book(t, f.patient.ID, f.at(2, 10, 0), f.at(2, 10, 30), model.AppointmentStatusCancelled)
	_, err = f.svc.CancelAppointment(ctx, &model.CancelAppointmentRequest{
		AppointmentID: cancelled.ID.String(),
		PatientID:     f.patient.ID.String(),
	})
	assert.True(t, errors.IsKind(err, errors.KindConflict))

	done := f.book(t, f.patient.ID, f.at(2, 11, 0), f.at(2, 11, 30), model.AppointmentStatusCompleted)
	_, err = f.svc.CancelAppointment(ctx, &model.CancelAppointmentRequest{
		AppointmentID: done.ID.String(),
		PatientID:     f.patient.ID.String(),
	})
	assert.True(t, errors.IsKind(err, errors.KindConflict))

	// Ownership is checked before status: a foreign cancelled appointment
	// reports authorization, not conflict.
	_, err = f.svc.CancelAppointment(ctx, &model.CancelAppointmentRequest{
		AppointmentID: cancelled.ID.String(),
		PatientID:     uuid.New().String(),
	})
	assert.True(t, errors.IsKind(err, errors.KindAuthorization))
}
